package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/config"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/log"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/orchestrator"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/server"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/workflows"
)

type app struct {
	cfg    *config.Config
	host   *orchestrator.Host
	server *server.Server
	quit   chan os.Signal
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (overrides "+config.EnvConfigFile+")")
	version := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *version {
		fmt.Println(server.Name, server.Version)
		return
	}
	if *configPath != "" {
		_ = os.Setenv(config.EnvConfigFile, *configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Errorf("invalid configuration: %v", err)
		os.Exit(1)
	}
	log.SetLevel(cfg.LogLevel)

	a := &app{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	if err := a.run(); err != nil {
		log.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}

func (a *app) run() error {
	ctx := context.Background()

	a.host = orchestrator.NewHost(a.cfg, log.Default)
	defer a.shutdown(ctx)

	// Open the store up front so a bad backend fails before the client connects.
	if _, err := a.host.Checkpointer(ctx); err != nil {
		return errors.Wrap(err, "open checkpoint store")
	}

	catalog := workflows.Catalog(workflows.OptionsFromConfig(a.cfg, log.Default))
	a.server = server.New(a.host, catalog)
	stdio := a.server.NewStdio()

	log.Infof("serving %d workflows over stdio (store: %s)", len(catalog), a.cfg.Backend())

	errCh := make(chan error, 1)
	go func() {
		errCh <- stdio.Start()
	}()

	signal.Notify(a.quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-a.quit:
		log.Infof("received %s, shutting down", sig)
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *app) shutdown(ctx context.Context) {
	if err := a.host.Flush(ctx); err != nil {
		log.Warnf("flush checkpoint store: %v", err)
	}
	if err := a.host.Close(); err != nil {
		log.Warnf("close checkpoint store: %v", err)
	}
}
