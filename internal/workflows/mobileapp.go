package workflows

import (
	"context"
	"path/filepath"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/command"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/pkg/agents"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/pkg/workflow"
)

const MobileAppName = "mobileapp"

// Mobile app state keys
const (
	KeyPlatform      = "platform"
	KeyProjectPath   = "projectPath"
	KeyBuildOutput   = "buildOutput"
	KeyDeployOutput  = "deployOutput"
	KeyBuildErrors   = "buildErrors"
	KeyAttempt       = "attempt"
	KeyErrorsHandled = "errorsHandled"
	KeyDecision      = "decision"
	KeyStatus        = "status"
)

const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"

	DecisionRetry = "retry"
	DecisionAbort = "abort"

	StatusDeployed = "deployed"
	StatusAborted  = "aborted"
)

const (
	routeFailed = "failed"
	routeOK     = "ok"
)

func mobileSchema() *state.Schema {
	return state.NewSchema().
		Replace(KeyPlatform, openapi3.NewStringSchema().WithEnum(PlatformIOS, PlatformAndroid)).
		Replace(KeyProjectPath, openapi3.NewStringSchema()).
		Append(KeyBuildErrors, openapi3.NewStringSchema()).
		Replace(KeyAttempt, openapi3.NewIntegerSchema().WithMin(1)).
		Replace(KeyErrorsHandled, openapi3.NewIntegerSchema().WithMin(0)).
		Replace(KeyDecision, openapi3.NewStringSchema().WithEnum(DecisionRetry, DecisionAbort)).
		Replace(KeyStatus, openapi3.NewStringSchema())
}

// MobileApp builds the build and deploy workflow:
//
//	init -> environment -> build
//	build -(errors)-> failure, build -> deploy
//	deploy -(errors)-> failure, deploy -> complete -> END
//	failure -(retry)-> build, failure -(abort)-> END
//
// Command failures are appended to buildErrors. An error counts as new
// until a retry records it in errorsHandled.
func MobileApp(opts Options) (*graph.Graph, error) {
	opts = opts.withDefaults()
	m := &mobileApp{opts: opts}

	wf := workflow.NewBuilder(MobileAppName,
		graph.WithSchema(mobileSchema()),
		graph.WithDescription("Mobile app build and deployment."),
	)

	initAgent := agents.NewSimpleAgent("init", m.init, nil)
	environment := agents.NewSimpleAgent("environment", m.environment, nil)
	build := agents.NewCommandAgent("build", opts.Runner, m.buildSpec, KeyBuildOutput, KeyBuildErrors)
	deploy := agents.NewCommandAgent("deploy", opts.Runner, m.deploySpec, KeyDeployOutput, KeyBuildErrors)
	failure := agents.NewSimpleAgent("failure", m.failure, nil)
	complete := agents.NewSimpleAgent("complete", m.complete, nil)

	flow := wf.AddAgent(initAgent).
		AsEntryPoint().
		Then(environment).
		Then(build).
		OnCondition(m.routeOnErrors, map[string]workflow.Agent{routeFailed: failure, routeOK: deploy})
	if err := flow.Err(); err != nil {
		return nil, err
	}
	if err := wf.At(deploy).OnCondition(m.routeOnErrors, map[string]workflow.Agent{routeFailed: failure, routeOK: complete}).Err(); err != nil {
		return nil, err
	}
	if err := wf.At(complete).End(); err != nil {
		return nil, err
	}
	if err := wf.At(failure).OnCondition(m.routeOnDecision, map[string]workflow.Agent{DecisionRetry: build, DecisionAbort: nil}).Err(); err != nil {
		return nil, err
	}
	return wf.Graph(), nil
}

type mobileApp struct {
	opts Options
}

func (m *mobileApp) init(context.Context, state.State, *graph.Runtime) (graph.NodeResult, error) {
	return graph.Update(state.State{KeyAttempt: 1, KeyErrorsHandled: 0}), nil
}

func (m *mobileApp) environment(_ context.Context, st state.State, rt *graph.Runtime) (graph.NodeResult, error) {
	guidance, err := Guidance("mobile-environment", map[string]any{"projectRoot": m.opts.ProjectRoot})
	if err != nil {
		return graph.NodeResult{}, err
	}
	platform := openapi3.NewStringSchema().WithEnum(PlatformIOS, PlatformAndroid)
	platform.Description = "Target platform"
	req := InputRequest{
		Name:        "sfmobile-mobile-environment",
		Description: guidance,
		Schema: objectSchema([]string{KeyPlatform, KeyProjectPath}, map[string]*openapi3.Schema{
			KeyPlatform:    platform,
			KeyProjectPath: stringSchema("Path of the mobile project"),
		}),
		Values: map[string]any{
			KeyPlatform:    st.String(KeyPlatform),
			KeyProjectPath: st.String(KeyProjectPath),
		},
	}
	return Ask(rt, req, func(values map[string]any) (graph.NodeResult, error) {
		path, _ := values[KeyProjectPath].(string)
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.opts.ProjectRoot, path)
		}
		return graph.Update(state.State{
			KeyPlatform:    values[KeyPlatform],
			KeyProjectPath: filepath.Clean(path),
		}), nil
	})
}

func projectName(st state.State) string {
	return filepath.Base(st.String(KeyProjectPath))
}

func (m *mobileApp) buildSpec(st state.State) (command.Spec, string, bool) {
	dir := st.String(KeyProjectPath)
	if dir == "" {
		return command.Spec{}, "project path is not set", false
	}
	spec := command.Spec{Dir: dir, Timeout: m.opts.CommandTimeout}
	switch st.String(KeyPlatform) {
	case PlatformIOS:
		spec.Name = "xcodebuild"
		spec.Args = []string{
			"-scheme", projectName(st),
			"-sdk", "iphonesimulator",
			"-configuration", "Debug",
			"-derivedDataPath", "build",
			"build",
		}
	case PlatformAndroid:
		spec.Name = "./gradlew"
		spec.Args = []string{"assembleDebug"}
	default:
		return command.Spec{}, "unsupported platform " + st.String(KeyPlatform), false
	}
	return spec, "", true
}

func (m *mobileApp) deploySpec(st state.State) (command.Spec, string, bool) {
	dir := st.String(KeyProjectPath)
	spec := command.Spec{Dir: dir, Timeout: m.opts.CommandTimeout}
	switch st.String(KeyPlatform) {
	case PlatformIOS:
		app := filepath.Join("build", "Build", "Products", "Debug-iphonesimulator", projectName(st)+".app")
		spec.Name = "xcrun"
		spec.Args = []string{"simctl", "install", "booted", app}
	case PlatformAndroid:
		spec.Name = "./gradlew"
		spec.Args = []string{"installDebug"}
	default:
		return command.Spec{}, "unsupported platform " + st.String(KeyPlatform), false
	}
	return spec, "", true
}

// newErrors returns the errors recorded since the last retry.
func newErrors(st state.State) []string {
	all := st.Strings(KeyBuildErrors)
	handled, _ := st.Float(KeyErrorsHandled)
	if int(handled) >= len(all) {
		return nil
	}
	return all[int(handled):]
}

func (m *mobileApp) routeOnErrors(_ context.Context, st state.State) string {
	if len(newErrors(st)) > 0 {
		return routeFailed
	}
	return routeOK
}

func (m *mobileApp) routeOnDecision(_ context.Context, st state.State) string {
	return st.String(KeyDecision)
}

func (m *mobileApp) failure(_ context.Context, st state.State, rt *graph.Runtime) (graph.NodeResult, error) {
	errs := newErrors(st)
	guidance, err := Guidance("mobile-failure", map[string]any{
		"platform": st.String(KeyPlatform),
		"errors":   errs,
	})
	if err != nil {
		return graph.NodeResult{}, err
	}
	decision := openapi3.NewStringSchema().WithEnum(DecisionRetry, DecisionAbort)
	decision.Description = "Whether to retry the build or abort"
	req := InputRequest{
		Name:        "sfmobile-mobile-failure",
		Description: guidance,
		Schema:      objectSchema([]string{KeyDecision}, map[string]*openapi3.Schema{KeyDecision: decision}),
		Values: map[string]any{
			"errors":   errs,
			KeyAttempt: st[KeyAttempt],
		},
	}

	return Ask(rt, req, func(values map[string]any) (graph.NodeResult, error) {
		if values[KeyDecision] == DecisionAbort {
			rt.Logger().Infof("thread %s: aborted after %d error(s)", rt.ThreadID, len(st.List(KeyBuildErrors)))
			return graph.Update(state.State{KeyDecision: DecisionAbort, KeyStatus: StatusAborted}), nil
		}
		attempt, _ := st.Float(KeyAttempt)
		return graph.Update(state.State{
			KeyDecision:      DecisionRetry,
			KeyAttempt:       int(attempt) + 1,
			KeyErrorsHandled: len(st.List(KeyBuildErrors)),
		}), nil
	})
}

func (m *mobileApp) complete(_ context.Context, st state.State, rt *graph.Runtime) (graph.NodeResult, error) {
	rt.Logger().Infof("thread %s: %s app deployed from %s", rt.ThreadID, st.String(KeyPlatform), st.String(KeyProjectPath))
	return graph.Update(state.State{KeyStatus: StatusDeployed}), nil
}
