package graph

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
)

// Constants for special nodes
const (
	START            = "START"
	END              = "END"
	defaultGraphName = "graph"
)

// Graph is the mutable definition of a workflow. Builder methods record
// their errors so a later Compile fails even if a caller ignored them.
type Graph struct {
	name        string
	description string
	schema      *state.Schema

	nodes       map[string]*NodeSpec
	order       []string
	edges       []Edge
	branches    map[string]*Branch
	entryPoints []string

	errs     []error
	compiled bool
}

// New creates a new graph instance
func New(name string, opts ...Option) *Graph {
	graphName := defaultGraphName
	if name != "" {
		graphName = strings.ReplaceAll(name, " ", "-")
	}

	g := &Graph{
		name:     graphName,
		nodes:    make(map[string]*NodeSpec),
		branches: make(map[string]*Branch),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Graph) Name() string {
	return g.name
}

func (g *Graph) Description() string {
	return g.description
}

// Schema returns the state schema, which may be nil.
func (g *Graph) Schema() *state.Schema {
	return g.schema
}

func (g *Graph) fail(err error) error {
	g.errs = append(g.errs, err)
	return err
}

// AddNode adds a new node to the graph
func (g *Graph) AddNode(name string, fn NodeFunc, opts ...NodeOption) error {
	if g.compiled {
		return NewValidationError("add node", name, ErrAlreadyCompiled)
	}
	if name == "" || name == START || name == END {
		return g.fail(NewValidationError("add node", name, ErrReservedName))
	}
	if fn == nil {
		return g.fail(NewValidationError("add node", name, ErrNilNode))
	}
	if _, exists := g.nodes[name]; exists {
		return g.fail(NewValidationError("add node", name, ErrDuplicateNode))
	}

	spec := &NodeSpec{Name: name, Function: fn}
	for _, o := range opts {
		o(spec)
	}
	g.nodes[name] = spec
	g.order = append(g.order, name)
	return nil
}

// HasNode reports whether name has been declared.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// AddEdge adds a static transition. An edge from START declares the entry
// point. Targets may be declared after the edge; they are checked on Compile.
func (g *Graph) AddEdge(from, to string) error {
	if g.compiled {
		return NewValidationError("add edge", from, ErrAlreadyCompiled)
	}
	if from == END || to == START {
		return g.fail(NewValidationError("add edge", from, errors.Wrapf(ErrInvalidEdge, "%s -> %s", from, to)))
	}
	if from == START {
		g.entryPoints = append(g.entryPoints, to)
		return nil
	}

	g.edges = append(g.edges, Edge{From: from, To: to})
	return nil
}

// AddConditionalEdge routes from a node through router. When targets are
// given, the router may only return one of them.
func (g *Graph) AddConditionalEdge(from string, router Router, targets ...string) error {
	if g.compiled {
		return NewValidationError("add conditional edge", from, ErrAlreadyCompiled)
	}
	if router == nil {
		return g.fail(NewValidationError("add conditional edge", from, errors.New("router must not be nil")))
	}
	if from == START || from == END {
		return g.fail(NewValidationError("add conditional edge", from, ErrInvalidEdge))
	}
	if _, exists := g.branches[from]; exists {
		return g.fail(NewValidationError("add conditional edge", from, ErrConflictingEdges))
	}

	g.branches[from] = &Branch{
		From:    from,
		Router:  router,
		Targets: append([]string(nil), targets...),
	}
	return nil
}

// SetEntryPoint sets the entry point of the graph
func (g *Graph) SetEntryPoint(name string) error {
	return g.AddEdge(START, name)
}

// Validate checks the graph structure and returns the entry point.
func (g *Graph) Validate() (string, error) {
	if len(g.errs) > 0 {
		return "", g.errs[0]
	}

	entry, err := g.entryPoint()
	if err != nil {
		return "", err
	}

	for _, e := range g.edges {
		if _, ok := g.nodes[e.From]; !ok {
			return "", NewValidationError("validate edge", e.From, ErrNodeNotFound)
		}
		if e.To != END {
			if _, ok := g.nodes[e.To]; !ok {
				return "", NewValidationError("validate edge", e.To, errors.Wrapf(ErrNodeNotFound, "edge %s -> %s", e.From, e.To))
			}
		}
	}

	outgoing := make(map[string]int)
	for _, e := range g.edges {
		outgoing[e.From]++
	}
	for name, n := range outgoing {
		if n > 1 {
			return "", NewValidationError("validate edges", name, errors.Wrapf(ErrConflictingEdges, "%d static edges", n))
		}
	}

	for from, b := range g.branches {
		if _, ok := g.nodes[from]; !ok {
			return "", NewValidationError("validate branch", from, ErrNodeNotFound)
		}
		if outgoing[from] > 0 {
			return "", NewValidationError("validate branch", from, errors.Wrap(ErrConflictingEdges, "static edge and router"))
		}
		for _, t := range b.Targets {
			if t == START {
				return "", NewValidationError("validate branch", from, ErrInvalidEdge)
			}
			if t != END {
				if _, ok := g.nodes[t]; !ok {
					return "", NewValidationError("validate branch", t, errors.Wrapf(ErrNodeNotFound, "router target of %s", from))
				}
			}
		}
	}

	reachable := g.reachableFrom(entry)
	for _, name := range g.order {
		if !reachable[name] {
			return "", NewValidationError("validate", name, ErrUnreachableNode)
		}
	}
	return entry, nil
}

func (g *Graph) entryPoint() (string, error) {
	unique := make([]string, 0, 1)
	seen := make(map[string]bool)
	for _, ep := range g.entryPoints {
		if !seen[ep] {
			seen[ep] = true
			unique = append(unique, ep)
		}
	}

	switch len(unique) {
	case 0:
		return "", NewValidationError("validate", "", ErrNoEntryPoint)
	case 1:
	default:
		return "", NewValidationError("validate", "", errors.Wrapf(ErrMultipleEntryPoints, "%s", strings.Join(unique, ", ")))
	}

	entry := unique[0]
	if entry == END {
		return "", NewValidationError("validate", entry, ErrInvalidEdge)
	}
	if _, ok := g.nodes[entry]; !ok {
		return "", NewValidationError("validate", entry, ErrNodeNotFound)
	}
	return entry, nil
}

// reachableFrom walks static edges and declared router targets. A router
// without declared targets is assumed able to reach any node.
func (g *Graph) reachableFrom(entry string) map[string]bool {
	visited := map[string]bool{entry: true}
	stack := []string{entry}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var next []string
		for _, e := range g.edges {
			if e.From == node {
				next = append(next, e.To)
			}
		}
		if b, ok := g.branches[node]; ok {
			if len(b.Targets) == 0 {
				next = append(next, g.order...)
			} else {
				next = append(next, b.Targets...)
			}
		}

		for _, n := range next {
			if n == END || visited[n] {
				continue
			}
			visited[n] = true
			stack = append(stack, n)
		}
	}
	return visited
}
