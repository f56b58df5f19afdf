package workflows

import (
	"context"
	"os"
	"path/filepath"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pkg/errors"

	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/graph"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/internal/state"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/pkg/agents"
	"github.com/forcedotcom/mobile-mcp-tools-sub001/pkg/workflow"
)

const PRDName = "prd"

// PRD state keys
const (
	KeyUserRequest    = "userRequest"
	KeyFeatureBrief   = "featureBrief"
	KeyRequirements   = "requirements"
	KeyReviewScore    = "reviewScore"
	KeyReviewFeedback = "reviewFeedback"
	KeyIteration      = "iteration"
	KeyDocumentPath   = "documentPath"
)

const defaultPRDFile = "PRD.md"

func prdSchema() *state.Schema {
	requirements := openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
	return state.NewSchema().
		Replace(KeyFeatureBrief, openapi3.NewStringSchema()).
		Replace(KeyRequirements, requirements).
		Replace(KeyReviewScore, openapi3.NewFloat64Schema().WithMin(0).WithMax(100)).
		Append(KeyReviewFeedback, openapi3.NewStringSchema()).
		Replace(KeyIteration, openapi3.NewIntegerSchema().WithMin(0)).
		Replace(KeyDocumentPath, openapi3.NewStringSchema())
}

// PRD builds the requirements drafting workflow:
//
//	init -> featureBrief -> requirements -> review
//	review -(score < threshold)-> revise -> review
//	review -(otherwise)-> finalize -> END
func PRD(opts Options) (*graph.Graph, error) {
	opts = opts.withDefaults()
	p := &prd{opts: opts}

	wf := workflow.NewBuilder(PRDName,
		graph.WithSchema(prdSchema()),
		graph.WithDescription("Product Requirements Document generation."),
	)

	initAgent := agents.NewSimpleAgent("init", p.init, nil)
	brief := agents.NewSimpleAgent("featureBrief", p.featureBrief, nil)
	requirements := agents.NewSimpleAgent("requirements", p.requirements, nil)
	review := agents.NewSimpleAgent("review", p.review, nil)
	revise := agents.NewSimpleAgent("revise", p.revise, nil)
	finalize := agents.NewSimpleAgent("finalize", p.finalize, nil)

	flow := wf.AddAgent(initAgent).
		AsEntryPoint().
		Then(brief).
		Then(requirements).
		Then(review).
		ThenIf(p.needsRevision, revise, finalize)
	if err := flow.Err(); err != nil {
		return nil, err
	}
	if err := wf.At(revise).Then(review).Err(); err != nil {
		return nil, err
	}
	if err := wf.At(finalize).End(); err != nil {
		return nil, err
	}
	return wf.Graph(), nil
}

type prd struct {
	opts Options
}

func (p *prd) init(_ context.Context, st state.State, _ *graph.Runtime) (graph.NodeResult, error) {
	return graph.Update(state.State{KeyIteration: 0}), nil
}

func (p *prd) featureBrief(_ context.Context, st state.State, rt *graph.Runtime) (graph.NodeResult, error) {
	guidance, err := Guidance("prd-feature-brief", map[string]any{"request": st.String(KeyUserRequest)})
	if err != nil {
		return graph.NodeResult{}, err
	}
	req := InputRequest{
		Name:        "sfmobile-prd-feature-brief",
		Description: guidance,
		Schema: objectSchema([]string{KeyFeatureBrief}, map[string]*openapi3.Schema{
			KeyFeatureBrief: stringSchema("A short summary of the feature"),
		}),
		Values: map[string]any{KeyUserRequest: st.String(KeyUserRequest)},
	}
	return Ask(rt, req, func(values map[string]any) (graph.NodeResult, error) {
		return graph.Update(state.State{KeyFeatureBrief: values[KeyFeatureBrief]}), nil
	})
}

func requirementsSchema() *openapi3.Schema {
	list := openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema().WithMinLength(1)).WithMinItems(1)
	list.Description = "Functional requirement statements"
	return objectSchema([]string{KeyRequirements}, map[string]*openapi3.Schema{
		KeyRequirements: list,
	})
}

func (p *prd) requirements(_ context.Context, st state.State, rt *graph.Runtime) (graph.NodeResult, error) {
	guidance, err := Guidance("prd-requirements", map[string]any{"featureBrief": st.String(KeyFeatureBrief)})
	if err != nil {
		return graph.NodeResult{}, err
	}
	req := InputRequest{
		Name:        "sfmobile-prd-requirements",
		Description: guidance,
		Schema:      requirementsSchema(),
		Values:      map[string]any{KeyFeatureBrief: st.String(KeyFeatureBrief)},
	}
	return Ask(rt, req, func(values map[string]any) (graph.NodeResult, error) {
		return graph.Update(state.State{KeyRequirements: values[KeyRequirements]}), nil
	})
}

func (p *prd) review(_ context.Context, st state.State, rt *graph.Runtime) (graph.NodeResult, error) {
	iteration := iterationOf(st) + 1
	guidance, err := Guidance("prd-review", map[string]any{
		"iteration":    iteration,
		"requirements": st.Strings(KeyRequirements),
		"threshold":    p.opts.ReviewThreshold,
	})
	if err != nil {
		return graph.NodeResult{}, err
	}

	score := openapi3.NewFloat64Schema().WithMin(0).WithMax(100)
	score.Description = "Review score from 0 to 100"
	feedback := openapi3.NewStringSchema()
	feedback.Description = "Reviewer feedback"
	req := InputRequest{
		Name:        "sfmobile-prd-review",
		Description: guidance,
		Schema: objectSchema([]string{"score"}, map[string]*openapi3.Schema{
			"score":    score,
			"feedback": feedback,
		}),
		Values: map[string]any{
			KeyRequirements: st.List(KeyRequirements),
			KeyIteration:    iteration,
		},
	}

	return Ask(rt, req, func(values map[string]any) (graph.NodeResult, error) {
		if p.opts.IterationWarnAfter > 0 && iteration > p.opts.IterationWarnAfter {
			rt.Logger().Warnf("thread %s: PRD review round %d exceeds %d rounds", rt.ThreadID, iteration, p.opts.IterationWarnAfter)
		}
		update := state.State{
			KeyReviewScore: values["score"],
			KeyIteration:   iteration,
		}
		if fb, ok := values["feedback"].(string); ok && fb != "" {
			update[KeyReviewFeedback] = fb
		}
		return graph.Update(update), nil
	})
}

func (p *prd) needsRevision(_ context.Context, st state.State) bool {
	score, _ := st.Float(KeyReviewScore)
	return score < p.opts.ReviewThreshold
}

func (p *prd) revise(_ context.Context, st state.State, rt *graph.Runtime) (graph.NodeResult, error) {
	feedback := st.Strings(KeyReviewFeedback)
	latest := ""
	if len(feedback) > 0 {
		latest = feedback[len(feedback)-1]
	}
	guidance, err := Guidance("prd-revise", map[string]any{
		"feedback":     latest,
		"requirements": st.Strings(KeyRequirements),
	})
	if err != nil {
		return graph.NodeResult{}, err
	}
	req := InputRequest{
		Name:        "sfmobile-prd-revise",
		Description: guidance,
		Schema:      requirementsSchema(),
		Values: map[string]any{
			KeyRequirements: st.List(KeyRequirements),
			"feedback":      latest,
		},
	}
	return Ask(rt, req, func(values map[string]any) (graph.NodeResult, error) {
		return graph.Update(state.State{KeyRequirements: values[KeyRequirements]}), nil
	})
}

func (p *prd) finalize(_ context.Context, st state.State, rt *graph.Runtime) (graph.NodeResult, error) {
	defaultPath := filepath.Join(p.opts.ProjectRoot, defaultPRDFile)
	guidance, err := Guidance("prd-finalize", map[string]any{"defaultPath": defaultPath})
	if err != nil {
		return graph.NodeResult{}, err
	}
	path := openapi3.NewStringSchema()
	path.Description = "Where to save the document"
	req := InputRequest{
		Name:        "sfmobile-prd-finalize",
		Description: guidance,
		Schema:      objectSchema(nil, map[string]*openapi3.Schema{"path": path}),
		Values:      map[string]any{"path": defaultPath},
	}

	values, ok, err := RequestInput(rt, req)
	if err != nil {
		return graph.NodeResult{}, err
	}
	if !ok {
		return req.Suspend()
	}

	// The document is written only once the answer arrives, so replaying the
	// node before that point has no effect on disk.
	target := p.resolve(values["path"], defaultPath)
	doc, err := p.render(st)
	if err != nil {
		return graph.NodeResult{}, err
	}
	if err := writeDocument(target, doc); err != nil {
		return graph.NodeResult{}, err
	}
	rt.Logger().Infof("thread %s: wrote PRD to %s", rt.ThreadID, target)
	return graph.Update(state.State{KeyDocumentPath: target}), nil
}

func (p *prd) resolve(v any, fallback string) string {
	path, _ := v.(string)
	if path == "" {
		return fallback
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.opts.ProjectRoot, path)
	}
	return filepath.Clean(path)
}

func (p *prd) render(st state.State) (string, error) {
	score, _ := st.Float(KeyReviewScore)
	return Guidance("prd-document", map[string]any{
		"title":        "Product Requirements Document",
		"featureBrief": st.String(KeyFeatureBrief),
		"requirements": st.Strings(KeyRequirements),
		"score":        score,
		"iterations":   iterationOf(st),
	})
}

func iterationOf(st state.State) int {
	n, _ := st.Float(KeyIteration)
	return int(n)
}

func writeDocument(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
