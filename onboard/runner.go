package onboard

import (
	"context"

	"github.com/onyxprism/prism/api"
)

// Backend is the part of the API client the wizard uses.
type Backend interface {
	ConnectDB(ctx context.Context, r api.ConnectRequest) (*api.ConnectResponse, error)
	ExtractSchemas(ctx context.Context, dbID string, selected map[string][]string) error
	SemanticExtraction(ctx context.Context, dbID string) error
	VectorInsert(ctx context.Context, dbID string) error
}

var _ Backend = (*api.Client)(nil)

// Runner performs wizard Actions against a Backend.
type Runner struct {
	Backend Backend
}

// Execute performs a and reports the outcome. It never touches the wizard.
func (r Runner) Execute(ctx context.Context, a Action) Result {
	res := Result{Step: a.Step}
	switch a.Step {
	case StepConnect:
		res.Connect, res.Err = r.Backend.ConnectDB(ctx, a.Connect)
	case StepExtractSchemas:
		res.Err = r.Backend.ExtractSchemas(ctx, a.DBID, a.Selected)
	case StepSemanticExtraction:
		res.Err = r.Backend.SemanticExtraction(ctx, a.DBID)
	case StepVectorInsert:
		res.Err = r.Backend.VectorInsert(ctx, a.DBID)
	default:
		res.Err = ErrWrongStep
	}
	return res
}

// Observer is told about every finished step.
type Observer func(Result)

// Drive executes a and every Action it chains into, applying each result
// to w, until the chain ends. It returns the first step error.
func (r Runner) Drive(ctx context.Context, w *Wizard, a *Action, observe Observer) error {
	for a != nil {
		res := r.Execute(ctx, *a)
		next := w.Apply(res)
		if observe != nil {
			observe(res)
		}
		if res.Err != nil {
			return res.Err
		}
		a = next
	}
	return w.Err()
}
