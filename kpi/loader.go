package kpi

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/applog"
	"github.com/onyxprism/prism/session"
)

// Backend is the subset of the API client the KPI page needs.
type Backend interface {
	ConnectedDatabases(ctx context.Context) ([]session.Database, error)
	GetKPIs(ctx context.Context, dbID string) (*Response, error)
	CreateKPI(ctx context.Context, dbID string, k NewKPI) error
}

// ViewState selects which of the three KPI page layouts is shown.
type ViewState int

const (
	// StateNoDatabases prompts the user to connect a database.
	StateNoDatabases ViewState = iota
	// StateEmpty offers to create the first KPI.
	StateEmpty
	// StateList shows one block per KPI.
	StateList
)

func (s ViewState) String() string {
	switch s {
	case StateNoDatabases:
		return "no-databases"
	case StateEmpty:
		return "empty"
	default:
		return "list"
	}
}

// Page is everything the KPI view renders.
type Page struct {
	State     ViewState
	Databases []session.Database
	KPIs      []KPI
	Message   string
}

// Loader fetches the KPI page.
type Loader struct {
	backend Backend
}

func NewLoader(b Backend) *Loader {
	return &Loader{backend: b}
}

// Load fetches the connected-database list and, when dbID is set, the
// KPI results. The two requests run concurrently. An auth failure on
// either one is the group error and cancels the other. Any other failure
// is returned alongside whatever page could be built, the database
// listing's in preference to the KPI fetch's, since without it the page
// cannot tell "no databases" from "could not ask".
func (l *Loader) Load(ctx context.Context, dbID string) (*Page, error) {
	page := &Page{}
	var (
		dbsErr error
		kpiErr error
		resp   *Response
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		dbs, err := l.backend.ConnectedDatabases(gctx)
		if apperr.IsKind(err, apperr.KindAuth) {
			return err
		}
		page.Databases, dbsErr = dbs, err
		return nil
	})

	if dbID != "" {
		g.Go(func() error {
			r, err := l.backend.GetKPIs(gctx, dbID)
			if apperr.IsKind(err, apperr.KindAuth) {
				return err
			}
			resp, kpiErr = r, err
			return nil
		})
	}

	// 401 already forced a logout; surface it in preference to anything else.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if resp != nil {
		page.KPIs = resp.KPIs
		page.Message = resp.Message
	}
	page.State = stateFor(page)

	if dbsErr != nil {
		applog.L().Warn("list connected databases failed", zap.Error(dbsErr))
		if kpiErr != nil {
			applog.L().Warn("get KPIs failed", zap.Error(kpiErr))
		}
		return page, dbsErr
	}
	return page, kpiErr
}

func stateFor(p *Page) ViewState {
	switch {
	case len(p.Databases) == 0:
		return StateNoDatabases
	case len(p.KPIs) == 0:
		return StateEmpty
	default:
		return StateList
	}
}

// Create validates k and posts it for dbID. On success the caller clears
// its form and calls Load again.
func (l *Loader) Create(ctx context.Context, dbID string, k NewKPI) error {
	if err := k.Validate(); err != nil {
		return err
	}
	if dbID == "" {
		return apperr.Validation("Please connect a database first.")
	}
	if err := l.backend.CreateKPI(ctx, dbID, k); err != nil {
		return err
	}
	applog.Event("kpi", "created %q for %s", k.Name, dbID)
	return nil
}
