package onboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onyxprism/prism/api"
	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/config"
	"github.com/onyxprism/prism/session"
)

type fakeBackend struct {
	tables map[string][]string
	fail   map[Step]error
	calls  []Step
	dbIDs  []string
	sent   map[string][]string
}

func (f *fakeBackend) ConnectDB(_ context.Context, r api.ConnectRequest) (*api.ConnectResponse, error) {
	f.calls = append(f.calls, StepConnect)
	if err := f.fail[StepConnect]; err != nil {
		return nil, err
	}
	return &api.ConnectResponse{DBTables: f.tables, DBID: "X"}, nil
}

func (f *fakeBackend) ExtractSchemas(_ context.Context, dbID string, selected map[string][]string) error {
	f.calls = append(f.calls, StepExtractSchemas)
	f.dbIDs = append(f.dbIDs, dbID)
	f.sent = selected
	return f.fail[StepExtractSchemas]
}

func (f *fakeBackend) SemanticExtraction(_ context.Context, dbID string) error {
	f.calls = append(f.calls, StepSemanticExtraction)
	f.dbIDs = append(f.dbIDs, dbID)
	return f.fail[StepSemanticExtraction]
}

func (f *fakeBackend) VectorInsert(_ context.Context, dbID string) error {
	f.calls = append(f.calls, StepVectorInsert)
	f.dbIDs = append(f.dbIDs, dbID)
	return f.fail[StepVectorInsert]
}

var validForm = ConnectForm{DBType: "postgresql", Database: "d", Username: "u", Password: "p", Host: "h", Port: "5432"}

// connected returns a wizard that has finished step 1.
func connected(t *testing.T, b *fakeBackend) (*Wizard, *session.Store) {
	t.Helper()
	if b.tables == nil {
		b.tables = map[string][]string{"t1": {"a", "b"}, "t2": {"c"}}
	}
	store := session.NewMemory(session.State{AccessToken: "tok"})
	w := New(store)
	a, err := w.SubmitConnect(validForm)
	require.NoError(t, err)
	require.NoError(t, Runner{Backend: b}.Drive(context.Background(), w, a, nil))
	require.Equal(t, StepExtractSchemas, w.Step())
	return w, store
}

func TestConnectScenarioAgainstMockBackend(t *testing.T) {
	var got api.ConnectRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/connect-db", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"db_tables":{"t1":["a","b"]},"db_id":"X"}`))
	}))
	defer srv.Close()

	store := session.NewMemory(session.State{AccessToken: "tok", TokenType: "bearer"})
	client := api.New(srv.URL, store)
	w := New(store)

	a, err := w.SubmitConnect(validForm)
	require.NoError(t, err)
	require.NoError(t, Runner{Backend: client}.Drive(context.Background(), w, a, nil))

	assert.Equal(t, api.ConnectRequest{DBType: "postgresql", Database: "d", Username: "u", Password: "p", Host: "h", Port: 5432}, got)
	assert.Equal(t, StepExtractSchemas, w.Step())
	assert.Equal(t, map[string][]string{"t1": {"a", "b"}}, w.Tables())
	assert.Empty(t, w.Selected())
	assert.Equal(t, "X", store.ConnectedDatabaseID())
	assert.Equal(t, &session.Database{Database: "d", DBType: "postgresql", DBID: "X"}, store.ConnectedDatabase())
}

func TestSelectionEditing(t *testing.T) {
	w, _ := connected(t, &fakeBackend{})

	require.NoError(t, w.ToggleTable("t1", true))
	assert.Equal(t, map[string][]string{"t1": {"a", "b"}}, w.Selected())

	require.NoError(t, w.ToggleColumn("t1", "a", false))
	assert.Equal(t, map[string][]string{"t1": {"b"}}, w.Selected())

	require.NoError(t, w.ToggleColumn("t1", "a", true))
	assert.Equal(t, map[string][]string{"t1": {"a", "b"}}, w.Selected(), "schema order is kept")

	require.NoError(t, w.ToggleTable("t1", false))
	assert.Equal(t, map[string][]string{}, w.Selected())
}

func TestSelectionErrors(t *testing.T) {
	w, _ := connected(t, &fakeBackend{})

	assert.True(t, apperr.IsKind(w.ToggleTable("nope", true), apperr.KindValidation))
	assert.True(t, apperr.IsKind(w.ToggleColumn("t1", "a", true), apperr.KindValidation), "table not selected")
	require.NoError(t, w.ToggleTable("t1", true))
	assert.True(t, apperr.IsKind(w.ToggleColumn("t1", "zzz", true), apperr.KindValidation))
}

func TestSubmitExtractRequiresSelection(t *testing.T) {
	b := &fakeBackend{}
	w, _ := connected(t, b)

	_, err := w.SubmitExtract()
	assert.Equal(t, "Please select at least one table with columns.", apperr.UserMessage(err))

	require.NoError(t, w.ToggleTable("t1", true))
	require.NoError(t, w.ToggleTable("t2", true))
	require.NoError(t, w.ToggleColumn("t2", "c", false))
	a, err := w.SubmitExtract()
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"t1": {"a", "b"}, "t2": {}}, a.Selected)
	assert.Equal(t, "X", a.DBID)
}

func TestSubmitExtractSendsTableWithNoColumns(t *testing.T) {
	w, _ := connected(t, &fakeBackend{tables: map[string][]string{"t1": {"a"}}})
	require.NoError(t, w.ToggleTable("t1", true))
	require.NoError(t, w.ToggleColumn("t1", "a", false))
	assert.Equal(t, map[string][]string{"t1": {}}, w.Selected())

	a, err := w.SubmitExtract()
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, map[string][]string{"t1": {}}, a.Selected)
}

func TestAutoChainToComplete(t *testing.T) {
	b := &fakeBackend{}
	w, _ := connected(t, b)
	require.NoError(t, w.ToggleTable("t1", true))

	a, err := w.SubmitExtract()
	require.NoError(t, err)

	var seen []Step
	err = Runner{Backend: b}.Drive(context.Background(), w, a, func(r Result) { seen = append(seen, r.Step) })
	require.NoError(t, err)

	want := []Step{StepConnect, StepExtractSchemas, StepSemanticExtraction, StepVectorInsert}
	if diff := cmp.Diff(want, b.calls); diff != "" {
		t.Fatalf("backend calls (-want +got):\n%s", diff)
	}
	assert.Equal(t, want[1:], seen)
	assert.Equal(t, []string{"X", "X", "X"}, b.dbIDs)
	assert.Equal(t, StepComplete, w.Step())
	assert.True(t, w.Complete())
	assert.Equal(t, 100.0, w.Progress())
	assert.False(t, w.InFlight())
}

func TestFailureHaltsChainAndRetryResumes(t *testing.T) {
	boom := apperr.Server(500, "semantic extraction failed")
	b := &fakeBackend{fail: map[Step]error{StepSemanticExtraction: boom}}
	w, _ := connected(t, b)
	require.NoError(t, w.ToggleTable("t1", true))
	a, err := w.SubmitExtract()
	require.NoError(t, err)

	err = Runner{Backend: b}.Drive(context.Background(), w, a, nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StepSemanticExtraction, w.Step())
	assert.Equal(t, boom, w.Err())
	assert.NotContains(t, b.calls, StepVectorInsert)
	assert.Equal(t, map[string][]string{"t1": {"a", "b"}}, w.Selected(), "earlier state intact")

	delete(b.fail, StepSemanticExtraction)
	retry, err := w.Retry()
	require.NoError(t, err)
	assert.Equal(t, StepSemanticExtraction, retry.Step)
	require.NoError(t, Runner{Backend: b}.Drive(context.Background(), w, retry, nil))
	assert.Equal(t, StepComplete, w.Step())
	assert.Nil(t, w.Err())
}

func TestConnectFailureStaysOnStepOne(t *testing.T) {
	b := &fakeBackend{fail: map[Step]error{StepConnect: apperr.Server(400, "password authentication failed")}}
	store := session.NewMemory(session.State{})
	w := New(store)

	a, err := w.SubmitConnect(validForm)
	require.NoError(t, err)
	err = Runner{Backend: b}.Drive(context.Background(), w, a, nil)
	assert.Equal(t, "password authentication failed", apperr.UserMessage(err))
	assert.Equal(t, StepConnect, w.Step())
	assert.Equal(t, "", store.ConnectedDatabaseID())

	_, err = w.Retry()
	require.NoError(t, err)
	assert.True(t, w.InFlight())
}

func TestConnectWithoutTablesIsAFailure(t *testing.T) {
	w := New(nil)
	_, err := w.SubmitConnect(validForm)
	require.NoError(t, err)

	assert.Nil(t, w.Apply(Result{Step: StepConnect}))
	assert.Equal(t, StepConnect, w.Step())
	assert.Equal(t, "Invalid response format from server.", apperr.UserMessage(w.Err()))
}

func TestSelectionLockedWhileInFlight(t *testing.T) {
	b := &fakeBackend{}
	w, _ := connected(t, b)
	require.NoError(t, w.ToggleTable("t1", true))
	_, err := w.SubmitExtract()
	require.NoError(t, err)

	assert.True(t, w.SelectionLocked())
	assert.ErrorIs(t, w.ToggleTable("t2", true), ErrBusy)
	assert.ErrorIs(t, w.ToggleColumn("t1", "a", false), ErrBusy)
	_, err = w.SubmitExtract()
	assert.ErrorIs(t, err, ErrBusy)
}

func TestStaleResultIgnored(t *testing.T) {
	w, _ := connected(t, &fakeBackend{})
	stale := Result{Step: StepVectorInsert, Err: errors.New("late")}
	assert.False(t, w.Accepts(stale))
	assert.Nil(t, w.Apply(stale))
	assert.NoError(t, w.Err())
	assert.Equal(t, StepExtractSchemas, w.Step())
}

func TestReset(t *testing.T) {
	b := &fakeBackend{fail: map[Step]error{StepVectorInsert: errors.New("boom")}}
	w, store := connected(t, b)
	require.NoError(t, w.ToggleTable("t1", true))
	a, err := w.SubmitExtract()
	require.NoError(t, err)
	_ = Runner{Backend: b}.Drive(context.Background(), w, a, nil)
	require.Equal(t, StepVectorInsert, w.Step())

	w.Reset()
	assert.Equal(t, StepConnect, w.Step())
	assert.Empty(t, w.Tables())
	assert.Empty(t, w.Selected())
	assert.Equal(t, "", w.DBID())
	assert.Nil(t, w.Err())
	assert.Equal(t, "X", store.ConnectedDatabaseID(), "session selection untouched")
}

func TestWrongStep(t *testing.T) {
	w := New(nil)
	_, err := w.SubmitExtract()
	assert.ErrorIs(t, err, ErrWrongStep)
	_, err = w.Retry()
	assert.ErrorIs(t, err, ErrNothingToRetry)

	w2, _ := connected(t, &fakeBackend{})
	_, err = w2.SubmitConnect(validForm)
	assert.ErrorIs(t, err, ErrWrongStep)
}

func TestProgressAndStatus(t *testing.T) {
	w := New(nil)
	assert.Equal(t, 0.0, w.Progress())
	assert.Equal(t, StatusCurrent, w.StepStatus(StepConnect))
	assert.Equal(t, StatusPending, w.StepStatus(StepVectorInsert))

	w.step = StepSemanticExtraction
	assert.InDelta(t, 66.67, w.Progress(), 0.01)
	assert.Equal(t, StatusCompleted, w.StepStatus(StepConnect))
	assert.Equal(t, StatusCurrent, w.StepStatus(StepSemanticExtraction))

	w.step = StepComplete
	assert.Equal(t, 100.0, w.Progress())
	assert.Equal(t, StatusCompleted, w.StepStatus(StepVectorInsert))
}

func TestFormValidation(t *testing.T) {
	missing := validForm
	missing.Host = " "
	_, err := missing.Request()
	assert.Equal(t, "Please fill in all required fields.", apperr.UserMessage(err))

	noPort := validForm
	noPort.Port = ""
	req, err := noPort.Request()
	require.NoError(t, err)
	assert.Equal(t, 5432, req.Port)

	badPort := validForm
	badPort.Port = "http"
	_, err = badPort.Request()
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	w := New(nil)
	_, err = w.SubmitConnect(missing)
	assert.Error(t, err)
	assert.False(t, w.InFlight())
}

func TestFormProfileRoundTrip(t *testing.T) {
	conn := validForm.Connection("prod", false)
	assert.Equal(t, "", conn.Password)
	assert.Equal(t, "prod", conn.Name)

	back := FormFromConnection(config.Connection{DBType: "mysql", Host: "db", Port: "3306", Username: "u", Password: "p", Database: "d"})
	assert.Equal(t, ConnectForm{DBType: "mysql", Database: "d", Username: "u", Password: "p", Host: "db", Port: "3306"}, back)
}

func TestProperty_StepAdvancement(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("success advances exactly one step and failure stops the chain", prop.ForAll(
		func(outcomes []bool) bool {
			b := &fakeBackend{tables: map[string][]string{"t": {"c"}}, fail: map[Step]error{}}
			for i, ok := range outcomes {
				if !ok {
					b.fail[StepExtractSchemas+Step(i)] = errors.New("fail")
				}
			}

			w := New(nil)
			a, _ := w.SubmitConnect(validForm)
			if (Runner{Backend: b}).Drive(context.Background(), w, a, nil) != nil {
				return false
			}
			_ = w.ToggleTable("t", true)
			a, err := w.SubmitExtract()
			if err != nil {
				return false
			}

			before := w.Step()
			_ = Runner{Backend: b}.Drive(context.Background(), w, a, nil)

			successes := 0
			for _, ok := range outcomes {
				if !ok {
					break
				}
				successes++
			}
			wantCalls := 1 + successes + 1
			if successes == len(outcomes) {
				wantCalls = 1 + successes
			}
			return w.Step() == before+Step(successes) && len(b.calls) == wantCalls && !w.InFlight()
		},
		gen.SliceOfN(3, gen.Bool()),
	))

	properties.Property("reset always returns to an empty step one", prop.ForAll(
		func(steps int) bool {
			w := New(nil)
			w.step = Step(steps)
			w.tables = map[string][]string{"t": {"c"}}
			w.selected = map[string][]string{"t": {"c"}}
			w.Reset()
			return w.Step() == StepConnect && len(w.Tables()) == 0 && len(w.Selected()) == 0
		},
		gen.IntRange(int(StepConnect), int(StepComplete)),
	))

	properties.TestingRun(t)
}
