package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/kpi"
	"github.com/onyxprism/prism/session"
)

func signedIn() *session.Store {
	return session.NewMemory(session.State{
		AccessToken:         "tok",
		TokenType:           "bearer",
		ConnectedDatabaseID: "X",
		ConnectedDatabase:   &session.Database{Database: "shop", DBType: "postgresql", DBID: "X"},
	})
}

func newTestClient(t *testing.T, store *session.Store, h http.HandlerFunc, opts ...Option) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, store, opts...), &hits
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	c, _ := newTestClient(t, signedIn(), func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeJSON(w, 200, map[string]string{"user_id": "u1", "username": "ann", "email": "a@x"})
	}, WithUserAgent("prism-test"))

	u, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ann", u.Username)

	assert.Equal(t, "bearer tok", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "prism-test", got.Get("User-Agent"))
	_, err = uuid.Parse(got.Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestTimeoutAppliesInAnyOrder(t *testing.T) {
	own := &http.Client{Timeout: time.Minute}

	before := New("http://backend", signedIn(), WithTimeout(5*time.Second), WithHTTPClient(own))
	after := New("http://backend", signedIn(), WithHTTPClient(own), WithTimeout(5*time.Second))

	assert.Equal(t, 5*time.Second, before.httpClient.Timeout)
	assert.Equal(t, 5*time.Second, after.httpClient.Timeout)
	assert.Equal(t, time.Minute, own.Timeout, "caller's client is not modified")

	plain := New("http://backend", signedIn(), WithHTTPClient(own))
	assert.Same(t, own, plain.httpClient)
}

func TestMissingTokenSendsNothing(t *testing.T) {
	c, hits := newTestClient(t, session.NewMemory(session.State{}), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, []session.Database{})
	})

	_, err := c.ConnectedDatabases(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindAuth))
	assert.Equal(t, "No access token found. Please sign in.", apperr.UserMessage(err))
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestEmptyDatabaseIDSendsNothing(t *testing.T) {
	c, hits := newTestClient(t, signedIn(), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]string{})
	})

	ctx := context.Background()
	errs := []error{
		c.SemanticExtraction(ctx, ""),
		c.VectorInsert(ctx, ""),
		c.PinVisualization(ctx, "", "chart1"),
	}
	_, err := c.GetKPIs(ctx, "")
	errs = append(errs, err)
	_, err = c.Ask(ctx, "", "hi")
	errs = append(errs, err)

	for _, err := range errs {
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), "%v", err)
		assert.Equal(t, "Please connect a database first.", apperr.UserMessage(err))
	}
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestUnauthorizedForcesLogout(t *testing.T) {
	store := signedIn()
	var redirected int32
	c, _ := newTestClient(t, store, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]string{"detail": "Invalid token"})
	}, WithUnauthorizedHandler(func() { atomic.AddInt32(&redirected, 1) }))

	resp, err := c.GetKPIs(context.Background(), "X")
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.True(t, apperr.IsKind(err, apperr.KindAuth))

	assert.False(t, store.SignedIn())
	assert.Equal(t, "", store.ConnectedDatabaseID())
	assert.Equal(t, int32(1), atomic.LoadInt32(&redirected))
}

func TestLogin(t *testing.T) {
	store := session.NewMemory(session.State{})
	var body map[string]string
	c, _ := newTestClient(t, store, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, 200, Token{AccessToken: "new", TokenType: "bearer"})
	})

	tok, err := c.Login(context.Background(), "a@x", "pw")
	require.NoError(t, err)
	assert.Equal(t, "new", tok.AccessToken)
	assert.Equal(t, map[string]string{"email": "a@x", "password": "pw"}, body)
	assert.Equal(t, "bearer new", store.Authorization())
}

func TestLoginWrongPasswordIsNotALogout(t *testing.T) {
	store := session.NewMemory(session.State{ConnectedDatabaseID: "X", ConnectedDatabase: &session.Database{DBID: "X"}})
	var redirected bool
	c, _ := newTestClient(t, store, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]string{"detail": "Invalid email or password"})
	}, WithUnauthorizedHandler(func() { redirected = true }))

	_, err := c.Login(context.Background(), "a@x", "bad")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindServer))
	assert.Equal(t, "Invalid email or password", apperr.UserMessage(err))
	assert.False(t, redirected)
	assert.Equal(t, "X", store.ConnectedDatabaseID())
}

func TestLoginValidation(t *testing.T) {
	c, hits := newTestClient(t, session.NewMemory(session.State{}), func(w http.ResponseWriter, r *http.Request) {})
	_, err := c.Login(context.Background(), "", "pw")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestLogout(t *testing.T) {
	store := signedIn()
	c := New("http://127.0.0.1:0", store)
	require.NoError(t, c.Logout())
	assert.Equal(t, session.State{}, store.Snapshot())
}

func TestServerErrorMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail string", 400, `{"detail":"password authentication failed"}`, "password authentication failed"},
		{"validation list", 422, `{"detail":[{"loc":["body","port"],"msg":"value is not a valid integer"}]}`, "port: value is not a valid integer"},
		{"message field", 500, `{"message":"boom"}`, "boom"},
		{"html body", 502, `<html>bad gateway</html>`, "Failed to perform semantic extraction."},
		{"empty body", 500, ``, "Failed to perform semantic extraction."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, signedIn(), func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			err := c.SemanticExtraction(context.Background(), "X")
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindServer))
			assert.Equal(t, tt.want, apperr.UserMessage(err))

			var ae *apperr.Error
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, tt.status, ae.Status)
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, signedIn())
	err := c.VectorInsert(context.Background(), "X")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNetwork))
	assert.Equal(t, "An error occurred during vector data insert.", apperr.UserMessage(err))
}

func TestConnectDB(t *testing.T) {
	var got ConnectRequest
	c, _ := newTestClient(t, signedIn(), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/connect-db", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, 200, map[string]interface{}{
			"db_tables": map[string][]string{"t1": {"a", "b"}},
			"db_id":     "Y",
		})
	})

	req := ConnectRequest{DBType: "postgresql", Database: "d", Username: "u", Password: "p", Host: "h", Port: 5432}
	resp, err := c.ConnectDB(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req, got)
	assert.Equal(t, "Y", resp.DBID)
	assert.Equal(t, map[string][]string{"t1": {"a", "b"}}, resp.DBTables)
}

func TestConnectDBMissingTables(t *testing.T) {
	for _, body := range []string{`null`, `{"db_id":"Y"}`, `{"db_tables":null,"db_id":"Y"}`, `not json`} {
		c, _ := newTestClient(t, signedIn(), func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		})
		_, err := c.ConnectDB(context.Background(), ConnectRequest{})
		require.Error(t, err, body)
		assert.Equal(t, "Invalid response format from server.", apperr.UserMessage(err), body)
	}
}

func TestExtractSchemasBody(t *testing.T) {
	var got map[string]interface{}
	c, _ := newTestClient(t, signedIn(), func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, 200, map[string]string{"inserted_id": "1"})
	})

	err := c.ExtractSchemas(context.Background(), "X", map[string][]string{"t1": {"b"}})
	require.NoError(t, err)
	assert.Equal(t, "X", got["db_id"])
	assert.Equal(t, map[string]interface{}{"t1": []interface{}{"b"}}, got["selected_tables"])

	err = c.ExtractSchemas(context.Background(), "X", nil)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestExtractedSchemas(t *testing.T) {
	c, _ := newTestClient(t, signedIn(), func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"orders":{"columns":["id","total"]}}`)
	})
	got, err := c.ExtractedSchemas(context.Background(), "X")
	require.NoError(t, err)
	require.Contains(t, got, "orders")
	assert.JSONEq(t, `{"columns":["id","total"]}`, string(got["orders"]))
}

func TestConnectedDatabases(t *testing.T) {
	c, _ := newTestClient(t, signedIn(), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = io.WriteString(w, `null`)
	})
	dbs, err := c.ConnectedDatabases(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, dbs)
	assert.Empty(t, dbs)
}

func TestCreateKPIBody(t *testing.T) {
	var got map[string]interface{}
	c, _ := newTestClient(t, signedIn(), func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, 200, map[string]string{"status": "success"})
	})

	k := kpi.NewKPI{Name: "n", Formula: "f", Description: "d", FormulaType: "sql"}
	require.NoError(t, c.CreateKPI(context.Background(), "X", k))
	assert.Equal(t, "X", got["db_id"])
	assert.Equal(t, map[string]interface{}{
		"name": "n", "formula": "f", "description": "d", "formula_type": "sql",
	}, got["kpiData"])
}

func TestGetKPIsEmptyObject(t *testing.T) {
	c, _ := newTestClient(t, signedIn(), func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"message":"No KPIs found","kpis":{}}`)
	})
	resp, err := c.GetKPIs(context.Background(), "X")
	require.NoError(t, err)
	assert.Empty(t, resp.KPIs)
}

func TestVisualizations(t *testing.T) {
	c, _ := newTestClient(t, signedIn(), func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"_id":"v","charts":[{"chart_id":"a","pinned":true,"title":{"text":"T"}}]}`)
	})
	resp, err := c.Visualizations(context.Background(), "X")
	require.NoError(t, err)
	require.Len(t, resp.Charts, 1)
	assert.Equal(t, "T", resp.Charts[0].Title())
}

func TestPinVisualization(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"success", `{"status":"success","message":"Visualization pinned successfully"}`, ""},
		{"soft failure", `{"status":"error","message":"No visualization found to update"}`, "No visualization found to update"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]string
			c, _ := newTestClient(t, signedIn(), func(w http.ResponseWriter, r *http.Request) {
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				_, _ = io.WriteString(w, tt.body)
			})
			err := c.PinVisualization(context.Background(), "X", "a")
			assert.Equal(t, map[string]string{"chart_id": "a", "db_id": "X"}, got)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.IsKind(err, apperr.KindServer))
			assert.Equal(t, tt.wantErr, apperr.UserMessage(err))
		})
	}
}

func TestAsk(t *testing.T) {
	c, _ := newTestClient(t, signedIn(), func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"user_input": "top products?", "db_id": "X"}, body)
		writeJSON(w, 200, map[string]string{"message": `1. widgets\n2. gadgets`})
	})
	reply, err := c.Ask(context.Background(), "X", "top products?")
	require.NoError(t, err)
	assert.Equal(t, `1. widgets\n2. gadgets`, reply)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestProperty_AuthorizationHeader(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("authorization is token type and token joined by a space", prop.ForAll(
		func(typ, token string) bool {
			var got string
			hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
				got = r.Header.Get("Authorization")
				return &http.Response{
					StatusCode: 200,
					Body:       io.NopCloser(strings.NewReader(`{}`)),
					Header:     make(http.Header),
				}, nil
			})}
			store := session.NewMemory(session.State{AccessToken: token, TokenType: typ})
			c := New("http://backend.test", store, WithHTTPClient(hc))
			if err := c.SemanticExtraction(context.Background(), "X"); err != nil {
				return false
			}
			return got == typ+" "+token
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
