package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/applog"
	"github.com/onyxprism/prism/chat"
	"github.com/onyxprism/prism/kpi"
	"github.com/onyxprism/prism/session"
	"github.com/onyxprism/prism/viz"
)

var (
	_ kpi.Backend  = (*Client)(nil)
	_ chat.Backend = (*Client)(nil)
)

// Token is the /login answer.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// SignupRequest is the /signup body.
type SignupRequest struct {
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the /user answer.
type User struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ConnectRequest is the /connect-db body.
type ConnectRequest struct {
	DBType   string `json:"db_type"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
}

// ConnectResponse carries the discovered tables and the id the backend
// assigned to the database.
type ConnectResponse struct {
	DBTables map[string][]string `json:"db_tables"`
	DBID     string              `json:"db_id"`
}

type dbBody struct {
	DBID string `json:"db_id"`
}

// Login exchanges credentials for a token and stores it in the session.
// A 401 here is a wrong password, not an expired session.
func (c *Client) Login(ctx context.Context, email, password string) (*Token, error) {
	if email == "" || password == "" {
		return nil, apperr.Validation("Please fill in all required fields.")
	}
	var tok Token
	err := c.do(ctx, call{
		method:  http.MethodPost,
		path:    "/login",
		public:  true,
		body:    map[string]string{"email": email, "password": password},
		out:     &tok,
		failure: "Invalid email or password",
		offline: "Network error. Please try again.",
	})
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, apperr.New(apperr.KindServer, msgBadFormat)
	}
	if tok.TokenType == "" {
		tok.TokenType = "bearer"
	}
	if err := c.store.SetToken(tok.TokenType, tok.AccessToken); err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "save session")
	}
	return &tok, nil
}

// Signup creates an account. It does not sign in.
func (c *Client) Signup(ctx context.Context, r SignupRequest) error {
	if r.UserName == "" || r.Email == "" || r.Password == "" {
		return apperr.Validation("Please fill in all required fields.")
	}
	return c.do(ctx, call{
		method:  http.MethodPost,
		path:    "/signup",
		public:  true,
		body:    r,
		failure: "Failed to create account",
		offline: "Network error. Please try again.",
	})
}

// Logout clears the session. The backend keeps no server-side session.
func (c *Client) Logout() error {
	applog.Event("auth", "logged out")
	return c.store.Clear()
}

// CurrentUser returns the signed-in user.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/user",
		out:     &u,
		failure: "Failed to load user data. Please try again.",
		offline: "Failed to load user data. Please try again.",
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ConnectedDatabases lists the databases registered by the user.
func (c *Client) ConnectedDatabases(ctx context.Context) ([]session.Database, error) {
	var dbs []session.Database
	err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/connected-dbs",
		out:     &dbs,
		failure: "Failed to fetch connected databases",
		offline: "Failed to connect to the server",
	})
	if err != nil {
		return nil, err
	}
	if dbs == nil {
		dbs = []session.Database{}
	}
	return dbs, nil
}

// ConnectDB registers a database and returns its tables.
func (c *Client) ConnectDB(ctx context.Context, r ConnectRequest) (*ConnectResponse, error) {
	var raw struct {
		DBTables *map[string][]string `json:"db_tables"`
		DBID     string               `json:"db_id"`
	}
	err := c.do(ctx, call{
		method:  http.MethodPost,
		path:    "/connect-db",
		body:    r,
		out:     &raw,
		failure: "Failed to connect to database.",
		offline: "An error occurred while connecting to the database.",
	})
	if err != nil {
		return nil, err
	}
	// a missing or null db_tables is treated as an invalid response
	if raw.DBTables == nil {
		return nil, apperr.New(apperr.KindServer, msgBadFormat)
	}
	return &ConnectResponse{DBTables: *raw.DBTables, DBID: raw.DBID}, nil
}

// ExtractSchemas saves the table/column selection and extracts its schema.
func (c *Client) ExtractSchemas(ctx context.Context, dbID string, selected map[string][]string) error {
	if len(selected) == 0 {
		return apperr.Validation("Please select at least one table with columns.")
	}
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   "/extract-schemas",
		body: struct {
			DBID           string              `json:"db_id"`
			SelectedTables map[string][]string `json:"selected_tables"`
		}{dbID, selected},
		failure:  "Failed to extract schemas.",
		offline:  "An error occurred while extracting schemas.",
		hasDBArg: true,
		dbID:     dbID,
	})
}

// ExtractedSchemas returns the stored schema per table. The schema
// documents are returned undecoded.
func (c *Client) ExtractedSchemas(ctx context.Context, dbID string) (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/get-extracted-schemas",
		body:     dbBody{dbID},
		out:      &out,
		failure:  "Failed to fetch extracted schemas.",
		offline:  "Failed to connect to the server",
		hasDBArg: true,
		dbID:     dbID,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SemanticExtraction derives semantic metadata for dbID. The backend also
// generates the visualizations during this call, so it can be slow.
func (c *Client) SemanticExtraction(ctx context.Context, dbID string) error {
	return c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/semantic-extraction",
		body:     dbBody{dbID},
		failure:  "Failed to perform semantic extraction.",
		offline:  "An error occurred during semantic extraction.",
		hasDBArg: true,
		dbID:     dbID,
	})
}

// VectorInsert loads dbID's semantics into the vector store.
func (c *Client) VectorInsert(ctx context.Context, dbID string) error {
	return c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/vector-data-insert",
		body:     dbBody{dbID},
		failure:  "Failed to perform vector data insert.",
		offline:  "An error occurred during vector data insert.",
		hasDBArg: true,
		dbID:     dbID,
	})
}

// CreateKPI stores a KPI definition for dbID.
func (c *Client) CreateKPI(ctx context.Context, dbID string, k kpi.NewKPI) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   "/kpi",
		body: struct {
			KPIData kpi.NewKPI `json:"kpiData"`
			DBID    string     `json:"db_id"`
		}{k, dbID},
		failure:  "Failed to create KPI. Please try again.",
		offline:  "Network error. Please try again.",
		hasDBArg: true,
		dbID:     dbID,
	})
}

// GetKPIs evaluates every KPI of dbID.
func (c *Client) GetKPIs(ctx context.Context, dbID string) (*kpi.Response, error) {
	var resp kpi.Response
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/get-kpi",
		body:     dbBody{dbID},
		out:      &resp,
		failure:  "Failed to load KPI data. Please try again.",
		offline:  "Failed to load KPI data. Please try again.",
		hasDBArg: true,
		dbID:     dbID,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Visualizations returns the chart documents generated for dbID.
func (c *Client) Visualizations(ctx context.Context, dbID string) (*viz.Response, error) {
	var resp viz.Response
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/get-visualization",
		body:     dbBody{dbID},
		out:      &resp,
		failure:  "Failed to load chart data. Please try again.",
		offline:  "Failed to load chart data. Please try again.",
		hasDBArg: true,
		dbID:     dbID,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// PinVisualization pins chartID. The backend reports some failures with
// status 200 and {"status": "error"}; those are returned as errors.
func (c *Client) PinVisualization(ctx context.Context, dbID, chartID string) error {
	if chartID == "" {
		return apperr.Validation("chart id is required")
	}
	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/pin-visualization",
		body: struct {
			ChartID string `json:"chart_id"`
			DBID    string `json:"db_id"`
		}{chartID, dbID},
		out:      &resp,
		failure:  "Failed to pin visualization. Please try again.",
		offline:  "Failed to pin visualization. Please try again.",
		hasDBArg: true,
		dbID:     dbID,
	})
	if err != nil {
		return err
	}
	if resp.Status == "error" {
		msg := resp.Message
		if msg == "" {
			msg = "Failed to pin visualization. Please try again."
		}
		return apperr.Server(http.StatusOK, msg)
	}
	applog.Event("viz", "pinned chart %s", chartID)
	return nil
}

// Ask sends one chat message about dbID and returns the answer text.
func (c *Client) Ask(ctx context.Context, dbID, input string) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/conversational-bi",
		body: struct {
			UserInput string `json:"user_input"`
			DBID      string `json:"db_id"`
		}{input, dbID},
		out:      &resp,
		failure:  "Failed to get response from AI assistant. Please try again.",
		offline:  "Failed to get response from AI assistant. Please try again.",
		hasDBArg: true,
		dbID:     dbID,
	})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}
