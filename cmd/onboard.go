package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/config"
	"github.com/onyxprism/prism/db"
	"github.com/onyxprism/prism/onboard"
)

type onboardFlags struct {
	profile      string
	dsn          string
	conn         config.Connection
	tables       []string
	preflight    bool
	saveProfile  string
	savePassword bool
}

func newOnboardCmd() *cobra.Command {
	var f onboardFlags
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Connect a database and run the onboarding pipeline",
		Long: `Registers a database with the backend and runs the four onboarding steps:
connect, extract schemas, semantic extraction and vector data insert.

The connection comes from a saved profile (--profile), a PostgreSQL DSN
(--dsn) or the individual flags; individual flags override the other two.
Without --table every discovered table is extracted with all columns.`,
		Example: `  prism onboard --dsn postgres://analyst@db.internal/shop --table orders=id,total --table customers
  prism onboard --profile shop --preflight`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnboard(cmd, &f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.profile, "profile", "", "saved connection profile to start from")
	fl.StringVar(&f.dsn, "dsn", "", "PostgreSQL URL or keyword/value DSN")
	fl.StringVar(&f.conn.DBType, "type", "", "database type: "+strings.Join(config.DBTypes, ", "))
	fl.StringVar(&f.conn.Host, "host", "", "database host")
	fl.StringVar(&f.conn.Port, "port", "", "database port (default 5432)")
	fl.StringVar(&f.conn.Username, "user", "", "database user")
	fl.StringVar(&f.conn.Password, "password", "", "database password (prompted when missing)")
	fl.StringVar(&f.conn.Database, "database", "", "database name")
	fl.StringArrayVar(&f.tables, "table", nil, "table to extract, optionally with columns: name=col1,col2 (repeatable)")
	fl.BoolVar(&f.preflight, "preflight", false, "check the database locally with pgx before registering it")
	fl.StringVar(&f.saveProfile, "save-profile", "", "save the connection under this profile name")
	fl.BoolVar(&f.savePassword, "save-password", false, "include the password in the saved profile")
	return cmd
}

// resolveConnection layers profile, DSN and explicit flags.
func resolveConnection(cmd *cobra.Command, a *app, f *onboardFlags) (config.Connection, error) {
	conn := config.DefaultConnection()
	if f.profile != "" {
		p, ok := a.profiles.Get(f.profile)
		if !ok {
			return conn, apperr.Newf(apperr.KindValidation, "no saved profile %q", f.profile)
		}
		conn = p
	}
	if f.dsn != "" {
		c, err := config.ConnectionFromDSN(f.dsn)
		if err != nil {
			return conn, apperr.Wrap(err, apperr.KindValidation, err.Error())
		}
		conn = c
	}

	fl := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if fl.Changed(name) {
			*dst = v
		}
	}
	override("type", &conn.DBType, f.conn.DBType)
	override("host", &conn.Host, f.conn.Host)
	override("port", &conn.Port, f.conn.Port)
	override("user", &conn.Username, f.conn.Username)
	override("password", &conn.Password, f.conn.Password)
	override("database", &conn.Database, f.conn.Database)

	if conn.Password == "" {
		pw, err := readPassword(cmd, "")
		if err != nil {
			return conn, err
		}
		conn.Password = pw
	}
	return conn, nil
}

func runOnboard(cmd *cobra.Command, f *onboardFlags) error {
	a := appFrom(cmd)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	conn, err := resolveConnection(cmd, a, f)
	if err != nil {
		return err
	}

	if f.preflight {
		var report *db.Report
		err := withSpinner(cmd, "Checking database...", func() error {
			var err error
			report, err = db.Preflight(ctx, conn, a.cfg.SSH)
			return err
		})
		if err != nil {
			return apperr.Wrap(err, apperr.KindNetwork, "Preflight failed: "+err.Error())
		}
		fmt.Fprintf(out, "✓ PostgreSQL %s reachable, %d tables in public (%s)\n",
			report.ServerVersion, len(report.Tables), report.Elapsed.Round(time.Millisecond))
	}

	if f.saveProfile != "" {
		a.profiles.Add(onboard.FormFromConnection(conn).Connection(f.saveProfile, f.savePassword))
		if err := a.profiles.Save(); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		fmt.Fprintf(out, "Profile '%s' saved!\n", f.saveProfile)
	}

	w := onboard.New(a.store)
	runner := onboard.Runner{Backend: a.client}
	observe := func(r onboard.Result) {
		if r.Err != nil {
			fmt.Fprintf(out, "✗ %s: %s\n", r.Step, apperr.UserMessage(r.Err))
			return
		}
		fmt.Fprintf(out, "✓ %s\n", onboard.SuccessMessage(r.Step))
	}

	act, err := w.SubmitConnect(onboard.FormFromConnection(conn))
	if err != nil {
		return err
	}
	if err := withSpinner(cmd, "Connecting...", func() error {
		return runner.Drive(ctx, w, act, observe)
	}); err != nil {
		return err
	}

	if err := selectTables(w, f.tables); err != nil {
		return err
	}
	act, err = w.SubmitExtract()
	if err != nil {
		return err
	}
	if err := withSpinner(cmd, "Running onboarding pipeline...", func() error {
		return runner.Drive(ctx, w, act, observe)
	}); err != nil {
		return err
	}
	fmt.Fprintf(out, "Your database is ready (id %s).\n", w.DBID())
	return nil
}

// selectTables applies --table specs to the wizard. No specs selects
// every table with all of its columns.
func selectTables(w *onboard.Wizard, specs []string) error {
	if len(specs) == 0 {
		for _, name := range w.TableNames() {
			if err := w.ToggleTable(name, true); err != nil {
				return err
			}
		}
		return nil
	}

	all := w.Tables()
	for _, spec := range specs {
		table, cols := parseTableSpec(spec)
		if err := w.ToggleTable(table, true); err != nil {
			return err
		}
		if len(cols) == 0 {
			continue
		}
		want := make(map[string]bool, len(cols))
		for _, c := range cols {
			if err := w.ToggleColumn(table, c, true); err != nil {
				return err
			}
			want[c] = true
		}
		for _, c := range all[table] {
			if !want[c] {
				if err := w.ToggleColumn(table, c, false); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// parseTableSpec splits "orders=id,total" into the table and its columns.
func parseTableSpec(spec string) (string, []string) {
	table, list, _ := strings.Cut(spec, "=")
	var cols []string
	for _, c := range strings.Split(list, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return strings.TrimSpace(table), cols
}
