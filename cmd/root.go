// Package cmd contains all Cobra commands for prism.
//
// The root command launches the TUI. Every dashboard operation also has
// a subcommand so it can be scripted: each one loads the config, opens
// the session in ~/.onyxprism and talks to the backend through the same
// api.Client the TUI uses.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/onyxprism/prism/api"
	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/applog"
	"github.com/onyxprism/prism/config"
	"github.com/onyxprism/prism/session"
	"github.com/onyxprism/prism/ssh"
	"github.com/onyxprism/prism/tui"
)

const version = "0.1.0"

// app is what every command needs, built once in PersistentPreRunE.
type app struct {
	cfg      *config.AppConfig
	baseURL  string
	store    *session.Store
	profiles *config.ConnectionStore
	client   *api.Client
	tunnel   *ssh.Tunnel
}

type appKey struct{}

func appFrom(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}

func (a *app) options() []api.Option {
	return []api.Option{
		api.WithTimeout(a.cfg.API.Timeout),
		api.WithUserAgent("prism/" + version),
	}
}

func (a *app) close() {
	if a.tunnel != nil {
		a.tunnel.Stop()
	}
	applog.Info("prism exiting")
	applog.Close()
}

type globalFlags struct {
	apiURL     string
	configPath string
	logLevel   string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "prism",
		Short: "Terminal client for the OnyxPrism BI platform",
		Long: `prism is a terminal client for the OnyxPrism backend:
  • Sign in, connect databases and run the onboarding pipeline
  • Browse KPIs with per-table pagination and create new ones
  • List, pin and inspect generated visualizations
  • Ask the conversational BI assistant about your data

Run 'prism' with no arguments to start the dashboard.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a := appFrom(cmd); a != nil {
				a.close()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			return tui.Start(a.baseURL, a.store, a.profiles, a.options()...)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.apiURL, "api", "", "backend URL (overrides api.url)")
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.onyxprism/config.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newLoginCmd(),
		newSignupCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newDBsCmd(),
		newSchemasCmd(),
		newOnboardCmd(),
		newKPICmd(),
		newChartsCmd(),
		newChatCmd(),
	)
	return root
}

// setup resolves configuration (file, then ONYX_* env, then flags),
// starts logging and opens the session and profile stores.
func setup(cmd *cobra.Command, flags globalFlags) (*app, error) {
	path := flags.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if flags.apiURL != "" {
		cfg.API.URL = flags.apiURL
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(dir, "logs", "app.log")
	}
	if err := applog.Init(logFile, cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	applog.Info("prism %s starting: %s", version, cmd.CommandPath())

	store, err := session.Open(filepath.Join(dir, "session.json"))
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	profiles, err := config.NewConnectionStore(dir)
	if err != nil {
		return nil, fmt.Errorf("profiles: %w", err)
	}

	a := &app{cfg: cfg, baseURL: cfg.APIURL(), store: store, profiles: profiles}
	if cfg.SSH.Enabled {
		t, u, err := ssh.ForwardURL(cmd.Context(), cfg.SSH, a.baseURL)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel: %w", err)
		}
		a.tunnel, a.baseURL = t, u
	}
	a.client = api.New(a.baseURL, store, a.options()...)
	return a, nil
}

// Execute runs the root command and prints any error the way the
// dashboard would show it.
func Execute() error {
	err := NewRootCmd().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apperr.UserMessage(err))
	}
	return err
}
