// Package db checks database credentials locally before they are sent
// to the backend for onboarding.
//
// Only PostgreSQL can be checked. The check opens a small pgx pool,
// optionally through an SSH tunnel, pings the server and lists the
// tables the backend would discover.
package db

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onyxprism/prism/applog"
	"github.com/onyxprism/prism/config"
	"github.com/onyxprism/prism/ssh"
)

// DB wraps a pgx connection pool and optional SSH tunnel.
type DB struct {
	Pool   *pgxpool.Pool
	Tunnel *ssh.Tunnel
}

// Report is the outcome of a successful Preflight.
type Report struct {
	ServerVersion string
	Tables        map[string][]string
	Elapsed       time.Duration
}

// DSN builds a postgres URL for c. host and port override c's values
// when set (used for the local end of a tunnel).
func DSN(c config.Connection, host string, port int) string {
	if host == "" {
		host = c.Host
	}
	p := c.Port
	if port != 0 {
		p = strconv.Itoa(port)
	}
	if p == "" {
		p = "5432"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(host, p),
		Path:     "/" + c.Database,
		RawQuery: "connect_timeout=10",
	}
	return u.String()
}

// Connect opens a pool for c, through an SSH tunnel when sshCfg is enabled.
func Connect(ctx context.Context, c config.Connection, sshCfg config.SSHConfig) (*DB, error) {
	if c.DBType != "" && c.DBType != "postgresql" {
		return nil, fmt.Errorf("local check supports postgresql only, not %s", c.DBType)
	}
	d := &DB{}

	var host string
	var port int
	if sshCfg.Enabled {
		remotePort := 5432
		if c.Port != "" {
			n, err := strconv.Atoi(c.Port)
			if err != nil {
				return nil, fmt.Errorf("invalid port %q", c.Port)
			}
			remotePort = n
		}
		tunnel, err := ssh.NewTunnel(sshCfg, c.Host, remotePort)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel: %w", err)
		}
		localAddr, err := tunnel.Start(ctx)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel start: %w", err)
		}
		d.Tunnel = tunnel
		host, port = localAddr.Host, localAddr.Port
	}

	poolCfg, err := pgxpool.ParseConfig(DSN(c, host, port))
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("pgx config: %w", err)
	}
	poolCfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("pgx connect: %w", err)
	}
	d.Pool = pool

	if err := pool.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("pgx ping: %w", err)
	}
	return d, nil
}

// Close shuts down the pool and SSH tunnel.
func (d *DB) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.Tunnel != nil {
		d.Tunnel.Stop()
	}
}

// Preflight connects with c, reads the server version and lists the
// tables of the public schema.
func Preflight(ctx context.Context, c config.Connection, sshCfg config.SSHConfig) (*Report, error) {
	start := time.Now()
	d, err := Connect(ctx, c, sshCfg)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	var version string
	if err := d.Pool.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		return nil, fmt.Errorf("server version: %w", err)
	}

	tables, err := d.TablesAndColumns(ctx, "public")
	if err != nil {
		return nil, err
	}

	r := &Report{ServerVersion: version, Tables: tables, Elapsed: time.Since(start)}
	applog.Event("db", "preflight %s@%s/%s ok: %d tables", c.Username, c.Host, c.Database, len(tables))
	return r, nil
}
