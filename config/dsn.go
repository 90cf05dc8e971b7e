package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ConnectionFromDSN fills a connect form from a PostgreSQL URL or
// keyword/value string, e.g. "postgres://u:p@h:5432/d". Parsing is
// delegated to pgconn so PG* environment variables apply as they would
// for psql.
func ConnectionFromDSN(dsn string) (Connection, error) {
	dsn = strings.TrimSpace(dsn)
	if strings.Contains(dsn, "://") {
		scheme := strings.ToLower(dsn[:strings.Index(dsn, "://")])
		if scheme != "postgres" && scheme != "postgresql" {
			return Connection{}, fmt.Errorf("unsupported DSN scheme %q: only postgres URLs can be parsed", scheme)
		}
	}

	pc, err := pgconn.ParseConfig(dsn)
	if err != nil {
		return Connection{}, fmt.Errorf("parse dsn: %w", err)
	}

	port := pc.Port
	if port == 0 {
		port = 5432
	}
	return Connection{
		DBType:   "postgresql",
		Host:     pc.Host,
		Port:     strconv.Itoa(int(port)),
		Username: pc.User,
		Password: pc.Password,
		Database: pc.Database,
	}, nil
}
