package db

import (
	"context"
	"fmt"
)

// TablesAndColumns returns every base table of schema with its columns
// in ordinal order, the same shape the backend answers /connect-db with.
func (d *DB) TablesAndColumns(ctx context.Context, schema string) (map[string][]string, error) {
	if schema == "" {
		schema = "public"
	}
	query := `
		SELECT c.table_name, c.column_name
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position`
	rows, err := d.Pool.Query(ctx, query, schema)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	tables := make(map[string][]string)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, err
		}
		tables[table] = append(tables[table], column)
	}
	return tables, rows.Err()
}
