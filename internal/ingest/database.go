package ingest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jmylchreest/corpusctl/internal/models"
)

// databaseConfig is the opaque DataSource.Config payload for
// DataSourceTypeDatabase: each row returned by Query becomes one Item,
// serialized as a JSON document keyed by column name.
type databaseConfig struct {
	Driver   string `json:"driver"` // "postgres" | "mysql"
	DSN      string `json:"dsn"`
	Query    string `json:"query"`
	IDColumn string `json:"id_column"`
}

func (c databaseConfig) sqlDriverName() string {
	switch c.Driver {
	case "postgres":
		return "pgx"
	case "mysql":
		return "mysql"
	default:
		return c.Driver
	}
}

// databaseConnector runs a configured query against a relational source and
// yields one Item per row.
type databaseConnector struct{}

func newDatabaseConnector() *databaseConnector {
	return &databaseConnector{}
}

func (c *databaseConnector) Open(ctx context.Context, ds *models.DataSource) (ItemIterator, error) {
	var cfg databaseConfig
	if err := json.Unmarshal([]byte(ds.Config), &cfg); err != nil {
		return nil, fmt.Errorf("parsing database data source config: %w", err)
	}
	if cfg.DSN == "" || cfg.Query == "" {
		return nil, fmt.Errorf("database data source config requires dsn and query")
	}
	driverName := cfg.sqlDriverName()
	if driverName != "pgx" && driverName != "mysql" {
		return nil, fmt.Errorf("unsupported database driver %q: must be 'postgres' or 'mysql'", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, cfg.Query)
	if err != nil {
		return nil, fmt.Errorf("executing database ingest query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	var items []*Item
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scanning database row: %w", err)
		}

		record := make(map[string]any, len(columns))
		for i, col := range columns {
			record[col] = normalizeSQLValue(values[i])
		}

		body, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("marshaling database row: %w", err)
		}

		idValue := fmt.Sprintf("%v", record[cfg.IDColumn])
		if cfg.IDColumn == "" {
			idValue = fmt.Sprintf("row-%d", len(items))
		}

		items = append(items, &Item{
			URI:         fmt.Sprintf("db://%s/%s", ds.ID.String(), idValue),
			Filename:    idValue + ".json",
			ContentType: "application/json",
			Body:        io.NopCloser(bytes.NewReader(body)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating database rows: %w", err)
	}

	return newSliceIterator(items), nil
}

// normalizeSQLValue converts driver-native byte slices to strings so the
// row serializes as readable JSON instead of base64.
func normalizeSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
