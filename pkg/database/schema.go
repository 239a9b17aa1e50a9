package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL for the wallet auth tables.
func Schema() string {
	return schemaSQL
}

// EnsureSchema applies schema.sql. Every statement is IF NOT EXISTS, so it is
// safe to run on each boot.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
