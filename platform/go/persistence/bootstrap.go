package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/zenGate-Global/estatedesk/database"
)

// ApplySchema creates the properties and leads tables (and their indexes) in a
// single transaction. The statements are embedded at build time and applied in
// dependency order:
//  1. properties.sql
//  2. leads.sql (references properties)
//
// Every statement is idempotent, so the helper is safe to run on each deploy.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return errors.New("apply schema: pool is required")
	}

	var statements []string
	statements = append(statements, splitStatements(sqlassets.PropertiesSQL)...)
	statements = append(statements, splitStatements(sqlassets.LeadsSQL)...)

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// splitStatements breaks a DDL script on semicolons, dropping blanks and
// comment-only chunks.
func splitStatements(script string) []string {
	raw := strings.Split(script, ";")
	statements := make([]string, 0, len(raw))
	for _, chunk := range raw {
		stmt := strings.TrimSpace(chunk)
		if stmt == "" || isCommentOnly(stmt) {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}

func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
