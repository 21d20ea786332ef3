package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/zenGate-Global/palmyra-tenancy/database"
)

// ApplySchema applies the embedded DDL (tables, indexes and the user counter
// functions) in a single transaction. Every file is idempotent, so the helper
// is safe to run on each deploy and from tests.
//
// Each file is sent whole; with no arguments pgx uses the simple query
// protocol, which accepts multiple statements and dollar-quoted bodies.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("apply schema: pool is required")
	}

	return withTx(ctx, pool, func(tx pgx.Tx) error {
		for i, ddl := range sqlassets.Ordered() {
			if _, err := tx.Exec(ctx, ddl); err != nil {
				return fmt.Errorf("apply ddl file %d: %w", i, err)
			}
		}
		return nil
	})
}
