package docstore

import (
	"context"
	"fmt"
	"strings"

	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/leafybank/backend/internal/common/db"
	"github.com/leafybank/backend/internal/common/logger"
)

func schemaStatements(prefix string, spec CollectionSpec) ([]string, error) {
	table, err := tableName(prefix, spec.Name)
	if err != nil {
		return nil, err
	}
	base := spec.Name
	if prefix != "" {
		base = prefix + "_" + spec.Name
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	seq BIGSERIAL NOT NULL,
	id TEXT PRIMARY KEY,
	doc JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (seq)", pgx.Identifier{base + "_seq_idx"}.Sanitize(), table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (doc jsonb_path_ops)", pgx.Identifier{base + "_doc_gin"}.Sanitize(), table),
	}

	for _, path := range spec.Unique {
		segments, err := splitPath(path)
		if err != nil {
			return nil, err
		}
		index := pgx.Identifier{base + "_" + strings.ToLower(strings.Join(segments, "_")) + "_uniq"}.Sanitize()
		stmts = append(stmts, fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s ((doc #>> '{%s}'))", index, table, strings.Join(segments, ",")))
	}
	return stmts, nil
}

// EnsureCollections creates the backing tables and indexes for specs.
func EnsureCollections(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger, prefix string, specs ...CollectionSpec) error {
	var stmts []string
	for _, spec := range specs {
		s, err := schemaStatements(prefix, spec)
		if err != nil {
			return err
		}
		stmts = append(stmts, s...)
	}

	return db.RetryWithBackoff(ctx, log, db.DefaultRetryConfig, func() error {
		for _, stmt := range stmts {
			if _, err := pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to ensure collection schema: %w", err)
			}
		}
		return nil
	})
}
