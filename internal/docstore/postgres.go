package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/leafybank/backend/internal/common/db"
	"github.com/leafybank/backend/internal/common/resilience"
)

// PgStore keeps each collection in its own PostgreSQL table of JSONB
// documents. Table names are the collection name prefixed with the database
// name.
type PgStore struct {
	pool    *pgxpool.Pool
	prefix  string
	breaker *resilience.CircuitBreaker
}

func NewPgStore(pool *pgxpool.Pool, prefix string, breaker *resilience.CircuitBreaker) *PgStore {
	return &PgStore{pool: pool, prefix: prefix, breaker: breaker}
}

func (s *PgStore) Collection(name string) Collection {
	table, err := tableName(s.prefix, name)
	return &pgCollection{store: s, name: name, table: table, err: err}
}

type pgCollection struct {
	store *PgStore
	name  string
	table string
	err   error
}

// IsStoreFailure reports whether err means the store misbehaved, as opposed
// to an expected outcome such as a missing document or a duplicate key.
func IsStoreFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNoDocuments),
		errors.Is(err, ErrDuplicateKey),
		errors.Is(err, ErrInvalidPath),
		errors.Is(err, ErrEmptyUpdate),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func (c *pgCollection) Name() string {
	return c.name
}

func (c *pgCollection) run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if c.err != nil {
		return c.err
	}
	call := func(ctx context.Context) error {
		start := time.Now()
		err := fn(ctx)
		db.ObserveOperation(operation, c.name, start, err)
		return translateError(err)
	}
	if c.store.breaker == nil {
		return call(ctx)
	}
	return c.store.breaker.Call(ctx, call)
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNoDocuments
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

func (c *pgCollection) FindOne(ctx context.Context, filter Filter, out any) error {
	query, args, err := buildFindSQL(c.table, filter, 1)
	if err != nil {
		return err
	}

	var raw []byte
	err = c.run(ctx, "find_one", func(ctx context.Context) error {
		return c.store.pool.QueryRow(ctx, query, args...).Scan(&raw)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

func (c *pgCollection) Find(ctx context.Context, filter Filter) ([]json.RawMessage, error) {
	query, args, err := buildFindSQL(c.table, filter, 0)
	if err != nil {
		return nil, err
	}

	var docs []json.RawMessage
	err = c.run(ctx, "find", func(ctx context.Context) error {
		rows, err := c.store.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		docs = make([]json.RawMessage, 0)
		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				return err
			}
			docs = append(docs, json.RawMessage(raw))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *pgCollection) InsertOne(ctx context.Context, id string, doc any) (string, error) {
	if id == "" {
		return "", errors.New("document id is required")
	}
	_, raw, err := encodeDocument(id, doc)
	if err != nil {
		return "", err
	}

	query := buildInsertSQL(c.table)
	err = c.run(ctx, "insert_one", func(ctx context.Context) error {
		_, err := c.store.pool.Exec(ctx, query, id, string(raw))
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (c *pgCollection) UpdateOne(ctx context.Context, filter Filter, update Update) (UpdateResult, error) {
	return c.update(ctx, "update_one", filter, update, false)
}

func (c *pgCollection) UpdateMany(ctx context.Context, filter Filter, update Update) (UpdateResult, error) {
	return c.update(ctx, "update_many", filter, update, true)
}

func (c *pgCollection) update(ctx context.Context, operation string, filter Filter, update Update, many bool) (UpdateResult, error) {
	query, args, err := buildUpdateSQL(c.table, filter, update, many)
	if err != nil {
		return UpdateResult{}, err
	}

	var result UpdateResult
	err = c.run(ctx, operation, func(ctx context.Context) error {
		return c.store.pool.QueryRow(ctx, query, args...).Scan(&result.MatchedCount, &result.ModifiedCount)
	})
	if err != nil {
		return UpdateResult{}, err
	}
	return result, nil
}

func (c *pgCollection) DeleteOne(ctx context.Context, filter Filter) (DeleteResult, error) {
	query, args, err := buildDeleteSQL(c.table, filter)
	if err != nil {
		return DeleteResult{}, err
	}

	var result DeleteResult
	err = c.run(ctx, "delete_one", func(ctx context.Context) error {
		tag, err := c.store.pool.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		result.DeletedCount = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return result, nil
}

func (c *pgCollection) Count(ctx context.Context, filter Filter) (int64, error) {
	query, args, err := buildCountSQL(c.table, filter)
	if err != nil {
		return 0, err
	}

	var count int64
	err = c.run(ctx, "count", func(ctx context.Context) error {
		return c.store.pool.QueryRow(ctx, query, args...).Scan(&count)
	})
	return count, err
}
