// Package postgres implements the document-store capability contract
// (pkg/store/document.Store) on top of Postgres, using a JSONB column per
// collection plus generated, indexed columns for the fields the catalog and
// job queue actually filter and sort on — a pgxpool-based store generalized
// from a fixed relational schema to a document-shaped one (see DESIGN.md).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linegrid/linegrid/pkg/store/document"
)


// Store implements document.Store over a pgxpool connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a connection pool against cfg.DSN and, if cfg.AutoMigrate is
// set, brings the schema up to date before returning.
func New(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := createConnectionPool(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, cfg.DSN); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run document store migrations: %w", err)
		}
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping implements document.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureIndexes implements document.Store. Index creation actually happens
// via migrations; this call is a cheap idempotent confirmation step so
// callers that expect a Mongo-style explicit index bootstrap still have one
// to invoke at startup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	const q = `SELECT 1 FROM pg_indexes WHERE indexname = 'jobs_claim_idx'`
	var dummy int
	if err := s.pool.QueryRow(ctx, q).Scan(&dummy); err != nil {
		return fmt.Errorf("document store indexes are missing; run migrations first: %w", err)
	}
	return nil
}

// InsertOne implements document.Store.
func (s *Store) InsertOne(ctx context.Context, collection string, doc map[string]any) (string, error) {
	table, err := tableName(collection)
	if err != nil {
		return "", err
	}

	id := uuid.New()
	withID := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		withID[k] = v
	}
	withID["id"] = id.String()

	data, err := json.Marshal(withID)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	q := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES ($1, $2)", table)
	if _, err := s.pool.Exec(ctx, q, id, data); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return id.String(), nil
}

// FindOne implements document.Store.
func (s *Store) FindOne(ctx context.Context, collection string, filter document.Filter, sort document.Sort) (map[string]any, error) {
	table, err := tableName(collection)
	if err != nil {
		return nil, err
	}

	whereClause, whereArgs, _, err := buildWhere(filter, 1)
	if err != nil {
		return nil, err
	}
	orderBy, err := buildOrderBy(sort)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("SELECT doc FROM %s WHERE %s %s LIMIT 1", table, whereClause, orderBy)

	var raw []byte
	if err := s.pool.QueryRow(ctx, q, whereArgs...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, document.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to find in %s: %w", collection, err)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return out, nil
}

// FindOneAndUpdate implements document.Store's atomic claim-and-mutate
// primitive as a single UPDATE driven by a FOR UPDATE SKIP LOCKED subquery,
// so concurrent callers racing for the same row never block on each other —
// one wins the row, the rest move on to the next candidate.
func (s *Store) FindOneAndUpdate(ctx context.Context, collection string, filter document.Filter, update document.Update, sort document.Sort) (map[string]any, error) {
	table, err := tableName(collection)
	if err != nil {
		return nil, err
	}

	whereClause, whereArgs, next, err := buildWhere(filter, 1)
	if err != nil {
		return nil, err
	}
	orderBy, err := buildOrderBy(sort)
	if err != nil {
		return nil, err
	}
	setExpr, setArgs, _, err := buildSetExpr(update, next)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(
		`UPDATE %s SET doc = %s WHERE id = (
			SELECT id FROM %s WHERE %s %s LIMIT 1 FOR UPDATE SKIP LOCKED
		) RETURNING doc`,
		table, setExpr, table, whereClause, orderBy,
	)

	args := append(append([]any{}, whereArgs...), setArgs...)

	var raw []byte
	err = s.pool.QueryRow(ctx, q, args...).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, document.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to find-and-update in %s: %w", collection, err)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated document: %w", err)
	}
	return out, nil
}

// bulkConflictTarget names the unique constraint each collection de-dupes
// bulk inserts on. parsed_records dedupes on (job_id, line_number) rather
// than the row's own freshly-generated id: a crashed job resumed from line
// 1 re-emits rows for lines it already committed, and since each retry
// mints a new random id, conflicting on id alone would never catch the
// repeat — it would instead hit the (job_id, line_number) unique index as
// an unhandled error and fail the whole re-run. Collections absent here
// fall back to conflicting on id, which is what they're actually keyed by.
var bulkConflictTarget = map[string]string{
	"parsed_records": "(job_id, line_number)",
}

// BulkInsertUnordered implements document.Store. Each row is inserted
// independently with ON CONFLICT DO NOTHING on the collection's natural key
// (see bulkConflictTarget), matching Mongo's ordered:false semantics: one
// duplicate doesn't abort the rest of the batch.
func (s *Store) BulkInsertUnordered(ctx context.Context, collection string, docs []map[string]any) (int, error) {
	table, err := tableName(collection)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	conflictTarget := "(id)"
	if target, ok := bulkConflictTarget[collection]; ok {
		conflictTarget = target
	}

	batch := &pgx.Batch{}
	q := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES ($1, $2) ON CONFLICT %s DO NOTHING", table, conflictTarget)

	for _, doc := range docs {
		id := uuid.New()
		withID := make(map[string]any, len(doc)+1)
		for k, v := range doc {
			withID[k] = v
		}
		withID["id"] = id.String()

		data, err := json.Marshal(withID)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal document: %w", err)
		}
		batch.Queue(q, id, data)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range docs {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("failed bulk insert into %s: %w", collection, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// UpdateMany implements document.Store.
func (s *Store) UpdateMany(ctx context.Context, collection string, filter document.Filter, update document.Update) (int, error) {
	table, err := tableName(collection)
	if err != nil {
		return 0, err
	}

	whereClause, whereArgs, next, err := buildWhere(filter, 1)
	if err != nil {
		return 0, err
	}
	setExpr, setArgs, _, err := buildSetExpr(update, next)
	if err != nil {
		return 0, err
	}

	q := fmt.Sprintf("UPDATE %s SET doc = %s WHERE %s", table, setExpr, whereClause)
	args := append(append([]any{}, whereArgs...), setArgs...)

	var tag pgconn.CommandTag
	tag, err = s.pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update many in %s: %w", collection, err)
	}
	return int(tag.RowsAffected()), nil
}
