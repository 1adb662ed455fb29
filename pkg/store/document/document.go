// Package document defines the metadata/document-store adapter contract:
// insert, an atomic find-and-update-returning-the-post-image primitive,
// unordered bulk insert, update-many for recovery sweeps, a liveness ping,
// and idempotent index creation.
//
// pkg/store/document/postgres implements this contract on Postgres JSONB
// documents rather than a literal document database — see DESIGN.md for
// the rationale. The contract itself stays collection/document shaped so a
// different backend could implement it without touching any caller.
package document

import (
	"context"
	"errors"
	"time"
)

// ErrNoDocuments is returned by FindOne and FindOneAndUpdate when no
// document matches the filter.
var ErrNoDocuments = errors.New("document: no matching document")

// Op is a comparison operator usable in a filter condition.
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// FieldKind tells the store how to interpret a field's stored JSON value
// when building a typed comparison.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindInt    FieldKind = "int"
	KindTime   FieldKind = "time"
	KindBool   FieldKind = "bool"
)

// Cond is one comparison within a Filter.
type Cond struct {
	Field string
	Kind  FieldKind
	Op    Op
	Value any
}

// Filter selects documents within a collection. All conditions in All are
// ANDed together. If Any is non-empty, each entry is itself ANDed
// internally and the entries are ORed with each other and with All —
// i.e. the overall predicate is: All AND (Any[0] OR Any[1] OR ...).
//
// This is enough to express compound predicates such as
// "(lock expired OR started too long ago)" in one query.
type Filter struct {
	All []Cond
	Any []Filter
}

// IsZero reports whether f selects every document (no conditions at all).
func (f Filter) IsZero() bool { return len(f.All) == 0 && len(f.Any) == 0 }

// Update describes a mutation applied by FindOneAndUpdate or UpdateMany.
type Update struct {
	// Set assigns each field to a fixed value.
	Set map[string]any

	// Inc increments each named numeric field by the given delta.
	Inc map[string]any

	// PushCapped appends Value to the named array field, evicting the
	// oldest element first (FIFO) once the array reaches Cap entries.
	PushCapped *PushCapped
}

// PushCapped describes a bounded FIFO array append, used for things like a
// job's capped tail of recent errors.
type PushCapped struct {
	Field string
	Value any
	Cap   int
}

// SortKey orders results by one field.
type SortKey struct {
	Field     string
	Ascending bool
}

// Sort is an ordered list of tie-break keys, most significant first.
type Sort []SortKey

// Store is the metadata/document-store capability contract.
type Store interface {
	// InsertOne inserts doc into collection and returns its generated id.
	InsertOne(ctx context.Context, collection string, doc map[string]any) (id string, err error)

	// FindOne returns the first document matching filter, ordered by sort,
	// without mutating it. Returns ErrNoDocuments if nothing matched.
	FindOne(ctx context.Context, collection string, filter Filter, sort Sort) (map[string]any, error)

	// FindOneAndUpdate atomically selects the document matching filter,
	// ordered by sort, applies update, and returns the post-image. Returns
	// ErrNoDocuments if nothing matched.
	FindOneAndUpdate(ctx context.Context, collection string, filter Filter, update Update, sort Sort) (map[string]any, error)

	// BulkInsertUnordered inserts docs, tolerating individual duplicate-key
	// rows without aborting the rest of the batch (Mongo's ordered:false).
	// inserted counts the rows that were actually written.
	BulkInsertUnordered(ctx context.Context, collection string, docs []map[string]any) (inserted int, err error)

	// UpdateMany applies update to every document matching filter and
	// returns the number of documents matched.
	UpdateMany(ctx context.Context, collection string, filter Filter, update Update) (matched int, err error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// EnsureIndexes creates the indexes required by the catalog and job
	// queue, idempotently.
	EnsureIndexes(ctx context.Context) error
}

// Now is overridable in tests; production code always calls time.Now.
var Now = time.Now
