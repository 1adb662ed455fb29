// Package catalog implements the file catalog (C3): the record of every
// upload accepted by the ingest pipeline, independent of where its bytes
// live in the object store. It is the join point between C5 (ingest) and
// C6 (the processing worker), which looks a file up by id to learn its
// object key and content type before streaming it back out of storage.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/linegrid/linegrid/pkg/store/document"
)

const collection = "files"

// Status is the lifecycle state of an uploaded file.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

// File is one catalog entry.
type File struct {
	ID           string
	ObjectKey    string
	OriginalName string
	ContentType  string
	Size         int64
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ErrNotFound is returned when a file id has no catalog entry.
var ErrNotFound = fmt.Errorf("catalog: file not found")

// Catalog records and looks up uploaded files.
type Catalog struct {
	store document.Store
}

// New builds a Catalog backed by store.
func New(store document.Store) *Catalog {
	return &Catalog{store: store}
}

// Create records a newly-uploaded file and returns its generated id.
func (c *Catalog) Create(ctx context.Context, f File) (string, error) {
	now := document.Now().UTC()
	if f.Status == "" {
		f.Status = StatusUploaded
	}
	doc := map[string]any{
		"object_key":    f.ObjectKey,
		"original_name": f.OriginalName,
		"content_type":  f.ContentType,
		"size":          f.Size,
		"status":        string(f.Status),
		"created_at":    now,
		"updated_at":    now,
	}
	id, err := c.store.InsertOne(ctx, collection, doc)
	if err != nil {
		return "", fmt.Errorf("failed to create catalog entry: %w", err)
	}
	return id, nil
}

// Get looks up a file by id.
func (c *Catalog) Get(ctx context.Context, id string) (*File, error) {
	doc, err := c.store.FindOne(ctx, collection,
		document.Filter{All: []document.Cond{{Field: "id", Op: document.OpEq, Value: id}}},
		nil,
	)
	if err != nil {
		return nil, ErrNotFound
	}
	return fromDoc(doc)
}

// GetByObjectKey looks up a file by its object-store key.
func (c *Catalog) GetByObjectKey(ctx context.Context, objectKey string) (*File, error) {
	doc, err := c.store.FindOne(ctx, collection,
		document.Filter{All: []document.Cond{{Field: "object_key", Op: document.OpEq, Value: objectKey}}},
		nil,
	)
	if err != nil {
		return nil, ErrNotFound
	}
	return fromDoc(doc)
}

// SetStatus transitions a file's status.
func (c *Catalog) SetStatus(ctx context.Context, id string, status Status) error {
	matched, err := c.store.UpdateMany(ctx, collection,
		document.Filter{All: []document.Cond{{Field: "id", Op: document.OpEq, Value: id}}},
		document.Update{Set: map[string]any{
			"status":     string(status),
			"updated_at": document.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update file status: %w", err)
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

func fromDoc(doc map[string]any) (*File, error) {
	f := &File{}
	if v, ok := document.AsString(doc["id"]); ok {
		f.ID = v
	}
	if v, ok := document.AsString(doc["object_key"]); ok {
		f.ObjectKey = v
	}
	if v, ok := document.AsString(doc["original_name"]); ok {
		f.OriginalName = v
	}
	if v, ok := document.AsString(doc["content_type"]); ok {
		f.ContentType = v
	}
	if v, ok := document.AsInt64(doc["size"]); ok {
		f.Size = v
	}
	if v, ok := document.AsString(doc["status"]); ok {
		f.Status = Status(v)
	}
	if v, ok := document.AsTime(doc["created_at"]); ok {
		f.CreatedAt = v
	}
	if v, ok := document.AsTime(doc["updated_at"]); ok {
		f.UpdatedAt = v
	}
	return f, nil
}
