// Package ingest implements the ingest pipeline (C5): accepting an upload
// of unknown total size and routing it straight into the object store
// without ever holding the full payload in memory, then recording it in
// the file catalog.
package ingest

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/linegrid/linegrid/internal/bytesize"
	"github.com/linegrid/linegrid/internal/logger"
	"github.com/linegrid/linegrid/pkg/catalog"
	"github.com/linegrid/linegrid/pkg/store/object"
)

// ErrUnsupportedContentType is returned when the upload's declared content
// type isn't in the configured allow-list.
var ErrUnsupportedContentType = fmt.Errorf("ingest: unsupported content type")

// Config controls admission checks applied to every upload.
type Config struct {
	MaxFileSize      bytesize.ByteSize
	AllowedFileTypes []string
}

// Pipeline streams uploads into the object store and records them in the
// catalog.
type Pipeline struct {
	store   object.Store
	catalog *catalog.Catalog
	cfg     Config
}

// New builds a Pipeline.
func New(store object.Store, cat *catalog.Catalog, cfg Config) *Pipeline {
	return &Pipeline{store: store, catalog: cat, cfg: cfg}
}

// MaxFileSize returns the configured upload size ceiling, for callers that
// need to report it alongside an ErrFileTooLarge.
func (p *Pipeline) MaxFileSize() bytesize.ByteSize {
	return p.cfg.MaxFileSize
}

// Result is what a successful Ingest call produces.
type Result struct {
	FileID      string
	ObjectKey   string
	Size        int64
	ContentType string
}

// Ingest streams body (of unknown total length) into the object store
// under a freshly derived key, rejecting it early if its declared content
// type isn't allowed, and aborting the upload (never completing a partial
// object) if it turns out to exceed MaxFileSize.
func (p *Pipeline) Ingest(ctx context.Context, originalName, contentType string, body io.Reader) (*Result, error) {
	if !p.contentTypeAllowed(contentType) {
		return nil, ErrUnsupportedContentType
	}

	key := p.store.KeyFor(originalName)
	limited := newLimitedReader(body, int64(p.cfg.MaxFileSize))

	putResult, err := p.store.PutStream(ctx, key, limited, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	fileID, err := p.catalog.Create(ctx, catalog.File{
		ObjectKey:    putResult.Key,
		OriginalName: originalName,
		ContentType:  contentType,
		Size:         putResult.Size,
		Status:       catalog.StatusUploaded,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record catalog entry: %w", err)
	}

	logger.InfoContext(ctx, "file ingested",
		logger.KeyFileID, fileID,
		logger.KeyObjectKey, putResult.Key,
		logger.KeyBytes, putResult.Size,
	)

	return &Result{
		FileID:      fileID,
		ObjectKey:   putResult.Key,
		Size:        putResult.Size,
		ContentType: contentType,
	}, nil
}

func (p *Pipeline) contentTypeAllowed(contentType string) bool {
	if len(p.cfg.AllowedFileTypes) == 0 {
		return true
	}
	return slices.Contains(p.cfg.AllowedFileTypes, contentType)
}
