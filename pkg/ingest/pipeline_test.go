package ingest

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/linegrid/linegrid/internal/bytesize"
	"github.com/linegrid/linegrid/pkg/catalog"
	"github.com/linegrid/linegrid/pkg/store/document/doctest"
	"github.com/linegrid/linegrid/pkg/store/object"
)

type fakeObjectStore struct {
	lastKey  string
	lastBody []byte
	failPut  error
}

func (f *fakeObjectStore) PutStream(_ context.Context, key string, body io.Reader, _ string) (object.PutResult, error) {
	if f.failPut != nil {
		io.Copy(io.Discard, body)
		return object.PutResult{}, f.failPut
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return object.PutResult{}, err
	}
	f.lastKey = key
	f.lastBody = data
	return object.PutResult{Key: key, ETag: "etag", Size: int64(len(data))}, nil
}

func (f *fakeObjectStore) GetStream(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.lastBody)), nil
}

func (f *fakeObjectStore) KeyFor(name string) string { return "uploads/test/" + name }
func (f *fakeObjectStore) Probe(context.Context) error { return nil }

func newTestPipeline(t *testing.T, cfg Config) (*Pipeline, *fakeObjectStore) {
	t.Helper()
	store := &fakeObjectStore{}
	cat := catalog.New(doctest.New())
	return New(store, cat, cfg), store
}

func TestPipeline_IngestStreamsAndRecordsCatalogEntry(t *testing.T) {
	p, store := newTestPipeline(t, Config{MaxFileSize: 1 * bytesize.MiB, AllowedFileTypes: []string{"text/csv"}})

	body := strings.NewReader("name,age\nalice,30\n")
	result, err := p.Ingest(context.Background(), "data.csv", "text/csv", body)
	require.NoError(t, err)
	require.NotEmpty(t, result.FileID)
	require.Equal(t, int64(18), result.Size)
	require.Equal(t, store.lastKey, result.ObjectKey)

	f, err := p.catalog.Get(context.Background(), result.FileID)
	require.NoError(t, err)
	require.Equal(t, catalog.StatusUploaded, f.Status)
	require.Equal(t, "data.csv", f.OriginalName)
}

func TestPipeline_RejectsDisallowedContentType(t *testing.T) {
	p, _ := newTestPipeline(t, Config{MaxFileSize: 1 * bytesize.MiB, AllowedFileTypes: []string{"text/csv"}})

	_, err := p.Ingest(context.Background(), "f.exe", "application/octet-stream", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrUnsupportedContentType)
}

func TestPipeline_AbortsWhenBodyExceedsMaxFileSize(t *testing.T) {
	p, _ := newTestPipeline(t, Config{MaxFileSize: 8, AllowedFileTypes: []string{"text/plain"}})

	body := strings.NewReader(strings.Repeat("a", 1024))
	_, err := p.Ingest(context.Background(), "big.txt", "text/plain", body)
	require.ErrorIs(t, err, ErrFileTooLarge)
}

func TestPipeline_AllowsAnyContentTypeWhenAllowListEmpty(t *testing.T) {
	p, _ := newTestPipeline(t, Config{MaxFileSize: 1 * bytesize.MiB})

	_, err := p.Ingest(context.Background(), "f.bin", "application/octet-stream", strings.NewReader("data"))
	require.NoError(t, err)
}
