package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linegrid/linegrid/pkg/store/document/doctest"
)

func TestCatalog_CreateAndGet(t *testing.T) {
	c := New(doctest.New())
	ctx := context.Background()

	id, err := c.Create(ctx, File{
		ObjectKey:    "uploads/2026-07-31/123-abcdef-data.csv",
		OriginalName: "data.csv",
		ContentType:  "text/csv",
		Size:         1024,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "data.csv", got.OriginalName)
	require.Equal(t, StatusUploaded, got.Status)
	require.Equal(t, int64(1024), got.Size)
}

func TestCatalog_GetByObjectKey(t *testing.T) {
	c := New(doctest.New())
	ctx := context.Background()

	_, err := c.Create(ctx, File{ObjectKey: "uploads/x", OriginalName: "x.json", ContentType: "application/json"})
	require.NoError(t, err)

	got, err := c.GetByObjectKey(ctx, "uploads/x")
	require.NoError(t, err)
	require.Equal(t, "x.json", got.OriginalName)
}

func TestCatalog_GetMissingReturnsErrNotFound(t *testing.T) {
	c := New(doctest.New())
	_, err := c.Get(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_SetStatusTransitions(t *testing.T) {
	c := New(doctest.New())
	ctx := context.Background()

	id, err := c.Create(ctx, File{ObjectKey: "k", OriginalName: "n"})
	require.NoError(t, err)

	require.NoError(t, c.SetStatus(ctx, id, StatusProcessing))

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, got.Status)
	require.True(t, got.UpdatedAt.After(time.Time{}) || got.UpdatedAt.Equal(time.Time{}))
}

func TestCatalog_SetStatusMissingReturnsErrNotFound(t *testing.T) {
	c := New(doctest.New())
	err := c.SetStatus(context.Background(), "missing", StatusFailed)
	require.ErrorIs(t, err, ErrNotFound)
}
