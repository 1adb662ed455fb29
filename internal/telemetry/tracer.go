package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StoreName sets the store-implementation attribute (e.g. "s3", "postgres").
func StoreName(name string) attribute.KeyValue { return attribute.String("store.name", name) }

// StoreType sets the store-kind attribute ("object" or "document").
func StoreType(kind string) attribute.KeyValue { return attribute.String("store.type", kind) }

// Collection sets the document-store collection attribute.
func Collection(name string) attribute.KeyValue { return attribute.String("store.collection", name) }

// ByteCount sets a byte-count attribute for a span.
func ByteCount(n int64) attribute.KeyValue { return attribute.Int64("io.bytes", n) }

// StartStoreSpan starts a span for a store operation, tagged with the given
// object/document identifier plus any extra attributes.
func StartStoreSpan(ctx context.Context, op, id string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{attribute.String("store.id", id)}, attrs...)
	return StartSpan(ctx, op, trace.WithAttributes(allAttrs...))
}
