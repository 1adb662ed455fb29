// Package object defines the object-store adapter contract: streaming puts
// and gets, deterministic key generation, and a reachability probe.
// Implementations must accept bodies of unknown total length without
// buffering them in memory.
package object

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"time"
)

// PutResult is returned by a successful PutStream.
type PutResult struct {
	Key  string
	ETag string
	Size int64
}

// Store is the object-store capability contract required by the ingest
// pipeline (C5) and the processing worker (C6).
type Store interface {
	// PutStream uploads body (of unknown total length) under key, returning
	// the final object key, its ETag and the exact byte count observed.
	PutStream(ctx context.Context, key string, body io.Reader, contentType string) (PutResult, error)

	// GetStream returns a readable stream for key. The caller must Close it.
	GetStream(ctx context.Context, key string) (io.ReadCloser, error)

	// KeyFor derives a deterministic, collision-resistant object key from a
	// client-supplied filename.
	KeyFor(originalName string) string

	// Probe performs a cheap reachability check against the configured
	// bucket.
	Probe(ctx context.Context) error
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9.\-]`)

// SanitizeName replaces every character outside [A-Za-z0-9.-] with '_'.
func SanitizeName(name string) string {
	if name == "" {
		return "file"
	}
	return unsafeKeyChars.ReplaceAllString(name, "_")
}

// KeyFor implements the key generation scheme:
//
//	uploads/<YYYY-MM-DD>/<epoch-millis>-<6-char-random>-<sanitized-name>
//
// with the date taken in UTC. It is exported as a free function so every
// Store implementation shares identical key derivation.
func KeyFor(now time.Time, originalName string) string {
	utc := now.UTC()
	date := utc.Format("2006-01-02")
	millis := utc.UnixMilli()
	suffix := randomSuffix(6)
	return fmt.Sprintf("uploads/%s/%d-%s-%s", date, millis, suffix, SanitizeName(originalName))
}

const randomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read failing means the platform's entropy source is
		// broken; fall back to a fixed, visibly-wrong suffix rather than
		// panicking mid-upload.
		return hex.EncodeToString(buf)[:n]
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = randomAlphabet[int(b)%len(randomAlphabet)]
	}
	return string(out)
}
