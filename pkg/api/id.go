package api

import "github.com/google/uuid"

// ValidID reports whether s is a well-formed document id.
//
// This repo's document store (pkg/store/document/postgres) generates
// canonical UUIDs rather than 24-hex-character Mongo ObjectId-style
// identifiers, since the underlying store is Postgres, not Mongo (see
// DESIGN.md's C2 entry) — so the format check here validates a UUID.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
