// Package migrations embeds the SQL migrations applied to the document
// store's Postgres schema, for use with golang-migrate's iofs source driver.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
