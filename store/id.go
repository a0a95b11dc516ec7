// Package store persists run history, archives large result sets to S3,
// and caches parsed formula ASTs across runs.
package store

import "github.com/oklog/ulid/v2"

// NewRunID returns a new ULID string: sortable by creation time, usable
// directly as an HTTP resource id and a run-history primary key.
func NewRunID() string {
	return ulid.Make().String()
}
