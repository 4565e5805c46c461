package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string for use as a query identifier.
// ULIDs are lexicographically sortable by creation time.
func NewID() string {
	return ulid.Make().String()
}
