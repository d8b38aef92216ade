// Package ids generates identifiers for stored rows.
package ids

import "github.com/oklog/ulid/v2"

// New returns a lexicographically sortable identifier suitable for
// storage keys. Safe for concurrent use.
func New() string {
	return ulid.Make().String()
}
