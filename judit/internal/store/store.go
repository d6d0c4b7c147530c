// Package store is the SQLite cache behind the judit service: the last known
// backend state of requests and trackings, fetched history pages, the
// publication inbox and raw webhook deliveries.
//
// The backend stays authoritative. Rows here are overwritten by every
// refresh and never advanced locally, except publication status which only
// exists here.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
)

// ErrStaleStatus is returned by UpdatePublicationStatus when the row changed
// underneath the caller.
var ErrStaleStatus = errors.New("store: status changed concurrently")

// Store wraps the jurimon database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList(s string) []string {
	var v []string
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return v
}
