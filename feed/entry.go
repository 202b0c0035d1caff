// Package feed maintains the incremental multi-key index over post versions
// that backs feed queries. One source document produces one index entry per
// relevant dimension combination, written as a single atomic batch, so feed
// reads never observe a partially-applied update.
package feed

import (
	"time"

	"github.com/xraph/syndicate/id"
)

// Entry is the projection stored under every index key derived from one
// post version.
type Entry struct {
	// User is the entity URI of the post author.
	User string `json:"user"`

	// Post references the indexed post.
	Post id.ID `json:"post"`

	// Version references the post version the entry reflects.
	Version id.ID `json:"version"`

	// Date orders the entry within its dimension.
	Date time.Time `json:"date"`
}

// Dims selects the dimensions a query filters on. Zero fields are
// unconstrained; the index picks the most specific key family covering the
// set fields, so no combination requires a scan.
type Dims struct {
	// Type filters by post type.
	Type string

	// Following filters by whether the owner follows the author.
	Following *bool

	// Mention filters by mentioned user entity URI.
	Mention string
}

// Range bounds one page of a feed query on the trailing timestamp key
// component. Results are ordered by Date, ascending unless Descending is
// set. A follow-up query with Since (or Before, when descending) set to the
// last returned Date resumes where the page ended.
type Range struct {
	// Since is the inclusive lower time bound.
	Since time.Time

	// Before is the exclusive upper time bound.
	Before time.Time

	// Limit caps the number of returned entries. 0 means no cap.
	Limit int

	// Descending returns newest entries first.
	Descending bool
}

// Resolve picks the winning entry among candidates for one logical key:
// greatest Date, ties broken by the greater Version string. The fold is
// commutative and associative, so it may be applied incrementally over
// partial result sets in any order. Index.Update applies it to guard
// against out-of-order replays; rebuild and replica-merge callers should
// fold conflicting entries through it the same way.
func Resolve(candidates ...Entry) Entry {
	var winner Entry
	for i, c := range candidates {
		if i == 0 || newer(c, winner) {
			winner = c
		}
	}
	return winner
}

// newer reports whether a wins over b under the (Date, Version) total order.
func newer(a, b Entry) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	return a.Version.String() > b.Version.String()
}
