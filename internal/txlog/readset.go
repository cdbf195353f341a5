// Package txlog implements the bounded-growth logs a transaction
// descriptor carries: the read set, write set, undo log, and lock set.
// None of them validate on insert; validation is each algorithm's job at
// the time and granularity its protocol calls for.
package txlog

import "github.com/dborchard/gostm/internal/orec"

// ReadSet is the ordered collection of orecs this transaction has
// observed. Duplicates are permitted — re-reading the same address just
// appends the same orec pointer again — since iteration order is
// immaterial and validation only cares about membership.
type ReadSet struct {
	orecs []*orec.Orec
}

// Insert appends an orec to the set.
func (s *ReadSet) Insert(o *orec.Orec) { s.orecs = append(s.orecs, o) }

// Len reports how many orecs have been logged.
func (s *ReadSet) Len() int { return len(s.orecs) }

// ForEach iterates the logged orecs in insertion order, stopping early if
// fn returns false.
func (s *ReadSet) ForEach(fn func(o *orec.Orec) bool) {
	for _, o := range s.orecs {
		if !fn(o) {
			return
		}
	}
}

// Reset clears the set for reuse across transactions, retaining the
// backing array to avoid reallocating on every begin.
func (s *ReadSet) Reset() { s.orecs = s.orecs[:0] }
