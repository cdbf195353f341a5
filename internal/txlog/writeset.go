package txlog

// WriteEntry is one (address, new-value, byte-mask) triple buffered by a
// redo-logging algorithm until commit-time writeback.
type WriteEntry struct {
	Addr *uint64
	Val  uint64
	Mask uint64
}

// WriteSet is an insertion-ordered map from address to (value, mask),
// preserving order for deterministic writeback while offering O(1)
// address lookup for RAW-hazard checks.
type WriteSet struct {
	entries []WriteEntry
	index   map[*uint64]int
}

// Insert records a pending write. A second write to an address already in
// the set merges into the existing entry (later bits win on overlap, as
// would happen from two in-order masked stores to the same word) rather
// than appending a duplicate, keeping writeback a single pass per address.
func (s *WriteSet) Insert(addr *uint64, val, mask uint64) {
	if s.index == nil {
		s.index = make(map[*uint64]int)
	}
	if i, ok := s.index[addr]; ok {
		e := &s.entries[i]
		e.Val = MergeMasked(e.Val, val, mask)
		e.Mask |= mask
		return
	}
	s.index[addr] = len(s.entries)
	s.entries = append(s.entries, WriteEntry{Addr: addr, Val: val, Mask: mask})
}

// Find looks up a previously logged write for addr, used to serve RAW
// (read-after-write) hazards from the log instead of memory.
func (s *WriteSet) Find(addr *uint64) (val, mask uint64, found bool) {
	if s.index == nil {
		return 0, 0, false
	}
	i, ok := s.index[addr]
	if !ok {
		return 0, 0, false
	}
	e := s.entries[i]
	return e.Val, e.Mask, true
}

// Len reports the number of distinct addresses buffered.
func (s *WriteSet) Len() int { return len(s.entries) }

// ForEach iterates entries in insertion order.
func (s *WriteSet) ForEach(fn func(e WriteEntry)) {
	for _, e := range s.entries {
		fn(e)
	}
}

// Writeback publishes every buffered entry to memory via a masked store.
// Callers are responsible for holding the corresponding orecs and for
// stamping them afterwards; Writeback only touches user memory.
func (s *WriteSet) Writeback() {
	for _, e := range s.entries {
		StoreMasked(e.Addr, e.Val, e.Mask)
	}
}

// Reset clears the set for reuse, retaining backing storage.
func (s *WriteSet) Reset() {
	s.entries = s.entries[:0]
	for k := range s.index {
		delete(s.index, k)
	}
}
