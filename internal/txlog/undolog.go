package txlog

// UndoEntry records the value an in-place write overwrote, so rollback
// can restore it. Only CohortsEager's turbo mode uses this: turbo writes
// land directly in memory, so an (impossible, by protocol) rollback would
// need to replay these in reverse order.
type UndoEntry struct {
	Addr    *uint64
	OldVal  uint64
	OldMask uint64
}

// UndoLog is the ordered list of (address, previous-value) entries
// replayed on rollback.
type UndoLog struct {
	entries []UndoEntry
}

// Record logs the prior value at addr before an in-place write clobbers it.
func (u *UndoLog) Record(addr *uint64, oldVal, mask uint64) {
	u.entries = append(u.entries, UndoEntry{Addr: addr, OldVal: oldVal, OldMask: mask})
}

// Undo replays the log in reverse order, restoring each address to the
// value it held before this transaction's in-place writes.
func (u *UndoLog) Undo() {
	for i := len(u.entries) - 1; i >= 0; i-- {
		e := u.entries[i]
		StoreMasked(e.Addr, e.OldVal, e.OldMask)
	}
}

// Len reports the number of recorded entries.
func (u *UndoLog) Len() int { return len(u.entries) }

// Reset clears the log for reuse.
func (u *UndoLog) Reset() { u.entries = u.entries[:0] }
