package orec

import "sync/atomic"

// TokenAllocator hands out lock tokens for attach_thread. Each token is
// unique for the lifetime of the process and has LockBit set, so it can
// never be confused with a version number stored in an Orec's v field.
type TokenAllocator struct {
	next atomic.Uint64
}

// Next returns a fresh, process-unique lock token.
func (a *TokenAllocator) Next() uint64 {
	return LockBit | a.next.Add(1)
}
