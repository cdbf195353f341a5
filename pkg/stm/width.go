package stm

import (
	"fmt"
	"unsafe"
)

// wordAligned splits an arbitrary byte address into the 8-byte-aligned
// word containing it and this access's offset within that word. Every
// sub-word width operation funnels through the same *uint64 dispatch
// slots the core's orec table is keyed on: there is exactly one orec per
// aligned word, never one per byte.
func wordAligned(addr unsafe.Pointer) (word *uint64, offset uint) {
	p := uintptr(addr)
	aligned := p &^ 7
	return (*uint64)(unsafe.Pointer(aligned)), uint(p - aligned)
}

// maskFor builds the byte-mask selecting widthBytes bytes starting at
// byteOffset within a word, for a masked sub-word read or write.
func maskFor(widthBytes int, byteOffset uint) uint64 {
	var mask uint64
	for i := 0; i < widthBytes; i++ {
		mask |= 0xFF << (8 * (byteOffset + uint(i)))
	}
	return mask
}

// checkNaturalAlignment panics if a width-byte access at addr would
// straddle two words: every width family operation requires natural
// alignment, the same assumption the per-width template instantiations
// in the original runtime make.
func checkNaturalAlignment(widthBytes int, offset uint) {
	if offset%uint(widthBytes) != 0 || offset+uint(widthBytes) > 8 {
		panic(fmt.Sprintf("stm: unaligned %d-byte access at word offset %d", widthBytes, offset))
	}
}

// ReadU8 reads a single byte transactionally.
func (tx *Tx) ReadU8(addr unsafe.Pointer) uint8 {
	word, off := wordAligned(addr)
	checkNaturalAlignment(1, off)
	return uint8(tx.Read(word, maskFor(1, off)) >> (8 * off))
}

// WriteU8 writes a single byte transactionally.
func (tx *Tx) WriteU8(addr unsafe.Pointer, v uint8) {
	word, off := wordAligned(addr)
	checkNaturalAlignment(1, off)
	tx.Write(word, uint64(v)<<(8*off), maskFor(1, off))
}

// ReadU16 reads a naturally aligned 16-bit value transactionally.
func (tx *Tx) ReadU16(addr unsafe.Pointer) uint16 {
	word, off := wordAligned(addr)
	checkNaturalAlignment(2, off)
	return uint16(tx.Read(word, maskFor(2, off)) >> (8 * off))
}

// WriteU16 writes a naturally aligned 16-bit value transactionally.
func (tx *Tx) WriteU16(addr unsafe.Pointer, v uint16) {
	word, off := wordAligned(addr)
	checkNaturalAlignment(2, off)
	tx.Write(word, uint64(v)<<(8*off), maskFor(2, off))
}

// ReadU32 reads a naturally aligned 32-bit value transactionally.
func (tx *Tx) ReadU32(addr unsafe.Pointer) uint32 {
	word, off := wordAligned(addr)
	checkNaturalAlignment(4, off)
	return uint32(tx.Read(word, maskFor(4, off)) >> (8 * off))
}

// WriteU32 writes a naturally aligned 32-bit value transactionally.
func (tx *Tx) WriteU32(addr unsafe.Pointer, v uint32) {
	word, off := wordAligned(addr)
	checkNaturalAlignment(4, off)
	tx.Write(word, uint64(v)<<(8*off), maskFor(4, off))
}

// ReadU64 reads a naturally aligned (8-byte) word transactionally. A
// 64-bit access is always exactly one word: there is no sub-word mask.
func (tx *Tx) ReadU64(addr unsafe.Pointer) uint64 {
	word, off := wordAligned(addr)
	checkNaturalAlignment(8, off)
	return tx.Read(word, ^uint64(0))
}

// WriteU64 writes a naturally aligned (8-byte) word transactionally.
func (tx *Tx) WriteU64(addr unsafe.Pointer, v uint64) {
	word, off := wordAligned(addr)
	checkNaturalAlignment(8, off)
	tx.Write(word, v, ^uint64(0))
}

// ReadPointer reads a naturally aligned machine word as a pointer.
func (tx *Tx) ReadPointer(addr unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(uintptr(tx.ReadU64(addr)))
}

// WritePointer writes a naturally aligned machine word as a pointer.
func (tx *Tx) WritePointer(addr unsafe.Pointer, v unsafe.Pointer) {
	tx.WriteU64(addr, uint64(uintptr(v)))
}

// Memcpy copies n bytes from src to dst transactionally, one byte at a
// time through ReadU8/WriteU8, per the spec's requirement that the bulk
// primitives are loops over the per-width reads/writes rather than a
// separate fast path.
func (tx *Tx) Memcpy(dst, src unsafe.Pointer, n int) {
	for i := 0; i < n; i++ {
		b := tx.ReadU8(unsafe.Add(src, i))
		tx.WriteU8(unsafe.Add(dst, i), b)
	}
}

// Memmove copies n bytes from src to dst transactionally, correct even
// when the two ranges overlap: it copies backward whenever dst starts
// after src within the overlapping span.
func (tx *Tx) Memmove(dst, src unsafe.Pointer, n int) {
	if uintptr(dst) <= uintptr(src) || uintptr(dst) >= uintptr(src)+uintptr(n) {
		tx.Memcpy(dst, src, n)
		return
	}
	for i := n - 1; i >= 0; i-- {
		b := tx.ReadU8(unsafe.Add(src, i))
		tx.WriteU8(unsafe.Add(dst, i), b)
	}
}

// Memset fills n bytes at dst with v transactionally.
func (tx *Tx) Memset(dst unsafe.Pointer, v uint8, n int) {
	for i := 0; i < n; i++ {
		tx.WriteU8(unsafe.Add(dst, i), v)
	}
}
