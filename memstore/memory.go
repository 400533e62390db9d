// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package memstore implements the byte-addressable linear memory shared
// across a call stack of frames via checkpoints.
package memstore

import (
	"fmt"

	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// DefaultLimit is the default ceiling on a Store's buffer length (a view's
// checkpoint plus its logical size), roughly 16 MiB.
const DefaultLimit = 16 * 1024 * 1024

// ErrOverflow is returned when growing a frame's memory would exceed the
// configured Store limit.
type ErrOverflow struct {
	Requested uint64
	Limit     uint64
}

func (e *ErrOverflow) Error() string {
	return fmt.Sprintf("memory overflow: requested %d bytes, limit %d", e.Requested, e.Limit)
}

// ErrOutOfBounds is returned by GetSlice/GetWord when the requested range
// falls outside the frame's logical memory.
type ErrOutOfBounds struct {
	Offset, Len, Size uint64
}

func (e *ErrOutOfBounds) Error() string {
	return fmt.Sprintf("memory out of bounds: offset %d len %d size %d", e.Offset, e.Len, e.Size)
}

// Store is the growable byte buffer that a View and its Child views share
// (see View below). The interpreter gives every call frame a fresh Store
// of its own (EVM.newMemoryView); it does not hand a child frame a Child
// of its parent's view.
type Store struct {
	buf   []byte
	limit uint64
}

// New returns an empty Store with the default memory limit.
func New() *Store {
	return &Store{limit: DefaultLimit}
}

// NewWithLimit returns an empty Store whose buffer is bounded at limit bytes.
func NewWithLimit(limit uint64) *Store {
	if limit == 0 {
		limit = DefaultLimit
	}
	return &Store{limit: limit}
}

// Len returns the size of the raw backing buffer, shared by all views.
func (s *Store) Len() uint64 { return uint64(len(s.buf)) }

// View is a frame's checkpointed window into a Store's backing buffer.
// A child frame's View shares the Store but starts with checkpoint equal
// to the parent's current high-water mark, so child writes never clobber
// bytes the parent can still observe.
type View struct {
	store       *Store
	checkpoint  uint64
	lastGasCost uint64 // memoised total expansion fee, for incremental billing
}

// NewView returns the top-level (transaction-owning) view over a fresh Store.
func NewView() *View {
	return &View{store: New()}
}

// NewViewWithLimit returns a top-level view bounded at limit bytes.
func NewViewWithLimit(limit uint64) *View {
	return &View{store: NewWithLimit(limit)}
}

// Child returns a new View sharing this View's Store, checkpointed at the
// Store's current length — i.e. past every byte the parent (or any of its
// ancestors) has written so far.
func (v *View) Child() *View {
	return &View{store: v.store, checkpoint: v.store.Len()}
}

// Size returns the frame-logical memory size: bytes available past the
// view's checkpoint. Always a multiple of 32 once any write has happened
// through the EVM-expansion path.
func (v *View) Size() uint64 {
	total := v.store.Len()
	if total <= v.checkpoint {
		return 0
	}
	return total - v.checkpoint
}

// Clear truncates the view back to empty. For the owning (top-level) view
// this truncates the underlying buffer to zero length; for a child view it simply moves
// the checkpoint to the current end, discarding nothing the parent can see.
func (v *View) Clear() {
	if v.checkpoint == 0 {
		v.store.buf = v.store.buf[:0]
		v.lastGasCost = 0
		return
	}
	v.checkpoint = v.store.Len()
	v.lastGasCost = 0
}

// EnsureCapacity grows the backing buffer so the view has at least newSize
// logical bytes available, zero-filling any newly allocated region. It does
// not round up to a word boundary — callers wanting EVM expansion semantics
// should go through SetDataEVM or explicitly round up first.
func (v *View) EnsureCapacity(newSize uint64) error {
	abs := v.checkpoint + newSize
	if abs > v.store.limit {
		return &ErrOverflow{Requested: newSize, Limit: v.store.limit}
	}
	if abs <= v.store.Len() {
		return nil
	}
	grown := make([]byte, abs)
	copy(grown, v.store.buf)
	v.store.buf = grown
	return nil
}

// GetSlice returns a borrowed view of [offset, offset+length) relative to
// the view's checkpoint. The caller must not retain it past the next
// mutation of the Store.
func (v *View) GetSlice(offset, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	end := offset + length
	if end < offset || v.checkpoint+end > v.store.Len() {
		return nil, &ErrOutOfBounds{Offset: offset, Len: length, Size: v.Size()}
	}
	lo := v.checkpoint + offset
	return v.store.buf[lo : lo+length], nil
}

// SetData writes data at offset without any EVM expansion semantics; the
// destination range must already be within capacity (internal use, e.g.
// copying precompile/call return data into a caller-reserved buffer).
func (v *View) SetData(offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	end := offset + uint64(len(data))
	if end < offset || v.checkpoint+end > v.store.Len() {
		return &ErrOutOfBounds{Offset: offset, Len: uint64(len(data)), Size: v.Size()}
	}
	lo := v.checkpoint + offset
	copy(v.store.buf[lo:], data)
	return nil
}

// SetDataEVM writes data at offset, first expanding the view to the next
// 32-byte boundary past the write end (EVM MSTORE/MSTORE8/CALLDATACOPY/...
// expansion semantics).
func (v *View) SetDataEVM(offset uint64, data []byte) error {
	end := offset + uint64(len(data))
	if end < offset {
		return &ErrOutOfBounds{Offset: offset, Len: uint64(len(data))}
	}
	if err := v.EnsureCapacity(toWordSize(end) * 32); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	lo := v.checkpoint + offset
	copy(v.store.buf[lo:], data)
	return nil
}

// GetWord reads a 32-byte big-endian word at offset.
func (v *View) GetWord(offset uint64) (*uint256.Int, error) {
	b, err := v.GetSlice(offset, 32)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(b), nil
}

// SetWord writes a 32-byte big-endian word at offset, expanding via EVM
// semantics first.
func (v *View) SetWord(offset uint64, val *uint256.Int) error {
	b := val.Bytes32()
	return v.SetDataEVM(offset, b[:])
}

// SetByte writes a single byte at offset (MSTORE8), expanding via EVM
// semantics first.
func (v *View) SetByte(offset uint64, b byte) error {
	return v.SetDataEVM(offset, []byte{b})
}

// toWordSize rounds size up to the nearest multiple of 32, expressed in
// 32-byte words.
func toWordSize(size uint64) uint64 {
	if size > 0xFFFFFFFFE0 {
		// Guards against overflow in the +31 below; any realistic
		// gas_limit makes the expansion cost fail long before this.
		return 0xFFFFFFFFE0 / 32
	}
	return (size + 31) / 32
}

// ExpansionCost returns the incremental gas cost of growing this view's
// memory so it can hold newSize logical bytes: cost(new_words) -
// cost(old_words), where cost(w) = 3w + w²/512 (EIP-150 quadratic memory
// gas, see params.MemoryGas / params.QuadCoeffDiv).
func (v *View) ExpansionCost(newSize uint64) (uint64, error) {
	if newSize <= v.Size() {
		return 0, nil
	}
	words := toWordSize(newSize)
	total := words*params.MemoryGas + (words*words)/params.QuadCoeffDiv
	if total < v.lastGasCost {
		// Can't happen given newSize > v.Size(), but guards the subtraction.
		return 0, nil
	}
	fee := total - v.lastGasCost
	v.lastGasCost = total
	return fee, nil
}

// WordSize is exported for callers (gas formulas) that need the same
// rounding rule without a View in hand.
func WordSize(size uint64) uint64 { return toWordSize(size) }
