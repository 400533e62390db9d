package interpreter

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gealber/evm-core/analysis"
	"github.com/gealber/evm-core/memstore"
	"github.com/holiman/uint256"
)

// FrameState is the state-machine position of a single call frame.
type FrameState int

const (
	FrameRunning FrameState = iota
	FrameReturning
	FrameReverting
	FrameHalted // terminated by an error (runtime-consuming or -preserving)
	FrameCompleted
)

// Frame is one call/create activation record: unit of gas
// metering, stack, memory, and control flow.
type Frame struct {
	Gas      uint64
	GasLimit uint64 // the gas this frame started with, for computing gas used on completion
	PC       int    // index into Analysis.Instructions, not a raw bytecode offset
	Stack *Stack
	Mem   *memstore.View

	Analysis *analysis.Analysis
	Code     []byte

	Caller   common.Address
	Address  common.Address // the address this code executes "as" (self)
	Origin   common.Address // tx.origin, constant across the whole call tree
	CodeAddr common.Address // the address code was loaded from (DELEGATECALL keeps Address, changes this)
	Value    *uint256.Int
	Input    []byte

	Depth    int
	ReadOnly bool

	State      FrameState
	ReturnData []byte // output of the most recently completed child call
	Output     []byte // this frame's own return/revert payload once halted
	Err        error

	// checkpoint is the statejournal mark taken when this frame began, so
	// Revert/Commit know what to undo.
	checkpoint int

	// sstoreOriginal caches, per slot, the value the frame's first SSTORE to
	// it observed the slot holding. EIP-2200/3529 net metering compares every
	// SSTORE in a call against that single original value, not against
	// whatever the slot currently holds.
	sstoreOriginal map[common.Hash]common.Hash
}

// originalSlotValue returns the value slot held the first time this frame
// touched it (recording current as that value on the first call), so
// repeated SSTOREs to the same slot within one call keep comparing against
// the same original.
func (f *Frame) originalSlotValue(slot common.Hash, current common.Hash) common.Hash {
	if f.sstoreOriginal == nil {
		f.sstoreOriginal = make(map[common.Hash]common.Hash)
	}
	if v, ok := f.sstoreOriginal[slot]; ok {
		return v
	}
	f.sstoreOriginal[slot] = current
	return current
}

// NewFrame builds the activation record for one CALL/CREATE-family
// invocation. gasLimit is the gas this frame itself owns (already deducted
// from the caller per the 63/64 forwarding rule for CALL-family, or the
// full remaining gas for the outermost frame).
func NewFrame(a *analysis.Analysis, mem *memstore.View, gasLimit uint64, caller, addr, origin, codeAddr common.Address, value *uint256.Int, input []byte, depth int, readOnly bool, checkpoint int) *Frame {
	return &Frame{
		Gas:        gasLimit,
		GasLimit:   gasLimit,
		Stack:      newStack(),
		Mem:        mem,
		Analysis:   a,
		Code:       a.Code,
		Caller:     caller,
		Address:    addr,
		Origin:     origin,
		CodeAddr:   codeAddr,
		Value:      value,
		Input:      input,
		Depth:      depth,
		ReadOnly:   readOnly,
		State:      FrameRunning,
		checkpoint: checkpoint,
	}
}

// useGas deducts amount from the frame's remaining gas, returning
// ErrOutOfGas (and leaving Gas at 0) if insufficient.
func (f *Frame) useGas(amount uint64) error {
	if f.Gas < amount {
		f.Gas = 0
		return ErrOutOfGas
	}
	f.Gas -= amount
	return nil
}

// refundGas returns gas to the frame, used when a CALL-family child frame
// returns unused gas to its parent.
func (f *Frame) refundGas(amount uint64) { f.Gas += amount }

// StackValues copies out the current operand stack, bottom to top, for a
// debugger snapshot. The live Stack stays unexported so nothing outside
// this package can mutate it through the copy.
func (f *Frame) StackValues() []uint256.Int {
	out := make([]uint256.Int, len(f.Stack.data))
	copy(out, f.Stack.data)
	return out
}
