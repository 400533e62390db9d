// Package debugger provides a stepping harness over an interpreter.Frame
//: it freezes the interpreter between
// individual opcode handler invocations, lets a caller inspect the frame's
// stack/memory/journal state, and resumes from exactly that point. A Step
// whose instruction fails halts the session and hands the error to
// EVM.Finish, which reverts the session's journal effects for a runtime
// error; the frame is left as the failing instruction left it.
package debugger

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gealber/evm-core/analysis"
	"github.com/gealber/evm-core/interpreter"
	"github.com/gealber/evm-core/memstore"
	"github.com/holiman/uint256"
)

// Status is the session's position in its own state machine.
type Status int

const (
	StatusPaused Status = iota
	StatusFrozen
	StatusHalted
	StatusAbandoned
)

func (s Status) String() string {
	switch s {
	case StatusPaused:
		return "paused"
	case StatusFrozen:
		return "frozen"
	case StatusHalted:
		return "halted"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

var (
	// ErrFrozen is returned by Step/Run against a session that Pause has frozen.
	ErrFrozen = errors.New("debugger: session is frozen")
	// ErrFinished is returned by any method that advances a session once it
	// has halted or been abandoned.
	ErrFinished = errors.New("debugger: session already finished")
	// ErrNotFrozen is returned by Resume against a session that isn't frozen.
	ErrNotFrozen = errors.New("debugger: session is not frozen")
)

// Snapshot is a point-in-time view of a paused frame, cheap enough to take
// after every single step.
type Snapshot struct {
	Status     Status
	PC         int
	Gas        uint64
	Depth      int
	Stack      []uint256.Int
	Memory     []byte
	ReturnData []byte
}

// Session wraps one CALL/CREATE-family invocation so it can be driven one
// instruction at a time instead of run to completion in a single call.
type Session struct {
	evm   *interpreter.EVM
	frame *interpreter.Frame

	checkpoint  int
	createdAddr *common.Address
	buildFrame  func(checkpoint int) *interpreter.Frame

	status Status
	result *interpreter.ExecutionResult
}

// NewCallSession starts a stepping session over a CALL/DELEGATECALL-family
// invocation against code already deployed at codeAddr.
func NewCallSession(evm *interpreter.EVM, codeAddr common.Address, caller, addr, origin common.Address, value *uint256.Int, input []byte, gasLimit uint64, depth int, readOnly bool) (*Session, error) {
	code := evm.Journal.GetCode(codeAddr)
	an, err := evm.Analysis.Get(code, analysis.RuntimeCode)
	if err != nil {
		return nil, err
	}
	v := value
	if v == nil {
		v = new(uint256.Int)
	}
	build := func(checkpoint int) *interpreter.Frame {
		return interpreter.NewFrame(an, memstore.NewView(), gasLimit, caller, addr, origin, codeAddr, v, input, depth, readOnly, checkpoint)
	}
	return newSession(evm, build, nil), nil
}

// NewCreateSession starts a stepping session over a CREATE/CREATE2's init
// code, installing the returned bytes at newAddr on a successful Finish.
func NewCreateSession(evm *interpreter.EVM, caller, newAddr, origin common.Address, value *uint256.Int, initCode []byte, gasLimit uint64, depth int, readOnly bool) (*Session, error) {
	an, err := evm.Analysis.Get(initCode, analysis.InitCode)
	if err != nil {
		return nil, err
	}
	v := value
	if v == nil {
		v = new(uint256.Int)
	}
	build := func(checkpoint int) *interpreter.Frame {
		return interpreter.NewFrame(an, memstore.NewView(), gasLimit, caller, newAddr, origin, newAddr, v, nil, depth, readOnly, checkpoint)
	}
	addr := newAddr
	return newSession(evm, build, &addr), nil
}

func newSession(evm *interpreter.EVM, build func(checkpoint int) *interpreter.Frame, createdAddr *common.Address) *Session {
	s := &Session{evm: evm, buildFrame: build, createdAddr: createdAddr}
	s.start()
	return s
}

func (s *Session) start() {
	s.checkpoint = s.evm.Journal.Checkpoint()
	s.frame = s.buildFrame(s.checkpoint)
	s.status = StatusPaused
}

// Step executes exactly one instruction and refreezes. It honors the same
// block-entry validation a continuous run() would (interpreter.EVM.StepOnce
// does the validation); an instruction that fails halts the session.
func (s *Session) Step() (halted bool, err error) {
	switch s.status {
	case StatusFrozen:
		return false, ErrFrozen
	case StatusHalted, StatusAbandoned:
		return false, ErrFinished
	}

	out, halt, err := s.evm.StepOnce(s.frame)
	if err != nil {
		s.result = s.evm.Finish(s.frame, nil, err, s.checkpoint, s.createdAddr)
		s.status = StatusHalted
		return true, err
	}
	if halt {
		s.result = s.evm.Finish(s.frame, out, nil, s.checkpoint, s.createdAddr)
		s.status = StatusHalted
		return true, nil
	}
	return false, nil
}

// Run steps the session up to maxSteps times (unbounded if maxSteps <= 0),
// stopping early on halt, error, or the session being frozen.
func (s *Session) Run(maxSteps int) (halted bool, err error) {
	for i := 0; maxSteps <= 0 || i < maxSteps; i++ {
		if s.status == StatusFrozen {
			return false, ErrFrozen
		}
		halted, err = s.Step()
		if halted || err != nil {
			return halted, err
		}
	}
	return false, nil
}

// Pause freezes the session so a subsequent Step/Run returns ErrFrozen
// until Resume is called.
func (s *Session) Pause() error {
	if s.status == StatusHalted || s.status == StatusAbandoned {
		return ErrFinished
	}
	s.status = StatusFrozen
	return nil
}

// Resume thaws a frozen session, leaving the frame exactly where it was
// paused.
func (s *Session) Resume() error {
	if s.status != StatusFrozen {
		return ErrNotFrozen
	}
	s.status = StatusPaused
	return nil
}

// Reset reverts every journal effect the session has made so far and
// rebuilds a fresh frame over the same call parameters, ready to step from
// scratch.
func (s *Session) Reset() {
	s.evm.Journal.Revert(s.checkpoint)
	s.result = nil
	s.start()
}

// Abandon reverts the session's journal effects and permanently retires it.
// A halted session is already reflected in Finish's checkpoint handling, so
// Abandon after a halt is a no-op beyond marking the session finished.
func (s *Session) Abandon() {
	if s.status != StatusHalted {
		s.evm.Journal.Revert(s.checkpoint)
	}
	s.status = StatusAbandoned
}

// Result returns the frame's ExecutionResult once the session has halted,
// or nil if it is still stepping.
func (s *Session) Result() *interpreter.ExecutionResult { return s.result }

// Snapshot captures the frame's current stack, memory, gas, and position.
// Storage/balance/nonce state lives in the journal itself and is read
// directly off evm.Journal by address/slot rather than copied wholesale.
func (s *Session) Snapshot() (Snapshot, error) {
	mem, err := s.frame.Mem.GetSlice(0, s.frame.Mem.Size())
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Status:     s.status,
		PC:         s.frame.PC,
		Gas:        s.frame.Gas,
		Depth:      s.frame.Depth,
		Stack:      s.frame.StackValues(),
		Memory:     mem,
		ReturnData: s.frame.ReturnData,
	}, nil
}

// StorageAt reads a storage slot through the session's journal, reflecting
// whatever this frame (or an earlier sibling) has written so far.
func (s *Session) StorageAt(addr common.Address, slot common.Hash) common.Hash {
	return s.evm.Journal.GetState(addr, slot)
}

// Status reports the session's current state-machine position.
func (s *Session) Status() Status { return s.status }
