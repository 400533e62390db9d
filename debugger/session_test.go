package debugger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gealber/evm-core/analysis"
	"github.com/gealber/evm-core/interpreter"
	"github.com/gealber/evm-core/statejournal"
	"github.com/holiman/uint256"
)

var (
	testOrigin = common.HexToAddress("0x1000000000000000000000000000000000000a")
	testCaller = common.HexToAddress("0x2000000000000000000000000000000000000b")
	testAddr   = common.HexToAddress("0x3000000000000000000000000000000000000c")
)

func push1(v byte) []byte { return []byte{byte(analysis.PUSH1), v} }

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func newTestEVM() (*interpreter.EVM, *statejournal.Journal) {
	journal := statejournal.New(nil, true)
	cache, err := analysis.NewCache(16)
	if err != nil {
		panic(err)
	}
	block := interpreter.BlockContext{
		GasLimit:    30_000_000,
		BlockNumber: 1,
		Time:        1,
		ChainID:     uint256.NewInt(1),
		BaseFee:     new(uint256.Int),
		BlobBaseFee: new(uint256.Int),
	}
	tx := interpreter.TxContext{Origin: testOrigin, GasPrice: new(uint256.Int)}
	return interpreter.NewEVM(journal, cache, block, tx), journal
}

func deploy(journal *statejournal.Journal, addr common.Address, code []byte) {
	journal.CreateAccount(addr)
	journal.SetCode(addr, code, crypto.Keccak256Hash(code))
}

// TestStepExecutesOneInstructionAtATime steps PUSH1 2; PUSH1 3; ADD; STOP
// one instruction at a time and checks the stack after every step instead
// of only inspecting the final result. The analyzer fuses PUSH1 3; ADD into
// one instruction, so the stream is three instructions long.
func TestStepExecutesOneInstructionAtATime(t *testing.T) {
	code := concat(push1(2), push1(3), []byte{byte(analysis.ADD), byte(analysis.STOP)})
	evm, journal := newTestEVM()
	deploy(journal, testAddr, code)

	s, err := NewCallSession(evm, testAddr, testCaller, testAddr, testOrigin, nil, nil, 100_000, 0, false)
	if err != nil {
		t.Fatalf("NewCallSession: %v", err)
	}

	if halted, err := s.Step(); halted || err != nil {
		t.Fatalf("step 1: halted=%v err=%v", halted, err)
	}
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Stack) != 1 || snap.Stack[0].Uint64() != 2 {
		t.Fatalf("after PUSH1 2, stack = %v", snap.Stack)
	}

	if halted, err := s.Step(); halted || err != nil {
		t.Fatalf("step 2 (PUSH1 3 fused with ADD): halted=%v err=%v", halted, err)
	}
	snap, _ = s.Snapshot()
	if len(snap.Stack) != 1 || snap.Stack[0].Uint64() != 5 {
		t.Fatalf("after fused PUSH1 3; ADD, stack = %v", snap.Stack)
	}

	halted, err := s.Step()
	if err != nil || !halted {
		t.Fatalf("step 3 (STOP): halted=%v err=%v", halted, err)
	}
	if s.Status() != StatusHalted {
		t.Fatalf("status = %v, want halted", s.Status())
	}
	if res := s.Result(); res == nil || !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
}

// TestPauseRejectsStepUntilResume checks that a frozen session refuses to
// advance and that Resume picks it back up exactly where it left off.
func TestPauseRejectsStepUntilResume(t *testing.T) {
	code := concat(push1(1), []byte{byte(analysis.STOP)})
	evm, journal := newTestEVM()
	deploy(journal, testAddr, code)

	s, err := NewCallSession(evm, testAddr, testCaller, testAddr, testOrigin, nil, nil, 100_000, 0, false)
	if err != nil {
		t.Fatalf("NewCallSession: %v", err)
	}

	if err := s.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if _, err := s.Step(); err != ErrFrozen {
		t.Fatalf("Step on frozen session: %v, want ErrFrozen", err)
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if halted, err := s.Step(); halted || err != nil {
		t.Fatalf("Step after Resume: halted=%v err=%v", halted, err)
	}
	snap, _ := s.Snapshot()
	if len(snap.Stack) != 1 || snap.Stack[0].Uint64() != 1 {
		t.Fatalf("stack after resumed step = %v", snap.Stack)
	}
}

// TestResetRewindsJournalAndFrame checks that a write made mid-session is
// undone by Reset, and that the session can step again from PC 0.
func TestResetRewindsJournalAndFrame(t *testing.T) {
	slot := common.Hash{}
	code := concat(push1(7), push1(0), []byte{byte(analysis.SSTORE), byte(analysis.STOP)})
	evm, journal := newTestEVM()
	deploy(journal, testAddr, code)

	s, err := NewCallSession(evm, testAddr, testCaller, testAddr, testOrigin, nil, nil, 100_000, 0, false)
	if err != nil {
		t.Fatalf("NewCallSession: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := s.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if got := s.StorageAt(testAddr, slot); got != common.BigToHash(big.NewInt(7)) {
		t.Fatalf("storage before reset = %s, want 7", got.Hex())
	}

	s.Reset()
	if got := s.StorageAt(testAddr, slot); got != (common.Hash{}) {
		t.Fatalf("storage after reset = %s, want zero", got.Hex())
	}
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot after reset: %v", err)
	}
	if snap.PC != 0 || len(snap.Stack) != 0 {
		t.Fatalf("frame after reset = %+v, want PC 0 and an empty stack", snap)
	}
}

// TestAbandonRevertsWithoutCompleting checks that abandoning a session
// mid-execution rolls back its journal effects and refuses further steps.
func TestAbandonRevertsWithoutCompleting(t *testing.T) {
	slot := common.Hash{}
	code := concat(push1(9), push1(0), []byte{byte(analysis.SSTORE), byte(analysis.STOP)})
	evm, journal := newTestEVM()
	deploy(journal, testAddr, code)

	s, err := NewCallSession(evm, testAddr, testCaller, testAddr, testOrigin, nil, nil, 100_000, 0, false)
	if err != nil {
		t.Fatalf("NewCallSession: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	s.Abandon()
	if got := s.StorageAt(testAddr, slot); got != (common.Hash{}) {
		t.Fatalf("storage after abandon = %s, want zero", got.Hex())
	}
	if _, err := s.Step(); err != ErrFinished {
		t.Fatalf("Step after Abandon: %v, want ErrFinished", err)
	}
}

// TestRunAdvancesToHalt exercises Run as a convenience over repeated Step
// calls, stopping exactly at the frame's natural halt.
func TestRunAdvancesToHalt(t *testing.T) {
	code := concat(push1(2), push1(3), []byte{byte(analysis.ADD), byte(analysis.STOP)})
	evm, journal := newTestEVM()
	deploy(journal, testAddr, code)

	s, err := NewCallSession(evm, testAddr, testCaller, testAddr, testOrigin, nil, nil, 100_000, 0, false)
	if err != nil {
		t.Fatalf("NewCallSession: %v", err)
	}
	halted, err := s.Run(0)
	if err != nil || !halted {
		t.Fatalf("Run: halted=%v err=%v", halted, err)
	}
	if s.Status() != StatusHalted {
		t.Fatalf("status = %v, want halted", s.Status())
	}
}
