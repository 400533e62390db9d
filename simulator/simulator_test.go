package simulator

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gealber/evm-core/analysis"
	"github.com/gealber/evm-core/interpreter"
	"github.com/gealber/evm-core/statejournal"
	"github.com/holiman/uint256"
)

var (
	testFrom = common.HexToAddress("0x1000000000000000000000000000000000000a")
	testTo   = common.HexToAddress("0x2000000000000000000000000000000000000b")
)

func push1(v byte) []byte { return []byte{byte(analysis.PUSH1), v} }

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func newTestSimulator() (*Simulator, *statejournal.Journal) {
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
	return NewSimulator(journal, cache, block), journal
}

// TestSimulateReturnsOutputAndCommitsStorage checks a plain CALL against
// supplied-but-not-yet-deployed Code, and that the committed effect (a
// storage write) is visible afterward through the journal.
func TestSimulateReturnsOutputAndCommitsStorage(t *testing.T) {
	// PUSH1 7; PUSH1 0; SSTORE; PUSH1 2; PUSH1 3; ADD; PUSH1 0; MSTORE;
	// PUSH1 32; PUSH1 0; RETURN
	code := concat(
		push1(7), push1(0), []byte{byte(analysis.SSTORE)},
		push1(2), push1(3), []byte{byte(analysis.ADD)},
		push1(0), []byte{byte(analysis.MSTORE)},
		push1(32), push1(0), []byte{byte(analysis.RETURN)},
	)
	s, journal := newTestSimulator()

	res, err := s.Simulate(Simulation{
		From:     testFrom,
		To:       testTo,
		GasLimit: 200_000,
		Code:     code,
	})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	want := common.LeftPadBytes([]byte{5}, 32)
	if string(res.Output) != string(want) {
		t.Fatalf("output = %x, want %x", res.Output, want)
	}
	if got := journal.GetState(testTo, common.Hash{}); got != common.BytesToHash([]byte{7}) {
		t.Fatalf("committed storage = %s, want 7", got.Hex())
	}
}

// TestSimulateBundleChainsStateAcrossTransactions runs two simulations on
// the same journal and checks the second observes the first's write.
func TestSimulateBundleChainsStateAcrossTransactions(t *testing.T) {
	// First tx: SSTORE(0, 11), STOP.
	setCode := concat(push1(11), push1(0), []byte{byte(analysis.SSTORE), byte(analysis.STOP)})
	// Second tx: SLOAD(0), PUSH1 0, MSTORE, RETURN(0, 32) — echoes back the slot.
	readCode := concat(
		push1(0), []byte{byte(analysis.SLOAD)},
		push1(0), []byte{byte(analysis.MSTORE)},
		push1(32), push1(0), []byte{byte(analysis.RETURN)},
	)
	s, journal := newTestSimulator()
	journal.CreateAccount(testTo)
	journal.SetCode(testTo, setCode, crypto.Keccak256Hash(setCode))

	results, err := s.SimulateBundle([]Simulation{
		{From: testFrom, To: testTo, GasLimit: 200_000},
		{From: testFrom, To: testTo, GasLimit: 200_000, Code: readCode},
	})
	if err != nil {
		t.Fatalf("SimulateBundle: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !results[0].Success || !results[1].Success {
		t.Fatalf("results = %+v, want both successful", results)
	}
	want := common.LeftPadBytes([]byte{11}, 32)
	if string(results[1].Output) != string(want) {
		t.Fatalf("second tx output = %x, want %x", results[1].Output, want)
	}
}

// TestSimulateLogsDoNotLeakAcrossTransactions checks that each Result only
// carries the logs its own transaction emitted, not earlier ones sharing
// the same journal.
func TestSimulateLogsDoNotLeakAcrossTransactions(t *testing.T) {
	// LOG0(0, 0); STOP — emits one zero-length log entry at this address.
	logCode := concat(push1(0), push1(0), []byte{byte(analysis.LOG0), byte(analysis.STOP)})
	s, _ := newTestSimulator()

	first, err := s.Simulate(Simulation{From: testFrom, To: testTo, GasLimit: 100_000, Code: logCode})
	if err != nil {
		t.Fatalf("first Simulate: %v", err)
	}
	if len(first.Logs) != 1 {
		t.Fatalf("first.Logs = %d entries, want 1", len(first.Logs))
	}

	second, err := s.Simulate(Simulation{From: testFrom, To: testTo, GasLimit: 100_000})
	if err != nil {
		t.Fatalf("second Simulate: %v", err)
	}
	if len(second.Logs) != 0 {
		t.Fatalf("second.Logs = %d entries, want 0 (no new logs this tx)", len(second.Logs))
	}
}

// TestSimulateCreateInstallsCode checks a CREATE-shaped simulation deploys
// code at the given address and that the deployed size matches the
// returned runtime code.
func TestSimulateCreateInstallsCode(t *testing.T) {
	// runtime: PUSH1 2; PUSH1 3; ADD; STOP
	runtime := concat(push1(2), push1(3), []byte{byte(analysis.ADD), byte(analysis.STOP)})
	// init code: PUSH1 len(runtime); DUP1; PUSH1 11 (offset of runtime
	// within initCode); PUSH1 0; CODECOPY; PUSH1 0; RETURN
	initCode := concat(
		push1(byte(len(runtime))),
		[]byte{byte(analysis.DUP1)},
		push1(11),
		push1(0),
		[]byte{byte(analysis.CODECOPY)},
		push1(0),
		[]byte{byte(analysis.RETURN)},
	)
	if len(initCode) != 11 {
		t.Fatalf("initCode head is %d bytes, want 11 so the runtime starts exactly at offset 11", len(initCode))
	}
	initCode = append(initCode, runtime...)

	s, journal := newTestSimulator()
	res, err := s.SimulateCreate(CreateSimulation{
		From:     testFrom,
		NewAddr:  testTo,
		GasLimit: 200_000,
		InitCode: initCode,
	})
	if err != nil {
		t.Fatalf("SimulateCreate: %v", err)
	}
	if !res.Success || res.CreatedAddress == nil || *res.CreatedAddress != testTo {
		t.Fatalf("result = %+v, want a successful create at %s", res, testTo.Hex())
	}
	if journal.GetCodeSize(testTo) != len(runtime) {
		t.Fatalf("deployed code size = %d, want %d", journal.GetCodeSize(testTo), len(runtime))
	}
}
