// Package simulator runs one or more transactions against a
// statejournal.Journal without touching a live chain, reusing whatever
// state an earlier simulation in the same bundle left behind.
package simulator

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gealber/evm-core/analysis"
	"github.com/gealber/evm-core/interpreter"
	"github.com/gealber/evm-core/statejournal"
	"github.com/holiman/uint256"
)

// Simulation is one transaction to run: either a CALL against an address
// already carrying code in the journal (or fork backend), or a CALL against
// Code supplied directly — useful for simulating a contract that has not
// been deployed yet without first running a CREATE for it.
type Simulation struct {
	From     common.Address
	To       common.Address
	Value    *uint256.Int
	GasLimit uint64
	GasPrice *uint256.Int
	Input    []byte
	Code     []byte // overrides To's deployed code for this simulation, if non-empty
	ReadOnly bool
}

// CreateSimulation is one CREATE/CREATE2 to run.
type CreateSimulation struct {
	From     common.Address
	NewAddr  common.Address
	Value    *uint256.Int
	GasLimit uint64
	GasPrice *uint256.Int
	InitCode []byte
}

// Result mirrors interpreter.ExecutionResult but adds the slice of logs
// this specific simulation produced, since Journal.Logs accumulates across
// every simulation run against it.
type Result struct {
	Success        bool
	Output         []byte
	GasUsed        uint64
	GasRefunded    uint64
	Logs           []statejournal.LogEntry
	RevertReason   []byte
	CreatedAddress *common.Address
	Err            error
}

// Simulator runs transactions against one journal/analysis cache, in the
// given block context, leaving every committed effect visible to the next
// simulation run against it.
type Simulator struct {
	Journal  *statejournal.Journal
	Analysis *analysis.Cache
	Block    interpreter.BlockContext
}

// NewSimulator builds a Simulator over an already-constructed journal and
// analysis cache, both expected to outlive a whole bundle.
func NewSimulator(journal *statejournal.Journal, cache *analysis.Cache, block interpreter.BlockContext) *Simulator {
	return &Simulator{Journal: journal, Analysis: cache, Block: block}
}

// Simulate runs one CALL-shaped transaction to completion, finalizing
// queued self-destructs and clearing transient storage the way a real
// block would between transactions.
func (s *Simulator) Simulate(sim Simulation) (*Result, error) {
	var prevCode []byte
	var prevHash common.Hash
	if len(sim.Code) > 0 {
		prevCode, prevHash = s.Journal.GetCode(sim.To), s.Journal.GetCodeHash(sim.To)
		s.Journal.SetCode(sim.To, sim.Code, crypto.Keccak256Hash(sim.Code))
	}

	logOffset := len(s.Journal.Logs())
	gasPrice := sim.GasPrice
	if gasPrice == nil {
		gasPrice = new(uint256.Int)
	}
	evm := interpreter.NewEVM(s.Journal, s.Analysis, s.Block, interpreter.TxContext{Origin: sim.From, GasPrice: gasPrice})
	res := evm.ExecuteCall(sim.From, sim.To, sim.Value, sim.Input, sim.GasLimit, sim.ReadOnly)
	if len(sim.Code) > 0 {
		s.Journal.SetCode(sim.To, prevCode, prevHash)
	}

	s.Journal.FinalizeTransaction()
	s.Journal.ResetTransient()

	return toResult(res, s.Journal.Logs()[logOffset:]), nil
}

// SimulateCreate runs one CREATE/CREATE2-shaped transaction to completion.
func (s *Simulator) SimulateCreate(sim CreateSimulation) (*Result, error) {
	logOffset := len(s.Journal.Logs())
	gasPrice := sim.GasPrice
	if gasPrice == nil {
		gasPrice = new(uint256.Int)
	}
	evm := interpreter.NewEVM(s.Journal, s.Analysis, s.Block, interpreter.TxContext{Origin: sim.From, GasPrice: gasPrice})
	res := evm.ExecuteCreate(sim.From, sim.NewAddr, sim.Value, sim.InitCode, sim.GasLimit, false)

	s.Journal.FinalizeTransaction()
	s.Journal.ResetTransient()

	return toResult(res, s.Journal.Logs()[logOffset:]), nil
}

// SimulateBundle runs simulations in order against the same journal, each
// one seeing every earlier one's committed state — the bundle-simulation
// shape a searcher uses to price a sequence of transactions atomically
// without broadcasting any of them. It stops early only on a
// transaction-fatal error (state backend failure or out-of-memory); an
// ordinary revert or runtime fault in one simulation is recorded in its
// Result and the bundle continues.
func (s *Simulator) SimulateBundle(sims []Simulation) ([]*Result, error) {
	results := make([]*Result, len(sims))
	for i, sim := range sims {
		res, err := s.Simulate(sim)
		if err != nil {
			return results, err
		}
		results[i] = res
		if isTransactionFatal(res.Err) {
			return results, res.Err
		}
	}
	return results, nil
}

func isTransactionFatal(err error) bool {
	if err == nil {
		return false
	}
	switch err.(type) {
	case *interpreter.ErrStateBackendFailed, *interpreter.ErrOutOfMemory:
		return true
	default:
		return false
	}
}

func toResult(res *interpreter.ExecutionResult, logs []statejournal.LogEntry) *Result {
	out := &Result{
		Success:        res.Success,
		Output:         res.Output,
		GasUsed:        res.GasUsed,
		GasRefunded:    res.GasRefunded,
		RevertReason:   res.RevertReason,
		CreatedAddress: res.CreatedAddress,
		Err:            res.Err,
	}
	if len(logs) > 0 {
		out.Logs = append([]statejournal.LogEntry{}, logs...)
	}
	return out
}
