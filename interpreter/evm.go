package interpreter

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gealber/evm-core/analysis"
	"github.com/gealber/evm-core/hostcrypto"
	"github.com/gealber/evm-core/memstore"
	"github.com/gealber/evm-core/statejournal"
	"github.com/holiman/uint256"
)

// maxCallDepth is the 1024-frame call stack limit CALL/CREATE enforce.
const maxCallDepth = 1024

// BlockContext carries the block-scoped environment values opcodes like
// COINBASE/TIMESTAMP/NUMBER/PREVRANDAO/GASLIMIT/CHAINID/BASEFEE/BLOBHASH/
// BLOBBASEFEE read; it does not change across the whole transaction.
type BlockContext struct {
	Coinbase    common.Address
	GasLimit    uint64
	BlockNumber uint64
	Time        uint64
	PrevRandao  common.Hash
	ChainID     *uint256.Int
	BaseFee     *uint256.Int
	BlobBaseFee *uint256.Int
	BlobHashes  []common.Hash
	GetHash     func(blockNumber uint64) common.Hash
}

// TxContext carries the transaction-scoped environment values ORIGIN and
// GASPRICE read.
type TxContext struct {
	Origin   common.Address
	GasPrice *uint256.Int
}

// EVM is the top-level orchestrator: it wires the
// analyzed-code cache, the state journal, and memory views together and
// drives CALL/CREATE at the top of a call tree and recursively within it.
type EVM struct {
	Journal  *statejournal.Journal
	Analysis *analysis.Cache
	Block    BlockContext
	Tx       TxContext
	Config   Config

	depth int
}

// NewEVM builds an orchestrator over an already-constructed journal and
// analysis cache; both are expected to outlive a single transaction so
// repeated calls reuse their caches. It runs with memstore's default
// memory limit (memstore.DefaultLimit, about 16 MiB) and the latest
// hardfork rules; use NewEVMWithConfig to override either.
func NewEVM(journal *statejournal.Journal, cache *analysis.Cache, block BlockContext, tx TxContext) *EVM {
	var cfg Config
	SetDefaults(&cfg)
	return &EVM{Journal: journal, Analysis: cache, Block: block, Tx: tx, Config: cfg}
}

// NewEVMWithConfig builds an orchestrator the way NewEVM does, but applies
// cfg instead of the package defaults; any zero field in cfg is still
// filled in by SetDefaults.
func NewEVMWithConfig(journal *statejournal.Journal, cache *analysis.Cache, block BlockContext, tx TxContext, cfg Config) *EVM {
	SetDefaults(&cfg)
	return &EVM{Journal: journal, Analysis: cache, Block: block, Tx: tx, Config: cfg}
}

// backendFailure reports a backend error recorded on the journal outside
// the per-instruction StepOnce path (the balance/collision checks CALL and
// CREATE make before a frame even exists).
func (e *EVM) backendFailure() (*ExecutionResult, bool) {
	if berr := e.Journal.Err(); berr != nil {
		return &ExecutionResult{Success: false, Err: &ErrStateBackendFailed{Cause: berr}}, true
	}
	return nil, false
}

func (e *EVM) newMemoryView() *memstore.View {
	if e.Config.MemoryLimit == 0 || e.Config.MemoryLimit == ^uint64(0) {
		return memstore.NewView()
	}
	return memstore.NewViewWithLimit(e.Config.MemoryLimit)
}

// ExecuteCall runs a CALL-family invocation: the code already deployed at
// addr, executing in the context of account addr, called by caller.
func (e *EVM) ExecuteCall(caller, addr common.Address, value *uint256.Int, input []byte, gasLimit uint64, readOnly bool) *ExecutionResult {
	return e.call(caller, addr, addr, value, input, gasLimit, readOnly, false)
}

// ExecuteDelegateCall runs codeAddr's code as if it were addr's own: Address
// stays addr (storage/balance context), CodeAddr becomes codeAddr, and value
// transfer never happens (DELEGATECALL forwards the parent's CALLVALUE).
func (e *EVM) ExecuteDelegateCall(caller, addr, codeAddr common.Address, value *uint256.Int, input []byte, gasLimit uint64, readOnly bool) *ExecutionResult {
	return e.call(caller, addr, codeAddr, value, input, gasLimit, readOnly, true)
}

func (e *EVM) call(caller, addr, codeAddr common.Address, value *uint256.Int, input []byte, gasLimit uint64, readOnly, isDelegate bool) *ExecutionResult {
	if e.depth > maxCallDepth {
		return &ExecutionResult{Success: false, Err: ErrDepth}
	}
	if p, ok := hostcrypto.Lookup(codeAddr); ok {
		return e.runPrecompile(p, input, gasLimit, caller, addr, value, isDelegate)
	}

	checkpoint := e.Journal.Checkpoint()
	if !isDelegate && value != nil && !value.IsZero() {
		insufficient := e.Journal.GetBalance(caller).Lt(value)
		if res, failed := e.backendFailure(); failed {
			return res
		}
		if insufficient {
			return &ExecutionResult{Success: false, Err: ErrInsufficientBalance}
		}
		e.Journal.SubBalance(caller, value)
		e.Journal.AddBalance(addr, value)
	}

	code := e.Journal.GetCode(codeAddr)
	if res, failed := e.backendFailure(); failed {
		return res
	}
	if len(code) == 0 {
		e.Journal.Commit(checkpoint)
		return &ExecutionResult{Success: true, GasUsed: 0, Output: nil}
	}
	an, err := e.Analysis.Get(code, analysis.RuntimeCode)
	if err != nil {
		e.Journal.Revert(checkpoint)
		return &ExecutionResult{Success: false, Err: err}
	}

	mem := e.newMemoryView()
	v := value
	if v == nil {
		v = new(uint256.Int)
	}
	frame := NewFrame(an, mem, gasLimit, caller, addr, e.Tx.Origin, codeAddr, v, input, e.depth, readOnly, checkpoint)

	e.depth++
	out, err := e.run(frame)
	e.depth--

	return e.Finish(frame, out, err, checkpoint, nil)
}

// ExecuteCreate runs CREATE/CREATE2's init code and, on success, installs
// the returned bytes as the new account's runtime code.
func (e *EVM) ExecuteCreate(caller common.Address, newAddr common.Address, value *uint256.Int, initCode []byte, gasLimit uint64, readOnly bool) *ExecutionResult {
	if e.depth > maxCallDepth {
		return &ExecutionResult{Success: false, Err: ErrDepth}
	}
	checkpoint := e.Journal.Checkpoint()

	collision := e.Journal.Exist(newAddr) && (e.Journal.GetNonce(newAddr) != 0 || e.Journal.GetCodeSize(newAddr) != 0)
	if res, failed := e.backendFailure(); failed {
		e.Journal.Revert(checkpoint)
		return res
	}
	if collision {
		e.Journal.Revert(checkpoint)
		return &ExecutionResult{Success: false, Err: ErrContractAddressCollision}
	}
	if value != nil && !value.IsZero() {
		insufficient := e.Journal.GetBalance(caller).Lt(value)
		if res, failed := e.backendFailure(); failed {
			e.Journal.Revert(checkpoint)
			return res
		}
		if insufficient {
			e.Journal.Revert(checkpoint)
			return &ExecutionResult{Success: false, Err: ErrInsufficientBalance}
		}
	}

	e.Journal.CreateAccount(newAddr)
	e.Journal.SetNonce(newAddr, 1)
	v := value
	if v == nil {
		v = new(uint256.Int)
	}
	if !v.IsZero() {
		e.Journal.SubBalance(caller, v)
		e.Journal.AddBalance(newAddr, v)
	}

	an, err := e.Analysis.Get(initCode, analysis.InitCode)
	if err != nil {
		e.Journal.Revert(checkpoint)
		return &ExecutionResult{Success: false, Err: err}
	}

	mem := e.newMemoryView()
	frame := NewFrame(an, mem, gasLimit, caller, newAddr, e.Tx.Origin, newAddr, v, nil, e.depth, readOnly, checkpoint)

	e.depth++
	out, err := e.run(frame)
	e.depth--

	return e.Finish(frame, out, err, checkpoint, &newAddr)
}

// Finish folds a completed frame's outcome into an ExecutionResult,
// charging the EIP-170/3860 code-deposit cost for a successful CREATE and
// reverting the whole frame on any runtime-consuming/runtime-preserving
// error.
func (e *EVM) Finish(frame *Frame, out []byte, err error, checkpoint int, createdAddr *common.Address) *ExecutionResult {
	if be, ok := asStateBackendFailed(err); ok {
		return &ExecutionResult{Success: false, Err: be}
	}
	if oom, ok := asOutOfMemory(err); ok {
		return &ExecutionResult{Success: false, Err: oom}
	}

	// ErrExecutionReverted is runtime-preserving: the frame's unspent gas
	// (frame.Gas) goes back to the caller, so only the spent portion counts
	// as GasUsed.
	if err == ErrExecutionReverted {
		e.Journal.Revert(checkpoint)
		return &ExecutionResult{Success: false, GasUsed: frame.GasLimit - frame.Gas, Output: out, RevertReason: out, Err: err}
	}
	// Every other error reaching here came out of run() itself, meaning it
	// is one of the runtime-consuming errors: the whole frame's
	// gas is burned, none of it returns to the caller.
	if err != nil {
		e.Journal.Revert(checkpoint)
		return &ExecutionResult{Success: false, GasUsed: frame.GasLimit, Err: err}
	}

	if createdAddr != nil {
		if uint64(len(out)) > maxCodeSize {
			// Runtime-preserving: oversized deployed code fails the create
			// without charging the deposit, but does not burn the frame's
			// remaining gas either.
			e.Journal.Revert(checkpoint)
			return &ExecutionResult{Success: false, GasUsed: frame.GasLimit - frame.Gas, Err: ErrMaxCodeSizeExceeded}
		}
		depositCost := uint64(len(out)) * 200
		if depositErr := frame.useGas(depositCost); depositErr != nil {
			e.Journal.Revert(checkpoint)
			return &ExecutionResult{Success: false, GasUsed: frame.GasLimit, Err: ErrCodeStoreOutOfGas}
		}
		e.Journal.SetCode(*createdAddr, out, crypto.Keccak256Hash(out))
	}

	e.Journal.Commit(checkpoint)
	refund := applyRefundCap(frame.GasLimit-frame.Gas, e.Journal.GetRefund())
	return &ExecutionResult{
		Success:        true,
		GasUsed:        frame.GasLimit - frame.Gas,
		GasRefunded:    refund,
		Output:         out,
		Logs:           e.Journal.Logs(),
		CreatedAddress: createdAddr,
	}
}

func (e *EVM) runPrecompile(p hostcrypto.Precompile, input []byte, gasLimit uint64, caller, addr common.Address, value *uint256.Int, isDelegate bool) *ExecutionResult {
	gas := p.RequiredGas(input)
	if gas > gasLimit {
		return &ExecutionResult{Success: false, GasUsed: gasLimit, Err: ErrOutOfGas}
	}
	checkpoint := e.Journal.Checkpoint()
	if !isDelegate && value != nil && !value.IsZero() {
		e.Journal.SubBalance(caller, value)
		e.Journal.AddBalance(addr, value)
		if res, failed := e.backendFailure(); failed {
			e.Journal.Revert(checkpoint)
			return res
		}
	}
	out, err := p.Run(input)
	if err != nil {
		e.Journal.Revert(checkpoint)
		return &ExecutionResult{Success: false, GasUsed: gasLimit, Err: err}
	}
	e.Journal.Commit(checkpoint)
	return &ExecutionResult{Success: true, GasUsed: gas, Output: out}
}

func asStateBackendFailed(err error) (*ErrStateBackendFailed, bool) {
	e, ok := err.(*ErrStateBackendFailed)
	return e, ok
}

func asOutOfMemory(err error) (*ErrOutOfMemory, bool) {
	e, ok := err.(*ErrOutOfMemory)
	return e, ok
}
