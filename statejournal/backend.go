package statejournal

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrRpcPending is surfaced by a StateBackend that drives reads
// asynchronously: the host is expected to complete request ID and have the
// caller retry.
type ErrRpcPending struct {
	RequestID uint64
}

func (e *ErrRpcPending) Error() string { return "state backend request pending" }

// ErrRpcFailed marks a hard backend failure. It is transaction-fatal: this
// and OutOfMemory are the only two errors that ever bubble past a frame
// boundary.
type ErrRpcFailed struct {
	Cause error
}

func (e *ErrRpcFailed) Error() string { return "state backend request failed: " + e.Cause.Error() }
func (e *ErrRpcFailed) Unwrap() error { return e.Cause }

// ErrInvalidSnapshot is returned by RevertToSnapshot for an id that was
// never issued, or one issued before a revert that already discarded it.
var ErrInvalidSnapshot = errors.New("invalid or already-reverted snapshot id")

// BackendAccount is the subset of account data a fork backend can supply.
type BackendAccount struct {
	Nonce    uint64
	Balance  *uint256.Int
	CodeHash common.Hash
}

// Backend is the read-only state/fork interface consulted on a cache miss.
// The journal caches what a successful call returns, except an account
// reported absent (nil) or nil code, which are asked for again on the next
// miss, as is any key whose read failed. The journal treats every error,
// ErrRpcPending included, as the sticky failure Journal.Err reports; it
// does not retry a pending read.
type Backend interface {
	GetAccount(addr common.Address) (*BackendAccount, error)
	GetStorage(addr common.Address, slot common.Hash) (common.Hash, error)
	GetCode(addr common.Address) ([]byte, error)
}
