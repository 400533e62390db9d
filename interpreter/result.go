package interpreter

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gealber/evm-core/statejournal"
)

// ExecutionResult is the outcome of one top-level ExecuteCall/ExecuteCreate
//: everything a caller needs to know without reaching
// back into the journal.
type ExecutionResult struct {
	Success        bool
	GasUsed        uint64
	GasRefunded    uint64
	Output         []byte
	Logs           []statejournal.LogEntry
	CreatedAddress *common.Address // non-nil only for a successful CREATE/CREATE2
	RevertReason   []byte          // the REVERT payload, if Success is false because of one
	Err            error           // non-nil on any failure (ErrExecutionReverted for a REVERT)
}

// applyRefundCap enforces EIP-3529: the refund paid out can never exceed
// gasUsed/5.
func applyRefundCap(gasUsed, refund uint64) uint64 {
	cap := gasUsed / 5
	if refund > cap {
		return cap
	}
	return refund
}
