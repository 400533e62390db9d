package interpreter

import "github.com/ethereum/go-ethereum/params"

// Gas schedule constants not already covered by analysis's static
// per-instruction table, following the EIP-2929/3529/150/3860 gas rules.
const (
	coldAccountAccessCost = 2600
	warmAccountAccessCost = 100
	coldSloadCost         = 2100
	warmStorageReadCost   = 100

	callValueTransferGas = 9000
	callNewAccountGas    = 25000
	createBySelfdestructGas = 25000
	selfdestructGasEIP150   = 5000

	sstoreSentryGas = 2300 // EIP-2200: SSTORE must fail if remaining gas is at or below this
	sloadGasEIP2200 = 800
	sstoreSetGas    = 20000
	sstoreResetGas  = 5000
	sstoreClearsScheduleRefundEIP3529 = 4800 // EIP-3529 shrank the old 15000 refund

	keccak256WordGas = 6
	copyGas          = 3
	logGas           = 375
	logTopicGas      = 375
	logDataGas       = 8
	expGas           = 10
	expByteGas       = 50 // post-EIP-158 per-byte cost of the exponent
	initCodeWordGas  = 2  // EIP-3860
)

// callGas implements the EIP-150 "63/64 rule": a CALL-family opcode may only
// forward all but one sixty-fourth of the gas remaining after its own
// static/dynamic cost has been deducted. requestedGas is whatever the stack
// asked for (may be far larger than available, or may overflow).
func callGas(availableAfterBaseCost uint64, requestedGas uint64) uint64 {
	capped := availableAfterBaseCost - availableAfterBaseCost/64
	if requestedGas > capped {
		return capped
	}
	return requestedGas
}

// coldAccountSurcharge returns the EIP-2929 surcharge for a cold account
// access on top of the warmAccountAccessCost baseline the caller charges
// separately, and nothing when wasCold is false (the baseline alone already
// covers a warm access).
func coldAccountSurcharge(wasCold bool) uint64 {
	if wasCold {
		return coldAccountAccessCost - warmAccountAccessCost
	}
	return 0
}

// coldSlotSurcharge is coldAccountSurcharge's storage-slot counterpart, used
// both as SLOAD's surcharge on top of warmStorageReadCost and as SSTORE's
// surcharge on top of sstoreGas's own net-metered base (which already prices
// a warm access, so SSTORE must not add the baseline a second time).
func coldSlotSurcharge(wasCold bool) uint64 {
	if wasCold {
		return coldSloadCost - warmStorageReadCost
	}
	return 0
}

// sstoreGas implements the EIP-2200/EIP-3529 net-metered SSTORE gas and
// refund rules. current is the value presently in the slot, original is the
// value the slot held at the start of the transaction (before any writes in
// it), and value is what is being written now.
func sstoreGas(current, original, value [32]byte) (gas uint64, refundDelta int64) {
	var zero [32]byte
	if current == value {
		return sloadGasEIP2200, 0
	}
	if original == current {
		if original == zero {
			return sstoreSetGas, 0
		}
		if value == zero {
			return sstoreResetGas, int64(sstoreClearsScheduleRefundEIP3529)
		}
		return sstoreResetGas, 0
	}
	// Dirty slot: already paid full price once this transaction: charge only
	// the warm-read cost now, and true up any refund already granted/owed.
	if original != zero {
		if current == zero {
			refundDelta -= int64(sstoreClearsScheduleRefundEIP3529)
		} else if value == zero {
			refundDelta += int64(sstoreClearsScheduleRefundEIP3529)
		}
	}
	if original == value {
		if original == zero {
			refundDelta += int64(sstoreSetGas - sloadGasEIP2200)
		} else {
			refundDelta += int64(sstoreResetGas - sloadGasEIP2200)
		}
	}
	return sloadGasEIP2200, refundDelta
}

// memoryCopyGas is the dynamic per-word cost of CALLDATACOPY/CODECOPY/
// EXTCODECOPY/RETURNDATACOPY/MCOPY, excluding memory expansion (charged
// separately through memstore.View.ExpansionCost).
func memoryCopyGas(sizeBytes uint64) uint64 {
	return toWordSize(sizeBytes) * copyGas
}

func keccak256Gas(sizeBytes uint64) uint64 {
	return toWordSize(sizeBytes) * keccak256WordGas
}

func logGasCost(topics int, dataSize uint64) uint64 {
	return logGas + uint64(topics)*logTopicGas + dataSize*logDataGas
}

// expGasCost charges expByteGas per significant byte of the exponent, on
// top of EXP's constant base (already carried in analysis's static table).
func expGasCost(exponentByteLen int) uint64 {
	return uint64(exponentByteLen) * expByteGas
}

// initCodeWordCost is EIP-3860's per-word surcharge CREATE/CREATE2 pay for
// the init code they are about to run, in addition to its own hashing cost
// for CREATE2.
func initCodeWordCost(sizeBytes uint64) uint64 {
	return toWordSize(sizeBytes) * initCodeWordGas
}

func toWordSize(size uint64) uint64 { return (size + 31) / 32 }

// maxCodeSize/maxInitCodeSize re-export analysis's size limits (EIP-170/
// EIP-3860) so the interpreter's CREATE/CREATE2 handlers do not need their
// own import of go-ethereum/params for the same two constants.
var (
	maxCodeSize     = params.MaxCodeSize
	maxInitCodeSize = params.MaxInitCodeSize
)
