package interpreter

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gealber/evm-core/analysis"
	"github.com/gealber/evm-core/statejournal"
	"github.com/holiman/uint256"
)

// run is the trampoline dispatch loop: it walks a
// Frame's analyzed instruction stream, charging each basic block's
// precomputed gas/stack requirement once at block entry, then executing one
// instruction at a time until the frame halts.
func (e *EVM) run(frame *Frame) ([]byte, error) {
	for frame.PC < len(frame.Analysis.Instructions) {
		out, halt, err := e.StepOnce(frame)
		if err != nil {
			return nil, err
		}
		if halt {
			return out, nil
		}
	}
	// Falling off the end of the stream behaves like an implicit STOP.
	return nil, nil
}

// StepOnce executes exactly one instruction of frame, first applying
// block-entry validation and gas charging if frame.PC lands on a fresh
// basic block. It is the single primitive behind both the continuous
// run() loop and a stepping harness:
// stepping honors the same block-entry validation as continuous
// execution. An instruction that returns an error may already have popped
// operands or charged gas; the caller hands that error to Finish.
func (e *EVM) StepOnce(frame *Frame) (output []byte, halted bool, err error) {
	if frame.PC >= len(frame.Analysis.Instructions) {
		return nil, true, nil
	}
	if blk, ok := frame.Analysis.BlockStartingAt(frame.PC); ok {
		if frame.Stack.len() < blk.StackMinRequired {
			return nil, false, &ErrStackUnderflow{Have: frame.Stack.len(), Want: blk.StackMinRequired}
		}
		if frame.Stack.len()+blk.StackMaxGrowth > stackLimit {
			return nil, false, &ErrStackOverflow{Have: frame.Stack.len(), Limit: stackLimit}
		}
		if err := frame.useGas(blk.GasCost); err != nil {
			return nil, false, err
		}
	}
	in := frame.Analysis.Instructions[frame.PC]
	if e.Config.Tracer != nil && e.Config.Tracer.OnOpcode != nil {
		e.Config.Tracer.OnOpcode(in.PC, byte(in.Op), frame.Gas, frame.Depth)
	}
	out, halt, stepErr := e.step(frame, in)
	// A backend miss inside the opcode just executed (GetBalance, GetCode,
	// GetState, ...) is swallowed by the journal as a zero/not-found value
	// so ordinary opcode logic never has to check for it; pick it back up
	// here so the transaction-fatal failure still propagates.
	if stepErr == nil {
		if berr := e.Journal.Err(); berr != nil {
			stepErr = &ErrStateBackendFailed{Cause: berr}
			halt, out = false, nil
		}
	}
	if stepErr != nil && e.Config.Tracer != nil && e.Config.Tracer.OnFault != nil {
		e.Config.Tracer.OnFault(in.PC, byte(in.Op), frame.Gas, frame.Depth, stepErr)
	}
	return out, halt, stepErr
}

// step executes a single Instruction, returning (output, true, nil) if it
// terminates the frame normally, (nil, false, nil) if execution should
// continue at the (possibly jumped) frame.PC, or a non-nil error otherwise.
func (e *EVM) step(frame *Frame, in analysis.Instruction) (output []byte, halt bool, err error) {
	switch in.Kind {
	case analysis.KindPush:
		frame.Stack.push(new(uint256.Int).SetBytes(in.Imm))
		frame.PC++
		return nil, false, nil

	case analysis.KindJumpDest:
		frame.PC++
		return nil, false, nil

	case analysis.KindFusedArith:
		real, _ := in.Op.UnfusedArith()
		pushed := new(uint256.Int).SetBytes(in.Imm)
		frame.Stack.push(pushed)
		if err := e.execArith(frame, real); err != nil {
			return nil, false, err
		}
		frame.PC++
		return nil, false, nil

	case analysis.KindStaticJump:
		if in.IsConditional() {
			cond := frame.Stack.pop()
			if cond.IsZero() {
				frame.PC++
				return nil, false, nil
			}
		}
		frame.PC = in.TargetInstr
		return nil, false, nil

	case analysis.KindDynamicJump:
		target := frame.Stack.pop()
		if in.IsConditional() {
			cond := frame.Stack.pop()
			if cond.IsZero() {
				frame.PC++
				return nil, false, nil
			}
		}
		if !target.IsUint64() {
			return nil, false, &ErrInvalidJump{Target: ^uint64(0)}
		}
		idx, ok := frame.Analysis.JumpDests.Lookup(target.Uint64())
		if !ok {
			return nil, false, &ErrInvalidJump{Target: target.Uint64()}
		}
		frame.PC = idx
		return nil, false, nil

	default: // KindSimple
		return e.execSimple(frame, in)
	}
}

func (e *EVM) execSimple(frame *Frame, in analysis.Instruction) (output []byte, halt bool, err error) {
	op := in.Op
	switch {
	case isArithOp(op):
		if err := e.execArith(frame, op); err != nil {
			return nil, false, err
		}
	case isCompareBitwiseOp(op):
		if err := e.execCompareBitwise(frame, op); err != nil {
			return nil, false, err
		}
	case op == analysis.KECCAK256:
		if err := e.execKeccak256(frame); err != nil {
			return nil, false, err
		}
	case isEnvironmentOp(op):
		if err := e.execEnvironment(frame, op); err != nil {
			return nil, false, err
		}
	case isBlockInfoOp(op):
		e.execBlockInfo(frame, op)
	case isMemoryOp(op):
		if err := e.execMemory(frame, op); err != nil {
			return nil, false, err
		}
	case isStorageOp(op):
		if err := e.execStorage(frame, op); err != nil {
			return nil, false, err
		}
	case op.IsDup():
		frame.Stack.dup(op.DupDepth())
	case op.IsSwap():
		frame.Stack.swap(op.SwapDepth())
	case op == analysis.POP:
		frame.Stack.pop()
	case op == analysis.PC:
		frame.Stack.push(new(uint256.Int).SetUint64(uint64(in.PC)))
	case op == analysis.GAS:
		frame.Stack.push(new(uint256.Int).SetUint64(frame.Gas))
	case op == analysis.JUMP, op == analysis.JUMPI:
		// unreachable: buildStream always classifies these as KindDynamicJump
	case op.IsLog():
		if err := e.execLog(frame, op); err != nil {
			return nil, false, err
		}
	case op == analysis.CREATE, op == analysis.CREATE2:
		if err := e.execCreate(frame, op); err != nil {
			return nil, false, err
		}
	case op == analysis.CALL, op == analysis.CALLCODE, op == analysis.DELEGATECALL, op == analysis.STATICCALL:
		if err := e.execCall(frame, op); err != nil {
			return nil, false, err
		}
	case op == analysis.STOP:
		return nil, true, nil
	case op == analysis.RETURN:
		out, rerr := e.popReturnData(frame)
		if rerr != nil {
			return nil, false, rerr
		}
		return out, true, nil
	case op == analysis.REVERT:
		out, rerr := e.popReturnData(frame)
		if rerr != nil {
			return nil, false, rerr
		}
		frame.Output = out
		return out, false, ErrExecutionReverted
	case op == analysis.INVALID:
		return nil, false, ErrInvalidOpcode
	case op == analysis.SELFDESTRUCT:
		if err := e.execSelfdestruct(frame); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	default:
		return nil, false, ErrInvalidOpcode
	}
	frame.PC++
	return nil, false, nil
}

func (e *EVM) popReturnData(frame *Frame) ([]byte, error) {
	offset, size := frame.Stack.pop(), frame.Stack.pop()
	if size.IsZero() {
		return nil, nil
	}
	if err := e.chargeMemory(frame, offset.Uint64(), size.Uint64()); err != nil {
		return nil, err
	}
	return frame.Mem.GetSlice(offset.Uint64(), size.Uint64())
}

// chargeMemory charges the EIP-150 quadratic expansion cost of growing
// memory to cover [offset, offset+size) and ensures the capacity exists.
func (e *EVM) chargeMemory(frame *Frame, offset, size uint64) error {
	if size == 0 {
		return nil
	}
	end := offset + size
	cost, err := frame.Mem.ExpansionCost(end)
	if err != nil {
		return &ErrOutOfMemory{Cause: err}
	}
	if err := frame.useGas(cost); err != nil {
		return err
	}
	if err := frame.Mem.EnsureCapacity(wordAlign(end)); err != nil {
		return &ErrOutOfMemory{Cause: err}
	}
	return nil
}

func wordAlign(n uint64) uint64 { return toWordSize(n) * 32 }

func isArithOp(op analysis.OpCode) bool {
	switch op {
	case analysis.ADD, analysis.MUL, analysis.SUB, analysis.DIV, analysis.SDIV,
		analysis.MOD, analysis.SMOD, analysis.ADDMOD, analysis.MULMOD, analysis.EXP, analysis.SIGNEXTEND:
		return true
	}
	return false
}

func isCompareBitwiseOp(op analysis.OpCode) bool {
	switch op {
	case analysis.LT, analysis.GT, analysis.SLT, analysis.SGT, analysis.EQ, analysis.ISZERO,
		analysis.AND, analysis.OR, analysis.XOR, analysis.NOT, analysis.BYTE, analysis.SHL, analysis.SHR, analysis.SAR:
		return true
	}
	return false
}

func isEnvironmentOp(op analysis.OpCode) bool {
	switch op {
	case analysis.ADDRESS, analysis.BALANCE, analysis.ORIGIN, analysis.CALLER, analysis.CALLVALUE,
		analysis.CALLDATALOAD, analysis.CALLDATASIZE, analysis.CALLDATACOPY, analysis.CODESIZE, analysis.CODECOPY,
		analysis.GASPRICE, analysis.EXTCODESIZE, analysis.EXTCODECOPY, analysis.RETURNDATASIZE, analysis.RETURNDATACOPY,
		analysis.EXTCODEHASH, analysis.SELFBALANCE:
		return true
	}
	return false
}

func isBlockInfoOp(op analysis.OpCode) bool {
	switch op {
	case analysis.BLOCKHASH, analysis.COINBASE, analysis.TIMESTAMP, analysis.NUMBER, analysis.PREVRANDAO,
		analysis.GASLIMIT, analysis.CHAINID, analysis.BASEFEE, analysis.BLOBHASH, analysis.BLOBBASEFEE:
		return true
	}
	return false
}

func isMemoryOp(op analysis.OpCode) bool {
	switch op {
	case analysis.MLOAD, analysis.MSTORE, analysis.MSTORE8, analysis.MSIZE, analysis.MCOPY:
		return true
	}
	return false
}

func isStorageOp(op analysis.OpCode) bool {
	switch op {
	case analysis.SLOAD, analysis.SSTORE, analysis.TLOAD, analysis.TSTORE:
		return true
	}
	return false
}

// execArith handles ADD/MUL/SUB/DIV/SDIV/MOD/SMOD/ADDMOD/MULMOD/EXP/SIGNEXTEND.
// EXP is the one opcode here with its own dynamic gas component.
func (e *EVM) execArith(frame *Frame, op analysis.OpCode) error {
	switch op {
	case analysis.ADD:
		a := frame.Stack.pop()
		frame.Stack.peek(0).Add(frame.Stack.peek(0), &a)
	case analysis.MUL:
		a := frame.Stack.pop()
		frame.Stack.peek(0).Mul(frame.Stack.peek(0), &a)
	case analysis.SUB:
		a := frame.Stack.pop()
		b := *frame.Stack.peek(0)
		frame.Stack.peek(0).Sub(&a, &b)
	case analysis.DIV:
		a := frame.Stack.pop()
		frame.Stack.peek(0).Div(&a, frame.Stack.peek(0))
	case analysis.SDIV:
		a := frame.Stack.pop()
		frame.Stack.peek(0).SDiv(&a, frame.Stack.peek(0))
	case analysis.MOD:
		a := frame.Stack.pop()
		frame.Stack.peek(0).Mod(&a, frame.Stack.peek(0))
	case analysis.SMOD:
		a := frame.Stack.pop()
		frame.Stack.peek(0).SMod(&a, frame.Stack.peek(0))
	case analysis.ADDMOD:
		a, b := frame.Stack.pop(), frame.Stack.pop()
		frame.Stack.peek(0).AddMod(&a, &b, frame.Stack.peek(0))
	case analysis.MULMOD:
		a, b := frame.Stack.pop(), frame.Stack.pop()
		frame.Stack.peek(0).MulMod(&a, &b, frame.Stack.peek(0))
	case analysis.EXP:
		base := frame.Stack.pop()
		exp := frame.Stack.peek(0)
		if err := frame.useGas(expGasCost((exp.BitLen() + 7) / 8)); err != nil {
			return err
		}
		exp.Exp(&base, exp)
	case analysis.SIGNEXTEND:
		back := frame.Stack.pop()
		frame.Stack.peek(0).ExtendSign(frame.Stack.peek(0), &back)
	}
	return nil
}

func (e *EVM) execCompareBitwise(frame *Frame, op analysis.OpCode) error {
	switch op {
	case analysis.LT:
		a := frame.Stack.pop()
		setBool(frame.Stack.peek(0), a.Lt(frame.Stack.peek(0)))
	case analysis.GT:
		a := frame.Stack.pop()
		setBool(frame.Stack.peek(0), a.Gt(frame.Stack.peek(0)))
	case analysis.SLT:
		a := frame.Stack.pop()
		setBool(frame.Stack.peek(0), a.Slt(frame.Stack.peek(0)))
	case analysis.SGT:
		a := frame.Stack.pop()
		setBool(frame.Stack.peek(0), a.Sgt(frame.Stack.peek(0)))
	case analysis.EQ:
		a := frame.Stack.pop()
		setBool(frame.Stack.peek(0), a.Eq(frame.Stack.peek(0)))
	case analysis.ISZERO:
		setBool(frame.Stack.peek(0), frame.Stack.peek(0).IsZero())
	case analysis.AND:
		a := frame.Stack.pop()
		frame.Stack.peek(0).And(&a, frame.Stack.peek(0))
	case analysis.OR:
		a := frame.Stack.pop()
		frame.Stack.peek(0).Or(&a, frame.Stack.peek(0))
	case analysis.XOR:
		a := frame.Stack.pop()
		frame.Stack.peek(0).Xor(&a, frame.Stack.peek(0))
	case analysis.NOT:
		frame.Stack.peek(0).Not(frame.Stack.peek(0))
	case analysis.BYTE:
		n := frame.Stack.pop()
		frame.Stack.peek(0).Byte(&n)
	case analysis.SHL:
		shift := frame.Stack.pop()
		frame.Stack.peek(0).Lsh(frame.Stack.peek(0), uint(shiftAmount(&shift)))
	case analysis.SHR:
		shift := frame.Stack.pop()
		frame.Stack.peek(0).Rsh(frame.Stack.peek(0), uint(shiftAmount(&shift)))
	case analysis.SAR:
		shift := frame.Stack.pop()
		frame.Stack.peek(0).SRsh(frame.Stack.peek(0), uint(shiftAmount(&shift)))
	}
	return nil
}

func setBool(z *uint256.Int, b bool) {
	if b {
		z.SetOne()
	} else {
		z.Clear()
	}
}

func shiftAmount(v *uint256.Int) uint64 {
	if !v.IsUint64() || v.Uint64() > 255 {
		return 256
	}
	return v.Uint64()
}

func (e *EVM) execKeccak256(frame *Frame) error {
	offset, size := frame.Stack.pop(), frame.Stack.pop()
	if err := e.chargeMemory(frame, offset.Uint64(), size.Uint64()); err != nil {
		return err
	}
	if err := frame.useGas(keccak256Gas(size.Uint64())); err != nil {
		return err
	}
	data, err := frame.Mem.GetSlice(offset.Uint64(), size.Uint64())
	if err != nil {
		return &ErrOutOfMemory{Cause: err}
	}
	frame.Stack.push(new(uint256.Int).SetBytes(crypto.Keccak256(data)))
	return nil
}

func (e *EVM) execEnvironment(frame *Frame, op analysis.OpCode) error {
	switch op {
	case analysis.ADDRESS:
		frame.Stack.push(addressToUint256(frame.Address))
	case analysis.BALANCE:
		addr := popAddress(frame.Stack)
		wasCold := e.Journal.MarkAddressWarm(addr)
		if err := frame.useGas(warmAccountAccessCost + coldAccountSurcharge(wasCold)); err != nil {
			return err
		}
		frame.Stack.push(e.Journal.GetBalance(addr))
	case analysis.ORIGIN:
		frame.Stack.push(addressToUint256(e.Tx.Origin))
	case analysis.CALLER:
		frame.Stack.push(addressToUint256(frame.Caller))
	case analysis.CALLVALUE:
		frame.Stack.push(new(uint256.Int).Set(frame.Value))
	case analysis.CALLDATALOAD:
		off := frame.Stack.pop()
		frame.Stack.push(new(uint256.Int).SetBytes(getDataPadded(frame.Input, off.Uint64(), 32)))
	case analysis.CALLDATASIZE:
		frame.Stack.push(new(uint256.Int).SetUint64(uint64(len(frame.Input))))
	case analysis.CALLDATACOPY:
		return e.execCopy(frame, frame.Input)
	case analysis.CODESIZE:
		frame.Stack.push(new(uint256.Int).SetUint64(uint64(len(frame.Code))))
	case analysis.CODECOPY:
		return e.execCopy(frame, frame.Code)
	case analysis.GASPRICE:
		frame.Stack.push(new(uint256.Int).Set(e.Tx.GasPrice))
	case analysis.EXTCODESIZE:
		addr := popAddress(frame.Stack)
		wasCold := e.Journal.MarkAddressWarm(addr)
		if err := frame.useGas(warmAccountAccessCost + coldAccountSurcharge(wasCold)); err != nil {
			return err
		}
		frame.Stack.push(new(uint256.Int).SetUint64(uint64(e.Journal.GetCodeSize(addr))))
	case analysis.EXTCODECOPY:
		addr := popAddress(frame.Stack)
		wasCold := e.Journal.MarkAddressWarm(addr)
		if err := frame.useGas(warmAccountAccessCost + coldAccountSurcharge(wasCold)); err != nil {
			return err
		}
		return e.execCopy(frame, e.Journal.GetCode(addr))
	case analysis.RETURNDATASIZE:
		frame.Stack.push(new(uint256.Int).SetUint64(uint64(len(frame.ReturnData))))
	case analysis.RETURNDATACOPY:
		destOffset, srcOffset, size := frame.Stack.pop(), frame.Stack.pop(), frame.Stack.pop()
		if srcOffset.Uint64()+size.Uint64() > uint64(len(frame.ReturnData)) {
			return ErrReturnDataOutOfBounds
		}
		return e.finishCopy(frame, destOffset.Uint64(), size.Uint64(), frame.ReturnData[srcOffset.Uint64():srcOffset.Uint64()+size.Uint64()])
	case analysis.EXTCODEHASH:
		addr := popAddress(frame.Stack)
		wasCold := e.Journal.MarkAddressWarm(addr)
		if err := frame.useGas(warmAccountAccessCost + coldAccountSurcharge(wasCold)); err != nil {
			return err
		}
		if !e.Journal.Exist(addr) {
			frame.Stack.push(new(uint256.Int))
			return nil
		}
		frame.Stack.push(new(uint256.Int).SetBytes(e.Journal.GetCodeHash(addr).Bytes()))
	case analysis.SELFBALANCE:
		frame.Stack.push(e.Journal.GetBalance(frame.Address))
	}
	return nil
}

// execCopy implements CALLDATACOPY/CODECOPY/EXTCODECOPY's common shape:
// pop destOffset, srcOffset, size, charge memory expansion plus per-word
// copy gas, and write the zero-padded source slice.
func (e *EVM) execCopy(frame *Frame, source []byte) error {
	destOffset, srcOffset, size := frame.Stack.pop(), frame.Stack.pop(), frame.Stack.pop()
	data := getDataPadded(source, srcOffset.Uint64(), size.Uint64())
	return e.finishCopy(frame, destOffset.Uint64(), size.Uint64(), data)
}

func (e *EVM) finishCopy(frame *Frame, destOffset, size uint64, data []byte) error {
	if size == 0 {
		return nil
	}
	if err := e.chargeMemory(frame, destOffset, size); err != nil {
		return err
	}
	if err := frame.useGas(memoryCopyGas(size)); err != nil {
		return err
	}
	if err := frame.Mem.SetDataEVM(destOffset, data); err != nil {
		return &ErrOutOfMemory{Cause: err}
	}
	return nil
}

func (e *EVM) execBlockInfo(frame *Frame, op analysis.OpCode) {
	switch op {
	case analysis.BLOCKHASH:
		n := frame.Stack.pop()
		if e.Block.GetHash == nil || !n.IsUint64() {
			frame.Stack.push(new(uint256.Int))
			return
		}
		frame.Stack.push(new(uint256.Int).SetBytes(e.Block.GetHash(n.Uint64()).Bytes()))
	case analysis.COINBASE:
		frame.Stack.push(addressToUint256(e.Block.Coinbase))
	case analysis.TIMESTAMP:
		frame.Stack.push(new(uint256.Int).SetUint64(e.Block.Time))
	case analysis.NUMBER:
		frame.Stack.push(new(uint256.Int).SetUint64(e.Block.BlockNumber))
	case analysis.PREVRANDAO:
		frame.Stack.push(new(uint256.Int).SetBytes(e.Block.PrevRandao.Bytes()))
	case analysis.GASLIMIT:
		frame.Stack.push(new(uint256.Int).SetUint64(e.Block.GasLimit))
	case analysis.CHAINID:
		frame.Stack.push(new(uint256.Int).Set(e.Block.ChainID))
	case analysis.BASEFEE:
		frame.Stack.push(new(uint256.Int).Set(e.Block.BaseFee))
	case analysis.BLOBHASH:
		idx := frame.Stack.pop()
		if !idx.IsUint64() || idx.Uint64() >= uint64(len(e.Block.BlobHashes)) {
			frame.Stack.push(new(uint256.Int))
			return
		}
		frame.Stack.push(new(uint256.Int).SetBytes(e.Block.BlobHashes[idx.Uint64()].Bytes()))
	case analysis.BLOBBASEFEE:
		frame.Stack.push(new(uint256.Int).Set(e.Block.BlobBaseFee))
	}
}

func (e *EVM) execMemory(frame *Frame, op analysis.OpCode) error {
	switch op {
	case analysis.MLOAD:
		offset := frame.Stack.pop()
		if err := e.chargeMemory(frame, offset.Uint64(), 32); err != nil {
			return err
		}
		w, err := frame.Mem.GetWord(offset.Uint64())
		if err != nil {
			return &ErrOutOfMemory{Cause: err}
		}
		frame.Stack.push(w)
	case analysis.MSTORE:
		offset, val := frame.Stack.pop(), frame.Stack.pop()
		if err := e.chargeMemory(frame, offset.Uint64(), 32); err != nil {
			return err
		}
		if err := frame.Mem.SetWord(offset.Uint64(), &val); err != nil {
			return &ErrOutOfMemory{Cause: err}
		}
	case analysis.MSTORE8:
		offset, val := frame.Stack.pop(), frame.Stack.pop()
		if err := e.chargeMemory(frame, offset.Uint64(), 1); err != nil {
			return err
		}
		if err := frame.Mem.SetByte(offset.Uint64(), byte(val.Uint64())); err != nil {
			return &ErrOutOfMemory{Cause: err}
		}
	case analysis.MSIZE:
		frame.Stack.push(new(uint256.Int).SetUint64(frame.Mem.Size()))
	case analysis.MCOPY:
		destOffset, srcOffset, size := frame.Stack.pop(), frame.Stack.pop(), frame.Stack.pop()
		if size.IsZero() {
			return nil
		}
		top := destOffset.Uint64()
		if srcOffset.Uint64() > top {
			top = srcOffset.Uint64()
		}
		if err := e.chargeMemory(frame, top, size.Uint64()); err != nil {
			return err
		}
		if err := frame.useGas(memoryCopyGas(size.Uint64())); err != nil {
			return err
		}
		src, err := frame.Mem.GetSlice(srcOffset.Uint64(), size.Uint64())
		if err != nil {
			return &ErrOutOfMemory{Cause: err}
		}
		buf := append([]byte(nil), src...)
		if err := frame.Mem.SetData(destOffset.Uint64(), buf); err != nil {
			return &ErrOutOfMemory{Cause: err}
		}
	}
	return nil
}

func (e *EVM) execStorage(frame *Frame, op analysis.OpCode) error {
	switch op {
	case analysis.SLOAD:
		slot := common.Hash(frame.Stack.peek(0).Bytes32())
		wasCold := e.Journal.MarkSlotWarm(frame.Address, slot)
		if err := frame.useGas(warmStorageReadCost + coldSlotSurcharge(wasCold)); err != nil {
			return err
		}
		val := e.Journal.GetState(frame.Address, slot)
		frame.Stack.peek(0).SetBytes(val.Bytes())
	case analysis.SSTORE:
		if frame.ReadOnly {
			return ErrWriteProtection
		}
		if frame.Gas <= sstoreSentryGas {
			return ErrOutOfGas
		}
		key, val := frame.Stack.pop(), frame.Stack.pop()
		slot := common.Hash(key.Bytes32())
		wasCold := e.Journal.MarkSlotWarm(frame.Address, slot)
		current := e.Journal.GetState(frame.Address, slot)
		original := frame.originalSlotValue(slot, current)
		gas, refundDelta := sstoreGas(current, original, common.Hash(val.Bytes32()))
		gas += coldSlotSurcharge(wasCold)
		if err := frame.useGas(gas); err != nil {
			return err
		}
		if refundDelta > 0 {
			e.Journal.AddRefund(uint64(refundDelta))
		} else if refundDelta < 0 {
			e.Journal.SubRefund(uint64(-refundDelta))
		}
		e.Journal.SetState(frame.Address, slot, common.Hash(val.Bytes32()))
	case analysis.TLOAD:
		slot := common.Hash(frame.Stack.peek(0).Bytes32())
		val := e.Journal.GetTransientState(frame.Address, slot)
		frame.Stack.peek(0).SetBytes(val.Bytes())
	case analysis.TSTORE:
		if frame.ReadOnly {
			return ErrWriteProtection
		}
		key, val := frame.Stack.pop(), frame.Stack.pop()
		e.Journal.SetTransientState(frame.Address, common.Hash(key.Bytes32()), common.Hash(val.Bytes32()))
	}
	return nil
}

func (e *EVM) execLog(frame *Frame, op analysis.OpCode) error {
	if frame.ReadOnly {
		return ErrWriteProtection
	}
	n := op.LogTopics()
	offset, size := frame.Stack.pop(), frame.Stack.pop()
	topics := make([]common.Hash, n)
	for i := 0; i < n; i++ {
		t := frame.Stack.pop()
		topics[i] = common.Hash(t.Bytes32())
	}
	if err := e.chargeMemory(frame, offset.Uint64(), size.Uint64()); err != nil {
		return err
	}
	if err := frame.useGas(logGasCost(n, size.Uint64())); err != nil {
		return err
	}
	data, err := frame.Mem.GetSlice(offset.Uint64(), size.Uint64())
	if err != nil {
		return &ErrOutOfMemory{Cause: err}
	}
	e.Journal.AppendLog(statejournal.LogEntry{Address: frame.Address, Topics: topics, Data: append([]byte(nil), data...)})
	return nil
}

func (e *EVM) execCreate(frame *Frame, op analysis.OpCode) error {
	if frame.ReadOnly {
		return ErrWriteProtection
	}
	value, offset, size := frame.Stack.pop(), frame.Stack.pop(), frame.Stack.pop()
	var salt uint256.Int
	if op == analysis.CREATE2 {
		salt = frame.Stack.pop()
	}
	if size.Uint64() > maxInitCodeSize {
		return ErrMaxCodeSizeExceeded
	}
	if err := e.chargeMemory(frame, offset.Uint64(), size.Uint64()); err != nil {
		return err
	}
	if err := frame.useGas(initCodeWordCost(size.Uint64())); err != nil {
		return err
	}
	if op == analysis.CREATE2 {
		if err := frame.useGas(keccak256Gas(size.Uint64())); err != nil {
			return err
		}
	}
	initCode, err := frame.Mem.GetSlice(offset.Uint64(), size.Uint64())
	if err != nil {
		return &ErrOutOfMemory{Cause: err}
	}
	initCode = append([]byte(nil), initCode...)

	childGas := callGas(frame.Gas, frame.Gas)
	if err := frame.useGas(childGas); err != nil {
		return err
	}

	var newAddr common.Address
	if op == analysis.CREATE2 {
		newAddr = create2Address(frame.Address, salt, initCode)
	} else {
		newAddr = createAddress(frame.Address, e.Journal.GetNonce(frame.Address))
	}
	e.Journal.SetNonce(frame.Address, e.Journal.GetNonce(frame.Address)+1)

	result := e.ExecuteCreate(frame.Address, newAddr, &value, initCode, childGas, frame.ReadOnly)
	if oom, ok := asOutOfMemory(result.Err); ok {
		return oom
	}
	frame.refundGas(childGas - result.GasUsed)
	frame.ReturnData = result.Output
	if !result.Success {
		frame.Stack.push(new(uint256.Int))
		return nil
	}
	frame.Stack.push(addressToUint256(newAddr))
	return nil
}

func (e *EVM) execCall(frame *Frame, op analysis.OpCode) error {
	gasArg := frame.Stack.pop()
	addr := popAddress(frame.Stack)
	var value uint256.Int
	if op == analysis.CALL || op == analysis.CALLCODE {
		value = frame.Stack.pop()
	}
	argsOffset, argsSize := frame.Stack.pop(), frame.Stack.pop()
	retOffset, retSize := frame.Stack.pop(), frame.Stack.pop()

	if (op == analysis.CALL) && frame.ReadOnly && !value.IsZero() {
		return ErrWriteProtection
	}
	// CALLCODE's value "transfer" is always self-to-self (it runs foreign
	// code against the caller's own storage), so it never moves balance, but
	// it must still fail like any other insufficient-balance transfer would.
	if op == analysis.CALLCODE && !value.IsZero() && e.Journal.GetBalance(frame.Address).Lt(&value) {
		frame.Stack.push(new(uint256.Int))
		return nil
	}

	wasCold := e.Journal.MarkAddressWarm(addr)
	if err := e.chargeMemory(frame, argsOffset.Uint64(), argsSize.Uint64()); err != nil {
		return err
	}
	if err := e.chargeMemory(frame, retOffset.Uint64(), retSize.Uint64()); err != nil {
		return err
	}
	base := warmAccountAccessCost + coldAccountSurcharge(wasCold)
	if !value.IsZero() {
		base += callValueTransferGas
		if !e.Journal.Exist(addr) {
			base += callNewAccountGas
		}
	}
	if err := frame.useGas(base); err != nil {
		return err
	}

	childGas := callGas(frame.Gas, gasArg.Uint64())
	if err := frame.useGas(childGas); err != nil {
		return err
	}
	// EIP-150: a non-zero value transfer gets a 2300 gas stipend on top of
	// whatever the caller forwarded, funded by the call itself, not the caller.
	if !value.IsZero() {
		childGas += 2300
	}

	args, err := frame.Mem.GetSlice(argsOffset.Uint64(), argsSize.Uint64())
	if err != nil {
		return &ErrOutOfMemory{Cause: err}
	}
	args = append([]byte(nil), args...)

	var result *ExecutionResult
	readOnly := frame.ReadOnly || op == analysis.STATICCALL
	switch op {
	case analysis.CALL:
		result = e.ExecuteCall(frame.Address, addr, &value, args, childGas, readOnly)
	case analysis.STATICCALL:
		result = e.ExecuteCall(frame.Address, addr, new(uint256.Int), args, childGas, true)
	case analysis.CALLCODE:
		result = e.ExecuteDelegateCall(frame.Address, frame.Address, addr, &value, args, childGas, readOnly)
	case analysis.DELEGATECALL:
		result = e.ExecuteDelegateCall(frame.Caller, frame.Address, addr, frame.Value, args, childGas, frame.ReadOnly)
	}
	if oom, ok := asOutOfMemory(result.Err); ok {
		return oom
	}

	frame.refundGas(childGas - result.GasUsed)
	frame.ReturnData = result.Output
	if retSize.Uint64() > 0 {
		n := retSize.Uint64()
		if uint64(len(result.Output)) < n {
			n = uint64(len(result.Output))
		}
		if err := frame.Mem.SetData(retOffset.Uint64(), result.Output[:n]); err != nil {
			return &ErrOutOfMemory{Cause: err}
		}
	}
	success := new(uint256.Int)
	setBool(success, result.Success)
	frame.Stack.push(success)
	return nil
}

func (e *EVM) execSelfdestruct(frame *Frame) error {
	if frame.ReadOnly {
		return ErrWriteProtection
	}
	beneficiary := popAddress(frame.Stack)
	wasCold := e.Journal.MarkAddressWarm(beneficiary)
	balance := e.Journal.GetBalance(frame.Address)
	gas := selfdestructGasEIP150 + coldAccountSurcharge(wasCold)
	if !e.Journal.Exist(beneficiary) && !balance.IsZero() {
		gas += createBySelfdestructGas
	}
	if err := frame.useGas(gas); err != nil {
		return err
	}
	e.Journal.AddBalance(beneficiary, balance)
	e.Journal.SetBalance(frame.Address, new(uint256.Int))
	e.Journal.QueueSelfDestruct(frame.Address, beneficiary)
	return nil
}

func popAddress(s *Stack) common.Address {
	v := s.pop()
	b := v.Bytes20()
	return common.Address(b)
}

func addressToUint256(addr common.Address) *uint256.Int {
	return new(uint256.Int).SetBytes(addr.Bytes())
}

// getDataPadded returns data[offset:offset+size], right-padded with zero
// bytes if the requested range runs past the end of data (or starts past
// its end entirely) — the EVM semantics shared by CALLDATALOAD/
// CALLDATACOPY/CODECOPY/EXTCODECOPY.
func getDataPadded(data []byte, offset, size uint64) []byte {
	out := make([]byte, size)
	if offset >= uint64(len(data)) {
		return out
	}
	end := offset + size
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	copy(out, data[offset:end])
	return out
}

func createAddress(sender common.Address, nonce uint64) common.Address {
	data := rlpEncodeCreateAddress(sender, nonce)
	return common.BytesToAddress(crypto.Keccak256(data)[12:])
}

func create2Address(sender common.Address, salt uint256.Int, initCode []byte) common.Address {
	saltBytes := salt.Bytes32()
	codeHash := crypto.Keccak256(initCode)
	buf := make([]byte, 0, 1+20+32+32)
	buf = append(buf, 0xff)
	buf = append(buf, sender.Bytes()...)
	buf = append(buf, saltBytes[:]...)
	buf = append(buf, codeHash...)
	return common.BytesToAddress(crypto.Keccak256(buf)[12:])
}

// rlpEncodeCreateAddress RLP-encodes the (sender, nonce) pair CREATE hashes
// to derive its new address, hand-rolled because only the two-element,
// byte-string/uint forms are ever needed here.
func rlpEncodeCreateAddress(sender common.Address, nonce uint64) []byte {
	nonceBytes := uint64ToMinimalBigEndian(nonce)
	senderItem := rlpEncodeString(sender.Bytes())
	nonceItem := rlpEncodeString(nonceBytes)
	payload := append(append([]byte{}, senderItem...), nonceItem...)
	return append(rlpEncodeListHeader(len(payload)), payload...)
}

func uint64ToMinimalBigEndian(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	i := 0
	for i < 8 && b[i] == 0 {
		i++
	}
	return b[i:]
}

func rlpEncodeString(s []byte) []byte {
	if len(s) == 1 && s[0] < 0x80 {
		return s
	}
	if len(s) < 56 {
		return append([]byte{0x80 + byte(len(s))}, s...)
	}
	lenBytes := uint64ToMinimalBigEndian(uint64(len(s)))
	return append(append([]byte{0xb7 + byte(len(lenBytes))}, lenBytes...), s...)
}

func rlpEncodeListHeader(payloadLen int) []byte {
	if payloadLen < 56 {
		return []byte{0xc0 + byte(payloadLen)}
	}
	lenBytes := uint64ToMinimalBigEndian(uint64(payloadLen))
	return append([]byte{0xf7 + byte(len(lenBytes))}, lenBytes...)
}
