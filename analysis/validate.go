package analysis

// rawInstr is one decoded opcode before peephole fusion: its opcode, its
// bytecode offset, and (for PUSH1..PUSH32) its immediate bytes.
type rawInstr struct {
	op  OpCode
	pc  int
	imm []byte
}

// decode performs the single forward pass of step 1: walk the raw
// bytecode exactly once, reject undefined opcodes and truncated PUSH
// immediates, and collect the set of valid JUMPDEST positions. PUSH
// immediate bytes are never themselves treated as opcodes, so a 0x5B byte
// embedded in push data is not a valid jump destination.
func decode(code []byte) ([]rawInstr, map[int]bool, error) {
	instrs := make([]rawInstr, 0, len(code))
	jumpdests := make(map[int]bool)

	for pc := 0; pc < len(code); {
		op := OpCode(code[pc])
		if !defined(op) {
			return nil, nil, &ErrUndefinedOpcode{PC: pc, Op: op}
		}
		if op == JUMPDEST {
			jumpdests[pc] = true
			instrs = append(instrs, rawInstr{op: op, pc: pc})
			pc++
			continue
		}
		if op.IsPush() {
			n := op.PushSize()
			end := pc + 1 + n
			if end > len(code) {
				return nil, nil, &ErrTruncatedPush{PC: pc, Want: n, Have: len(code) - pc - 1}
			}
			imm := make([]byte, n)
			copy(imm, code[pc+1:end])
			instrs = append(instrs, rawInstr{op: op, pc: pc, imm: imm})
			pc = end
			continue
		}
		instrs = append(instrs, rawInstr{op: op, pc: pc})
		pc++
	}
	return instrs, jumpdests, nil
}
