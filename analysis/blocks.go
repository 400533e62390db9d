package analysis

// Block is a maximal run of instructions reached only by falling into its
// first instruction or jumping to it (every jump target is a JUMPDEST, and
// every JUMPDEST starts a new block). The interpreter validates
// GasCost/StackMinRequired/StackMaxGrowth once at block entry instead of
// per-instruction.
type Block struct {
	Start            int // index into Analysis.Instructions, inclusive
	End              int // exclusive
	GasCost          uint64
	StackMinRequired int
	StackMaxGrowth   int
}

// buildBlocks partitions stream into basic blocks and, for each, computes
// the minimum incoming stack depth that avoids any underflow within the
// block and the maximum stack depth reached above the block's entry depth,
// so the interpreter can bounds-check an entire block in one comparison.
func buildBlocks(stream []Instruction) []Block {
	var blocks []Block
	start := 0
	for i, in := range stream {
		isBoundaryStart := in.Kind == KindJumpDest && i != start
		if isBoundaryStart {
			blocks = append(blocks, makeBlock(stream, start, i))
			start = i
		}
		if isTerminatorOp(in.Op) {
			blocks = append(blocks, makeBlock(stream, start, i+1))
			start = i + 1
		}
	}
	if start < len(stream) {
		blocks = append(blocks, makeBlock(stream, start, len(stream)))
	}
	return blocks
}

func isTerminatorOp(op OpCode) bool {
	switch op {
	case STOP, RETURN, REVERT, INVALID, SELFDESTRUCT, JUMP, fusedPushJump:
		return true
	default:
		return false
	}
}

func makeBlock(stream []Instruction, start, end int) Block {
	b := Block{Start: start, End: end}
	stackReq := 0
	stackChange := 0
	maxChange := 0
	var gas uint64
	for _, in := range stream[start:end] {
		need := in.MinStack - stackChange
		if need > stackReq {
			stackReq = need
		}
		stackChange += in.StackDelta
		if stackChange > maxChange {
			maxChange = stackChange
		}
		gas += in.Gas
	}
	b.GasCost = gas
	b.StackMinRequired = stackReq
	if maxChange < 0 {
		maxChange = 0
	}
	b.StackMaxGrowth = maxChange
	return b
}
