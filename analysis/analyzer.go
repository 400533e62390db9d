package analysis

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
)

// CodeKind distinguishes the two size limits contract bytecode is subject
// to: EIP-170 bounds deployed runtime code, EIP-3860 bounds CREATE/CREATE2
// init code.
type CodeKind int

const (
	RuntimeCode CodeKind = iota
	InitCode
)

// Analysis is the immutable, cacheable result of analyzing one code blob.
// It is safe to share across concurrent executions of the same contract:
// nothing in it is mutated after Analyze returns.
type Analysis struct {
	CodeHash     common.Hash
	Code         []byte
	Instructions []Instruction
	Blocks       []Block
	blockAtStart map[int]int // instruction index (must be a block Start) -> Blocks index
	JumpDests    JumpDestTable
}

// BlockStartingAt returns the block beginning at instruction index idx. idx
// must be the Start of some block (true for index 0 and for every JUMPDEST,
// which are the only valid jump targets).
func (a *Analysis) BlockStartingAt(idx int) (*Block, bool) {
	bi, ok := a.blockAtStart[idx]
	if !ok {
		return nil, false
	}
	return &a.Blocks[bi], true
}

// Analyze performs the single-pass structural validation, basic-block
// computation, instruction-stream encoding with peephole fusion, and
// jump-destination indexing this package implements. It does not consult
// or populate a cache; callers wanting a content-addressed cache should go
// through a Cache instead.
func Analyze(code []byte, kind CodeKind) (*Analysis, error) {
	limit := params.MaxCodeSize
	if kind == InitCode {
		limit = params.MaxInitCodeSize
	}
	if len(code) > limit {
		return nil, &ErrCodeTooLarge{Size: len(code), Limit: limit}
	}
	if kind == RuntimeCode && len(code) > 0 && code[0] == 0xEF {
		return nil, &ErrReservedCodePrefix{}
	}

	raws, jumpdests, err := decode(code)
	if err != nil {
		return nil, err
	}
	stream, pcToIndex, err := buildStream(raws, jumpdests)
	if err != nil {
		return nil, err
	}
	blocks := buildBlocks(stream)

	blockAtStart := make(map[int]int, len(blocks))
	for i, b := range blocks {
		blockAtStart[b.Start] = i
	}

	return &Analysis{
		CodeHash:     crypto.Keccak256Hash(code),
		Code:         code,
		Instructions: stream,
		Blocks:       blocks,
		blockAtStart: blockAtStart,
		JumpDests:    newJumpDestTable(pcToIndex, jumpdests),
	}, nil
}
