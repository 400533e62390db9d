package analysis

import "sort"

// JumpDestTable is the sorted table of valid jump destinations, used to resolve a dynamic JUMP/JUMPI's
// stack-computed target at runtime via binary search instead of a linear
// scan or a hash lookup.
type JumpDestTable struct {
	pcs     []int // sorted ascending
	indices []int // indices[i] is the Instructions index for pcs[i]
}

func newJumpDestTable(pcToIndex map[int]int, jumpdests map[int]bool) JumpDestTable {
	pcs := make([]int, 0, len(jumpdests))
	for pc := range jumpdests {
		pcs = append(pcs, pc)
	}
	sort.Ints(pcs)
	indices := make([]int, len(pcs))
	for i, pc := range pcs {
		indices[i] = pcToIndex[pc]
	}
	return JumpDestTable{pcs: pcs, indices: indices}
}

// Lookup reports whether pc is a valid jump destination and, if so, the
// index into Analysis.Instructions the interpreter should resume at.
func (t JumpDestTable) Lookup(pc uint64) (instrIndex int, ok bool) {
	if pc > uint64(^uint(0)>>1) {
		return 0, false
	}
	target := int(pc)
	i := sort.SearchInts(t.pcs, target)
	if i >= len(t.pcs) || t.pcs[i] != target {
		return 0, false
	}
	return t.indices[i], true
}

// Len returns the number of valid jump destinations.
func (t JumpDestTable) Len() int { return len(t.pcs) }
