package interpreter

import "github.com/holiman/uint256"

// stackLimit is the maximum number of words live on a frame's stack at once.
const stackLimit = 1024

// Stack is the EVM operand stack: 256-bit words, growing upward, indexed
// from the top. Block-entry validation guarantees every
// push/pop inside a validated block stays within bounds, so these methods
// do not themselves bounds-check — callers trust the precomputed
// StackMinRequired/StackMaxGrowth instead of checking on every instruction.
type Stack struct {
	data []uint256.Int
}

func newStack() *Stack { return &Stack{data: make([]uint256.Int, 0, 16)} }

func (s *Stack) push(v *uint256.Int) { s.data = append(s.data, *v) }

func (s *Stack) pop() uint256.Int {
	top := len(s.data) - 1
	v := s.data[top]
	s.data = s.data[:top]
	return v
}

// peek returns a pointer to the nth-from-top item (0 = top) for in-place
// mutation, as binary opcodes that overwrite their left operand do.
func (s *Stack) peek(n int) *uint256.Int { return &s.data[len(s.data)-1-n] }

func (s *Stack) swap(n int) {
	top := len(s.data) - 1
	s.data[top], s.data[top-n] = s.data[top-n], s.data[top]
}

func (s *Stack) dup(n int) {
	v := s.data[len(s.data)-n]
	s.data = append(s.data, v)
}

func (s *Stack) len() int { return len(s.data) }
