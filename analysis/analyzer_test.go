package analysis

import "testing"

// push1 returns the two-byte encoding of PUSH1 <v>.
func push1(v byte) []byte { return []byte{byte(PUSH1), v} }

func TestSimpleArithmeticBlock(t *testing.T) {
	code := append(append(push1(1), push1(2)...), byte(ADD), byte(STOP))
	a, err := Analyze(code, RuntimeCode)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(a.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(a.Blocks))
	}
	b := a.Blocks[0]
	if b.StackMinRequired != 0 {
		t.Fatalf("StackMinRequired = %d, want 0", b.StackMinRequired)
	}
	if b.StackMaxGrowth < 1 {
		t.Fatalf("StackMaxGrowth = %d, want >= 1", b.StackMaxGrowth)
	}
}

func TestPushAddFusion(t *testing.T) {
	code := append(append(push1(1), push1(2)...), byte(ADD), byte(STOP))
	a, err := Analyze(code, RuntimeCode)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	// PUSH1 1, PUSH1 2+ADD fused, STOP -> 3 instructions.
	if len(a.Instructions) != 3 {
		t.Fatalf("got %d instructions, want 3", len(a.Instructions))
	}
	if a.Instructions[1].Kind != KindFusedArith {
		t.Fatalf("second instruction kind = %v, want KindFusedArith", a.Instructions[1].Kind)
	}
}

func TestTruncatedPushRejected(t *testing.T) {
	code := []byte{byte(PUSH2), 0x01}
	if _, err := Analyze(code, RuntimeCode); err == nil {
		t.Fatal("expected truncated PUSH error")
	}
}

func TestUndefinedOpcodeRejected(t *testing.T) {
	code := []byte{0x0C} // unassigned
	if _, err := Analyze(code, RuntimeCode); err == nil {
		t.Fatal("expected undefined opcode error")
	}
}

func TestPushDataNotTreatedAsJumpdest(t *testing.T) {
	// PUSH1 0x5B (JUMPDEST's opcode byte, but here it's push data) then STOP.
	code := []byte{byte(PUSH1), byte(JUMPDEST), byte(STOP)}
	a, err := Analyze(code, RuntimeCode)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.JumpDests.Len() != 0 {
		t.Fatalf("push-data byte must not be indexed as a JUMPDEST, got %d entries", a.JumpDests.Len())
	}
}

func TestStaticJumpFusionToValidDest(t *testing.T) {
	// PUSH1 3; JUMP; JUMPDEST(pc=3); STOP
	code := []byte{byte(PUSH1), 0x03, byte(JUMP), byte(JUMPDEST), byte(STOP)}
	a, err := Analyze(code, RuntimeCode)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.Instructions[0].Kind != KindStaticJump {
		t.Fatalf("kind = %v, want KindStaticJump", a.Instructions[0].Kind)
	}
	target := a.Instructions[0].TargetInstr
	if a.Instructions[target].Kind != KindJumpDest {
		t.Fatalf("static jump target does not point at the JUMPDEST instruction")
	}
}

func TestStaticJumpToInvalidDestRejected(t *testing.T) {
	// PUSH1 3; JUMP; STOP; STOP -- pc 3 is a STOP, not a JUMPDEST.
	code := []byte{byte(PUSH1), 0x03, byte(JUMP), byte(STOP), byte(STOP)}
	if _, err := Analyze(code, RuntimeCode); err == nil {
		t.Fatal("expected invalid static jump error")
	}
}

func TestJumpdestStartsNewBlock(t *testing.T) {
	// STOP; JUMPDEST; STOP -- the JUMPDEST must start a fresh block.
	code := []byte{byte(STOP), byte(JUMPDEST), byte(STOP)}
	a, err := Analyze(code, RuntimeCode)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(a.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(a.Blocks))
	}
	if _, ok := a.BlockStartingAt(1); !ok {
		t.Fatal("expected a block starting at the JUMPDEST instruction")
	}
}

func TestStackUnderflowDetectedAtBlockEntry(t *testing.T) {
	// ADD with nothing pushed first: requires 2 stack items at block entry.
	code := []byte{byte(ADD), byte(STOP)}
	a, err := Analyze(code, RuntimeCode)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.Blocks[0].StackMinRequired != 2 {
		t.Fatalf("StackMinRequired = %d, want 2", a.Blocks[0].StackMinRequired)
	}
}

func TestAnalysisCacheHitsOnIdenticalCode(t *testing.T) {
	c, err := NewCache(8)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	code := []byte{byte(PUSH1), 0x01, byte(STOP)}
	a1, err := c.Get(code, RuntimeCode)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	a2, err := c.Get(code, RuntimeCode)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a1 != a2 {
		t.Fatal("expected the same cached *Analysis pointer on the second call")
	}
	if c.Len() != 1 {
		t.Fatalf("cache len = %d, want 1", c.Len())
	}
}

func TestReservedCodePrefixRejectedForRuntimeCode(t *testing.T) {
	code := []byte{0xEF, byte(STOP)}
	_, err := Analyze(code, RuntimeCode)
	if err == nil {
		t.Fatal("expected EIP-3541 rejection")
	}
	if _, ok := err.(*ErrReservedCodePrefix); !ok {
		t.Fatalf("got error %v, want *ErrReservedCodePrefix", err)
	}
}
