package memstore

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestSetWordGetWordRoundTrip(t *testing.T) {
	v := NewView()
	want := uint256.NewInt(0xdeadbeef)
	if err := v.SetWord(0, want); err != nil {
		t.Fatalf("SetWord: %v", err)
	}
	got, err := v.GetWord(0)
	if err != nil {
		t.Fatalf("GetWord: %v", err)
	}
	if !got.Eq(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestUninitializedMemoryIsZero(t *testing.T) {
	v := NewView()
	if err := v.EnsureCapacity(64); err != nil {
		t.Fatalf("EnsureCapacity: %v", err)
	}
	got, err := v.GetWord(32)
	if err != nil {
		t.Fatalf("GetWord: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected zero word, got %s", got)
	}
}

func TestChildViewIsolatesParentSize(t *testing.T) {
	parent := NewView()
	if err := parent.SetWord(0, uint256.NewInt(1)); err != nil {
		t.Fatal(err)
	}
	parentSize := parent.Size()

	child := parent.Child()
	if child.Size() != 0 {
		t.Fatalf("fresh child should start at logical size 0, got %d", child.Size())
	}
	if err := child.SetWord(0, uint256.NewInt(2)); err != nil {
		t.Fatal(err)
	}
	if parent.Size() != parentSize {
		t.Fatalf("child write must not change parent's logical size: got %d want %d", parent.Size(), parentSize)
	}
}

func TestMemoryOverflow(t *testing.T) {
	v := NewViewWithLimit(64)
	if err := v.EnsureCapacity(64); err != nil {
		t.Fatalf("growing to exactly the limit should succeed: %v", err)
	}
	if err := v.EnsureCapacity(65); err == nil {
		t.Fatalf("growing one byte past the limit should fail")
	}
}

func TestOutOfBounds(t *testing.T) {
	v := NewView()
	if err := v.EnsureCapacity(32); err != nil {
		t.Fatal(err)
	}
	if _, err := v.GetSlice(0, 64); err == nil {
		t.Fatalf("expected out-of-bounds error")
	}
}

func TestExpansionCostMonotonic(t *testing.T) {
	v := NewView()
	first, err := v.ExpansionCost(32)
	if err != nil {
		t.Fatal(err)
	}
	if first == 0 {
		t.Fatalf("expected non-zero cost for first expansion")
	}
	second, err := v.ExpansionCost(32)
	if err != nil {
		t.Fatal(err)
	}
	if second != 0 {
		t.Fatalf("re-requesting the same size should cost 0, got %d", second)
	}
}

func TestClearOwnedBufferTruncates(t *testing.T) {
	v := NewView()
	if err := v.SetWord(0, uint256.NewInt(7)); err != nil {
		t.Fatal(err)
	}
	v.Clear()
	if v.Size() != 0 {
		t.Fatalf("expected size 0 after Clear, got %d", v.Size())
	}
}
