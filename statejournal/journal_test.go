package statejournal

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var addrA = common.HexToAddress("0xaa00000000000000000000000000000000000a")
var slot0 = common.Hash{}

func TestStorageRoundTrip(t *testing.T) {
	j := New(nil, false)
	j.SetState(addrA, slot0, common.BigToHash(uint256.NewInt(42).ToBig()))
	got := j.GetState(addrA, slot0)
	want := common.BigToHash(uint256.NewInt(42).ToBig())
	if got != want {
		t.Fatalf("got %s want %s", got.Hex(), want.Hex())
	}
}

func TestRevertRestoresStorage(t *testing.T) {
	j := New(nil, false)
	j.SetState(addrA, slot0, common.BigToHash(uint256.NewInt(10).ToBig()))

	cp := j.Checkpoint()
	j.SetState(addrA, slot0, common.BigToHash(uint256.NewInt(20).ToBig()))
	j.Revert(cp)

	got := j.GetState(addrA, slot0)
	want := common.BigToHash(uint256.NewInt(10).ToBig())
	if got != want {
		t.Fatalf("after revert got %s want %s", got.Hex(), want.Hex())
	}
}

func TestRevertRestoresColdWarm(t *testing.T) {
	j := New(nil, false)
	cp := j.Checkpoint()
	if !j.MarkAddressWarm(addrA) {
		t.Fatal("first access should be cold")
	}
	j.Revert(cp)
	if j.AddressIsWarm(addrA) {
		t.Fatal("revert should also revert warm/cold status")
	}
	if !j.MarkAddressWarm(addrA) {
		t.Fatal("after revert, access should be cold again")
	}
}

func TestSnapshotRevertDiscardsNewerSnapshots(t *testing.T) {
	j := New(nil, false)
	id1 := j.Snapshot()
	j.SetState(addrA, slot0, common.BigToHash(uint256.NewInt(1).ToBig()))
	id2 := j.Snapshot()
	j.SetState(addrA, slot0, common.BigToHash(uint256.NewInt(2).ToBig()))

	if err := j.RevertToSnapshot(id1); err != nil {
		t.Fatalf("RevertToSnapshot(id1): %v", err)
	}
	if err := j.RevertToSnapshot(id2); err == nil {
		t.Fatalf("id2 should have been discarded by reverting to id1")
	}
}

func TestSelfDestructPostCancunRequiresSameTxCreation(t *testing.T) {
	j := New(nil, true)
	j.SetBalance(addrA, uint256.NewInt(5))
	j.QueueSelfDestruct(addrA, addrA)
	j.FinalizeTransaction()
	if !j.Exist(addrA) {
		t.Fatalf("post-Cancun selfdestruct of an account not created this tx must not delete it")
	}

	j2 := New(nil, true)
	j2.CreateAccount(addrA)
	j2.QueueSelfDestruct(addrA, addrA)
	j2.FinalizeTransaction()
	if j2.Exist(addrA) {
		t.Fatalf("post-Cancun selfdestruct of an account created this tx must delete it")
	}
}

func TestRefundCheckpointRevert(t *testing.T) {
	j := New(nil, false)
	j.AddRefund(100)
	cp := j.Checkpoint()
	j.AddRefund(50)
	j.Revert(cp)
	if j.GetRefund() != 100 {
		t.Fatalf("got refund %d want 100", j.GetRefund())
	}
}

// failingBackend fails every call, simulating an unreachable fork node.
type failingBackend struct{ err error }

func (b *failingBackend) GetAccount(common.Address) (*BackendAccount, error) { return nil, b.err }
func (b *failingBackend) GetStorage(common.Address, common.Hash) (common.Hash, error) {
	return common.Hash{}, b.err
}
func (b *failingBackend) GetCode(common.Address) ([]byte, error) { return nil, b.err }

func TestBackendFailureIsStickyAndSurfacedByErr(t *testing.T) {
	backend := &failingBackend{err: &ErrRpcFailed{Cause: ErrInvalidSnapshot}}
	j := New(backend, false)

	if j.Err() != nil {
		t.Fatalf("Err() should be nil before any backend call")
	}
	if bal := j.GetBalance(addrA); !bal.IsZero() {
		t.Fatalf("GetBalance on a failed fetch should fall back to zero, got %s", bal)
	}
	if j.Err() == nil {
		t.Fatal("Err() should report the backend failure after GetBalance")
	}
	var rpcFailed *ErrRpcFailed
	if !errorsAsRpcFailed(j.Err(), &rpcFailed) {
		t.Fatalf("Err() = %v, want an *ErrRpcFailed", j.Err())
	}

	// The error is sticky: a later successful-looking local read does not
	// clear it, and a second distinct backend failure does not replace it.
	j.GetState(addrA, slot0)
	if j.Err() != backend.err {
		t.Fatalf("Err() should keep reporting the first backend error, got %v", j.Err())
	}
}

func errorsAsRpcFailed(err error, target **ErrRpcFailed) bool {
	if e, ok := err.(*ErrRpcFailed); ok {
		*target = e
		return true
	}
	return false
}
