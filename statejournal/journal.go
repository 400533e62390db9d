// Package statejournal implements a journaled account/storage/code model:
// cache-backed reads with an optional fork Backend, LIFO checkpoints for
// nested call frames, cold/warm access tracking, and a random-access
// snapshot API for debugging.
package statejournal

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// LogEntry is one LOGn record, buffered per-transaction
// and discarded on revert along with everything else the journal tracked.
type LogEntry struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

type revision struct {
	id           int
	journalIndex int
}

// Journal tracks every account, storage, code, and log change made during
// a transaction, so it can be reverted on a sub-call failure or committed
// once the call tree finishes.
type Journal struct {
	backend Backend

	accounts  map[common.Address]*Account
	code      map[common.Address][]byte
	storage   map[common.Address]map[common.Hash]common.Hash
	transient map[common.Address]map[common.Hash]common.Hash

	warmAddresses map[common.Address]struct{}
	warmSlots     map[common.Address]map[common.Hash]struct{}

	createdThisTx map[common.Address]bool
	destructs     map[common.Address]common.Address // addr -> beneficiary, queued selfdestructs

	refund uint64
	logs   []LogEntry

	entries        []entry
	validRevisions []revision
	nextRevisionID int

	// postCancun selects EIP-6780 selfdestruct semantics: only delete an
	// account if it was created in the same transaction.
	postCancun bool

	// backendErr holds the first error a Backend call returned. It is
	// sticky: a later backend error does not replace it, though later
	// cache misses still call the backend, and the caller is expected to
	// check Err() and abort the transaction.
	backendErr error
}

// Err returns the first error a Backend call returned during this
// transaction, or nil if every backend read (if any) succeeded so far.
func (j *Journal) Err() error { return j.backendErr }

func (j *Journal) recordBackendErr(err error) {
	if j.backendErr == nil {
		j.backendErr = err
	}
}

// New returns an empty Journal. backend may be nil, in which case reads
// that miss the local cache return the zero value instead of consulting a
// fork.
func New(backend Backend, postCancun bool) *Journal {
	return &Journal{
		backend:       backend,
		accounts:      make(map[common.Address]*Account),
		code:          make(map[common.Address][]byte),
		storage:       make(map[common.Address]map[common.Hash]common.Hash),
		transient:     make(map[common.Address]map[common.Hash]common.Hash),
		warmAddresses: make(map[common.Address]struct{}),
		warmSlots:     make(map[common.Address]map[common.Hash]struct{}),
		createdThisTx: make(map[common.Address]bool),
		destructs:     make(map[common.Address]common.Address),
		postCancun:    postCancun,
	}
}

func (j *Journal) append(e entry) { j.entries = append(j.entries, e) }

// ---- Checkpoint / revert / commit (internal, call-frame scoped) ----

// Checkpoint pushes a mark that Revert or Commit later resolve against. It
// is the mechanism CALL/CREATE/STATICCALL/DELEGATECALL use around a child
// frame.
func (j *Journal) Checkpoint() int { return len(j.entries) }

// Revert undoes every entry recorded since mark, in reverse order, and
// invalidates any external snapshot ids taken after mark.
func (j *Journal) Revert(mark int) {
	for i := len(j.entries) - 1; i >= mark; i-- {
		j.entries[i].revert(j)
	}
	j.entries = j.entries[:mark]

	i := len(j.validRevisions)
	for i > 0 && j.validRevisions[i-1].journalIndex > mark {
		i--
	}
	j.validRevisions = j.validRevisions[:i]
}

// Commit discards the checkpoint marker; the recorded entries remain,
// becoming visible to (merged into) the parent scope.
func (j *Journal) Commit(int) {}

// ---- External, random-access snapshot API (debug/test use) ----

// Snapshot records the current checkpoint depth and returns an id a
// debugger can later pass to RevertToSnapshot.
func (j *Journal) Snapshot() int {
	id := j.nextRevisionID
	j.nextRevisionID++
	j.validRevisions = append(j.validRevisions, revision{id: id, journalIndex: len(j.entries)})
	return id
}

// RevertToSnapshot pops checkpoints until the state recorded under id is
// restored, discarding every snapshot id newer than it. Fails with
// ErrInvalidSnapshot if id is unknown or was already reverted past.
func (j *Journal) RevertToSnapshot(id int) error {
	idx := -1
	for i, r := range j.validRevisions {
		if r.id == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrInvalidSnapshot
	}
	mark := j.validRevisions[idx].journalIndex
	j.Revert(mark)
	return nil
}

// ---- Accounts ----

func (j *Journal) lookupAccount(addr common.Address) (*Account, bool) {
	if acc, ok := j.accounts[addr]; ok {
		return acc, true
	}
	if j.backend == nil {
		return nil, false
	}
	ba, err := j.backend.GetAccount(addr)
	if err != nil {
		log.Debug("statejournal: backend account fetch failed", "addr", addr, "err", err)
		j.recordBackendErr(err)
		return nil, false
	}
	if ba == nil {
		return nil, false
	}
	acc := &Account{Nonce: ba.Nonce, Balance: ba.Balance, CodeHash: ba.CodeHash}
	if acc.Balance == nil {
		acc.Balance = new(uint256.Int)
	}
	j.accounts[addr] = acc
	return acc, true
}

// Exist reports whether addr has ever been touched (cache or backend).
func (j *Journal) Exist(addr common.Address) bool {
	_, ok := j.lookupAccount(addr)
	return ok
}

// CreateAccount registers addr as touched-and-created-if-absent, the way
// CALL/CREATE do on first reference to a receiver.
func (j *Journal) CreateAccount(addr common.Address) {
	_, existed := j.accounts[addr]
	wasCreated := j.createdThisTx[addr]
	j.append(createAccountChange{addr: addr, existed: existed, created: !wasCreated})
	if !existed {
		j.accounts[addr] = emptyAccount()
	}
	j.createdThisTx[addr] = true
}

// CreatedThisTransaction reports whether addr was created by a CREATE in
// the current transaction — the gate EIP-6780 SELFDESTRUCT uses.
func (j *Journal) CreatedThisTransaction(addr common.Address) bool {
	return j.createdThisTx[addr]
}

func (j *Journal) ensure(addr common.Address) *Account {
	if acc, ok := j.lookupAccount(addr); ok {
		return acc
	}
	acc := emptyAccount()
	j.accounts[addr] = acc
	return acc
}

func (j *Journal) GetBalance(addr common.Address) *uint256.Int {
	if acc, ok := j.lookupAccount(addr); ok {
		return acc.Balance
	}
	return new(uint256.Int)
}

func (j *Journal) SetBalance(addr common.Address, balance *uint256.Int) {
	snap := j.snapshotAccount(addr)
	j.append(balanceChange{addr: addr, prev: snap})
	j.ensure(addr).Balance = balance
}

func (j *Journal) AddBalance(addr common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		j.ensure(addr) // still a touch
		return
	}
	cur := j.GetBalance(addr)
	j.SetBalance(addr, new(uint256.Int).Add(cur, amount))
}

func (j *Journal) SubBalance(addr common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	cur := j.GetBalance(addr)
	j.SetBalance(addr, new(uint256.Int).Sub(cur, amount))
}

func (j *Journal) GetNonce(addr common.Address) uint64 {
	if acc, ok := j.lookupAccount(addr); ok {
		return acc.Nonce
	}
	return 0
}

func (j *Journal) SetNonce(addr common.Address, nonce uint64) {
	snap := j.snapshotAccount(addr)
	j.append(nonceChange{addr: addr, prev: snap})
	j.ensure(addr).Nonce = nonce
}

// ---- Code ----

func (j *Journal) GetCode(addr common.Address) []byte {
	if c, ok := j.code[addr]; ok {
		return c
	}
	if j.backend != nil {
		code, err := j.backend.GetCode(addr)
		if err != nil {
			log.Debug("statejournal: backend code fetch failed", "addr", addr, "err", err)
			j.recordBackendErr(err)
			return nil
		}
		if code != nil {
			j.code[addr] = code
			return code
		}
	}
	return nil
}

func (j *Journal) GetCodeHash(addr common.Address) common.Hash {
	if acc, ok := j.lookupAccount(addr); ok {
		return acc.CodeHash
	}
	return common.Hash{}
}

func (j *Journal) GetCodeSize(addr common.Address) int { return len(j.GetCode(addr)) }

// SetCode installs code (and its keccak hash) for addr, as CREATE does on
// success and the host does when registering a fork-fetched contract.
func (j *Journal) SetCode(addr common.Address, code []byte, codeHash common.Hash) {
	snap := j.snapshotAccount(addr)
	j.append(codeChange{addr: addr, prevCode: j.code[addr], prev: snap})
	if len(code) == 0 {
		delete(j.code, addr)
	} else {
		j.code[addr] = code
	}
	j.ensure(addr).CodeHash = codeHash
}

// ---- Storage ----

func (j *Journal) GetState(addr common.Address, slot common.Hash) common.Hash {
	if m, ok := j.storage[addr]; ok {
		if v, ok := m[slot]; ok {
			return v
		}
	}
	if j.backend != nil {
		v, err := j.backend.GetStorage(addr, slot)
		if err != nil {
			log.Debug("statejournal: backend storage fetch failed", "addr", addr, "slot", slot, "err", err)
			j.recordBackendErr(err)
			return common.Hash{}
		}
		j.setStorageCache(addr, slot, v)
		return v
	}
	return common.Hash{}
}

func (j *Journal) setStorageCache(addr common.Address, slot, val common.Hash) {
	m, ok := j.storage[addr]
	if !ok {
		m = make(map[common.Hash]common.Hash)
		j.storage[addr] = m
	}
	m[slot] = val
}

func (j *Journal) SetState(addr common.Address, slot, val common.Hash) {
	m, had := j.storage[addr]
	var prev common.Hash
	hadSlot := false
	if had {
		prev, hadSlot = m[slot]
	}
	j.append(storageChange{addr: addr, slot: slot, prev: prev, had: hadSlot})
	j.setStorageCache(addr, slot, val)
}

// ---- Transient storage (EIP-1153) ----

func (j *Journal) GetTransientState(addr common.Address, slot common.Hash) common.Hash {
	if m, ok := j.transient[addr]; ok {
		return m[slot]
	}
	return common.Hash{}
}

func (j *Journal) SetTransientState(addr common.Address, slot, val common.Hash) {
	m, had := j.transient[addr]
	var prev common.Hash
	hadSlot := false
	if had {
		prev, hadSlot = m[slot]
	}
	j.append(transientChange{addr: addr, slot: slot, prev: prev, had: hadSlot})
	mm, ok := j.transient[addr]
	if !ok {
		mm = make(map[common.Hash]common.Hash)
		j.transient[addr] = mm
	}
	mm[slot] = val
}

// ---- Cold/warm access tracking (EIP-2929) ----

func (j *Journal) AddressIsWarm(addr common.Address) bool {
	_, ok := j.warmAddresses[addr]
	return ok
}

// MarkAddressWarm records addr as accessed and reports whether this is the
// first access this transaction (i.e. whether cold-access gas is owed).
func (j *Journal) MarkAddressWarm(addr common.Address) (wasCold bool) {
	if j.AddressIsWarm(addr) {
		return false
	}
	j.append(accessAddressChange{addr: addr})
	j.warmAddresses[addr] = struct{}{}
	return true
}

func (j *Journal) SlotIsWarm(addr common.Address, slot common.Hash) bool {
	m, ok := j.warmSlots[addr]
	if !ok {
		return false
	}
	_, ok = m[slot]
	return ok
}

func (j *Journal) MarkSlotWarm(addr common.Address, slot common.Hash) (wasCold bool) {
	if j.SlotIsWarm(addr, slot) {
		return false
	}
	j.append(accessSlotChange{addr: addr, slot: slot})
	m, ok := j.warmSlots[addr]
	if !ok {
		m = make(map[common.Hash]struct{})
		j.warmSlots[addr] = m
	}
	m[slot] = struct{}{}
	return true
}

// ---- Refund counter ----

func (j *Journal) GetRefund() uint64 { return j.refund }

func (j *Journal) AddRefund(amount uint64) {
	j.append(refundChange{prev: j.refund})
	j.refund += amount
}

func (j *Journal) SubRefund(amount uint64) {
	j.append(refundChange{prev: j.refund})
	if amount > j.refund {
		j.refund = 0
		return
	}
	j.refund -= amount
}

// ---- Self-destruct ----

// QueueSelfDestruct records a deletion to be applied at transaction end; it
// never deletes immediately, so a later revert of this frame undoes it like
// any other state change.
func (j *Journal) QueueSelfDestruct(addr, beneficiary common.Address) {
	prevBenef, hadBenef := j.destructs[addr]
	j.append(selfDestructChange{addr: addr, prevQueued: hadBenef, prevBenef: prevBenef})
	j.destructs[addr] = beneficiary
}

func (j *Journal) HasQueuedSelfDestruct(addr common.Address) bool {
	_, ok := j.destructs[addr]
	return ok
}

// FinalizeTransaction applies every queued self-destruct that survived to
// transaction end, honoring post-Cancun EIP-6780 semantics when enabled,
// then clears the per-transaction created-account and warm-access sets.
func (j *Journal) FinalizeTransaction() {
	for addr := range j.destructs {
		if j.postCancun && !j.createdThisTx[addr] {
			continue
		}
		delete(j.accounts, addr)
		delete(j.code, addr)
		delete(j.storage, addr)
	}
	j.destructs = make(map[common.Address]common.Address)
	j.createdThisTx = make(map[common.Address]bool)
	j.warmAddresses = make(map[common.Address]struct{})
	j.warmSlots = make(map[common.Address]map[common.Hash]struct{})
}

// ResetTransient clears all transient storage (EIP-1153); the simulator
// runs it at the end of every transaction.
func (j *Journal) ResetTransient() {
	j.transient = make(map[common.Address]map[common.Hash]common.Hash)
}

// ---- Logs ----

func (j *Journal) AppendLog(l LogEntry) {
	j.append(logChange{})
	j.logs = append(j.logs, l)
}

func (j *Journal) Logs() []LogEntry { return j.logs }
