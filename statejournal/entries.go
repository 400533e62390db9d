package statejournal

import (
	"github.com/ethereum/go-ethereum/common"
)

// entry is one undo-able mutation recorded on the journal's dirty log,
// following the same journal/undo pattern go-ethereum's core/state package
// uses for its StateDB (the Journal here is the in-memory analogue, without
// a backing trie). Checkpoint/Revert/Commit operate purely on this log.
type entry interface {
	revert(j *Journal)
}

type balanceChange struct {
	addr common.Address
	prev *accountSnapshot
}

func (e balanceChange) revert(j *Journal) { j.restoreAccount(e.addr, e.prev) }

type nonceChange struct {
	addr common.Address
	prev *accountSnapshot
}

func (e nonceChange) revert(j *Journal) { j.restoreAccount(e.addr, e.prev) }

type codeChange struct {
	addr     common.Address
	prevCode []byte
	prev     *accountSnapshot
}

func (e codeChange) revert(j *Journal) {
	if e.prevCode == nil {
		delete(j.code, e.addr)
	} else {
		j.code[e.addr] = e.prevCode
	}
	j.restoreAccount(e.addr, e.prev)
}

type createAccountChange struct {
	addr    common.Address
	existed bool
	created bool // was this address newly marked as "created this tx"
}

func (e createAccountChange) revert(j *Journal) {
	if !e.existed {
		delete(j.accounts, e.addr)
	}
	if e.created {
		delete(j.createdThisTx, e.addr)
	}
}

type storageChange struct {
	addr common.Address
	slot common.Hash
	prev common.Hash
	had  bool
}

func (e storageChange) revert(j *Journal) {
	if !e.had {
		delete(j.storage[e.addr], e.slot)
		return
	}
	j.storage[e.addr][e.slot] = e.prev
}

type transientChange struct {
	addr common.Address
	slot common.Hash
	prev common.Hash
	had  bool
}

func (e transientChange) revert(j *Journal) {
	if !e.had {
		delete(j.transient[e.addr], e.slot)
		return
	}
	j.transient[e.addr][e.slot] = e.prev
}

type accessAddressChange struct {
	addr common.Address
}

func (e accessAddressChange) revert(j *Journal) { delete(j.warmAddresses, e.addr) }

type accessSlotChange struct {
	addr common.Address
	slot common.Hash
}

func (e accessSlotChange) revert(j *Journal) {
	if m, ok := j.warmSlots[e.addr]; ok {
		delete(m, e.slot)
	}
}

type refundChange struct {
	prev uint64
}

func (e refundChange) revert(j *Journal) { j.refund = e.prev }

type selfDestructChange struct {
	addr        common.Address
	prevQueued  bool
	prevBenef   common.Address
	hadBenef    bool
}

func (e selfDestructChange) revert(j *Journal) {
	if !e.prevQueued {
		delete(j.destructs, e.addr)
		return
	}
	j.destructs[e.addr] = e.prevBenef
}

type logChange struct{}

func (e logChange) revert(j *Journal) {
	j.logs = j.logs[:len(j.logs)-1]
}

// accountSnapshot captures an Account's value (or its absence) for undo.
type accountSnapshot struct {
	existed bool
	value   *Account
}

func (j *Journal) snapshotAccount(addr common.Address) *accountSnapshot {
	acc, ok := j.accounts[addr]
	if !ok {
		return &accountSnapshot{existed: false}
	}
	return &accountSnapshot{existed: true, value: acc.clone()}
}

func (j *Journal) restoreAccount(addr common.Address, snap *accountSnapshot) {
	if !snap.existed {
		delete(j.accounts, addr)
		return
	}
	j.accounts[addr] = snap.value
}
