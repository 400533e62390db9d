package statejournal

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Account is the tuple owned by the StateJournal for every touched address
//. StorageRoot is carried for data-model fidelity with upstream
// Ethereum accounts but is never computed from a real trie here — persistent
// trie storage is a non-goal of this engine.
type Account struct {
	Nonce       uint64
	Balance     *uint256.Int
	CodeHash    common.Hash
	StorageRoot common.Hash
}

func emptyAccount() *Account {
	return &Account{Balance: new(uint256.Int)}
}

func (a *Account) clone() *Account {
	cp := *a
	cp.Balance = new(uint256.Int).Set(a.Balance)
	return &cp
}
