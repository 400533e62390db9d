// Package hostcrypto adapts host-provided cryptographic primitives into the
// fixed-address precompiled contracts the interpreter dispatches to. Every
// address is a deterministic pure function of its input; none of them touch
// the state journal.
package hostcrypto

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotImplemented is returned by a precompile operation this build does
// not carry a library for. Several precompiles (blake2f, bn254, BLS12-381,
// KZG point evaluation, modexp) also return it for input they reject as
// malformed.
var ErrNotImplemented = errors.New("hostcrypto: operation not implemented")

// Precompile is one fixed-address native contract.
type Precompile interface {
	RequiredGas(input []byte) uint64
	Run(input []byte) ([]byte, error)
}

// Address of each precompile this module wires up. KZG point evaluation is
// placed at 0x14 and BLS12-381 operations occupy 0x0b-0x13, matching this
// project's own canonical address assignment.
var (
	AddrEcrecover       = common.BytesToAddress([]byte{0x01})
	AddrSHA256          = common.BytesToAddress([]byte{0x02})
	AddrRipemd160       = common.BytesToAddress([]byte{0x03})
	AddrIdentity        = common.BytesToAddress([]byte{0x04})
	AddrModExp          = common.BytesToAddress([]byte{0x05})
	AddrBn254Add        = common.BytesToAddress([]byte{0x06})
	AddrBn254ScalarMul  = common.BytesToAddress([]byte{0x07})
	AddrBn254Pairing    = common.BytesToAddress([]byte{0x08})
	AddrBlake2F         = common.BytesToAddress([]byte{0x09})
	AddrBLS12G1Add      = common.BytesToAddress([]byte{0x0b})
	AddrBLS12G1Mul      = common.BytesToAddress([]byte{0x0c})
	AddrBLS12G1MultiExp = common.BytesToAddress([]byte{0x0d})
	AddrBLS12G2Add      = common.BytesToAddress([]byte{0x0e})
	AddrBLS12G2Mul      = common.BytesToAddress([]byte{0x0f})
	AddrBLS12G2MultiExp = common.BytesToAddress([]byte{0x10})
	AddrBLS12Pairing    = common.BytesToAddress([]byte{0x11})
	AddrBLS12MapFPToG1  = common.BytesToAddress([]byte{0x12})
	AddrBLS12MapFP2ToG2 = common.BytesToAddress([]byte{0x13})
	AddrKZGPointEval    = common.BytesToAddress([]byte{0x14})
)

// registry is the canonical set wired into every EVM instance.
var registry = map[common.Address]Precompile{
	AddrEcrecover:       ecrecoverPrecompile{},
	AddrSHA256:          sha256Precompile{},
	AddrRipemd160:       ripemd160Precompile{},
	AddrIdentity:        identityPrecompile{},
	AddrModExp:          modExpPrecompile{},
	AddrBn254Add:        bn254AddPrecompile{},
	AddrBn254ScalarMul:  bn254MulPrecompile{},
	AddrBn254Pairing:    bn254PairingPrecompile{},
	AddrBlake2F:         blake2FPrecompile{},
	AddrBLS12G1Add:      bls12G1AddPrecompile{},
	AddrBLS12G1Mul:      bls12G1MulPrecompile{},
	AddrBLS12G1MultiExp: bls12G1MultiExpPrecompile{},
	AddrBLS12G2Add:      bls12G2AddPrecompile{},
	AddrBLS12G2Mul:      bls12G2MulPrecompile{},
	AddrBLS12G2MultiExp: bls12G2MultiExpPrecompile{},
	AddrBLS12Pairing:    bls12PairingPrecompile{},
	AddrBLS12MapFPToG1:  bls12MapFPToG1Precompile{},
	AddrBLS12MapFP2ToG2: bls12MapFP2ToG2Precompile{},
	AddrKZGPointEval:    kzgPointEvalPrecompile{},
}

// Lookup returns the precompile registered at addr, if any.
func Lookup(addr common.Address) (Precompile, bool) {
	p, ok := registry[addr]
	return p, ok
}

// IsPrecompile reports whether addr names a native contract.
func IsPrecompile(addr common.Address) bool {
	_, ok := registry[addr]
	return ok
}

// wordCount returns ceil(size / 32).
func wordCount(size int) uint64 {
	if size == 0 {
		return 0
	}
	return uint64((size + 31) / 32)
}

// padRight zero-extends data on the right to at least n bytes.
func padRight(data []byte, n int) []byte {
	if len(data) >= n {
		return data
	}
	out := make([]byte, n)
	copy(out, data)
	return out
}

// slice extracts data[off:off+n], zero-padding past the end of data.
func slice(data []byte, off, n uint64) []byte {
	out := make([]byte, n)
	if off >= uint64(len(data)) {
		return out
	}
	end := off + n
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	copy(out, data[off:end])
	return out
}
