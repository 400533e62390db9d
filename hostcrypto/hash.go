package hostcrypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // EVM precompile 0x03 is specified in terms of this exact hash
)

// sha256Precompile is address 0x02. The standard library carries SHA-256
// directly and every go-ethereum-derived codebase reaches for crypto/sha256
// for it too, so there's no third-party alternative worth wiring in.
type sha256Precompile struct{}

func (sha256Precompile) RequiredGas(input []byte) uint64 { return 60 + 12*wordCount(len(input)) }

func (sha256Precompile) Run(input []byte) ([]byte, error) {
	h := sha256.Sum256(input)
	return h[:], nil
}

// ripemd160Precompile is address 0x03. golang.org/x/crypto/ripemd160 is
// already pulled in transitively through go-ethereum/crypto; wired here
// directly.
type ripemd160Precompile struct{}

func (ripemd160Precompile) RequiredGas(input []byte) uint64 {
	return 600 + 120*wordCount(len(input))
}

func (ripemd160Precompile) Run(input []byte) ([]byte, error) {
	h := ripemd160.New()
	h.Write(input)
	digest := h.Sum(nil)
	out := make([]byte, 32)
	copy(out[12:], digest)
	return out, nil
}

// identityPrecompile is address 0x04: returns its input unchanged.
type identityPrecompile struct{}

func (identityPrecompile) RequiredGas(input []byte) uint64 { return 15 + 3*wordCount(len(input)) }

func (identityPrecompile) Run(input []byte) ([]byte, error) {
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}
