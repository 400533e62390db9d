package hostcrypto

import "math/big"

// modExpPrecompile is address 0x05 (EIP-198/2565): arbitrary-precision
// modular exponentiation. No available big-integer modexp library improves
// on math/big here — go-ethereum's own modexp precompile is itself built
// on math/big — so this stays on the standard library by necessity, not
// convenience.
type modExpPrecompile struct{}

func (modExpPrecompile) RequiredGas(input []byte) uint64 {
	input = padRight(input, 96)
	baseLen := new(big.Int).SetBytes(input[0:32]).Uint64()
	expLen := new(big.Int).SetBytes(input[32:64]).Uint64()
	modLen := new(big.Int).SetBytes(input[64:96]).Uint64()

	adjExpLen := adjustedExpLen(expLen, baseLen, input[96:])

	maxLen := baseLen
	if modLen > maxLen {
		maxLen = modLen
	}
	words := (maxLen + 7) / 8
	multComplexity := words * words

	exp := adjExpLen
	if exp < 1 {
		exp = 1
	}
	gas := multComplexity * exp / 3
	if gas < 200 {
		gas = 200
	}
	return gas
}

func (modExpPrecompile) Run(input []byte) ([]byte, error) {
	input = padRight(input, 96)
	baseLen := new(big.Int).SetBytes(input[0:32])
	expLen := new(big.Int).SetBytes(input[32:64])
	modLen := new(big.Int).SetBytes(input[64:96])

	if baseLen.BitLen() > 32 || expLen.BitLen() > 32 || modLen.BitLen() > 32 {
		return nil, ErrNotImplemented
	}
	bLen, eLen, mLen := baseLen.Uint64(), expLen.Uint64(), modLen.Uint64()

	data := input[96:]
	base := slice(data, 0, bLen)
	exp := slice(data, bLen, eLen)
	mod := slice(data, bLen+eLen, mLen)

	modVal := new(big.Int).SetBytes(mod)
	if modVal.Sign() == 0 {
		return make([]byte, mLen), nil
	}
	baseVal := new(big.Int).SetBytes(base)
	expVal := new(big.Int).SetBytes(exp)
	result := new(big.Int).Exp(baseVal, expVal, modVal)

	out := result.Bytes()
	if uint64(len(out)) >= mLen {
		return out[:mLen], nil
	}
	padded := make([]byte, mLen)
	copy(padded[mLen-uint64(len(out)):], out)
	return padded, nil
}

// adjustedExpLen implements the EIP-198 gas-exponent-length adjustment.
func adjustedExpLen(expLen, baseLen uint64, data []byte) uint64 {
	if expLen <= 32 {
		e := new(big.Int).SetBytes(slice(data, baseLen, expLen))
		if e.Sign() == 0 {
			return 0
		}
		return uint64(e.BitLen() - 1)
	}
	first := new(big.Int).SetBytes(slice(data, baseLen, 32))
	adj := uint64(0)
	if first.Sign() > 0 {
		adj = uint64(first.BitLen() - 1)
	}
	return adj + 8*(expLen-32)
}
