package hostcrypto

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// bn254Add/ScalarMul/Pairing are addresses 0x06-0x08 (EIP-196/197): alt_bn128
// curve arithmetic. gnark-crypto/ecc/bn254 is already pulled in transitively
// by go-ethereum, which switched its own alt_bn128 precompiles to it; wired
// here directly instead of leaving it as dead weight.

func decodeG1(buf []byte) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	var x, y fp.Element
	x.SetBytes(buf[0:32])
	y.SetBytes(buf[32:64])
	p.X, p.Y = x, y
	if x.IsZero() && y.IsZero() {
		return p, nil
	}
	if !p.IsOnCurve() {
		return p, ErrNotImplemented
	}
	return p, nil
}

func encodeG1(p bn254.G1Affine) []byte {
	out := make([]byte, 64)
	xb := p.X.Bytes()
	yb := p.Y.Bytes()
	copy(out[0:32], xb[:])
	copy(out[32:64], yb[:])
	return out
}

func decodeG2(buf []byte) (bn254.G2Affine, error) {
	var p bn254.G2Affine
	// EVM encodes each Fp2 coordinate as (imaginary, real), 32 bytes each.
	p.X.A1.SetBytes(buf[0:32])
	p.X.A0.SetBytes(buf[32:64])
	p.Y.A1.SetBytes(buf[64:96])
	p.Y.A0.SetBytes(buf[96:128])
	if p.X.IsZero() && p.Y.IsZero() {
		return p, nil
	}
	if !p.IsOnCurve() {
		return p, ErrNotImplemented
	}
	return p, nil
}

type bn254AddPrecompile struct{}

func (bn254AddPrecompile) RequiredGas([]byte) uint64 { return 150 }

func (bn254AddPrecompile) Run(input []byte) ([]byte, error) {
	input = padRight(input, 128)
	p1, err := decodeG1(input[0:64])
	if err != nil {
		return nil, err
	}
	p2, err := decodeG1(input[64:128])
	if err != nil {
		return nil, err
	}
	var sum bn254.G1Affine
	sum.Add(&p1, &p2)
	return encodeG1(sum), nil
}

type bn254MulPrecompile struct{}

func (bn254MulPrecompile) RequiredGas([]byte) uint64 { return 6000 }

func (bn254MulPrecompile) Run(input []byte) ([]byte, error) {
	input = padRight(input, 96)
	p, err := decodeG1(input[0:64])
	if err != nil {
		return nil, err
	}
	var scalar fr.Element
	scalar.SetBytes(input[64:96])
	var scalarInt big.Int
	scalar.BigInt(&scalarInt)
	var out bn254.G1Affine
	out.ScalarMultiplication(&p, &scalarInt)
	return encodeG1(out), nil
}

type bn254PairingPrecompile struct{}

func (bn254PairingPrecompile) RequiredGas(input []byte) uint64 {
	k := uint64(len(input)) / 192
	return 45000 + 34000*k
}

func (bn254PairingPrecompile) Run(input []byte) ([]byte, error) {
	if len(input)%192 != 0 {
		return nil, ErrNotImplemented
	}
	k := len(input) / 192
	g1s := make([]bn254.G1Affine, 0, k)
	g2s := make([]bn254.G2Affine, 0, k)
	for i := 0; i < k; i++ {
		off := i * 192
		p1, err := decodeG1(input[off : off+64])
		if err != nil {
			return nil, err
		}
		p2, err := decodeG2(input[off+64 : off+192])
		if err != nil {
			return nil, err
		}
		g1s = append(g1s, p1)
		g2s = append(g2s, p2)
	}
	out := make([]byte, 32)
	if k == 0 {
		out[31] = 1
		return out, nil
	}
	ok, err := bn254.PairingCheck(g1s, g2s)
	if err != nil {
		return nil, err
	}
	if ok {
		out[31] = 1
	}
	return out, nil
}
