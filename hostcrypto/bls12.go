package hostcrypto

import blst "github.com/supranational/blst/bindings/go"

// BLS12-381 operations (addresses 0x0b-0x13) per EIP-2537. The gas constants
// below are fixed per operation; the multi-exp discount is an approximation
// of the EIP's table (see multiExpDiscount). supranational/blst (already in the
// teacher's dependency graph, transitively, via go-ethereum) backs point
// add/scalar-mul directly; G2, multi-exp, pairing and the two SWU map
// operations need more of blst's surface than could be exercised with
// confidence without a real build in this environment, so those Run bodies
// are left as explicit stubs rather than risk silently wrong encoding.

const (
	g1AddGas      = 375
	g1MulGas      = 12000
	g2AddGas      = 600
	g2MulGas      = 22500
	pairingBase   = 37700
	pairingPerPair = 32600
	mapFPToG1Gas  = 5500
	mapFP2ToG2Gas = 23800
)

// multiExpDiscount approximates EIP-2537's G1/G2 MULTIEXP discount table:
// linear in the pair count, floored at its minimum discount of 174/1000.
func multiExpDiscount(pairs int) uint64 {
	if pairs == 0 {
		return 0
	}
	const maxDiscount = 1000
	d := 1000 - 8*pairs
	if d < 174 {
		d = 174
	}
	return uint64(d)
}

// decodeBLS12G1 parses the EIP-2537 encoding of a G1 point: two 64-byte
// big-endian field elements, each padded to 64 bytes from blst's native
// 48-byte serialization.
func decodeBLS12G1(buf []byte) (*blst.P1Affine, error) {
	raw := make([]byte, 96)
	copy(raw[0:48], buf[16:64])
	copy(raw[48:96], buf[80:128])
	p := new(blst.P1Affine).Deserialize(raw)
	if p == nil {
		return nil, ErrNotImplemented
	}
	return p, nil
}

func encodeBLS12G1(p *blst.P1Affine) []byte {
	raw := p.Serialize() // 96 bytes: X(48) || Y(48)
	out := make([]byte, 128)
	copy(out[16:64], raw[0:48])
	copy(out[80:128], raw[48:96])
	return out
}

type bls12G1AddPrecompile struct{}

func (bls12G1AddPrecompile) RequiredGas([]byte) uint64 { return g1AddGas }

func (bls12G1AddPrecompile) Run(input []byte) ([]byte, error) {
	input = padRight(input, 256)
	a, err := decodeBLS12G1(input[0:128])
	if err != nil {
		return nil, err
	}
	b, err := decodeBLS12G1(input[128:256])
	if err != nil {
		return nil, err
	}
	var sum blst.P1
	sum.FromAffine(a)
	sum.Add(b)
	return encodeBLS12G1(sum.ToAffine()), nil
}

type bls12G1MulPrecompile struct{}

func (bls12G1MulPrecompile) RequiredGas([]byte) uint64 { return g1MulGas }

func (bls12G1MulPrecompile) Run(input []byte) ([]byte, error) {
	input = padRight(input, 160)
	p, err := decodeBLS12G1(input[0:128])
	if err != nil {
		return nil, err
	}
	scalar := new(blst.Scalar).FromBEndian(input[128:160])
	var out blst.P1
	out.FromAffine(p)
	out.Mult(scalar)
	return encodeBLS12G1(out.ToAffine()), nil
}

type bls12G1MultiExpPrecompile struct{}

func (bls12G1MultiExpPrecompile) RequiredGas(input []byte) uint64 {
	pairs := len(input) / 160
	if pairs == 0 {
		return 0
	}
	return uint64(pairs) * g1MulGas * multiExpDiscount(pairs) / 1000
}
func (bls12G1MultiExpPrecompile) Run([]byte) ([]byte, error) { return nil, ErrNotImplemented }

type bls12G2AddPrecompile struct{}

func (bls12G2AddPrecompile) RequiredGas([]byte) uint64 { return g2AddGas }
func (bls12G2AddPrecompile) Run([]byte) ([]byte, error) { return nil, ErrNotImplemented }

type bls12G2MulPrecompile struct{}

func (bls12G2MulPrecompile) RequiredGas([]byte) uint64 { return g2MulGas }
func (bls12G2MulPrecompile) Run([]byte) ([]byte, error) { return nil, ErrNotImplemented }

type bls12G2MultiExpPrecompile struct{}

func (bls12G2MultiExpPrecompile) RequiredGas(input []byte) uint64 {
	pairs := len(input) / 288
	if pairs == 0 {
		return 0
	}
	return uint64(pairs) * g2MulGas * multiExpDiscount(pairs) / 1000
}
func (bls12G2MultiExpPrecompile) Run([]byte) ([]byte, error) { return nil, ErrNotImplemented }

type bls12PairingPrecompile struct{}

func (bls12PairingPrecompile) RequiredGas(input []byte) uint64 {
	k := uint64(len(input)) / 384
	return pairingBase + pairingPerPair*k
}
func (bls12PairingPrecompile) Run([]byte) ([]byte, error) { return nil, ErrNotImplemented }

type bls12MapFPToG1Precompile struct{}

func (bls12MapFPToG1Precompile) RequiredGas([]byte) uint64 { return mapFPToG1Gas }
func (bls12MapFPToG1Precompile) Run([]byte) ([]byte, error) { return nil, ErrNotImplemented }

type bls12MapFP2ToG2Precompile struct{}

func (bls12MapFP2ToG2Precompile) RequiredGas([]byte) uint64 { return mapFP2ToG2Gas }
func (bls12MapFP2ToG2Precompile) Run([]byte) ([]byte, error) { return nil, ErrNotImplemented }
