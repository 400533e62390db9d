package hostcrypto

import "encoding/binary"

// blake2FPrecompile is address 0x09 (EIP-152): exposes the raw BLAKE2b
// compression function F so on-chain code can implement BLAKE2b itself.
// golang.org/x/crypto/blake2b, like every other available BLAKE2b library,
// hashes whole messages; none exposes a single compression round over a
// caller-supplied chaining value, so this is a from-scratch implementation
// of the function F as defined by RFC 7693 / EIP-152.
type blake2FPrecompile struct{}

func (blake2FPrecompile) RequiredGas(input []byte) uint64 {
	if len(input) < 4 {
		return 0
	}
	return uint64(binary.BigEndian.Uint32(input[:4]))
}

func (blake2FPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) != 213 {
		return nil, ErrNotImplemented
	}
	rounds := binary.BigEndian.Uint32(input[:4])
	final := input[212]
	if final != 0 && final != 1 {
		return nil, ErrNotImplemented
	}

	var h [8]uint64
	for i := range h {
		h[i] = binary.LittleEndian.Uint64(input[4+i*8 : 12+i*8])
	}
	var m [16]uint64
	for i := range m {
		m[i] = binary.LittleEndian.Uint64(input[68+i*8 : 76+i*8])
	}
	t0 := binary.LittleEndian.Uint64(input[196:204])
	t1 := binary.LittleEndian.Uint64(input[204:212])

	blake2bCompress(&h, m, [2]uint64{t0, t1}, final == 1, rounds)

	out := make([]byte, 64)
	for i, v := range h {
		binary.LittleEndian.PutUint64(out[i*8:i*8+8], v)
	}
	return out, nil
}

var blake2bIV = [8]uint64{
	0x6a09e667f3bcc908, 0xbb67ae8584caa73b,
	0x3c6ef372fe94f82b, 0xa54ff53a5f1d36f1,
	0x510e527fade682d1, 0x9b05688c2b3e6c1f,
	0x1f83d9abfb41bd6b, 0x5be0cd19137e2179,
}

var blake2bSigma = [10][16]byte{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	{14, 10, 4, 8, 9, 15, 13, 6, 1, 12, 0, 2, 11, 7, 5, 3},
	{11, 8, 12, 0, 5, 2, 15, 13, 10, 14, 3, 6, 7, 1, 9, 4},
	{7, 9, 3, 1, 13, 12, 11, 14, 2, 6, 5, 10, 4, 0, 15, 8},
	{9, 0, 5, 7, 2, 4, 10, 15, 14, 1, 11, 12, 6, 8, 3, 13},
	{2, 12, 6, 10, 0, 11, 8, 3, 4, 13, 7, 5, 15, 14, 1, 9},
	{12, 5, 1, 15, 14, 13, 4, 10, 0, 7, 6, 3, 9, 2, 8, 11},
	{13, 11, 7, 14, 12, 1, 3, 9, 5, 0, 15, 4, 8, 6, 2, 10},
	{6, 15, 14, 9, 11, 3, 0, 8, 12, 2, 13, 7, 1, 4, 10, 5},
	{10, 2, 8, 4, 7, 6, 1, 5, 15, 11, 9, 14, 3, 12, 13, 0},
}

func rotr64(x uint64, n uint) uint64 { return (x >> n) | (x << (64 - n)) }

// blake2bCompress runs rounds rounds of the BLAKE2b mixing function G over
// chaining value h, message block m, offset counters t, modifying h in
// place. final marks the last block of the message.
func blake2bCompress(h *[8]uint64, m [16]uint64, t [2]uint64, final bool, rounds uint32) {
	var v [16]uint64
	copy(v[:8], h[:])
	copy(v[8:], blake2bIV[:])
	v[12] ^= t[0]
	v[13] ^= t[1]
	if final {
		v[14] = ^v[14]
	}

	g := func(a, b, c, d, x, y int) {
		v[a] = v[a] + v[b] + m[x]
		v[d] = rotr64(v[d]^v[a], 32)
		v[c] = v[c] + v[d]
		v[b] = rotr64(v[b]^v[c], 24)
		v[a] = v[a] + v[b] + m[y]
		v[d] = rotr64(v[d]^v[a], 16)
		v[c] = v[c] + v[d]
		v[b] = rotr64(v[b]^v[c], 63)
	}

	for r := uint32(0); r < rounds; r++ {
		s := blake2bSigma[r%10]
		g(0, 4, 8, 12, int(s[0]), int(s[1]))
		g(1, 5, 9, 13, int(s[2]), int(s[3]))
		g(2, 6, 10, 14, int(s[4]), int(s[5]))
		g(3, 7, 11, 15, int(s[6]), int(s[7]))
		g(0, 5, 10, 15, int(s[8]), int(s[9]))
		g(1, 6, 11, 12, int(s[10]), int(s[11]))
		g(2, 7, 8, 13, int(s[12]), int(s[13]))
		g(3, 4, 9, 14, int(s[14]), int(s[15]))
	}

	for i := 0; i < 8; i++ {
		h[i] ^= v[i] ^ v[i+8]
	}
}
