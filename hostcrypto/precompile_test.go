package hostcrypto

import (
	"bytes"
	"crypto/sha256"
	"math/big"
	"testing"
)

func TestRegistryCoversAllCanonicalAddresses(t *testing.T) {
	for _, addr := range []struct {
		name string
		addr [20]byte
	}{
		{"ecrecover", AddrEcrecover},
		{"sha256", AddrSHA256},
		{"ripemd160", AddrRipemd160},
		{"identity", AddrIdentity},
		{"modexp", AddrModExp},
		{"bn254add", AddrBn254Add},
		{"bn254mul", AddrBn254ScalarMul},
		{"bn254pairing", AddrBn254Pairing},
		{"blake2f", AddrBlake2F},
		{"kzg", AddrKZGPointEval},
	} {
		if !IsPrecompile(addr.addr) {
			t.Fatalf("%s: expected a registered precompile", addr.name)
		}
	}
}

func TestSHA256Precompile(t *testing.T) {
	p := sha256Precompile{}
	input := []byte("hello world")
	out, err := p.Run(input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := sha256.Sum256(input)
	if !bytes.Equal(out, want[:]) {
		t.Fatalf("got %x want %x", out, want)
	}
	if p.RequiredGas(input) != 60+12 {
		t.Fatalf("gas = %d, want %d", p.RequiredGas(input), 60+12)
	}
}

func TestIdentityPrecompile(t *testing.T) {
	p := identityPrecompile{}
	input := []byte{1, 2, 3, 4, 5}
	out, err := p.Run(input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Fatalf("identity must return its input unchanged")
	}
}

func TestModExpPrecompile(t *testing.T) {
	p := modExpPrecompile{}
	// base=3, exp=2, mod=5 -> 9 mod 5 = 4, each a 1-byte value.
	input := make([]byte, 0, 96+3)
	input = append(input, leftPad32(1)...)
	input = append(input, leftPad32(1)...)
	input = append(input, leftPad32(1)...)
	input = append(input, 3, 2, 5)
	out, err := p.Run(input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := new(big.Int).SetBytes(out)
	if got.Uint64() != 4 {
		t.Fatalf("3^2 mod 5 = %d, want 4", got.Uint64())
	}
}

func leftPad32(v uint64) []byte {
	out := make([]byte, 32)
	b := new(big.Int).SetUint64(v).Bytes()
	copy(out[32-len(b):], b)
	return out
}

func TestBlake2FRejectsWrongLength(t *testing.T) {
	p := blake2FPrecompile{}
	if _, err := p.Run([]byte{0x01}); err == nil {
		t.Fatal("expected an error for a non-213-byte input")
	}
}

func TestBlake2FCompressIsDeterministic(t *testing.T) {
	var h1, h2 [8]uint64
	for i := range h1 {
		h1[i] = uint64(i + 1)
		h2[i] = uint64(i + 1)
	}
	m := [16]uint64{}
	blake2bCompress(&h1, m, [2]uint64{0, 0}, false, 12)
	blake2bCompress(&h2, m, [2]uint64{0, 0}, false, 12)
	if h1 != h2 {
		t.Fatal("compression of identical inputs must be deterministic")
	}
}
