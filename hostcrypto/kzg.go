package hostcrypto

import (
	"crypto/sha256"
	"encoding/binary"

	gokzg4844 "github.com/crate-crypto/go-kzg-4844"
)

// blobVersionedHashVersion is the KZG versioned-hash prefix byte (EIP-4844).
const blobVersionedHashVersion = 0x01

// pointEvaluationGas is the fixed gas cost of address 0x14 (EIP-4844).
const pointEvaluationGas = 50000

// fieldElementsPerBlob and blsModulus mirror the EIP-4844 point evaluation
// precompile's canonical output, returned to the caller on success so it can
// be checked against the known constants without a second round trip.
var (
	fieldElementsPerBlob = [32]byte{}
	blsModulusBytes      = [32]byte{}
)

func init() {
	binary.BigEndian.PutUint64(fieldElementsPerBlob[24:], 4096)
	// 52435875175126190479447740508185965837690552500527637822603658699938581184513
	copy(blsModulusBytes[:], []byte{
		0x73, 0xed, 0xa7, 0x53, 0x29, 0x9d, 0x7d, 0x48, 0x33, 0x39, 0xd8, 0x08, 0x09, 0xa1, 0xd8, 0x05,
		0x53, 0xbd, 0xa4, 0x02, 0xff, 0xfe, 0x5b, 0xfe, 0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x01,
	})
}

var kzgCtx, kzgCtxErr = gokzg4844.NewContext4096Secure()

// kzgPointEvalPrecompile is address 0x14 (EIP-4844): verifies a KZG proof
// that a blob's polynomial evaluates to y at point z, given the blob's
// versioned commitment hash. crate-crypto/go-kzg-4844 (already part of the
// teacher's dependency graph, transitively, via go-ethereum) does the actual
// pairing check.
type kzgPointEvalPrecompile struct{}

func (kzgPointEvalPrecompile) RequiredGas([]byte) uint64 { return pointEvaluationGas }

func (kzgPointEvalPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) != 192 {
		return nil, ErrNotImplemented
	}
	if kzgCtxErr != nil {
		return nil, kzgCtxErr
	}

	versionedHash := input[0:32]
	var z, y gokzg4844.Scalar
	copy(z[:], input[32:64])
	copy(y[:], input[64:96])
	var commitment gokzg4844.KZGCommitment
	copy(commitment[:], input[96:144])
	var proof gokzg4844.KZGProof
	copy(proof[:], input[144:192])

	if versionedHash[0] != blobVersionedHashVersion {
		return nil, ErrNotImplemented
	}
	sum := sha256.Sum256(commitment[:])
	computed := sum[:]
	computed[0] = blobVersionedHashVersion
	if string(computed) != string(versionedHash) {
		return nil, ErrNotImplemented
	}

	if err := kzgCtx.VerifyKZGProof(commitment, z, y, proof); err != nil {
		return nil, err
	}

	out := make([]byte, 64)
	copy(out[0:32], fieldElementsPerBlob[:])
	copy(out[32:64], blsModulusBytes[:])
	return out, nil
}
