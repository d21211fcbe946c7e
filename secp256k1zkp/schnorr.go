// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package secp256k1zkp

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
	. "github.com/yoss22/bulletproofs"
	"golang.org/x/crypto/blake2b"
)

const (
	// TagPubkeyEven is prepended to a compressed pubkey to signal that the y
	// coordinate is even.
	TagPubkeyEven = 0x02

	// TagPubkeyOdd is prepended to a compressed pubkey to signal that the y
	// coordinate is odd.
	TagPubkeyOdd = 0x03
)

// RandomBytes returns 32 bytes of randomness.
func RandomBytes() [32]byte {
	buf := [32]byte{}
	if _, err := rand.Read(buf[:]); err != nil {
		panic("secp256k1zkp: unable to read random bytes")
	}
	return buf
}

// RandomInt returns a uniformly random scalar from Z_n.
func RandomInt() *big.Int {
	for {
		buf := RandomBytes()
		r := new(big.Int).SetBytes(buf[:])
		if r.Cmp(btcec.S256().N) != 1 {
			return r
		}
	}
}

// Signature is a Schnorr signature: an argument of knowledge that the
// signer possesses the private key for a public key.
type Signature struct {
	S big.Int
	R Point
}

// Bytes serializes the signature as R.x || s.
func (s Signature) Bytes() [64]byte {
	var buf [64]byte
	rx := GetB32(s.R.X)
	sb := GetB32(&s.S)
	copy(buf[0:32], rx[:])
	copy(buf[32:64], sb[:])
	return buf
}

// SignMessage convinces a verifier in zero knowledge that the signer knows
// the private key x for a public key P = x*G.
//
// The prover sends a random curve point R = k*G which acts as a blinding
// factor, the verifier (implicitly, via Fiat-Shamir) issues a challenge e,
// and the prover returns s = k + e*x. The verifier checks s*G == R + e*P.
func SignMessage(publicKey Point, privateKey big.Int, message [32]byte) Signature {
	k := RandomInt()
	R := ScalarMulPoint(&G, k)

	rx := GetB32(R.X)
	compressedPubkey := CompressPubkey(publicKey)
	challenge := ComputeHash(rx[:], compressedPubkey[:], message[:])
	e := new(big.Int).SetBytes(challenge[:])

	s := Sum(k, Mul(e, &privateKey))

	return Signature{S: *s, R: *R}
}

// VerifySignature returns true if signature was produced by signing message
// with the private key for publicKey.
func VerifySignature(publicKey Point, message [32]byte, signature Signature) bool {
	rx := GetB32(signature.R.X)
	compressedPubkey := CompressPubkey(publicKey)

	challenge := ComputeHash(rx[:], compressedPubkey[:], message[:])
	e := new(big.Int).SetBytes(challenge[:])

	lhs := ScalarMulPoint(&G, &signature.S)
	rhs := SumPoints(&signature.R, ScalarMulPoint(&publicKey, e))

	return lhs.X.Cmp(rhs.X) == 0
}

// CommitValue returns the Pedersen commitment to value v with blinding
// factor blind: blind*G + v*H.
func CommitValue(blind, v *big.Int) *Point {
	return SumPoints(
		ScalarMulPoint(&G, blind),
		ScalarMulPoint(&H, v))
}

// CompressPubkey returns p as a 33-byte compressed public key.
func CompressPubkey(p Point) [33]byte {
	var buf [33]byte
	if p.Y.Bit(0) == 1 {
		buf[0] = TagPubkeyOdd
	} else {
		buf[0] = TagPubkeyEven
	}
	x := GetB32(p.X)
	copy(buf[1:33], x[:])
	return buf
}

// decompressPoint derives the y coordinate matching the given oddness for x
// on secp256k1: y^2 = x^3 + 7.
func decompressPoint(xBytes []byte, odd bool) *big.Int {
	x := new(big.Int).SetBytes(xBytes)

	x3 := new(big.Int).Mul(x, x)
	x3.Mul(x3, x)
	x3.Add(x3, btcec.S256().Params().B)

	y := ModSqrtFast(x3)
	if (y.Bit(0) == 1) != odd {
		y = new(big.Int).Sub(btcec.S256().Params().P, y)
	}
	return y
}

// decompressCommitment decompresses a 33-byte tagged commitment into a
// curve point.
func decompressCommitment(c Commitment) (*Point, error) {
	odd := c[0] == TagPubkeyOdd
	x := new(big.Int).SetBytes(c[1:])
	y := decompressPoint(c[1:], odd)
	return &Point{X: x, Y: y}, nil
}

// DecodeSignature reads a 64-byte R.x||s signature. The sign of R.y is not
// recoverable from the compressed form the teacher used; since only R.x
// enters the Fiat-Shamir challenge and the final equality check compares
// x-coordinates, the even root is used uniformly.
func DecodeSignature(signature [64]byte) Signature {
	s := new(big.Int).SetBytes(signature[32:64])

	R := new(Point)
	R.X = new(big.Int).SetBytes(signature[0:32])
	R.Y = decompressPoint(signature[0:32], false)

	return Signature{S: *s, R: *R}
}

// ComputeHash returns the Blake2b-256 digest of the concatenation of
// inputs, used as the Fiat-Shamir challenge for Schnorr signatures.
func ComputeHash(inputs ...[]byte) [32]byte {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	for _, in := range inputs {
		hasher.Write(in)
	}
	var result [32]byte
	copy(result[:], hasher.Sum(nil))
	return result
}

// ComputeMessage encodes a kernel's features, fee, lock height and relative
// height into the 32-byte message a kernel's excess signature signs. This
// generalizes the teacher's fee/lockHeight-only message to the full
// KernelFeatures set (spec.md §3): byte 0 carries the feature flags, bytes
// 1-7 are zero, bytes 8-15 the fee, bytes 16-23 the lock height, and bytes
// 24-31 the relative height used by NoRecentDuplicate kernels (zero
// otherwise), each big-endian.
func ComputeMessage(features uint8, fee, lockHeight, relativeHeight uint64) [32]byte {
	var msg [32]byte
	msg[0] = features
	binary.BigEndian.PutUint64(msg[8:16], fee)
	binary.BigEndian.PutUint64(msg[16:24], lockHeight)
	binary.BigEndian.PutUint64(msg[24:32], relativeHeight)
	return msg
}

func newByteReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
