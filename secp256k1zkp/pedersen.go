// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package secp256k1zkp wraps the curve arithmetic (yoss22/bulletproofs,
// btcsuite/btcd/btcec) behind the Pedersen-commitment and Schnorr-signature
// primitives the consensus package signs and verifies against. Commitments
// are represented on the wire and in memory as a single 33-byte compressed
// point type so Input and Output share one Commit field, per spec.md §3.
package secp256k1zkp

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/yoss22/bulletproofs"
)

const (
	// PedersenCommitmentSize is the wire size of a compressed Pedersen
	// commitment.
	PedersenCommitmentSize = 33

	// SecretKeySize is the size of a blinding factor / secret scalar.
	SecretKeySize = 32

	// MaxSignatureSize is the wire size of a Schnorr signature (R.x || s).
	MaxSignatureSize = 64

	// MaxProofSize is the maximum serialized size of a bulletproof range
	// proof.
	MaxProofSize = 5134
)

// Commitment is a compressed Pedersen commitment: blind*G + value*H,
// encoded the same way as a compressed secp256k1 public key.
type Commitment []byte

// Bytes returns the raw wire bytes of the commitment.
func (c Commitment) Bytes() []byte {
	return c
}

// Read reads a commitment of PedersenCommitmentSize bytes from r.
func (c *Commitment) Read(r io.Reader) error {
	buf := make([]byte, PedersenCommitmentSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	*c = buf
	return nil
}

// String implements fmt.Stringer.
func (c Commitment) String() string {
	return fmt.Sprintf("%x", []byte(c))
}

// Point decompresses c into a curve point.
func (c Commitment) Point() (*bulletproofs.Point, error) {
	if len(c) != PedersenCommitmentSize {
		return nil, fmt.Errorf("secp256k1zkp: invalid commitment length %d", len(c))
	}
	return decompressCommitment(c)
}

// CommitmentFromPoint compresses p into a Commitment.
func CommitmentFromPoint(p *bulletproofs.Point) Commitment {
	buf := CompressPubkey(*p)
	return Commitment(buf[:])
}

// Commit returns the Pedersen commitment to value with blinding factor
// blind: blind*G + value*H.
func Commit(blind, value *big.Int) Commitment {
	return CommitmentFromPoint(CommitValue(blind, value))
}

// Sum returns the commitment to the sum of the values/blinds committed to
// by positive, minus the sum of those committed to by negative. Pedersen
// commitments are additively homomorphic, so this is just curve point
// addition/subtraction.
func Sum(positive, negative []Commitment) (Commitment, error) {
	var acc *bulletproofs.Point

	add := func(c Commitment, negate bool) error {
		p, err := c.Point()
		if err != nil {
			return err
		}
		if negate {
			p = &bulletproofs.Point{X: p.X, Y: new(big.Int).Neg(p.Y)}
		}
		if acc == nil {
			acc = p
			return nil
		}
		acc = SumPoints(acc, p)
		return nil
	}

	for _, c := range positive {
		if err := add(c, false); err != nil {
			return nil, err
		}
	}
	for _, c := range negative {
		if err := add(c, true); err != nil {
			return nil, err
		}
	}

	if acc == nil {
		return nil, errors.New("secp256k1zkp: sum of zero commitments")
	}

	return CommitmentFromPoint(acc), nil
}

// VerifyRangeProof returns nil if proof is a valid 0..2^64 range proof for
// commit.
func VerifyRangeProof(commit Commitment, proof []byte) error {
	p, err := commit.Point()
	if err != nil {
		return err
	}

	bp := new(bulletproofs.BulletProof)
	if err := bp.Read(newByteReader(proof)); err != nil {
		return fmt.Errorf("secp256k1zkp: malformed range proof: %w", err)
	}

	prover := bulletproofs.NewProver(64)
	if !prover.Verify(p, *bp) {
		return errors.New("secp256k1zkp: range proof verification failed")
	}

	return nil
}
