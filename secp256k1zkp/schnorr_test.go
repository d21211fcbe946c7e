package secp256k1zkp

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	. "github.com/yoss22/bulletproofs"
)

func decompressPointFromHex(s string) *Point {
	point := new(Point)
	b, _ := hex.DecodeString(s)
	if err := point.Read(bytes.NewReader(b)); err != nil {
		panic(err)
	}
	return point
}

func TestVerifySignature(t *testing.T) {
	// Private key
	x := big.NewInt(8)

	// Public key for x.
	P := ScalarMulPoint(&G, x)

	msg := [32]byte{}

	// Create a signature for msg using the private key x.
	sig := SignMessage(*P, *x, msg)

	// Verify that msg was signed with the private key for P.
	if !VerifySignature(*P, msg, sig) {
		t.Errorf("failed to verify signature")
	}
}

func TestVerifyKernelSignature(t *testing.T) {
	// The excess is a Pedersen commitment to zero: P = blind*G + 0*H, so its
	// private key (for signing purposes) is just the blinding factor.
	blind := big.NewInt(42)
	excess := CommitValue(blind, big.NewInt(0))

	const (
		features        = uint8(0) // plain kernel
		fee             = uint64(2)
		lockHeight      = uint64(0)
		relativeHeight  = uint64(0)
	)

	msg := ComputeMessage(features, fee, lockHeight, relativeHeight)
	sig := SignMessage(*excess, *blind, msg)

	if !VerifySignature(*excess, msg, sig) {
		t.Errorf("verify failed")
	}

	// A different fee changes the message and must invalidate the signature.
	if VerifySignature(*excess, ComputeMessage(features, fee+1, lockHeight, relativeHeight), sig) {
		t.Errorf("signature verified against a tampered fee")
	}
}

func TestCommitmentRoundTrip(t *testing.T) {
	blind := big.NewInt(7)
	value := big.NewInt(1000)

	commit := Commit(blind, value)
	if len(commit) != PedersenCommitmentSize {
		t.Fatalf("commitment has wrong size: %d", len(commit))
	}

	p, err := commit.Point()
	if err != nil {
		t.Fatalf("failed to decompress commitment: %v", err)
	}

	back := CommitmentFromPoint(p)
	if !bytes.Equal(commit, back) {
		t.Errorf("commitment did not round-trip through decompression")
	}
}
