// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/grincore/node/secp256k1zkp"
	"github.com/sirupsen/logrus"
	"github.com/yoss22/bulletproofs"
)

// OutputFeatures are options for an output's structure or use.
type OutputFeatures uint8

const (
	// DefaultOutput carries no special flags.
	DefaultOutput OutputFeatures = 0
	// CoinbaseOutput marks an output as a coinbase output, which must not
	// be spent before it matures.
	CoinbaseOutput OutputFeatures = 1 << 0
)

func (f OutputFeatures) String() string {
	if f&CoinbaseOutput != 0 {
		return "Coinbase"
	}
	return "Plain"
}

// KernelFeatures are options for a kernel's structure or use. Expanded from
// the teacher's single CoinbaseKernel bit into the full set of kernel
// variants spec.md §3 requires.
type KernelFeatures uint8

const (
	// PlainKernel is an ordinary transaction kernel.
	PlainKernel KernelFeatures = iota
	// CoinbaseKernel matches a coinbase output.
	CoinbaseKernel
	// HeightLockedKernel is only valid on or after LockHeight.
	HeightLockedKernel
	// NoRecentDuplicateKernel (NRD) forbids another kernel with the same
	// excess appearing again within RelativeHeight blocks.
	NoRecentDuplicateKernel
)

func (f KernelFeatures) String() string {
	switch f {
	case CoinbaseKernel:
		return "Coinbase"
	case HeightLockedKernel:
		return "HeightLocked"
	case NoRecentDuplicateKernel:
		return "NoRecentDuplicate"
	default:
		return "Plain"
	}
}

// BlockID identifies a block by hash or height (whichever is non-nil).
type BlockID struct {
	Hash   Hash
	Height *uint64
}

// Block is a full grin block: a header plus the set of inputs, outputs and
// kernels it contributes (cut-through already applied within the block).
type Block struct {
	Header  BlockHeader
	Inputs  InputList
	Outputs OutputList
	Kernels TxKernelList
}

// Weight returns the block's total weight against MaxBlockWeight, per
// spec.md §3's input/output/kernel weighting.
func (b *Block) Weight(params ConsensusParams) uint64 {
	return uint64(len(b.Inputs))*params.BlockInputWeight +
		uint64(len(b.Outputs))*params.BlockOutputWeight +
		uint64(len(b.Kernels))*params.BlockKernelWeight
}

// Bytes returns the canonical wire encoding of the block.
func (b *Block) Bytes() []byte {
	buff := new(bytes.Buffer)
	buff.Write(b.Header.Bytes())

	mustWrite(buff, uint64(len(b.Inputs)))
	mustWrite(buff, uint64(len(b.Outputs)))
	mustWrite(buff, uint64(len(b.Kernels)))

	// Consensus rule: inputs, outputs, kernels MUST be sorted on the wire.
	sort.Sort(b.Inputs)
	sort.Sort(b.Outputs)
	sort.Sort(b.Kernels)

	for _, input := range b.Inputs {
		buff.Write(input.Bytes())
	}
	for _, output := range b.Outputs {
		buff.Write(output.Bytes())
	}
	for _, kernel := range b.Kernels {
		buff.Write(kernel.Bytes())
	}

	return buff.Bytes()
}

// Type implements the p2p Message interface.
func (b *Block) Type() uint8 { return MsgTypeBlock }

// Read deserializes a Block from r.
func (b *Block) Read(r io.Reader) error {
	if err := b.Header.Read(r); err != nil {
		return err
	}

	var inputs, outputs, kernels uint64
	if err := binary.Read(r, binary.BigEndian, &inputs); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &outputs); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &kernels); err != nil {
		return err
	}

	if inputs > 1000000 || outputs > 1000000 || kernels > 1000000 {
		return errors.New("block contains an implausible number of inputs/outputs/kernels")
	}

	b.Inputs = make(InputList, inputs)
	for i := range b.Inputs {
		if err := b.Inputs[i].Read(r); err != nil {
			return err
		}
	}

	b.Outputs = make(OutputList, outputs)
	for i := range b.Outputs {
		if err := b.Outputs[i].Read(r); err != nil {
			return err
		}
	}

	b.Kernels = make(TxKernelList, kernels)
	for i := range b.Kernels {
		if err := b.Kernels[i].Read(r); err != nil {
			return err
		}
	}

	return nil
}

func (b Block) String() string { return fmt.Sprintf("%#v", b) }

// Hash returns the block's hash, which is its header's hash.
func (b *Block) Hash() Hash { return b.Header.Hash() }

// ValidateStructure runs the block-scope consensus checks that do not
// require chain context (sortedness, coinbase cardinality, range proofs,
// kernel signatures, header/PoW). Checks that require UTXO/MMR state
// (kernel sum balance, output/kernel roots) belong to the chain package's
// apply-block pipeline, per spec.md §4.4.
func (b *Block) ValidateStructure(params ConsensusParams) error {
	if err := b.Header.Validate(params); err != nil {
		return err
	}

	if len(b.Outputs) == 0 || len(b.Kernels) == 0 {
		return errors.New("block has no coinbase output or kernel")
	}

	if err := b.verifySorted(); err != nil {
		return err
	}
	if err := b.verifyCoinbase(); err != nil {
		return err
	}
	if err := b.verifyRangeProofs(); err != nil {
		return err
	}
	if err := b.verifyKernelSignatures(); err != nil {
		return err
	}

	return nil
}

func (b *Block) verifyCoinbase() error {
	coinbaseOutputs := 0
	for _, output := range b.Outputs {
		if output.Features&CoinbaseOutput == CoinbaseOutput {
			coinbaseOutputs++
			if coinbaseOutputs > MaxBlockCoinbaseOutputs {
				return errors.New("block has too many coinbase outputs")
			}
		}
	}

	coinbaseKernels := 0
	for _, kernel := range b.Kernels {
		if kernel.Features == CoinbaseKernel {
			coinbaseKernels++
			if coinbaseKernels > MaxBlockCoinbaseKernels {
				return errors.New("block has too many coinbase kernels")
			}
		}
	}

	if coinbaseOutputs == 0 || coinbaseKernels == 0 {
		return errors.New("block is missing its coinbase output or kernel")
	}

	return nil
}

func (b *Block) verifyKernelSignatures() error {
	for i := range b.Kernels {
		if err := b.Kernels[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// verifySorted checks that inputs, outputs and kernels are in canonical
// sorted order.
func (b *Block) verifySorted() error {
	if !sort.IsSorted(b.Inputs) {
		return errors.New("block inputs are not sorted")
	}
	if !sort.IsSorted(b.Outputs) {
		return errors.New("block outputs are not sorted")
	}
	if !sort.IsSorted(b.Kernels) {
		return errors.New("block kernels are not sorted")
	}
	return nil
}

// verifyRangeProofs returns nil if every output carries a valid range
// proof for its commitment.
func (b *Block) verifyRangeProofs() error {
	for _, output := range b.Outputs {
		if err := secp256k1zkp.VerifyRangeProof(output.Commit, output.RangeProof.Bytes()); err != nil {
			return fmt.Errorf("range proof verification failed for output %s: %w", output.Commit, err)
		}
	}
	return nil
}

// CompactBlock is the compact representation of a full block: it carries
// the header, the outputs and kernels it lists in full (Outputs, Kernels),
// and the remaining kernels as short ids (KernelIDs). Inputs are not
// carried. A peer that has already seen the transaction data (via normal
// relay) can hydrate the block from its own mempool instead of
// re-downloading it.
type CompactBlock struct {
	Header    BlockHeader
	Outputs   OutputList
	Kernels   TxKernelList
	KernelIDs ShortIDList
}

// Bytes returns the canonical wire encoding of the compact block.
func (b *CompactBlock) Bytes() []byte {
	buff := new(bytes.Buffer)
	buff.Write(b.Header.Bytes())

	mustWrite(buff, uint8(len(b.Outputs)))
	mustWrite(buff, uint8(len(b.Kernels)))
	mustWrite(buff, uint64(len(b.KernelIDs)))

	sort.Sort(b.Outputs)
	sort.Sort(b.Kernels)
	sort.Sort(b.KernelIDs)

	for _, output := range b.Outputs {
		buff.Write(output.Bytes())
	}
	for _, kernel := range b.Kernels {
		buff.Write(kernel.Bytes())
	}
	for _, id := range b.KernelIDs {
		buff.Write(id)
	}

	return buff.Bytes()
}

// Type implements the p2p Message interface.
func (b *CompactBlock) Type() uint8 { return MsgTypeCompactBlock }

// Read deserializes a CompactBlock from r.
func (b *CompactBlock) Read(r io.Reader) error {
	if err := b.Header.Read(r); err != nil {
		return err
	}

	var outputs, kernels uint8
	var kernelIDs uint64

	if err := binary.Read(r, binary.BigEndian, &outputs); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &kernels); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &kernelIDs); err != nil {
		return err
	}

	b.Outputs = make(OutputList, outputs)
	for i := range b.Outputs {
		if err := b.Outputs[i].Read(r); err != nil {
			return err
		}
	}

	b.Kernels = make(TxKernelList, kernels)
	for i := range b.Kernels {
		if err := b.Kernels[i].Read(r); err != nil {
			return err
		}
	}

	b.KernelIDs = make(ShortIDList, kernelIDs)
	for i := range b.KernelIDs {
		id := make(ShortID, ShortIDSize)
		if _, err := io.ReadFull(r, id); err != nil {
			return err
		}
		b.KernelIDs[i] = id
	}

	return nil
}

func (b CompactBlock) String() string { return fmt.Sprintf("%#v", b) }

// Hash returns the compact block's hash (its header's hash).
func (b *CompactBlock) Hash() Hash { return b.Header.Hash() }

// BlockList is an ordered list of blocks, newest first. NextDifficulty does
// not take it; the retarget window is a []HeaderInfo.
type BlockList []Block

// Input is a reference to an output being spent by a transaction.
type Input struct {
	Features OutputFeatures
	Commit   secp256k1zkp.Commitment
}

// Bytes returns the canonical wire encoding of the input.
func (input *Input) Bytes() []byte {
	buff := new(bytes.Buffer)
	mustWrite(buff, uint8(input.Features))
	buff.Write(input.Commit.Bytes())
	return buff.Bytes()
}

// Read deserializes an Input from r.
func (input *Input) Read(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &input.Features); err != nil {
		return err
	}
	return input.Commit.Read(r)
}

// Hash returns a hash of the serialised input, used only for canonical
// ordering (spec.md §6 orders lists by serialized-identifier).
func (input *Input) Hash() Hash {
	return Blake2b(input.Bytes())
}

// InputList is a sortable list of inputs, ordered by commitment hash.
type InputList []Input

func (m InputList) Len() int      { return len(m) }
func (m InputList) Swap(i, j int) { m[i], m[j] = m[j], m[i] }
func (m InputList) Less(i, j int) bool {
	return bytes.Compare(m[i].Hash(), m[j].Hash()) < 0
}

// Output is a transaction output: a Pedersen commitment to an amount, a
// range proof guaranteeing the amount is non-negative, and a features flag.
//
// The hash of an output covers only its features and commitment; the range
// proof is committed to separately (its own hash folds into RangeProofRoot).
type Output struct {
	Features   OutputFeatures
	Commit     secp256k1zkp.Commitment
	RangeProof bulletproofs.BulletProof
}

// BytesWithoutProof returns the output's encoding excluding the range
// proof, used for the output's identity hash.
func (o *Output) BytesWithoutProof() []byte {
	buff := new(bytes.Buffer)
	mustWrite(buff, uint8(o.Features))
	buff.Write(o.Commit.Bytes())
	return buff.Bytes()
}

// Bytes returns the canonical wire encoding of the output.
func (o *Output) Bytes() []byte {
	buff := new(bytes.Buffer)
	buff.Write(o.BytesWithoutProof())

	proof := o.RangeProof.Bytes()
	mustWrite(buff, uint64(len(proof)))
	buff.Write(proof)

	return buff.Bytes()
}

// Read deserializes an Output from r.
func (o *Output) Read(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, (*uint8)(&o.Features)); err != nil {
		return err
	}

	if err := o.Commit.Read(r); err != nil {
		return err
	}

	var proofLen uint64
	if err := binary.Read(r, binary.BigEndian, &proofLen); err != nil {
		return err
	}
	if proofLen > secp256k1zkp.MaxProofSize {
		return fmt.Errorf("invalid range proof length: %d", proofLen)
	}

	proof := new(bulletproofs.BulletProof)
	if err := proof.Read(io.LimitReader(r, int64(proofLen))); err != nil {
		return errors.New("failed to deserialize range proof")
	}
	o.RangeProof = *proof

	return nil
}

func (o Output) String() string { return fmt.Sprintf("%#v", o) }

// Hash returns a hash of the output's identity (features + commitment).
func (o *Output) Hash() Hash {
	return Blake2b(o.BytesWithoutProof())
}

// OutputList is a sortable list of outputs, ordered by output hash.
type OutputList []Output

func (m OutputList) Len() int      { return len(m) }
func (m OutputList) Swap(i, j int) { m[i], m[j] = m[j], m[i] }
func (m OutputList) Less(i, j int) bool {
	return bytes.Compare(m[i].Hash(), m[j].Hash()) < 0
}

// SwitchCommitHash is the stored switch-commitment hash of an output.
type SwitchCommitHash []byte

// TxKernel is a proof that a transaction (or an aggregate of transactions)
// sums to zero: the Pedersen commitment excess is a valid public key, and
// the accompanying signature proves knowledge of its private key without
// revealing any amount.
type TxKernel struct {
	Features KernelFeatures
	// Fee paid by the transaction this kernel is part of.
	Fee uint64
	// LockHeight: this kernel (and its transaction) is invalid before this
	// height. Only meaningful when Features == HeightLockedKernel.
	LockHeight uint64
	// RelativeHeight: for NoRecentDuplicateKernel kernels, the number of
	// blocks within which another kernel with the same Excess is forbidden.
	RelativeHeight uint16
	// Excess is the remainder of the transaction's commitments; if the
	// transaction is well-formed this is a commitment to zero.
	Excess secp256k1zkp.Commitment
	// ExcessSig is the Schnorr signature over the kernel's message, proving
	// possession of Excess's private key.
	ExcessSig [64]byte
}

// Message returns the 32-byte message this kernel's signature signs.
func (k *TxKernel) Message() [32]byte {
	return secp256k1zkp.ComputeMessage(uint8(k.Features), k.Fee, k.LockHeight, uint64(k.RelativeHeight))
}

// Hash returns a hash of the serialised kernel.
func (k *TxKernel) Hash() Hash {
	return Blake2b(k.Bytes())
}

// Bytes returns the canonical wire encoding of the kernel.
func (k *TxKernel) Bytes() []byte {
	buff := new(bytes.Buffer)
	mustWrite(buff, uint8(k.Features))
	mustWrite(buff, k.Fee)
	mustWrite(buff, k.LockHeight)
	mustWrite(buff, k.RelativeHeight)
	buff.Write(k.Excess.Bytes())
	buff.Write(k.ExcessSig[:])
	return buff.Bytes()
}

// Read deserializes a TxKernel from r.
func (k *TxKernel) Read(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, (*uint8)(&k.Features)); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &k.Fee); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &k.LockHeight); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &k.RelativeHeight); err != nil {
		return err
	}
	if err := k.Excess.Read(r); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, k.ExcessSig[:]); err != nil {
		return err
	}
	return nil
}

// ErrInvalidKernelSignature is returned when a kernel's excess signature
// does not verify against its excess commitment and message.
var ErrInvalidKernelSignature = errors.New("consensus: kernel excess signature is invalid")

// Validate returns nil if the kernel's excess signature verifies.
func (k *TxKernel) Validate() error {
	excess, err := k.Excess.Point()
	if err != nil {
		return fmt.Errorf("consensus: invalid kernel excess: %w", err)
	}

	sig := secp256k1zkp.DecodeSignature(k.ExcessSig)
	if !secp256k1zkp.VerifySignature(*excess, k.Message(), sig) {
		return ErrInvalidKernelSignature
	}

	return nil
}

func (k TxKernel) String() string { return fmt.Sprintf("%#v", k) }

// TxKernelList is a sortable list of kernels, ordered by kernel hash.
type TxKernelList []TxKernel

func (m TxKernelList) Len() int      { return len(m) }
func (m TxKernelList) Swap(i, j int) { m[i], m[j] = m[j], m[i] }
func (m TxKernelList) Less(i, j int) bool {
	return bytes.Compare(m[i].Hash(), m[j].Hash()) < 0
}

// BlockHeader is a grin block header.
type BlockHeader struct {
	Version uint16
	Height  uint64
	// Previous is the hash of the previous block in the chain.
	Previous Hash
	// PreviousRoot is the root hash of the previous header MMR.
	PreviousRoot Hash
	Timestamp    time.Time
	// UTXORoot is the root of the output PMMR.
	UTXORoot Hash
	// RangeProofRoot is the root of the range-proof PMMR.
	RangeProofRoot Hash
	// KernelRoot is the root of the kernel PMMR.
	KernelRoot Hash
	// Nonce is the increment used to mine this block.
	Nonce uint64
	// TotalKernelOffset is the accumulated sum of kernel offsets since
	// genesis.
	TotalKernelOffset Hash
	// TotalKernelSum is the accumulated sum of kernel excess commitments
	// since genesis; should equal the UTXO commitment sum minus supply.
	TotalKernelSum secp256k1zkp.Commitment
	// OutputMmrSize is the total size of the output MMR after this block.
	OutputMmrSize uint64
	// KernelMmrSize is the total size of the kernel MMR after this block.
	KernelMmrSize uint64
	// POW is this header's proof of work.
	POW Proof
	// Difficulty used to mine this block.
	Difficulty Difficulty
	// TotalDifficulty is the accumulated difficulty since genesis.
	TotalDifficulty Difficulty
	// ScalingDifficulty is the scaling factor between primary and
	// secondary proof-of-work variants.
	ScalingDifficulty uint32
}

// Hash returns the header's hash, which covers only the proof-of-work
// nonces (the POW itself commits to everything else via bytesWithoutPOW).
func (b *BlockHeader) Hash() Hash {
	return Blake2b(b.POW.ProofBytes())
}

// bytesWithoutPOW serializes every header field except the proof of work;
// this is what the proof of work itself hashes and mines over.
func (b *BlockHeader) bytesWithoutPOW() []byte {
	buff := new(bytes.Buffer)

	mustWrite(buff, b.Version)
	mustWrite(buff, b.Height)
	mustWrite(buff, b.Timestamp.Unix())

	writeFixedHash(buff, b.Previous)
	writeFixedHash(buff, b.PreviousRoot)
	writeFixedHash(buff, b.UTXORoot)
	writeFixedHash(buff, b.RangeProofRoot)
	writeFixedHash(buff, b.KernelRoot)

	buff.Write(b.TotalKernelOffset)
	mustWrite(buff, b.OutputMmrSize)
	mustWrite(buff, b.KernelMmrSize)
	mustWrite(buff, uint64(b.TotalDifficulty))
	mustWrite(buff, b.ScalingDifficulty)
	mustWrite(buff, b.Nonce)

	return buff.Bytes()
}

func writeFixedHash(buff *bytes.Buffer, h Hash) {
	if len(h) != BlockHashSize {
		logrus.Fatal(errors.New("consensus: invalid fixed-size hash length"))
	}
	buff.Write(h)
}

func mustWrite(buff *bytes.Buffer, v interface{}) {
	if err := binary.Write(buff, binary.BigEndian, v); err != nil {
		logrus.Fatal(err)
	}
}

func (b *BlockHeader) bytesPOW() []byte {
	return b.POW.Bytes()
}

// Bytes returns the canonical wire encoding of the header.
func (b *BlockHeader) Bytes() []byte {
	var buff bytes.Buffer
	buff.Write(b.bytesWithoutPOW())
	buff.Write(b.bytesPOW())
	return buff.Bytes()
}

// Read deserializes a BlockHeader from r.
func (b *BlockHeader) Read(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &b.Version); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &b.Height); err != nil {
		return err
	}

	var ts int64
	if err := binary.Read(r, binary.BigEndian, &ts); err != nil {
		return err
	}
	b.Timestamp = time.Unix(ts, 0).UTC()

	for _, h := range []*Hash{&b.Previous, &b.PreviousRoot, &b.UTXORoot, &b.RangeProofRoot, &b.KernelRoot} {
		*h = make(Hash, BlockHashSize)
		if _, err := io.ReadFull(r, *h); err != nil {
			return err
		}
	}

	b.TotalKernelOffset = make(Hash, secp256k1zkp.SecretKeySize)
	if _, err := io.ReadFull(r, b.TotalKernelOffset); err != nil {
		return err
	}

	if err := binary.Read(r, binary.BigEndian, &b.OutputMmrSize); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &b.KernelMmrSize); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &b.TotalDifficulty); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &b.ScalingDifficulty); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &b.Nonce); err != nil {
		return err
	}

	return b.POW.Read(r)
}

// Validate runs the header-scope consensus checks that do not require
// chain context: version matches the height's hard-fork epoch, timestamp
// isn't too far in the future, edge_bits/scaling-difficulty are within
// bounds, and the proof of work verifies.
func (b *BlockHeader) Validate(params ConsensusParams) error {
	if !params.ValidateHeaderVersion(b.Height, b.Version) {
		return fmt.Errorf("invalid block version %d at height %d", b.Version, b.Height)
	}

	if b.Timestamp.Sub(time.Now().UTC()) > time.Duration(params.FutureTimeLimit)*time.Second {
		return fmt.Errorf("block timestamp too far in the future: %s", b.Timestamp)
	}

	isPrimaryPow := b.POW.EdgeBits != params.SecondPowEdgeBits

	if isPrimaryPow && b.POW.EdgeBits < params.DefaultMinEdgeBits {
		return fmt.Errorf("cuckoo edge_bits too small: %d", b.POW.EdgeBits)
	}

	if isPrimaryPow && b.ScalingDifficulty != 1 {
		return fmt.Errorf("invalid scaling difficulty for primary pow: %d", b.ScalingDifficulty)
	}

	if err := b.POW.Validate(b, params); err != nil {
		return err
	}

	return nil
}

func (b BlockHeader) String() string { return fmt.Sprintf("%#v", b) }
