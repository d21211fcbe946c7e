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
	"math/big"
	"sort"

	"github.com/btcsuite/btcd/btcec"
	"github.com/grincore/node/secp256k1zkp"
	"github.com/sirupsen/logrus"
)

// Transaction is a standalone grin transaction: a set of inputs being
// spent, a set of outputs being created, one or more kernels proving the
// transaction balances, and an Offset - a blinding-factor component kept
// out of the kernels' excesses specifically so that transactions can be
// merged (aggregated) and cut through without exposing which kernel paired
// with which input/output (spec.md §3/§4.5).
type Transaction struct {
	Offset  Hash
	Inputs  InputList
	Outputs OutputList
	Kernels TxKernelList
}

// Fee returns the transaction's total fee, the sum of its kernels' fees.
func (t *Transaction) Fee() uint64 {
	var total uint64
	for _, k := range t.Kernels {
		total += k.Fee
	}
	return total
}

// Weight returns the transaction's weight against MaxBlockWeight.
func (t *Transaction) Weight(params ConsensusParams) uint64 {
	return uint64(len(t.Inputs))*params.BlockInputWeight +
		uint64(len(t.Outputs))*params.BlockOutputWeight +
		uint64(len(t.Kernels))*params.BlockKernelWeight
}

// FeeRate returns the transaction's fee per unit of weight, scaled by 1000
// to stay in integer arithmetic, per spec.md §4.5's minimum-fee-rate pool
// admission rule.
func (t *Transaction) FeeRate(params ConsensusParams) uint64 {
	w := t.Weight(params)
	if w == 0 {
		return 0
	}
	return t.Fee() * 1000 / w
}

// LockHeight returns the maximum LockHeight across the transaction's
// height-locked kernels - the height before which the transaction may not
// be included in a block.
func (t *Transaction) LockHeight() uint64 {
	var max uint64
	for _, k := range t.Kernels {
		if k.Features == HeightLockedKernel && k.LockHeight > max {
			max = k.LockHeight
		}
	}
	return max
}

// Bytes returns the canonical wire encoding of the transaction.
func (t *Transaction) Bytes() []byte {
	buff := new(bytes.Buffer)

	if len(t.Offset) != BlockHashSize {
		logrus.Fatal(errors.New("consensus: invalid transaction offset length"))
	}
	buff.Write(t.Offset)

	mustWrite(buff, uint64(len(t.Inputs)))
	mustWrite(buff, uint64(len(t.Outputs)))
	mustWrite(buff, uint64(len(t.Kernels)))

	// Consensus rule: inputs, outputs, kernels MUST be sorted on the wire.
	sort.Sort(t.Inputs)
	sort.Sort(t.Outputs)
	sort.Sort(t.Kernels)

	for _, input := range t.Inputs {
		buff.Write(input.Bytes())
	}
	for _, output := range t.Outputs {
		buff.Write(output.Bytes())
	}
	for _, kernel := range t.Kernels {
		buff.Write(kernel.Bytes())
	}

	return buff.Bytes()
}

// Type implements the p2p Message interface.
func (t *Transaction) Type() uint8 { return MsgTypeTransaction }

// Read deserializes a Transaction from r.
func (t *Transaction) Read(r io.Reader) error {
	t.Offset = make(Hash, BlockHashSize)
	if _, err := io.ReadFull(r, t.Offset); err != nil {
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
		return errors.New("transaction contains an implausible number of inputs/outputs/kernels")
	}

	t.Inputs = make(InputList, inputs)
	for i := range t.Inputs {
		if err := t.Inputs[i].Read(r); err != nil {
			return err
		}
	}

	t.Outputs = make(OutputList, outputs)
	for i := range t.Outputs {
		if err := t.Outputs[i].Read(r); err != nil {
			return err
		}
	}

	t.Kernels = make(TxKernelList, kernels)
	for i := range t.Kernels {
		if err := t.Kernels[i].Read(r); err != nil {
			return err
		}
	}

	if !sort.IsSorted(t.Inputs) {
		return errors.New("consensus error: transaction inputs are not sorted")
	}
	if !sort.IsSorted(t.Outputs) {
		return errors.New("consensus error: transaction outputs are not sorted")
	}
	if !sort.IsSorted(t.Kernels) {
		return errors.New("consensus error: transaction kernels are not sorted")
	}

	return nil
}

func (t Transaction) String() string { return fmt.Sprintf("%#v", t) }

// Hash returns a hash identifying the transaction, used for pool de-dup
// and Dandelion relay tracking.
func (t *Transaction) Hash() Hash {
	return Blake2b(t.Bytes())
}

// ValidateStructure runs the transaction-scope checks that do not require
// chain context: sortedness, range proofs, and kernel signatures. Balance
// (sum of outputs - sum of inputs == sum of kernel excesses + offset*G)
// requires chain/pool context to resolve input commitments and belongs to
// the pool/chain packages (spec.md §4.5, §7).
func (t *Transaction) ValidateStructure() error {
	if !sort.IsSorted(t.Inputs) {
		return errors.New("transaction inputs are not sorted")
	}
	if !sort.IsSorted(t.Outputs) {
		return errors.New("transaction outputs are not sorted")
	}
	if !sort.IsSorted(t.Kernels) {
		return errors.New("transaction kernels are not sorted")
	}

	for _, output := range t.Outputs {
		if err := secp256k1zkp.VerifyRangeProof(output.Commit, output.RangeProof.Bytes()); err != nil {
			return fmt.Errorf("range proof verification failed for output %s: %w", output.Commit, err)
		}
	}

	for i := range t.Kernels {
		if err := t.Kernels[i].Validate(); err != nil {
			return err
		}
	}

	return nil
}

// KernelOffsetSum returns the sum of the kernel offsets a and b as a
// 32-byte big-endian scalar, used when aggregating transactions.
func KernelOffsetSum(a, b Hash) Hash {
	// Offsets are blinding-factor scalars, not curve points; summing them
	// is modular addition mod the curve order, not point addition.
	sum := new(big.Int).Add(new(big.Int).SetBytes(a), new(big.Int).SetBytes(b))
	sum.Mod(sum, btcec.S256().N)
	out := make(Hash, secp256k1zkp.SecretKeySize)
	sum.FillBytes(out)
	return out
}

// AggregateDeep merges transactions into one, concatenating their inputs,
// outputs and kernels and summing their offsets with KernelOffsetSum.
// Cut-through (removing an output against a matching input across the set)
// is intentionally NOT performed here - it is a pool/Extension-scope
// concern since it changes the set of identifiers being relayed without
// running the expensive balance proof that must re-verify the cut outcome.
func AggregateDeep(txs []*Transaction) *Transaction {
	agg := &Transaction{Offset: ZeroHash()}

	for _, tx := range txs {
		agg.Inputs = append(agg.Inputs, tx.Inputs...)
		agg.Outputs = append(agg.Outputs, tx.Outputs...)
		agg.Kernels = append(agg.Kernels, tx.Kernels...)
		agg.Offset = KernelOffsetSum(agg.Offset, tx.Offset)
	}

	sort.Sort(agg.Inputs)
	sort.Sort(agg.Outputs)
	sort.Sort(agg.Kernels)

	return agg
}
