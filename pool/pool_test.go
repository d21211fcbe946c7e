package pool

import (
	"math/big"
	"testing"
	"time"

	"github.com/grincore/node/consensus"
	"github.com/grincore/node/secp256k1zkp"
)

// fakeChain is a minimal ChainView stand-in: every output ever "created"
// via addOutput is considered unspent, and ValidateRawTx only checks that
// every input was created.
type fakeChain struct {
	head    consensus.BlockHeader
	unspent map[string]bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{unspent: make(map[string]bool)}
}

func (f *fakeChain) Head() consensus.BlockHeader { return f.head }

func (f *fakeChain) ValidateRawTx(tx *consensus.Transaction) error {
	for i := range tx.Inputs {
		if !f.unspent[string(tx.Inputs[i].Commit)] {
			return errForTest("spends unknown or already-spent output")
		}
	}
	return nil
}

type errForTest string

func (e errForTest) Error() string { return string(e) }

func (f *fakeChain) addOutput(commit []byte) { f.unspent[string(commit)] = true }

// fundedTx builds a standalone, input-less transaction carrying one genuine
// plain kernel: a Pedersen commitment to zero whose Schnorr signature
// actually verifies, the same construction secp256k1zkp's own
// TestVerifyKernelSignature uses.
func fundedTx(params consensus.ConsensusParams, blindSeed int64, fee uint64) *consensus.Transaction {
	blind := big.NewInt(blindSeed)
	excessPoint := secp256k1zkp.CommitValue(blind, big.NewInt(0))
	excess := secp256k1zkp.CommitmentFromPoint(excessPoint)

	kernel := consensus.TxKernel{
		Features: consensus.PlainKernel,
		Fee:      fee,
		Excess:   excess,
	}
	sig := secp256k1zkp.SignMessage(*excessPoint, *blind, kernel.Message())
	kernel.ExcessSig = sig.Bytes()

	return &consensus.Transaction{
		Offset:  consensus.ZeroHash(),
		Kernels: consensus.TxKernelList{kernel},
	}
}

func TestAddToPoolRejectsDuplicateKernel(t *testing.T) {
	params := consensus.AutomatedTestingParams()
	chain := newFakeChain()
	p := New(params, chain)

	tx := fundedTx(params, 1, 1000000)

	if err := p.AddToPool(Push, tx, false); err != nil {
		t.Fatalf("first admission: %v", err)
	}
	if err := p.AddToPool(Push, tx, false); err == nil {
		t.Fatal("expected the second admission of the same kernel to be rejected")
	}
}

func TestAddToPoolRejectsLowFeeRate(t *testing.T) {
	params := consensus.AutomatedTestingParams()
	chain := newFakeChain()
	p := New(params, chain)

	tx := fundedTx(params, 2, 1)

	if err := p.AddToPool(Push, tx, false); err == nil {
		t.Fatal("expected a near-zero fee transaction to be rejected for low fee rate")
	}
}

func TestReconcileBlockDropsMinedKernels(t *testing.T) {
	params := consensus.AutomatedTestingParams()
	chain := newFakeChain()
	p := New(params, chain)

	tx := fundedTx(params, 3, 1000000)
	if err := p.AddToPool(Push, tx, false); err != nil {
		t.Fatalf("admission: %v", err)
	}

	txpool, _ := p.Len()
	if txpool != 1 {
		t.Fatalf("txpool size = %d, want 1", txpool)
	}

	block := &consensus.Block{Kernels: consensus.TxKernelList{tx.Kernels[0]}}
	p.ReconcileBlock(block)

	txpool, _ = p.Len()
	if txpool != 0 {
		t.Fatalf("txpool size after reconcile = %d, want 0", txpool)
	}
}

func TestPrepareMineableTransactionsOrdersByFeeRate(t *testing.T) {
	params := consensus.AutomatedTestingParams()
	chain := newFakeChain()
	p := New(params, chain)

	low := fundedTx(params, 10, 1000000)
	high := fundedTx(params, 11, 5000000)

	if err := p.AddToPool(Push, low, false); err != nil {
		t.Fatalf("admitting low fee tx: %v", err)
	}
	if err := p.AddToPool(Push, high, false); err != nil {
		t.Fatalf("admitting high fee tx: %v", err)
	}

	packed := p.PrepareMineableTransactions()
	if len(packed) != 2 {
		t.Fatalf("packed %d transactions, want 2", len(packed))
	}
	if packed[0].Fee() != high.Fee() {
		t.Fatalf("highest fee-rate transaction was not packed first")
	}
}

func TestFluffStaleMovesAggregateToTxpool(t *testing.T) {
	params := consensus.AutomatedTestingParams()
	chain := newFakeChain()
	p := New(params, chain)
	p.clock = func() time.Time { return time.Unix(1000, 0) }

	tx := fundedTx(params, 20, 1000000)
	if err := p.AddToPool(Stem, tx, true); err != nil {
		t.Fatalf("stem admission: %v", err)
	}

	_, stempool := p.Len()
	if stempool != 1 {
		t.Fatalf("stempool size = %d, want 1", stempool)
	}

	agg := p.FluffStale(time.Unix(2000, 0))
	if agg == nil {
		t.Fatal("expected a fluffed aggregate")
	}

	txpool, stempool := p.Len()
	if stempool != 0 {
		t.Fatalf("stempool size after fluff = %d, want 0", stempool)
	}
	if txpool != 1 {
		t.Fatalf("txpool size after fluff = %d, want 1", txpool)
	}
}
