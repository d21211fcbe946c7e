package chain

import (
	"path/filepath"
	"testing"

	"github.com/grincore/node/consensus"
)

func openTestChain(t *testing.T) *Chain {
	t.Helper()

	dir := t.TempDir()
	storage, err := OpenLevelDBStorage(filepath.Join(dir, "chaindb"))
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	txhs, err := OpenTxHashSet(filepath.Join(dir, "txhashset"))
	if err != nil {
		t.Fatalf("opening txhashset: %v", err)
	}

	c, err := New(consensus.AutomatedTestingParams(), storage, txhs, Testnet4)
	if err != nil {
		t.Fatalf("opening chain: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestGenesisHash checks that Testnet4's hash is deterministic and that the
// block's own Hash method agrees with its header's, rather than asserting a
// fixed digest pulled from a real grin deployment this codebase never runs.
func TestGenesisHash(t *testing.T) {
	h1 := Testnet4.Hash()
	h2 := Testnet4.Hash()

	if len(h1) != consensus.BlockHashSize {
		t.Fatalf("genesis hash length = %d, want %d", len(h1), consensus.BlockHashSize)
	}
	if string(h1) != string(h2) {
		t.Fatalf("genesis hash is not deterministic: %x != %x", h1, h2)
	}
	if string(h1) != string(Testnet4.Header.Hash()) {
		t.Fatalf("Block.Hash() disagrees with Header.Hash()")
	}
}

func TestNewInstallsGenesisAsHead(t *testing.T) {
	c := openTestChain(t)

	if c.Height() != 0 {
		t.Fatalf("height = %d, want 0", c.Height())
	}
	if string(c.Head().Hash()) != string(Testnet4.Hash()) {
		t.Fatalf("head is not genesis")
	}
	if c.TotalDifficulty() != Testnet4.Header.TotalDifficulty {
		t.Fatalf("total difficulty = %d, want %d", c.TotalDifficulty(), Testnet4.Header.TotalDifficulty)
	}

	block, err := c.GetBlock(Testnet4.Hash())
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if block == nil {
		t.Fatal("genesis block not found in storage")
	}
}

func TestReopenRestoresHead(t *testing.T) {
	dir := t.TempDir()
	storage, err := OpenLevelDBStorage(filepath.Join(dir, "chaindb"))
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	txhs, err := OpenTxHashSet(filepath.Join(dir, "txhashset"))
	if err != nil {
		t.Fatalf("opening txhashset: %v", err)
	}
	params := consensus.AutomatedTestingParams()

	c, err := New(params, storage, txhs, Testnet4)
	if err != nil {
		t.Fatalf("opening chain: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("closing chain: %v", err)
	}

	storage2, err := OpenLevelDBStorage(filepath.Join(dir, "chaindb"))
	if err != nil {
		t.Fatalf("reopening storage: %v", err)
	}
	txhs2, err := OpenTxHashSet(filepath.Join(dir, "txhashset"))
	if err != nil {
		t.Fatalf("reopening txhashset: %v", err)
	}
	c2, err := New(params, storage2, txhs2, Testnet4)
	if err != nil {
		t.Fatalf("reopening chain: %v", err)
	}
	defer c2.Close()

	if c2.Height() != 0 {
		t.Fatalf("height after reopen = %d, want 0", c2.Height())
	}
	if string(c2.Head().Hash()) != string(Testnet4.Hash()) {
		t.Fatalf("head after reopen is not genesis")
	}
}

func TestProcessBlockRejectsUnknownPrevious(t *testing.T) {
	c := openTestChain(t)

	orphan := Testnet4
	orphan.Header.Previous = consensus.ZeroHash()
	orphan.Header.Height = 1
	orphan.Header.Timestamp = Testnet4.Header.Timestamp.Add(60)

	_, err := c.ProcessBlock(&orphan)
	if err == nil {
		t.Fatal("expected an error for a block with an unknown previous hash")
	}
	if !IsErrorKind(err, ErrUnfitBlock) {
		t.Fatalf("error kind = %v, want ErrUnfitBlock", err)
	}
}

func TestProcessBlockIgnoresAlreadyKnownBlock(t *testing.T) {
	c := openTestChain(t)

	tip, err := c.ProcessBlock(&Testnet4)
	if err != nil {
		t.Fatalf("ProcessBlock on the genesis block: %v", err)
	}
	if tip != nil {
		t.Fatalf("expected a nil Tip for an already-known block, got %+v", tip)
	}
}
