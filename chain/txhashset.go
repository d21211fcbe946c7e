// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chain

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/grincore/node/pmmr"
	"github.com/grincore/node/pmmr/backend"
)

// TxHashSet bundles the three PMMRs a transaction's UTXO identity depends on
// (output, rangeproof, kernel) plus the header PMMR chaining block headers
// together, per spec.md §4.2/§6: every chain keeps four of these, one
// backend.Backend each, under its own subdirectory.
type TxHashSet struct {
	dir string

	Output     *pmmr.PMMR
	RangeProof *pmmr.PMMR
	Kernel     *pmmr.PMMR
	Header     *pmmr.PMMR

	outputBackend *backend.Backend
	proofBackend  *backend.Backend
	kernelBackend *backend.Backend
	headerBackend *backend.Backend
}

const (
	leafSetFile   = "pmmr_leaf.bin"
	pruneListFile = "pmmr_prun.bin"
)

func openSubPMMR(dir, name string) (*pmmr.PMMR, *backend.Backend, error) {
	sub := filepath.Join(dir, name)
	if err := os.MkdirAll(sub, 0755); err != nil {
		return nil, nil, fmt.Errorf("chain: creating %s: %w", sub, err)
	}

	leaves := backend.NewLeafSet()
	if raw, err := os.ReadFile(filepath.Join(sub, leafSetFile)); err == nil {
		leaves = backend.LeafSetFromBytes(raw)
	}
	prune := backend.NewPruneList()
	if raw, err := os.ReadFile(filepath.Join(sub, pruneListFile)); err == nil {
		prune = backend.PruneListFromBytes(raw)
	}

	b, err := backend.Open(sub, leaves, prune)
	if err != nil {
		return nil, nil, fmt.Errorf("chain: opening %s backend: %w", name, err)
	}
	return pmmr.New(b), b, nil
}

// OpenTxHashSet opens (creating if absent) the four PMMRs under dir.
func OpenTxHashSet(dir string) (*TxHashSet, error) {
	outputPMMR, outputBackend, err := openSubPMMR(dir, "output")
	if err != nil {
		return nil, err
	}
	proofPMMR, proofBackend, err := openSubPMMR(dir, "rangeproof")
	if err != nil {
		return nil, err
	}
	kernelPMMR, kernelBackend, err := openSubPMMR(dir, "kernel")
	if err != nil {
		return nil, err
	}
	headerPMMR, headerBackend, err := openSubPMMR(dir, "header")
	if err != nil {
		return nil, err
	}

	return &TxHashSet{
		dir:           dir,
		Output:        outputPMMR,
		RangeProof:    proofPMMR,
		Kernel:        kernelPMMR,
		Header:        headerPMMR,
		outputBackend: outputBackend,
		proofBackend:  proofBackend,
		kernelBackend: kernelBackend,
		headerBackend: headerBackend,
	}, nil
}

// sync flushes and persists all four backends plus their leaf_set/prune_list
// snapshots, called when an extending closure returns Ok (spec.md §4.3).
func (t *TxHashSet) sync() error {
	backends := []*backend.Backend{t.outputBackend, t.proofBackend, t.kernelBackend, t.headerBackend}
	names := []string{"output", "rangeproof", "kernel", "header"}

	for i, b := range backends {
		if err := b.Sync(); err != nil {
			return fmt.Errorf("chain: syncing %s pmmr: %w", names[i], err)
		}
		sub := filepath.Join(t.dir, names[i])
		if err := os.WriteFile(filepath.Join(sub, leafSetFile), b.LeafSet().Bytes(), 0644); err != nil {
			return fmt.Errorf("chain: persisting %s leaf set: %w", names[i], err)
		}
		if err := os.WriteFile(filepath.Join(sub, pruneListFile), b.PruneList().Bytes(), 0644); err != nil {
			return fmt.Errorf("chain: persisting %s prune list: %w", names[i], err)
		}
	}
	return nil
}

// discard drops every in-memory append made since the last sync, called
// when an extending closure returns Err (spec.md §4.3).
func (t *TxHashSet) discard() {
	t.outputBackend.Discard()
	t.proofBackend.Discard()
	t.kernelBackend.Discard()
	t.headerBackend.Discard()
}

// Close closes all four backends' underlying flat files.
func (t *TxHashSet) Close() error {
	for _, b := range []*backend.Backend{t.outputBackend, t.proofBackend, t.kernelBackend, t.headerBackend} {
		if err := b.Close(); err != nil {
			return err
		}
	}
	return nil
}
