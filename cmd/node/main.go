// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/grincore/node/chain"
	"github.com/grincore/node/consensus"
	"github.com/grincore/node/pool"
)

func init() {
	// Output to stdout instead of the default stderr
	// Can be any io.Writer, see below for File example
	logrus.SetOutput(os.Stdout)

	// Log the debug severity or above.
	logrus.SetLevel(logrus.DebugLevel)
}

func main() {
	dataDir := flag.String("datadir", "./chaindata", "directory holding the block storage and txhashset")
	mainnet := flag.Bool("mainnet", false, "run against the mainnet genesis instead of testnet")
	flag.Parse()

	mode := consensus.Testnet
	if *mainnet {
		mode = consensus.Mainnet
	}
	params := consensus.ParamsForMode(mode)

	logrus.WithField("datadir", *dataDir).Info("opening chain storage")

	storage, err := chain.OpenLevelDBStorage(*dataDir + "/index")
	if err != nil {
		logrus.WithError(err).Fatal("failed to open chain index")
	}

	txhs, err := chain.OpenTxHashSet(*dataDir + "/txhashset")
	if err != nil {
		logrus.WithError(err).Fatal("failed to open txhashset")
	}

	c, err := chain.New(params, storage, txhs, chain.GenesisForMode(mode))
	if err != nil {
		logrus.WithError(err).Fatal("failed to open chain")
	}

	c.OnBlockAccepted(func(block *consensus.Block) {
		logrus.WithFields(logrus.Fields{
			"height": block.Header.Height,
			"hash":   block.Hash(),
		}).Info("block accepted")
	})

	txPool := pool.New(params, c)

	stop := pool.NewStopState()
	monitor := pool.NewDandelionMonitor(txPool, nil, stop)
	go monitor.Run()

	logrus.WithFields(logrus.Fields{
		"height": c.Height(),
		"hash":   c.Head().Hash(),
	}).Info("node started")

	select {}
}
