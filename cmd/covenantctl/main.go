// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btclog"

	"github.com/Ayushjhax/covenant"
	"github.com/Ayushjhax/covenant/internal/journal"
	logctl "github.com/Ayushjhax/covenant/internal/log"
)

// sigCacheMaxSize bounds the signature cache verifications run against.
const sigCacheMaxSize = 1000

// Exit codes: a clean pass, a spend the covenant rejects, and everything
// that prevented reaching a verdict.
const (
	verdictPass   = 0
	verdictReject = 1
	verdictUsage  = 2
)

var (
	cfg *config
	log btclog.Logger
)

// realMain is the real main function for the utility.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
func realMain() int {
	// Load configuration and parse command line.
	tcfg, remainingArgs, err := loadConfig()
	if err != nil {
		return verdictUsage
	}
	cfg = tcfg

	// Setup logging.
	logctl.InitLogRotator(filepath.Join(cfg.DataDir, "logs",
		defaultLogFilename))
	defer logctl.LogRotator.Close()
	logctl.SetLogLevels(cfg.DebugLevel)
	log = logctl.CtrlLog

	bundle, err := readBundle(remainingArgs[0])
	if err != nil {
		log.Errorf("Unusable spend bundle: %v", err)
		return verdictUsage
	}
	decoded, err := decodeBundle(bundle)
	if err != nil {
		log.Errorf("Unusable spend bundle: %v", err)
		return verdictUsage
	}

	// With --track the journal must be usable before any verdict is
	// reported, so an accepted spend is never left unrecorded.
	var jdb *journal.Journal
	if cfg.Track {
		jdb, err = journal.Open(filepath.Join(cfg.DataDir,
			defaultJournalName))
		if err != nil {
			log.Errorf("%v", err)
			return verdictUsage
		}
		defer jdb.Close()
	}

	ctx, err := covenant.NewSpendContext(decoded.tx, decoded.inputIdx,
		decoded.fetcher)
	if err != nil {
		fmt.Printf("REJECT: %v\n", err)
		return verdictReject
	}
	ctx.SigCache = covenant.NewSigCache(sigCacheMaxSize)

	if err := decoded.verify(ctx); err != nil {
		fmt.Printf("REJECT: %v\n", err)
		log.Debugf("Rejected %s spend of %v: %v", decoded.op,
			ctx.PrevOut, err)
		return verdictReject
	}
	fmt.Printf("PASS: %s spend of %v\n", decoded.op,
		btcutil.Amount(ctx.PrevValue))
	log.Infof("Verified %s spend of %v at %v", decoded.op,
		btcutil.Amount(ctx.PrevValue), ctx.PrevOut)

	if jdb != nil {
		if err := recordSpend(jdb, decoded, ctx); err != nil {
			log.Errorf("Journal update failed: %v", err)
			return verdictUsage
		}
	}

	return verdictPass
}

// recordSpend updates the instance journal after an accepted spend: a
// continuation replaces the chain's record with the new covenant output,
// while a terminal spend retires the chain.
func recordSpend(jdb *journal.Journal, decoded *decodedBundle,
	ctx *covenant.SpendContext) error {

	id, _, known, err := jdb.FindSpent(ctx.PrevOut)
	if err != nil {
		return err
	}
	if !known {
		// First sighting of this chain, so key it by the digest of the
		// lock script being spent.
		id = covenant.ContractID(ctx.PrevScript)
	}

	if decoded.terminal {
		if !known {
			return nil
		}
		if err := jdb.Delete(id); err != nil {
			return err
		}
		log.Infof("Retired chain %v", id)
		return nil
	}

	// The continuation output sits first in every covenant shape.
	continuation := decoded.tx.TxOut[0]
	rec := &journal.Record{
		PrevOut:  wire.OutPoint{Hash: decoded.tx.TxHash(), Index: 0},
		Value:    continuation.Value,
		PkScript: continuation.PkScript,
	}
	if err := jdb.Put(id, rec); err != nil {
		return err
	}
	log.Infof("Journaled chain %v at %v", id, rec.PrevOut)
	return nil
}

func main() {
	os.Exit(realMain())
}
