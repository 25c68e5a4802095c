// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covtest

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Ayushjhax/covenant"
)

// Ledger is a minimal stand-in for the chain: it mints spendable outputs,
// confirms transactions, and enforces that every outpoint is consumed at
// most once.  It performs no validation beyond double spend exclusion;
// deciding whether a spend satisfies its covenant is the verifiers' job.
//
// A Ledger is not safe for concurrent use.
type Ledger struct {
	utxos   map[wire.OutPoint]*wire.TxOut
	fetcher *txscript.MultiPrevOutFetcher
	minted  uint64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		utxos: make(map[wire.OutPoint]*wire.TxOut),
		fetcher: txscript.NewMultiPrevOutFetcher(
			make(map[wire.OutPoint]*wire.TxOut)),
	}
}

// Fund mints a new spendable output with the passed value and locking script
// and returns its outpoint.  The backing transaction id is synthesized, as
// tests have no use for the funding transaction itself.
func (l *Ledger) Fund(value int64, pkScript []byte) wire.OutPoint {
	l.minted++
	seed := fmt.Sprintf("covtest funding output %d", l.minted)
	prevOut := wire.OutPoint{
		Hash: chainhash.DoubleHashH([]byte(seed)),
	}
	txOut := wire.NewTxOut(value, pkScript)
	l.utxos[prevOut] = txOut
	l.fetcher.AddPrevOut(prevOut, txOut)
	return prevOut
}

// Confirm applies a transaction to the ledger: every input's outpoint must
// be unspent, all of them are consumed, and the transaction's outputs become
// spendable.  The outpoints of the new outputs are returned in output order.
func (l *Ledger) Confirm(tx *wire.MsgTx) ([]wire.OutPoint, error) {
	for _, txIn := range tx.TxIn {
		prevOut := txIn.PreviousOutPoint
		if _, ok := l.utxos[prevOut]; !ok {
			return nil, fmt.Errorf("output %v is unknown or "+
				"already spent", prevOut)
		}
	}
	for _, txIn := range tx.TxIn {
		delete(l.utxos, txIn.PreviousOutPoint)
	}

	txHash := tx.TxHash()
	created := make([]wire.OutPoint, len(tx.TxOut))
	for i, txOut := range tx.TxOut {
		prevOut := wire.OutPoint{Hash: txHash, Index: uint32(i)}
		l.utxos[prevOut] = txOut
		l.fetcher.AddPrevOut(prevOut, txOut)
		created[i] = prevOut
	}
	return created, nil
}

// Value returns the value locked in an unspent output, or zero if the
// outpoint is unknown or spent.
func (l *Ledger) Value(prevOut wire.OutPoint) int64 {
	if txOut, ok := l.utxos[prevOut]; ok {
		return txOut.Value
	}
	return 0
}

// Context builds the covenant spending context for the input of tx at
// inputIndex, resolving previous outputs against everything the ledger has
// ever seen, spent or not, since a candidate transaction is validated before
// it confirms.
func (l *Ledger) Context(tx *wire.MsgTx,
	inputIndex int) (*covenant.SpendContext, error) {

	return covenant.NewSpendContext(tx, inputIndex, l.fetcher)
}
