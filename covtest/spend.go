// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covtest

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/Ayushjhax/covenant"
)

// SignSpend produces the spender authorization for the covenant input of
// the passed context.
func SignSpend(ctx *covenant.SpendContext,
	priv *secp.PrivateKey) (*ecdsa.Signature, error) {

	digest, err := ctx.SpendDigest()
	if err != nil {
		return nil, err
	}
	return ecdsa.Sign(priv, digest), nil
}

// SignStamp produces an oracle stamp attesting the passed outcome for an
// escrow.  The oracle signs only the escrow's nonce and the outcome byte,
// never a transaction.
func SignStamp(e *covenant.BlindEscrow, outcome covenant.Outcome,
	priv *secp.PrivateKey) *ecdsa.Signature {

	return ecdsa.Sign(priv, e.StampDigest(outcome))
}

// addChange appends the declared change output, if any.
func addChange(tx *wire.MsgTx, change *covenant.ChangeOutput) {
	if change != nil {
		tx.AddTxOut(wire.NewTxOut(change.Value, change.PkScript))
	}
}

// BidTx assembles the transaction shape VerifyBid expects for a bid of
// amount by newBidder: the covenant input first, a funding input paying for
// the bid second, then the continuation output at the bid amount, the refund
// of the displaced bid, and the declared change output.
func BidTx(a *covenant.Auction, covenantOut wire.OutPoint, currentBid int64,
	fundingOut wire.OutPoint, newBidder *btcec.PublicKey, amount int64,
	change *covenant.ChangeOutput) (*wire.MsgTx, error) {

	continuation, err := a.NextInstance(newBidder).Script()
	if err != nil {
		return nil, err
	}
	refund, err := PayToKeyScript(a.Bidder)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&covenantOut, nil, nil))
	tx.AddTxIn(wire.NewTxIn(&fundingOut, nil, nil))
	tx.AddTxOut(wire.NewTxOut(amount, continuation))
	tx.AddTxOut(wire.NewTxOut(currentBid, refund))
	addChange(tx, change)
	return tx, nil
}

// CloseTx assembles the transaction shape VerifyClose expects for a
// settlement: the recorded ordinal outpoint consumed by the first input, the
// covenant output by the second, then the asset transfer output for the
// winning bidder, the payout of the winning bid to the auctioneer, and the
// declared change output.  The transaction lock time and the input sequence
// numbers are set from the passed values since settlement eligibility hangs
// on them.
func CloseTx(a *covenant.Auction, covenantOut wire.OutPoint, currentBid int64,
	change *covenant.ChangeOutput, lockTime uint32,
	sequence uint32) (*wire.MsgTx, error) {

	assetScript, err := a.AssetScript()
	if err != nil {
		return nil, err
	}
	payout, err := PayToKeyScript(a.Auctioneer)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.LockTime = lockTime
	ordinalIn := wire.NewTxIn(&a.OrdinalPrevOut, nil, nil)
	ordinalIn.Sequence = sequence
	covenantIn := wire.NewTxIn(&covenantOut, nil, nil)
	covenantIn.Sequence = sequence
	tx.AddTxIn(ordinalIn)
	tx.AddTxIn(covenantIn)
	tx.AddTxOut(wire.NewTxOut(covenant.AssetOutputValue, assetScript))
	tx.AddTxOut(wire.NewTxOut(currentBid, payout))
	addChange(tx, change)
	return tx, nil
}

// CloseInputIndex is the index of the covenant input in a transaction built
// by CloseTx, with the ordinal input ahead of it.
const CloseInputIndex = 1

// SpendTx assembles a free-form spend of a covenant output: the covenant
// input followed by the passed outputs.  This is the shape escrow spends and
// terminal map unlocks take, since neither constrains the output set.
func SpendTx(covenantOut wire.OutPoint, outputs ...*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&covenantOut, nil, nil))
	for _, txOut := range outputs {
		tx.AddTxOut(txOut)
	}
	return tx
}

// continuationTx assembles a map continuation spend carrying the passed
// successor digest at the full locked value, with an optional funding input
// for fees and an optional change output.
func continuationTx(m *covenant.HashedMap, covenantOut wire.OutPoint,
	lockedValue int64, fundingOut *wire.OutPoint, digest chainhash.Hash,
	change *covenant.ChangeOutput) (*wire.MsgTx, error) {

	continuation, err := m.NextInstance(digest).Script()
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&covenantOut, nil, nil))
	if fundingOut != nil {
		tx.AddTxIn(wire.NewTxIn(fundingOut, nil, nil))
	}
	tx.AddTxOut(wire.NewTxOut(lockedValue, continuation))
	addChange(tx, change)
	return tx, nil
}

// InsertTx assembles the transaction shape VerifyInsert expects: a
// continuation carrying the digest of the image with (key, value) added.
func InsertTx(m *covenant.HashedMap, covenantOut wire.OutPoint,
	lockedValue int64, fundingOut *wire.OutPoint, image covenant.MapImage,
	key int64, value []byte,
	change *covenant.ChangeOutput) (*wire.MsgTx, error) {

	successor := image.Clone()
	successor[key] = value
	return continuationTx(m, covenantOut, lockedValue, fundingOut,
		successor.Digest(), change)
}

// UpdateTx assembles the transaction shape VerifyUpdate expects: a
// continuation carrying the digest of the image with key's value replaced.
func UpdateTx(m *covenant.HashedMap, covenantOut wire.OutPoint,
	lockedValue int64, fundingOut *wire.OutPoint, image covenant.MapImage,
	key int64, value []byte,
	change *covenant.ChangeOutput) (*wire.MsgTx, error) {

	successor := image.Clone()
	successor[key] = value
	return continuationTx(m, covenantOut, lockedValue, fundingOut,
		successor.Digest(), change)
}

// DeleteTx assembles the transaction shape VerifyDelete expects: a
// continuation carrying the digest of the image without key.
func DeleteTx(m *covenant.HashedMap, covenantOut wire.OutPoint,
	lockedValue int64, fundingOut *wire.OutPoint, image covenant.MapImage,
	key int64, change *covenant.ChangeOutput) (*wire.MsgTx, error) {

	successor := image.Clone()
	delete(successor, key)
	return continuationTx(m, covenantOut, lockedValue, fundingOut,
		successor.Digest(), change)
}

// LookupTx assembles the transaction shape VerifyLookup expects: a
// continuation carrying the committed digest unchanged.
func LookupTx(m *covenant.HashedMap, covenantOut wire.OutPoint,
	lockedValue int64, fundingOut *wire.OutPoint,
	change *covenant.ChangeOutput) (*wire.MsgTx, error) {

	return continuationTx(m, covenantOut, lockedValue, fundingOut,
		m.Digest, change)
}
