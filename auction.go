// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covenant

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// AssetOutputValue is the value in satoshi of the asset transfer output an
// auction settlement creates.  The auctioned asset is an ordinal riding a
// single satoshi, so the output that hands it to the winning bidder carries
// exactly one.
const AssetOutputValue = 1

// auctionMinStateSize is the smallest serialized auction state: two
// compressed public keys, the ordinal outpoint, a zero length inscription
// varbytes, and the deadline.
const auctionMinStateSize = 2*btcec.PubKeyBytesLenCompressed +
	outpointSize + 1 + 4

// Auction describes one instance of the auction covenant.  An instance is an
// immutable value tied to a single locked output.  Placing a bid does not
// mutate the instance, it spends the output and recreates the predicate at a
// new outpoint with a successor instance in which only the bidder differs.
//
// The value locked in the instance's output is the current highest bid, so
// the running bid amount never appears in the state bytes themselves.
type Auction struct {
	// Bidder is the public key of the current highest bidder.  This is
	// the only field that changes between an instance and its successor.
	// For a freshly deployed auction it is the auctioneer's own key.
	Bidder *btcec.PublicKey

	// Auctioneer is the public key that may settle the auction after the
	// deadline and receive the winning bid.
	Auctioneer *btcec.PublicKey

	// OrdinalPrevOut is the outpoint holding the auctioned asset.  A
	// settlement transaction must consume it with its first input.
	OrdinalPrevOut wire.OutPoint

	// TransferInscription is the inscription payload appended to the
	// asset transfer output's script on settlement.
	TransferInscription []byte

	// Deadline is the moment the auction can be settled, a block height
	// when below the lock time threshold and a unix timestamp otherwise.
	Deadline int64

	// CodeScript is the executable section of the predicate script, ahead
	// of the state separator.
	CodeScript []byte
}

// validate performs the structural checks every auction operation depends
// on.
func (a *Auction) validate() error {
	if a.Bidder == nil {
		return ruleError(ErrInvalidContractParam,
			"auction requires a bidder public key")
	}
	if a.Auctioneer == nil {
		return ruleError(ErrInvalidContractParam,
			"auction requires an auctioneer public key")
	}
	if a.Deadline < 0 || a.Deadline > math.MaxUint32 {
		str := fmt.Sprintf("auction deadline %d does not fit the "+
			"lock time encoding", a.Deadline)
		return ruleError(ErrInvalidContractParam, str)
	}
	return nil
}

// serializeState returns the canonical state bytes committed into the
// predicate script: both compressed keys, the ordinal outpoint, the
// inscription as varbytes, and the deadline as a 4-byte little endian
// integer.
func (a *Auction) serializeState() []byte {
	var b bytes.Buffer
	b.Grow(auctionMinStateSize + len(a.TransferInscription))
	b.Write(a.Bidder.SerializeCompressed())
	b.Write(a.Auctioneer.SerializeCompressed())
	op := serializeOutPoint(&a.OrdinalPrevOut)
	b.Write(op[:])
	wire.WriteVarBytes(&b, 0, a.TransferInscription)
	var deadline [4]byte
	binary.LittleEndian.PutUint32(deadline[:], uint32(a.Deadline))
	b.Write(deadline[:])
	return b.Bytes()
}

// parseAuctionState decodes the canonical auction state bytes.  The returned
// instance has no code script; the caller attaches the one it split the
// predicate from.
func parseAuctionState(state []byte) (*Auction, error) {
	if len(state) < auctionMinStateSize {
		str := fmt.Sprintf("auction state of %d bytes is shorter "+
			"than the minimum %d", len(state), auctionMinStateSize)
		return nil, ruleError(ErrMalformedState, str)
	}

	const keyLen = btcec.PubKeyBytesLenCompressed
	bidder, err := btcec.ParsePubKey(state[:keyLen])
	if err != nil {
		str := fmt.Sprintf("auction state carries an invalid bidder "+
			"key: %v", err)
		return nil, ruleError(ErrMalformedState, str)
	}
	auctioneer, err := btcec.ParsePubKey(state[keyLen : 2*keyLen])
	if err != nil {
		str := fmt.Sprintf("auction state carries an invalid "+
			"auctioneer key: %v", err)
		return nil, ruleError(ErrMalformedState, str)
	}

	var ordinalHash chainhash.Hash
	copy(ordinalHash[:], state[2*keyLen:2*keyLen+chainhash.HashSize])
	ordinalIndex := binary.LittleEndian.Uint32(
		state[2*keyLen+chainhash.HashSize : 2*keyLen+outpointSize])

	r := bytes.NewReader(state[2*keyLen+outpointSize:])
	inscription, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload,
		"transfer inscription")
	if err != nil {
		str := fmt.Sprintf("auction state carries an invalid "+
			"transfer inscription: %v", err)
		return nil, ruleError(ErrMalformedState, str)
	}

	var deadline [4]byte
	if _, err := io.ReadFull(r, deadline[:]); err != nil {
		return nil, ruleError(ErrMalformedState,
			"auction state is missing the deadline")
	}
	if r.Len() != 0 {
		str := fmt.Sprintf("auction state carries %d trailing bytes",
			r.Len())
		return nil, ruleError(ErrMalformedState, str)
	}

	return &Auction{
		Bidder:     bidder,
		Auctioneer: auctioneer,
		OrdinalPrevOut: wire.OutPoint{
			Hash:  ordinalHash,
			Index: ordinalIndex,
		},
		TransferInscription: inscription,
		Deadline:            int64(binary.LittleEndian.Uint32(deadline[:])),
	}, nil
}

// Script returns the full predicate script for this instance: the code
// section, the state separator, and the canonical state push.
func (a *Auction) Script() ([]byte, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	return StateScript(a.CodeScript, a.serializeState())
}

// ParseAuctionScript recovers the auction instance committed by a predicate
// script produced by Script.
func ParseAuctionScript(script []byte) (*Auction, error) {
	codeScript, state, err := ParseStateScript(script)
	if err != nil {
		return nil, err
	}
	auction, err := parseAuctionState(state)
	if err != nil {
		return nil, err
	}
	auction.CodeScript = codeScript
	return auction, nil
}

// NextInstance returns the successor instance a winning bid creates: the
// immutable fields carried over verbatim with only the bidder replaced.
func (a *Auction) NextInstance(newBidder *btcec.PublicKey) *Auction {
	next := *a
	next.Bidder = newBidder
	return &next
}

// AssetScript returns the locking script of the asset transfer output a
// settlement must create: a pay-to-pubkey-hash lock for the current highest
// bidder with the transfer inscription appended.
func (a *Auction) AssetScript() ([]byte, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	transfer, err := payToPubKeyHashScript(
		btcutil.Hash160(a.Bidder.SerializeCompressed()))
	if err != nil {
		return nil, err
	}
	return append(transfer, a.TransferInscription...), nil
}

// VerifyBid checks a proposed spend that replaces the current highest bid.
// The bid amount is the value the spending transaction locks back into the
// continuation output and must strictly exceed the value currently locked.
// The transaction's committed output set must consist of the continuation
// output carrying the successor instance at the bid amount, a refund output
// paying the displaced bidder's hashed key the displaced amount, and the
// change output the spender declared, in that order.
func (a *Auction) VerifyBid(ctx *SpendContext, newBidder *btcec.PublicKey,
	amount int64, change *ChangeOutput) error {

	if err := a.validate(); err != nil {
		return err
	}
	if newBidder == nil {
		return ruleError(ErrInvalidContractParam,
			"bid requires the new bidder's public key")
	}
	script, err := a.Script()
	if err != nil {
		return err
	}
	if err := ctx.checkPredicate(script); err != nil {
		return err
	}

	if amount <= ctx.PrevValue {
		str := fmt.Sprintf("the auction bid is lower than the "+
			"current highest bid: bid %d, current highest %d",
			amount, ctx.PrevValue)
		return ruleError(ErrBidTooLow, str)
	}

	continuation, err := a.NextInstance(newBidder).Script()
	if err != nil {
		return err
	}
	refund, err := payToPubKeyHashScript(
		btcutil.Hash160(a.Bidder.SerializeCompressed()))
	if err != nil {
		return err
	}

	expected := mandatedOutputs(change,
		&wire.TxOut{Value: amount, PkScript: continuation},
		&wire.TxOut{Value: ctx.PrevValue, PkScript: refund},
	)
	if err := checkOutputsDigest(ctx, "hashOutputs check failed",
		expected); err != nil {

		return err
	}

	log.Tracef("Accepted bid of %d on auction %v", amount,
		ContractID(script))
	return nil
}

// VerifyClose checks a proposed settlement spend.  Settlement requires the
// deadline to have passed under the lock time rules, a valid spender
// authorization by the auctioneer, and that the transaction's first input
// consumes the recorded ordinal outpoint so the asset moves in the same
// transaction that pays for it.  The committed output set must consist of
// the asset transfer output for the winning bidder, a payout output paying
// the auctioneer's hashed key the winning bid, and the declared change
// output, in that order.
func (a *Auction) VerifyClose(ctx *SpendContext, auctioneerSig *ecdsa.Signature,
	change *ChangeOutput) error {

	if err := a.validate(); err != nil {
		return err
	}
	script, err := a.Script()
	if err != nil {
		return err
	}
	if err := ctx.checkPredicate(script); err != nil {
		return err
	}

	if err := ctx.VerifyDeadline(a.Deadline); err != nil {
		return err
	}
	if err := ctx.VerifySpenderSig(auctioneerSig, a.Auctioneer); err != nil {
		return err
	}

	// The asset is bound to the settlement by byte comparison of the
	// serialized prevouts, so the same transaction that pays the
	// auctioneer necessarily takes custody of the ordinal.
	firstPrevOut := serializeOutPoint(
		&ctx.Tx.TxIn[0].PreviousOutPoint)
	recordedPrevOut := serializeOutPoint(&a.OrdinalPrevOut)
	if firstPrevOut != recordedPrevOut {
		str := fmt.Sprintf("ordinal outpoint mismatch: transaction "+
			"consumes %v first, auction recorded %v",
			ctx.Tx.TxIn[0].PreviousOutPoint, a.OrdinalPrevOut)
		return ruleError(ErrOrdinalMismatch, str)
	}

	assetScript, err := a.AssetScript()
	if err != nil {
		return err
	}
	payout, err := payToPubKeyHashScript(
		btcutil.Hash160(a.Auctioneer.SerializeCompressed()))
	if err != nil {
		return err
	}

	expected := mandatedOutputs(change,
		&wire.TxOut{Value: AssetOutputValue, PkScript: assetScript},
		&wire.TxOut{Value: ctx.PrevValue, PkScript: payout},
	)
	if err := checkOutputsDigest(ctx, "hashOutputs mismatch",
		expected); err != nil {

		return err
	}

	log.Tracef("Accepted settlement of auction %v for %d",
		ContractID(script), ctx.PrevValue)
	return nil
}

// payToPubKeyHashScript creates a new script to pay a transaction output to
// a 20-byte pubkey hash.
func payToPubKeyHashScript(pubKeyHash []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pubKeyHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}
