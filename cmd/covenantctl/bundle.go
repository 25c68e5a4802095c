// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Ayushjhax/covenant"
)

// spendBundle is the JSON document covenantctl verifies: a candidate
// transaction, the outputs it spends, and one covenant operation with its
// arguments.  All byte fields are hex encoded; transaction ids use the usual
// reversed hex form.
type spendBundle struct {
	Operation  string        `json:"operation"`
	Tx         string        `json:"tx"`
	InputIndex int           `json:"inputIndex"`
	PrevOuts   []prevOutJSON `json:"prevOuts"`
	Args       bundleArgs    `json:"args"`
}

// prevOutJSON declares one output the candidate transaction spends.  Every
// input of the transaction needs a declaration since the output commitment
// digest covers them all.
type prevOutJSON struct {
	TxID     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	Value    int64  `json:"value"`
	PkScript string `json:"pkScript"`
}

// changeJSON declares the optional change output an operation permits beyond
// its mandated outputs.
type changeJSON struct {
	PkScript string `json:"pkScript"`
	Value    int64  `json:"value"`
}

// bundleArgs carries the union of all operation arguments.  Which fields are
// required depends on the operation; unused fields must be absent.
type bundleArgs struct {
	// auction.bid
	NewBidder string `json:"newBidder,omitempty"`
	Amount    int64  `json:"amount,omitempty"`

	// auction.close
	AuctioneerSig string `json:"auctioneerSig,omitempty"`

	// escrow.spend
	SpenderSig string `json:"spenderSig,omitempty"`
	SpenderKey string `json:"spenderKey,omitempty"`
	OracleSig  string `json:"oracleSig,omitempty"`
	OracleKey  string `json:"oracleKey,omitempty"`
	Outcome    *uint8 `json:"outcome,omitempty"`

	// map operations
	Image string `json:"image,omitempty"`
	Key   *int64 `json:"key,omitempty"`
	Value string `json:"value,omitempty"`

	// bid, close, and the state changing map operations
	Change *changeJSON `json:"change,omitempty"`
}

// decodedBundle is a bundle after all hex and key material decoding, ready to
// verify against a spending context.
type decodedBundle struct {
	op       string
	tx       *wire.MsgTx
	fetcher  *txscript.MultiPrevOutFetcher
	inputIdx int

	// verify runs the operation's covenant verifier, recovering the
	// contract instance from the spent output's lock script.
	verify func(ctx *covenant.SpendContext) error

	// terminal reports whether an accepted spend ends the chain rather
	// than continuing it.
	terminal bool
}

// readBundle loads and parses a spend bundle document.
func readBundle(path string) (*spendBundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bundle spendBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &bundle, nil
}

func decodeHexField(field, value string) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid hex: %w", field, err)
	}
	return raw, nil
}

func decodePubKeyField(field, value string) (*btcec.PublicKey, error) {
	raw, err := decodeHexField(field, value)
	if err != nil {
		return nil, err
	}
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return pub, nil
}

func decodeSigField(field, value string) (*ecdsa.Signature, error) {
	raw, err := decodeHexField(field, value)
	if err != nil {
		return nil, err
	}
	sig, err := ecdsa.ParseDERSignature(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return sig, nil
}

func decodeChange(change *changeJSON) (*covenant.ChangeOutput, error) {
	if change == nil {
		return nil, nil
	}
	script, err := decodeHexField("change.pkScript", change.PkScript)
	if err != nil {
		return nil, err
	}
	return &covenant.ChangeOutput{PkScript: script, Value: change.Value}, nil
}

// transaction decodes the bundle's candidate transaction.
func (b *spendBundle) transaction() (*wire.MsgTx, error) {
	raw, err := decodeHexField("tx", b.Tx)
	if err != nil {
		return nil, err
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("tx: %w", err)
	}
	return tx, nil
}

// buildFetcher collects the declared previous outputs into a fetcher the
// spending context can resolve every input against.
func (b *spendBundle) buildFetcher() (*txscript.MultiPrevOutFetcher, error) {
	fetcher := txscript.NewMultiPrevOutFetcher(
		make(map[wire.OutPoint]*wire.TxOut))
	for i, prev := range b.PrevOuts {
		hash, err := chainhash.NewHashFromStr(prev.TxID)
		if err != nil {
			return nil, fmt.Errorf("prevOuts[%d].txid: %w", i, err)
		}
		script, err := decodeHexField(
			fmt.Sprintf("prevOuts[%d].pkScript", i), prev.PkScript)
		if err != nil {
			return nil, err
		}
		fetcher.AddPrevOut(wire.OutPoint{Hash: *hash, Index: prev.Vout},
			wire.NewTxOut(prev.Value, script))
	}
	return fetcher, nil
}

// decodeBundle decodes all of a bundle's material and binds the operation's
// verifier.  Errors here mean the bundle is unusable, as opposed to a
// well-formed spend that fails verification.
func decodeBundle(b *spendBundle) (*decodedBundle, error) {
	tx, err := b.transaction()
	if err != nil {
		return nil, err
	}
	fetcher, err := b.buildFetcher()
	if err != nil {
		return nil, err
	}

	decoded := &decodedBundle{
		op:       b.Operation,
		tx:       tx,
		fetcher:  fetcher,
		inputIdx: b.InputIndex,
	}
	args := &b.Args

	switch b.Operation {
	case "auction.bid":
		newBidder, err := decodePubKeyField("args.newBidder",
			args.NewBidder)
		if err != nil {
			return nil, err
		}
		change, err := decodeChange(args.Change)
		if err != nil {
			return nil, err
		}
		amount := args.Amount
		decoded.verify = func(ctx *covenant.SpendContext) error {
			a, err := covenant.ParseAuctionScript(ctx.PrevScript)
			if err != nil {
				return err
			}
			return a.VerifyBid(ctx, newBidder, amount, change)
		}

	case "auction.close":
		auctioneerSig, err := decodeSigField("args.auctioneerSig",
			args.AuctioneerSig)
		if err != nil {
			return nil, err
		}
		change, err := decodeChange(args.Change)
		if err != nil {
			return nil, err
		}
		decoded.terminal = true
		decoded.verify = func(ctx *covenant.SpendContext) error {
			a, err := covenant.ParseAuctionScript(ctx.PrevScript)
			if err != nil {
				return err
			}
			return a.VerifyClose(ctx, auctioneerSig, change)
		}

	case "escrow.spend":
		if args.Change != nil {
			return nil, fmt.Errorf("%s does not take a change "+
				"declaration", b.Operation)
		}
		spenderSig, err := decodeSigField("args.spenderSig",
			args.SpenderSig)
		if err != nil {
			return nil, err
		}
		spenderKey, err := decodePubKeyField("args.spenderKey",
			args.SpenderKey)
		if err != nil {
			return nil, err
		}
		oracleSig, err := decodeSigField("args.oracleSig", args.OracleSig)
		if err != nil {
			return nil, err
		}
		oracleKey, err := decodePubKeyField("args.oracleKey",
			args.OracleKey)
		if err != nil {
			return nil, err
		}
		if args.Outcome == nil {
			return nil, fmt.Errorf("args.outcome is required")
		}
		outcome := covenant.Outcome(*args.Outcome)
		decoded.terminal = true
		decoded.verify = func(ctx *covenant.SpendContext) error {
			e, err := covenant.ParseEscrowScript(ctx.PrevScript)
			if err != nil {
				return err
			}
			return e.VerifySpend(ctx, spenderSig, spenderKey,
				oracleSig, oracleKey, outcome)
		}

	case "map.insert", "map.update", "map.delete", "map.canget",
		"map.unlock":

		return decodeMapOperation(b, decoded)

	default:
		return nil, fmt.Errorf("unknown operation %q", b.Operation)
	}

	return decoded, nil
}

// decodeMapOperation binds the verifier for the map operation family, which
// shares the claimed image and key arguments.
func decodeMapOperation(b *spendBundle,
	decoded *decodedBundle) (*decodedBundle, error) {

	args := &b.Args
	imageBytes, err := decodeHexField("args.image", args.Image)
	if err != nil {
		return nil, err
	}
	image, err := covenant.ParseMapImage(imageBytes)
	if err != nil {
		return nil, fmt.Errorf("args.image: %w", err)
	}
	if args.Key == nil {
		return nil, fmt.Errorf("args.key is required")
	}
	key := *args.Key

	// Values are hex encoded and may legitimately be empty, so the insert,
	// update, canget, and unlock operations decode the field leniently.
	var value []byte
	if args.Value != "" {
		value, err = decodeHexField("args.value", args.Value)
		if err != nil {
			return nil, err
		}
	}

	change, err := decodeChange(args.Change)
	if err != nil {
		return nil, err
	}
	if b.Operation == "map.unlock" && change != nil {
		return nil, fmt.Errorf("%s does not take a change declaration",
			b.Operation)
	}

	decoded.verify = func(ctx *covenant.SpendContext) error {
		m, err := covenant.ParseHashedMapScript(ctx.PrevScript)
		if err != nil {
			return err
		}
		switch b.Operation {
		case "map.insert":
			return m.VerifyInsert(ctx, image, key, value, change)
		case "map.update":
			return m.VerifyUpdate(ctx, image, key, value, change)
		case "map.delete":
			return m.VerifyDelete(ctx, image, key, change)
		case "map.canget":
			return m.VerifyLookup(ctx, image, key, value, change)
		default:
			return m.VerifyUnlock(ctx, image, key, value)
		}
	}
	decoded.terminal = b.Operation == "map.unlock"

	return decoded, nil
}
