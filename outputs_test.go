// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covenant

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
)

// TestSerializeOutputs ensures the output encoder produces the exact wire
// layout: an 8-byte little endian value and a length prefixed script per
// output, concatenated in order.
func TestSerializeOutputs(t *testing.T) {
	t.Parallel()

	outputs := []*wire.TxOut{
		{Value: 0x0102, PkScript: []byte{txscript.OP_TRUE}},
		{Value: 600, PkScript: []byte{txscript.OP_DUP, txscript.OP_DROP}},
	}

	want := []byte{
		// First output: value 0x0102, one byte script.
		0x02, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x01, txscript.OP_TRUE,
		// Second output: value 600 (0x258), two byte script.
		0x58, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x02, txscript.OP_DUP, txscript.OP_DROP,
	}

	got := SerializeOutputs(outputs)
	if !bytes.Equal(got, want) {
		t.Fatalf("serialized outputs mismatch:\n got %x\nwant %x", got,
			want)
	}

	if OutputsDigest(outputs) != chainhash.DoubleHashH(want) {
		t.Fatal("outputs digest is not the double hash of the " +
			"serialization")
	}
}

// TestOutputsDigestMatchesSigHashes ensures the digest the verifiers
// recompute is byte for byte the output set commitment of the transaction's
// cached sighash midstate.  This equivalence is what lets the verifiers
// treat the midstate commitment as the declared output digest.
func TestOutputsDigestMatchesSigHashes(t *testing.T) {
	t.Parallel()

	prevScript := []byte{txscript.OP_TRUE}
	prevOut := wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: 3}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&prevOut, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1500, []byte{txscript.OP_TRUE}))
	tx.AddTxOut(wire.NewTxOut(600, []byte{
		txscript.OP_DUP, txscript.OP_HASH160, txscript.OP_DATA_20,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a,
		0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14,
		txscript.OP_EQUALVERIFY, txscript.OP_CHECKSIG,
	}))

	fetcher := txscript.NewCannedPrevOutputFetcher(prevScript, 2500)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	if sigHashes.HashOutputsV0 != OutputsDigest(tx.TxOut) {
		t.Fatalf("recomputed digest %v does not match the midstate "+
			"commitment %v", OutputsDigest(tx.TxOut),
			sigHashes.HashOutputsV0)
	}
}

// TestSerializeOutPoint ensures outpoints serialize as the 32-byte hash
// followed by the little endian index.
func TestSerializeOutPoint(t *testing.T) {
	t.Parallel()

	var hash chainhash.Hash
	hash[0] = 0xaa
	hash[31] = 0xbb
	prevOut := wire.OutPoint{Hash: hash, Index: 0x01020304}

	got := serializeOutPoint(&prevOut)
	if !bytes.Equal(got[:chainhash.HashSize], hash[:]) {
		t.Fatalf("serialized outpoint hash mismatch: got %x", got)
	}
	if !bytes.Equal(got[chainhash.HashSize:], []byte{0x04, 0x03, 0x02,
		0x01}) {

		t.Fatalf("serialized outpoint index mismatch: got %x",
			got[chainhash.HashSize:])
	}
}

// TestMandatedOutputs ensures the declared change output rides behind the
// mandated outputs and is omitted when absent.
func TestMandatedOutputs(t *testing.T) {
	t.Parallel()

	first := &wire.TxOut{Value: 1, PkScript: []byte{txscript.OP_TRUE}}
	second := &wire.TxOut{Value: 2, PkScript: []byte{txscript.OP_TRUE}}

	without := mandatedOutputs(nil, first, second)
	if len(without) != 2 || without[0] != first || without[1] != second {
		t.Fatalf("unexpected outputs without change: %v",
			spew.Sdump(without))
	}

	change := &ChangeOutput{Value: 3, PkScript: []byte{txscript.OP_TRUE}}
	with := mandatedOutputs(change, first, second)
	if len(with) != 3 {
		t.Fatalf("unexpected output count with change: %d", len(with))
	}
	if with[2].Value != change.Value ||
		!bytes.Equal(with[2].PkScript, change.PkScript) {

		t.Fatalf("change output not carried verbatim: %v",
			spew.Sprint(with[2]))
	}
}
