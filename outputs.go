// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covenant

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// outpointSize is the serialized size of an outpoint: a 32-byte transaction
// hash followed by a 4-byte little endian output index.
const outpointSize = chainhash.HashSize + 4

// SerializeOutputs returns the canonical concatenated encoding of the passed
// output set, which is the exact byte sequence the output section of a
// serialized transaction would contain: for each output, an 8-byte little
// endian value followed by the length-prefixed public key script.
func SerializeOutputs(outputs []*wire.TxOut) []byte {
	var b bytes.Buffer
	for _, out := range outputs {
		// The write can only fail on a failing writer, which a
		// bytes.Buffer is not.
		_ = wire.WriteTxOut(&b, 0, 0, out)
	}

	return b.Bytes()
}

// OutputsDigest returns the double SHA-256 commitment of the passed output
// set encoded by SerializeOutputs.  This is the same commitment a spending
// transaction's signature-covered data carries for its own outputs, so a
// verifier can compare a recomputed mandated set against the declared one by
// digest equality alone.
func OutputsDigest(outputs []*wire.TxOut) chainhash.Hash {
	return chainhash.DoubleHashH(SerializeOutputs(outputs))
}

// serializeOutPoint returns the canonical serialization of an outpoint.  The
// same encoding is used inside transaction inputs, so byte equality of two
// serializations is equivalent to the chain's own notion of "the same
// previous output".
func serializeOutPoint(op *wire.OutPoint) [outpointSize]byte {
	var buf [outpointSize]byte
	copy(buf[:chainhash.HashSize], op.Hash[:])
	binary.LittleEndian.PutUint32(buf[chainhash.HashSize:], op.Index)
	return buf
}

// ChangeOutput declares the unconstrained change output a spender elects to
// append after the outputs an operation mandates.  The declaration is bound
// by the output digest comparison: if the actual transaction carries a
// different change script or amount, verification fails.  A nil declaration
// means the transaction carries no change output.
type ChangeOutput struct {
	// PkScript is the script the change is paid to.
	PkScript []byte

	// Value is the change amount in satoshi.
	Value int64
}

// mandatedOutputs assembles the full expected output set for an operation
// from the outputs the covenant mandates plus the spender's declared change,
// preserving order.
func mandatedOutputs(change *ChangeOutput, outputs ...*wire.TxOut) []*wire.TxOut {
	if change != nil {
		outputs = append(outputs, wire.NewTxOut(change.Value, change.PkScript))
	}
	return outputs
}

// checkOutputsDigest recomputes the commitment of the passed mandated output
// set and compares it against the output commitment declared by the spending
// context.  On disagreement it returns a RuleError with the provided reason
// prefix, which differs between covenant operations but is stable per
// operation.
func checkOutputsDigest(ctx *SpendContext, reason string, outputs []*wire.TxOut) error {
	expected := OutputsDigest(outputs)
	if expected == ctx.HashOutputs {
		return nil
	}

	log.Debugf("output commitment mismatch spending %v: computed %v, "+
		"declared %v", ctx.PrevOut, expected, ctx.HashOutputs)

	str := fmt.Sprintf("%s: computed output commitment %v does not match "+
		"the declared commitment %v over %d mandated outputs", reason,
		expected, ctx.HashOutputs, len(outputs))
	return ruleError(ErrOutputDigestMismatch, str)
}
