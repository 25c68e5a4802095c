// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covenant

import (
	"bytes"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// SpendContext packages everything a covenant verifier needs to know about a
// proposed spend of a single previous output: the full spending transaction,
// which of its inputs consumes the covenant, the output being consumed, and
// the cached sighash midstate derived from the transaction.
//
// The output commitment the verifiers compare against is the midstate's
// double SHA-256 over the serialized output set.  It is trusted because the
// transaction digest every spender authorization signs commits to it, so a
// transaction cannot present one output set to the signature check and
// another to the chain.
type SpendContext struct {
	// Tx is the proposed spending transaction.
	Tx *wire.MsgTx

	// InputIndex is the index of the transaction input that consumes the
	// covenant output.
	InputIndex int

	// PrevOut is the outpoint being consumed.
	PrevOut wire.OutPoint

	// PrevValue is the value locked in the consumed output, in satoshi.
	// For the auction covenant this doubles as the current highest bid.
	PrevValue int64

	// PrevScript is the locking script of the consumed output.  It serves
	// as the script code for spender authorization digests and must match
	// the script of the contract instance being verified.
	PrevScript []byte

	// SigHashes is the cached sighash midstate for Tx.
	SigHashes *txscript.TxSigHashes

	// HashOutputs is the declared commitment to the transaction's full
	// output set, taken from the midstate.
	HashOutputs chainhash.Hash

	// SigCache, when non-nil, is consulted before and updated after
	// signature verifications performed against this context.
	SigCache *SigCache
}

// NewSpendContext constructs the verification context for the input of tx at
// inputIndex.  The fetcher must be able to resolve the previous output of
// every input of tx; resolving only the covenant input is not enough because
// the sighash midstate commits to all inputs.
func NewSpendContext(tx *wire.MsgTx, inputIndex int,
	prevOuts txscript.PrevOutputFetcher) (*SpendContext, error) {

	if tx == nil {
		return nil, ruleError(ErrBadSpendContext,
			"spending context requires a transaction")
	}
	if inputIndex < 0 || inputIndex >= len(tx.TxIn) {
		str := fmt.Sprintf("spending context input index %d is out of "+
			"range for a transaction with %d inputs", inputIndex,
			len(tx.TxIn))
		return nil, ruleError(ErrBadSpendContext, str)
	}

	// Resolve every referenced output up front so the midstate
	// calculation cannot trip over a missing one.
	var zeroHash chainhash.Hash
	for _, txIn := range tx.TxIn {
		prevOut := txIn.PreviousOutPoint
		if prevOut.Index == math.MaxUint32 && prevOut.Hash == zeroHash {
			continue
		}
		if prevOuts.FetchPrevOutput(prevOut) == nil {
			str := fmt.Sprintf("spending context cannot resolve "+
				"previous output %v", prevOut)
			return nil, ruleError(ErrBadSpendContext, str)
		}
	}

	prevOut := tx.TxIn[inputIndex].PreviousOutPoint
	utxo := prevOuts.FetchPrevOutput(prevOut)
	if utxo == nil {
		str := fmt.Sprintf("spending context cannot resolve the "+
			"covenant output %v", prevOut)
		return nil, ruleError(ErrBadSpendContext, str)
	}

	sigHashes := txscript.NewTxSigHashes(tx, prevOuts)
	return &SpendContext{
		Tx:          tx,
		InputIndex:  inputIndex,
		PrevOut:     prevOut,
		PrevValue:   utxo.Value,
		PrevScript:  utxo.PkScript,
		SigHashes:   sigHashes,
		HashOutputs: sigHashes.HashOutputsV0,
	}, nil
}

// sequence returns the sequence number of the covenant input.
func (ctx *SpendContext) sequence() uint32 {
	return ctx.Tx.TxIn[ctx.InputIndex].Sequence
}

// SpendDigest returns the transaction digest a spender authorization for the
// covenant input must sign.  The digest commits to the outpoint, the locked
// value, the locking script, and the transaction's full output set, which is
// what lets the verifiers treat the declared output commitment as
// signature-bound data.
func (ctx *SpendContext) SpendDigest() ([]byte, error) {
	return txscript.CalcWitnessSigHash(ctx.PrevScript, ctx.SigHashes,
		txscript.SigHashAll, ctx.Tx, ctx.InputIndex, ctx.PrevValue)
}

// checkPredicate verifies that the output this context spends is locked by
// the passed predicate script, i.e. that the caller is verifying the contract
// instance the chain actually committed to.
func (ctx *SpendContext) checkPredicate(script []byte) error {
	if bytes.Equal(ctx.PrevScript, script) {
		return nil
	}
	str := fmt.Sprintf("spending context consumes an output locked by a "+
		"different predicate than the %d-byte script of the contract "+
		"instance under verification", len(script))
	return ruleError(ErrBadSpendContext, str)
}

// VerifySpenderSig checks a spender authorization: an ECDSA signature over
// this context's spend digest under the declared public key.  It returns a
// RuleError with the stable reason "signature check failed" when the
// signature does not validate.
func (ctx *SpendContext) VerifySpenderSig(sig *ecdsa.Signature,
	pub *btcec.PublicKey) error {

	if sig == nil || pub == nil {
		return ruleError(ErrSignatureInvalid,
			"signature check failed: missing signature or key")
	}

	digest, err := ctx.SpendDigest()
	if err != nil {
		str := fmt.Sprintf("signature check failed: %v", err)
		return ruleError(ErrSignatureInvalid, str)
	}

	var sigHash chainhash.Hash
	copy(sigHash[:], digest)
	if ctx.SigCache != nil && ctx.SigCache.Exists(sigHash, sig, pub) {
		return nil
	}

	if !sig.Verify(digest, pub) {
		str := fmt.Sprintf("signature check failed for key %x over "+
			"digest %v", pub.SerializeCompressed(), sigHash)
		return ruleError(ErrSignatureInvalid, str)
	}

	if ctx.SigCache != nil {
		ctx.SigCache.Add(sigHash, sig, pub)
	}
	return nil
}
