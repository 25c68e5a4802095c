// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covenant

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/crypto/ripemd160"
)

// Outcome identifies which resolution of a blind escrow an oracle stamp
// attests to.  The byte value is what gets appended to the escrow nonce to
// form the stamped message, so the values are fixed.
type Outcome byte

// The permitted escrow outcomes.  Release outcomes authorize the buyer to
// finalize the spend, return outcomes authorize the seller.
const (
	// ReleaseBySeller is the seller attesting the trade completed, which
	// releases the funds to the buyer's discretion.
	ReleaseBySeller Outcome = 0

	// ReleaseByArbiter is the arbiter ruling for the buyer.
	ReleaseByArbiter Outcome = 1

	// ReturnByBuyer is the buyer attesting the trade fell through, which
	// returns the funds to the seller's discretion.
	ReturnByBuyer Outcome = 2

	// ReturnByArbiter is the arbiter ruling for the seller.
	ReturnByArbiter Outcome = 3
)

// outcomeStrings is a map of outcomes back to their constant names for
// pretty printing.
var outcomeStrings = map[Outcome]string{
	ReleaseBySeller:  "ReleaseBySeller",
	ReleaseByArbiter: "ReleaseByArbiter",
	ReturnByBuyer:    "ReturnByBuyer",
	ReturnByArbiter:  "ReturnByArbiter",
}

// String returns the Outcome as a human-readable name.
func (o Outcome) String() string {
	if s := outcomeStrings[o]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown Outcome (%d)", int(o))
}

// escrowMinStateSize is the smallest serialized escrow state: three 20-byte
// key hashes and a minimal nonce varbytes.
const escrowMinStateSize = 3*ripemd160.Size + 1

// BlindEscrow describes one instance of the blind escrow covenant.  The
// escrow is single-shot: it carries no mutable state and its one spend
// terminates it.
//
// The escrow is blind in the sense that the oracle attesting the outcome
// never handles the funds and never sees the spending transaction.  It signs
// only the fixed message formed from the escrow nonce and the outcome code,
// and the predicate grants the matching party the right to finalize the
// spend however they see fit.
type BlindEscrow struct {
	// SellerPKH, BuyerPKH, and ArbiterPKH are the hash160s of the three
	// participants' compressed public keys.
	SellerPKH  [ripemd160.Size]byte
	BuyerPKH   [ripemd160.Size]byte
	ArbiterPKH [ripemd160.Size]byte

	// Nonce scopes oracle stamps to this escrow instance, preventing a
	// stamp issued for one escrow from resolving another that happens to
	// involve the same parties.
	Nonce []byte

	// CodeScript is the executable section of the predicate script, ahead
	// of the state separator.
	CodeScript []byte
}

// KeyHash returns the 20-byte hash160 of a compressed public key, which is
// the form escrow participants are identified by.
func KeyHash(pub *btcec.PublicKey) [ripemd160.Size]byte {
	var pkh [ripemd160.Size]byte
	copy(pkh[:], btcutil.Hash160(pub.SerializeCompressed()))
	return pkh
}

// validate performs the structural checks every escrow operation depends on.
func (e *BlindEscrow) validate() error {
	if len(e.Nonce) == 0 {
		return ruleError(ErrInvalidContractParam,
			"escrow requires a nonce")
	}
	return nil
}

// serializeState returns the canonical state bytes committed into the
// predicate script: the three key hashes followed by the nonce as varbytes.
func (e *BlindEscrow) serializeState() []byte {
	var b bytes.Buffer
	b.Grow(escrowMinStateSize + len(e.Nonce))
	b.Write(e.SellerPKH[:])
	b.Write(e.BuyerPKH[:])
	b.Write(e.ArbiterPKH[:])
	wire.WriteVarBytes(&b, 0, e.Nonce)
	return b.Bytes()
}

// parseEscrowState decodes the canonical escrow state bytes.
func parseEscrowState(state []byte) (*BlindEscrow, error) {
	if len(state) < escrowMinStateSize {
		str := fmt.Sprintf("escrow state of %d bytes is shorter than "+
			"the minimum %d", len(state), escrowMinStateSize)
		return nil, ruleError(ErrMalformedState, str)
	}

	var escrow BlindEscrow
	copy(escrow.SellerPKH[:], state[:ripemd160.Size])
	copy(escrow.BuyerPKH[:], state[ripemd160.Size:2*ripemd160.Size])
	copy(escrow.ArbiterPKH[:], state[2*ripemd160.Size:3*ripemd160.Size])

	r := bytes.NewReader(state[3*ripemd160.Size:])
	nonce, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload,
		"escrow nonce")
	if err != nil {
		str := fmt.Sprintf("escrow state carries an invalid nonce: %v",
			err)
		return nil, ruleError(ErrMalformedState, str)
	}
	if r.Len() != 0 {
		str := fmt.Sprintf("escrow state carries %d trailing bytes",
			r.Len())
		return nil, ruleError(ErrMalformedState, str)
	}
	escrow.Nonce = nonce

	return &escrow, nil
}

// Script returns the full predicate script for this instance.
func (e *BlindEscrow) Script() ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	return StateScript(e.CodeScript, e.serializeState())
}

// ParseEscrowScript recovers the escrow instance committed by a predicate
// script produced by Script.
func ParseEscrowScript(script []byte) (*BlindEscrow, error) {
	codeScript, state, err := ParseStateScript(script)
	if err != nil {
		return nil, err
	}
	escrow, err := parseEscrowState(state)
	if err != nil {
		return nil, err
	}
	escrow.CodeScript = codeScript
	return escrow, nil
}

// StampDigest returns the digest an oracle stamp for the passed outcome must
// sign: the double SHA-256 of the escrow nonce with the outcome byte
// appended.  This is an application level message, not a transaction digest,
// which is what keeps the oracle blind to the spend itself.
func (e *BlindEscrow) StampDigest(outcome Outcome) []byte {
	msg := make([]byte, 0, len(e.Nonce)+1)
	msg = append(msg, e.Nonce...)
	msg = append(msg, byte(outcome))
	return chainhash.DoubleHashB(msg)
}

// stampPairing names the oracle that must attest an outcome and the spender
// the attestation authorizes.
type stampPairing struct {
	oraclePKH   [ripemd160.Size]byte
	oracleRole  string
	spenderPKH  [ripemd160.Size]byte
	spenderRole string
}

// pairing returns the fixed pairing for the passed outcome.  The second
// return is false for outcomes outside the permitted table, which must fail
// closed.
func (e *BlindEscrow) pairing(outcome Outcome) (stampPairing, bool) {
	switch outcome {
	case ReleaseBySeller:
		return stampPairing{e.SellerPKH, "seller", e.BuyerPKH,
			"buyer"}, true
	case ReleaseByArbiter:
		return stampPairing{e.ArbiterPKH, "arbiter", e.BuyerPKH,
			"buyer"}, true
	case ReturnByBuyer:
		return stampPairing{e.BuyerPKH, "buyer", e.SellerPKH,
			"seller"}, true
	case ReturnByArbiter:
		return stampPairing{e.ArbiterPKH, "arbiter", e.SellerPKH,
			"seller"}, true
	}
	return stampPairing{}, false
}

// VerifySpend checks the escrow's one spend.  The spender must be the party
// the claimed outcome authorizes and must produce a valid authorization over
// the spending transaction, and the oracle stamp must be a valid signature
// over the nonce and outcome under the key of the party the pairing table
// designates as that outcome's oracle.  The output disposition is left
// entirely to the authorized spender.
func (e *BlindEscrow) VerifySpend(ctx *SpendContext, spenderSig *ecdsa.Signature,
	spenderKey *btcec.PublicKey, oracleSig *ecdsa.Signature,
	oracleKey *btcec.PublicKey, outcome Outcome) error {

	if err := e.validate(); err != nil {
		return err
	}
	script, err := e.Script()
	if err != nil {
		return err
	}
	if err := ctx.checkPredicate(script); err != nil {
		return err
	}

	pairing, ok := e.pairing(outcome)
	if !ok {
		str := fmt.Sprintf("invalid stamp: unknown outcome %d",
			int(outcome))
		return ruleError(ErrInvalidStamp, str)
	}

	// Spender authorization.  Which party may finalize the spend is fixed
	// by the outcome, not by whoever shows up with a valid signature.
	if spenderKey == nil {
		return ruleError(ErrSignatureInvalid,
			"signature check failed: missing spender key")
	}
	if KeyHash(spenderKey) != pairing.spenderPKH {
		str := fmt.Sprintf("signature check failed: outcome %v "+
			"authorizes the %s to spend, got key %x", outcome,
			pairing.spenderRole,
			spenderKey.SerializeCompressed())
		return ruleError(ErrSignatureInvalid, str)
	}
	if err := ctx.VerifySpenderSig(spenderSig, spenderKey); err != nil {
		return err
	}

	// Oracle attestation over the application level stamp message.
	if oracleSig == nil || oracleKey == nil {
		return ruleError(ErrInvalidStamp,
			"invalid stamp: missing oracle signature or key")
	}
	if KeyHash(oracleKey) != pairing.oraclePKH {
		str := fmt.Sprintf("invalid stamp: outcome %v must be "+
			"attested by the %s, got key %x", outcome,
			pairing.oracleRole, oracleKey.SerializeCompressed())
		return ruleError(ErrInvalidStamp, str)
	}

	digest := e.StampDigest(outcome)
	var stampHash chainhash.Hash
	copy(stampHash[:], digest)
	cached := ctx.SigCache != nil &&
		ctx.SigCache.Exists(stampHash, oracleSig, oracleKey)
	if !cached {
		if !oracleSig.Verify(digest, oracleKey) {
			str := fmt.Sprintf("invalid stamp: %s signature does "+
				"not cover outcome %v for this escrow",
				pairing.oracleRole, outcome)
			return ruleError(ErrInvalidStamp, str)
		}
		if ctx.SigCache != nil {
			ctx.SigCache.Add(stampHash, oracleSig, oracleKey)
		}
	}

	log.Tracef("Accepted escrow %v spend by %s under outcome %v",
		ContractID(script), pairing.spenderRole, outcome)
	return nil
}
