// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covenant

import (
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrInvalidContractParam indicates a contract was instantiated with a
	// parameter that is structurally invalid, such as a public key hash
	// with the wrong length or a deadline outside the representable range.
	ErrInvalidContractParam ErrorCode = iota

	// ErrMalformedState indicates a predicate script could not be split
	// into its code template and committed state, or the committed state
	// bytes do not deserialize into the expected fields.
	ErrMalformedState

	// ErrBadSpendContext indicates the spending context is unusable for
	// the requested verification, such as an out of range input index, a
	// missing previous output, or a previous output whose script does not
	// commit to the contract instance being verified.
	ErrBadSpendContext

	// ErrBidTooLow indicates a bid that does not strictly exceed the value
	// currently locked in the auction output.
	ErrBidTooLow

	// ErrAuctionNotOver indicates an attempt to settle an auction with a
	// transaction that does not satisfy the deadline policy.  This covers
	// a lock time in the wrong domain, a finalized input sequence, and a
	// lock time below the deadline alike.
	ErrAuctionNotOver

	// ErrOrdinalMismatch indicates the settlement transaction does not
	// consume the auctioned asset, meaning its first input references an
	// outpoint other than the one recorded at instantiation.
	ErrOrdinalMismatch

	// ErrSignatureInvalid indicates a spender authorization failure: the
	// supplied signature does not validate over the transaction digest
	// under the required public key, or the key is not the one the
	// contract designates for the operation.
	ErrSignatureInvalid

	// ErrInvalidStamp indicates an oracle attestation failure: the
	// (outcome, oracle) pairing is not one of the permitted combinations,
	// or the detached signature does not validate over the attestation
	// message under the claimed oracle key.
	ErrInvalidStamp

	// ErrOutputDigestMismatch indicates the double hash of the
	// transaction's serialized output set disagrees with the output set
	// the operation mandates.
	ErrOutputDigestMismatch

	// ErrMapDigestMismatch indicates the caller-asserted map image does
	// not hash to the digest committed in the predicate.
	ErrMapDigestMismatch

	// ErrKeyAlreadyPresent indicates an insert for a key the asserted map
	// image already contains.
	ErrKeyAlreadyPresent

	// ErrKeyNotFound indicates an update, delete, or membership assertion
	// for a key the asserted map image does not contain.
	ErrKeyNotFound

	// ErrValueMismatch indicates a membership assertion whose key is
	// present but bound to a different value.
	ErrValueMismatch

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidContractParam: "ErrInvalidContractParam",
	ErrMalformedState:       "ErrMalformedState",
	ErrBadSpendContext:      "ErrBadSpendContext",
	ErrBidTooLow:            "ErrBidTooLow",
	ErrAuctionNotOver:       "ErrAuctionNotOver",
	ErrOrdinalMismatch:      "ErrOrdinalMismatch",
	ErrSignatureInvalid:     "ErrSignatureInvalid",
	ErrInvalidStamp:         "ErrInvalidStamp",
	ErrOutputDigestMismatch: "ErrOutputDigestMismatch",
	ErrMapDigestMismatch:    "ErrMapDigestMismatch",
	ErrKeyAlreadyPresent:    "ErrKeyAlreadyPresent",
	ErrKeyNotFound:          "ErrKeyNotFound",
	ErrValueMismatch:        "ErrValueMismatch",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a rule violation.  It is used to indicate that
// verification of a proposed spend failed one of the covenant's checks.  The
// caller can use type assertions to determine if the failure was specifically
// due to a rule violation and access the ErrorCode field to ascertain the
// specific reason for the failure.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// ruleError creates a RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether or not the provided error is a rule error with
// the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	rerr, ok := err.(RuleError)
	return ok && rerr.ErrorCode == c
}
