// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covenant

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// VerifyDeadline checks that a transaction with the given lock time and
// covenant input sequence number is eligible to spend a path that only opens
// once the passed deadline has been reached.  The rules mirror the consensus
// treatment of lock times:
//
//   - The lock time and the deadline must be of the same type, meaning both
//     below the lock time threshold and therefore block heights, or both at or
//     above it and therefore unix timestamps.  A height can never satisfy a
//     timestamp deadline or vice versa.
//
//   - The lock time must be greater than or equal to the deadline.
//
//   - The sequence number must not be the maximum, since that disables lock
//     time enforcement for the transaction and would let a spender declare an
//     arbitrary lock time without the chain holding them to it.
//
// All failures return a RuleError with the ErrAuctionNotOver code and the
// stable reason "auction is not over yet".
func VerifyDeadline(lockTime uint32, sequence uint32, deadline int64) error {
	// The lock time field of a transaction is either a block height or a
	// unix timestamp depending on whether it is before or after the
	// threshold, and the deadline the contract committed to follows the
	// same encoding.  A declared lock time of the wrong type says nothing
	// about the deadline, so it cannot satisfy it.
	threshold := int64(txscript.LockTimeThreshold)
	txLockTime := int64(lockTime)
	if !((txLockTime < threshold && deadline < threshold) ||
		(txLockTime >= threshold && deadline >= threshold)) {

		str := fmt.Sprintf("auction is not over yet: mismatched lock "+
			"time types, transaction lock time %d, deadline %d",
			txLockTime, deadline)
		return ruleError(ErrAuctionNotOver, str)
	}

	if txLockTime < deadline {
		str := fmt.Sprintf("auction is not over yet: transaction lock "+
			"time %d is before deadline %d", txLockTime, deadline)
		return ruleError(ErrAuctionNotOver, str)
	}

	// A sequence number of the maximum value marks the input final, which
	// turns off lock time enforcement for the transaction and with it any
	// assurance the declared lock time has actually been reached.
	if sequence == wire.MaxTxInSequenceNum {
		str := fmt.Sprintf("auction is not over yet: covenant input "+
			"sequence %#x disables lock time enforcement", sequence)
		return ruleError(ErrAuctionNotOver, str)
	}

	return nil
}

// VerifyDeadline checks the context's transaction lock time and covenant
// input sequence number against the passed deadline.  See the package level
// VerifyDeadline for the rules applied.
func (ctx *SpendContext) VerifyDeadline(deadline int64) error {
	return VerifyDeadline(ctx.Tx.LockTime, ctx.sequence(), deadline)
}
