// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package covenant verifies authenticated state transitions encoded as spendable
transaction outputs.

A covenant locks value under a predicate whose state is committed into the
locking script.  Spending the output is only valid when the spending
transaction's output set matches, byte for byte, the set the claimed operation
mandates.  Each verifier recomputes that mandated set, serializes it with the
wire encoding, double hashes it, and compares the result against the output
commitment of the proposed transaction.  Equality is necessary and sufficient;
there is no partial credit.

Three covenant designs share this pattern:

An auction carries the current highest bidder in its state.  A bid spend must
strictly raise the locked value, refund the displaced bidder, and re-embed the
unchanged immutable fields in a continuation output.  Once the deadline
passes, a settlement spend transfers the auctioned ordinal to the winner and
pays the proceeds to the auctioneer.

A blind escrow releases or returns funds based on a third party's detached
signature over a nonce and outcome code.  The oracle never touches the funds;
its stamp only gates which of the two parties may finalize the spend.

A hashed map commits the full contents of a key-value store into a single
digest.  Insert, update, delete, and lookup each re-derive the digest from the
caller-asserted contents on both sides of the transition, so the predicate
never trusts a claimed image it has not checked.

Verification is pure: each call is a synchronous function of the locked state,
the proposed transaction, and the supplied witness data.  Rejections are
RuleError values carrying a stable reason string and an ErrorCode, so callers
can distinguish precondition violations, authentication failures, and
structural digest mismatches.

This package does not assemble, sign, or broadcast transactions, and it does
not talk to a chain; those concerns belong to the caller.  The covtest package
provides a minimal assembly collaborator for tests and tooling.
*/
package covenant
