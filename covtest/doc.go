// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package covtest provides the scaffolding the covenant verifiers deliberately
leave to external collaborators: deterministic test keys, spending
transaction assembly for every covenant operation, spender and oracle
signing, and a minimal in-memory ledger that enforces the at-most-once
outpoint consumption the verifiers rely on.

Nothing in this package is consulted by the verifiers themselves.  It exists
so tests and tools can stand in for the wallet, signer, and chain that a
deployment would provide.
*/
package covtest
