// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covenant_test

import (
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"

	"github.com/Ayushjhax/covenant"
)

// trivialCode is the executable predicate section used across the scenario
// tests.  The verifiers treat the code section as opaque, so an always true
// script keeps the fixtures small.
var trivialCode = []byte{txscript.OP_TRUE}

// testInscription is a minimal inscription style envelope used as the
// transfer payload of auctioned ordinals in the scenario tests.
var testInscription = []byte{
	txscript.OP_FALSE, txscript.OP_IF,
	txscript.OP_DATA_3, 'o', 'r', 'd',
	txscript.OP_ENDIF,
}

// requireRuleError asserts err is a covenant rule error with the passed code
// and that its message carries the stable reason prefix.
func requireRuleError(t *testing.T, err error, code covenant.ErrorCode,
	reason string) {

	t.Helper()
	require.Truef(t, covenant.IsErrorCode(err, code),
		"want code %v, got error %v", code, err)
	require.ErrorContains(t, err, reason)
}
