// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covenant

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// scriptVersion is the script version the predicate codecs operate on.  Only
// version 0 scripts are currently supported.
const scriptVersion = 0

// StateScript assembles a predicate script from a code section and a state
// section.  The resulting script is the code section followed by an OP_RETURN
// separator followed by a single canonical push of the state bytes:
//
//	<code script> OP_RETURN <state push>
//
// The code section must not itself contain a top level OP_RETURN since the
// first one encountered is what marks the start of the state section.  The
// state push sits after the separator and is never executed, so it may exceed
// the element size limit that applies to executable pushes.
func StateScript(codeScript, state []byte) ([]byte, error) {
	// Walk the code section both to reject embedded separators and to
	// refuse code that does not tokenize, which would poison every later
	// attempt to take the script apart again.
	codeTokenizer := txscript.MakeScriptTokenizer(scriptVersion, codeScript)
	for codeTokenizer.Next() {
		if codeTokenizer.Opcode() == txscript.OP_RETURN {
			return nil, ruleError(ErrInvalidContractParam,
				"code script contains a state separator")
		}
	}
	if err := codeTokenizer.Err(); err != nil {
		str := fmt.Sprintf("code script is not parseable: %v", err)
		return nil, ruleError(ErrInvalidContractParam, str)
	}

	suffix, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddFullData(state).
		Script()
	if err != nil {
		str := fmt.Sprintf("state section of %d bytes cannot be "+
			"encoded: %v", len(state), err)
		return nil, ruleError(ErrInvalidContractParam, str)
	}

	script := make([]byte, 0, len(codeScript)+len(suffix))
	script = append(script, codeScript...)
	script = append(script, suffix...)
	return script, nil
}

// ParseStateScript splits a predicate script back into its code section and
// state bytes.  The split point is the first top level OP_RETURN, and the
// state section must consist of exactly one data push after it.
//
// Scripts produced by StateScript always round trip through this function
// unchanged since the state push is encoded canonically.
func ParseStateScript(script []byte) (codeScript []byte, state []byte, err error) {
	tokenizer := txscript.MakeScriptTokenizer(scriptVersion, script)

	// Scan for the separator.  Everything before it is the code section.
	codeEnd := int32(-1)
	for tokenizer.Next() {
		if tokenizer.Opcode() == txscript.OP_RETURN {
			codeEnd = tokenizer.ByteIndex() - 1
			break
		}
	}
	if err := tokenizer.Err(); err != nil {
		str := fmt.Sprintf("predicate script is not parseable: %v", err)
		return nil, nil, ruleError(ErrMalformedState, str)
	}
	if codeEnd < 0 {
		return nil, nil, ruleError(ErrMalformedState,
			"predicate script has no state separator")
	}

	if !tokenizer.Next() {
		if err := tokenizer.Err(); err != nil {
			str := fmt.Sprintf("state section is not parseable: %v",
				err)
			return nil, nil, ruleError(ErrMalformedState, str)
		}
		return nil, nil, ruleError(ErrMalformedState,
			"state section is empty")
	}
	state = tokenizer.Data()
	if state == nil {
		str := fmt.Sprintf("state section opcode %#x is not a data "+
			"push", tokenizer.Opcode())
		return nil, nil, ruleError(ErrMalformedState, str)
	}

	if tokenizer.Next() {
		str := fmt.Sprintf("trailing opcode %#x after the state "+
			"section", tokenizer.Opcode())
		return nil, nil, ruleError(ErrMalformedState, str)
	}
	if err := tokenizer.Err(); err != nil {
		str := fmt.Sprintf("state section is not parseable: %v", err)
		return nil, nil, ruleError(ErrMalformedState, str)
	}

	return script[:codeEnd], state, nil
}

// ContractID returns the stable identifier for the contract instance locked
// by the passed predicate script, which is the double SHA-256 of the script
// itself.  Successive instances of the same logical contract have different
// identifiers since their state sections differ.
func ContractID(script []byte) chainhash.Hash {
	return chainhash.DoubleHashH(script)
}
