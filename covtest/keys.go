// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covtest

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Key derives a private key from a human readable seed.  The derivation is
// deterministic so tests can name their participants and still reproduce
// identical transactions run after run.
func Key(seed string) *secp.PrivateKey {
	return secp.PrivKeyFromBytes(chainhash.DoubleHashB([]byte(seed)))
}

// PubKey derives the public key for a seed.  Shorthand for Key(seed).PubKey.
func PubKey(seed string) *btcec.PublicKey {
	return Key(seed).PubKey()
}

// PayToKeyScript returns the standard pay-to-pubkey-hash script for the
// passed key's hash160.  The result is network independent even though the
// address detour is not, so regression net parameters serve.
func PayToKeyScript(pub *btcec.PublicKey) ([]byte, error) {
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(pub.SerializeCompressed()),
		&chaincfg.RegressionNetParams)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}
