// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covenant

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/lru"
)

// SigCache implements an ECDSA signature verification cache with a bounded
// memory footprint and least recently used eviction.  Only valid signatures
// are added to the cache.  The benefit of the cache is that re-verifying the
// same spend bundle, which happens when a bundle is checked once on submission
// and again on settlement, does not pay for the elliptic curve math twice.
//
// The cache is safe for concurrent access.
type SigCache struct {
	validSigs lru.Cache
}

// NewSigCache creates and initializes a new instance of SigCache.  Its sole
// parameter 'maxEntries' represents the maximum number of entries allowed to
// exist in the SigCache at any particular moment.  The least recently used
// entry is evicted to make room for new entries that would cause the number
// of entries in the cache to exceed the max.
func NewSigCache(maxEntries uint) *SigCache {
	return &SigCache{validSigs: lru.NewCache(maxEntries)}
}

// sigCacheKey flattens a signature triple into a single comparable value
// suitable for cache membership tests.
func sigCacheKey(sigHash chainhash.Hash, sig *ecdsa.Signature,
	pubKey *btcec.PublicKey) string {

	key := make([]byte, 0, chainhash.HashSize+72+btcec.PubKeyBytesLenCompressed)
	key = append(key, sigHash[:]...)
	key = append(key, sig.Serialize()...)
	key = append(key, pubKey.SerializeCompressed()...)
	return string(key)
}

// Exists returns whether or not the passed signature over sigHash by the
// passed public key has previously been verified and cached.
func (s *SigCache) Exists(sigHash chainhash.Hash, sig *ecdsa.Signature,
	pubKey *btcec.PublicKey) bool {

	return s.validSigs.Contains(sigCacheKey(sigHash, sig, pubKey))
}

// Add adds an entry for a signature over sigHash by the passed public key to
// the cache.  In the event the cache is full, the least recently used entry
// is evicted to make room.
//
// NOTE: This function must only be called with signatures that have already
// been verified as valid.
func (s *SigCache) Add(sigHash chainhash.Hash, sig *ecdsa.Signature,
	pubKey *btcec.PublicKey) {

	s.validSigs.Add(sigCacheKey(sigHash, sig, pubKey))
}
