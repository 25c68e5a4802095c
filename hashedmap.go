// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covenant

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// mapKeySize is the serialized size of a map key.
const mapKeySize = 8

// MapImage is the full contents of an authenticated map, supplied off chain
// at call time.  The chain never stores an image, only its digest, so every
// operation takes the claimed image and proves it matches the committed
// digest before trusting anything about it.
type MapImage map[int64][]byte

// Serialize returns the canonical byte encoding of the image: a varint entry
// count followed by each entry in ascending key order as an 8-byte little
// endian key and a varbytes value.  The key ordering is load bearing: two
// parties that build logically equal maps through different operation
// sequences must arrive at identical serializations or their digests would
// disagree.  The empty image serializes to the single byte 0x00.
func (m MapImage) Serialize() []byte {
	keys := make([]int64, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var b bytes.Buffer
	wire.WriteVarInt(&b, 0, uint64(len(m)))
	for _, key := range keys {
		var keyBytes [mapKeySize]byte
		binary.LittleEndian.PutUint64(keyBytes[:], uint64(key))
		b.Write(keyBytes[:])
		wire.WriteVarBytes(&b, 0, m[key])
	}
	return b.Bytes()
}

// Digest returns the commitment to the image's full contents, the double
// SHA-256 of its canonical serialization.
func (m MapImage) Digest() chainhash.Hash {
	return chainhash.DoubleHashH(m.Serialize())
}

// Clone returns a deep copy of the image.
func (m MapImage) Clone() MapImage {
	clone := make(MapImage, len(m))
	for key, value := range m {
		valueCopy := make([]byte, len(value))
		copy(valueCopy, value)
		clone[key] = valueCopy
	}
	return clone
}

// ParseMapImage decodes an image from its canonical serialization.  Entries
// must appear in strictly ascending key order, which also rules out
// duplicate keys.
func ParseMapImage(serialized []byte) (MapImage, error) {
	r := bytes.NewReader(serialized)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		str := fmt.Sprintf("map image has an invalid entry count: %v",
			err)
		return nil, ruleError(ErrMalformedState, str)
	}
	if count > uint64(r.Len())/(mapKeySize+1) {
		str := fmt.Sprintf("map image claims %d entries but only %d "+
			"bytes remain", count, r.Len())
		return nil, ruleError(ErrMalformedState, str)
	}

	image := make(MapImage, count)
	var prevKey int64
	for i := uint64(0); i < count; i++ {
		var keyBytes [mapKeySize]byte
		if _, err := io.ReadFull(r, keyBytes[:]); err != nil {
			str := fmt.Sprintf("map image entry %d is missing its "+
				"key", i)
			return nil, ruleError(ErrMalformedState, str)
		}
		key := int64(binary.LittleEndian.Uint64(keyBytes[:]))
		if i > 0 && key <= prevKey {
			str := fmt.Sprintf("map image keys are not in "+
				"ascending order: key %d follows %d", key,
				prevKey)
			return nil, ruleError(ErrMalformedState, str)
		}
		prevKey = key

		value, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload,
			"map value")
		if err != nil {
			str := fmt.Sprintf("map image entry %d has an "+
				"invalid value: %v", i, err)
			return nil, ruleError(ErrMalformedState, str)
		}
		image[key] = value
	}
	if r.Len() != 0 {
		str := fmt.Sprintf("map image carries %d trailing bytes",
			r.Len())
		return nil, ruleError(ErrMalformedState, str)
	}

	return image, nil
}

// HashedMap describes one instance of the authenticated map covenant.  The
// instance commits to the map's full contents through a single digest; the
// contents themselves live off chain and are re-supplied and re-proven on
// every operation.
type HashedMap struct {
	// Digest is the commitment to the map's current contents.
	Digest chainhash.Hash

	// CodeScript is the executable section of the predicate script, ahead
	// of the state separator.
	CodeScript []byte
}

// Script returns the full predicate script for this instance.
func (m *HashedMap) Script() ([]byte, error) {
	return StateScript(m.CodeScript, m.Digest[:])
}

// ParseHashedMapScript recovers the map instance committed by a predicate
// script produced by Script.
func ParseHashedMapScript(script []byte) (*HashedMap, error) {
	codeScript, state, err := ParseStateScript(script)
	if err != nil {
		return nil, err
	}
	if len(state) != chainhash.HashSize {
		str := fmt.Sprintf("map state of %d bytes is not a %d-byte "+
			"digest", len(state), chainhash.HashSize)
		return nil, ruleError(ErrMalformedState, str)
	}

	hashedMap := &HashedMap{CodeScript: codeScript}
	copy(hashedMap.Digest[:], state)
	return hashedMap, nil
}

// NextInstance returns the successor instance carrying the passed digest.
func (m *HashedMap) NextInstance(digest chainhash.Hash) *HashedMap {
	return &HashedMap{Digest: digest, CodeScript: m.CodeScript}
}

// checkImage proves the claimed image matches the committed digest.  Nothing
// about the image may be trusted before this passes.
func (m *HashedMap) checkImage(image MapImage) error {
	digest := image.Digest()
	if digest == m.Digest {
		return nil
	}
	str := fmt.Sprintf("map digest check failed: claimed image of %d "+
		"entries digests to %v, contract committed %v", len(image),
		digest, m.Digest)
	return ruleError(ErrMapDigestMismatch, str)
}

// verifyContinuation checks that the spending transaction's committed output
// set consists of a continuation output carrying the passed successor digest
// at the full locked value, followed by the declared change output.
func (m *HashedMap) verifyContinuation(ctx *SpendContext,
	digest chainhash.Hash, change *ChangeOutput) error {

	continuation, err := m.NextInstance(digest).Script()
	if err != nil {
		return err
	}
	expected := mandatedOutputs(change,
		&wire.TxOut{Value: ctx.PrevValue, PkScript: continuation})
	return checkOutputsDigest(ctx, "hashOutputs check failed", expected)
}

// beginOp performs the checks common to every map operation: the context
// must spend this instance's output and the claimed image must match the
// committed digest.
func (m *HashedMap) beginOp(ctx *SpendContext, image MapImage) error {
	script, err := m.Script()
	if err != nil {
		return err
	}
	if err := ctx.checkPredicate(script); err != nil {
		return err
	}
	return m.checkImage(image)
}

// VerifyInsert checks a spend that adds a new key to the map.  The key must
// be absent from the proven image, and the continuation output must carry
// the digest of the image with the new entry added.
func (m *HashedMap) VerifyInsert(ctx *SpendContext, image MapImage, key int64,
	value []byte, change *ChangeOutput) error {

	if err := m.beginOp(ctx, image); err != nil {
		return err
	}
	if _, ok := image[key]; ok {
		str := fmt.Sprintf("map key already present: key %d", key)
		return ruleError(ErrKeyAlreadyPresent, str)
	}

	successor := image.Clone()
	successor[key] = value
	return m.verifyContinuation(ctx, successor.Digest(), change)
}

// VerifyUpdate checks a spend that replaces the value of an existing key.
// The key must be present in the proven image with some value, and the
// continuation output must carry the digest of the image with the value
// replaced.
func (m *HashedMap) VerifyUpdate(ctx *SpendContext, image MapImage, key int64,
	value []byte, change *ChangeOutput) error {

	if err := m.beginOp(ctx, image); err != nil {
		return err
	}
	if _, ok := image[key]; !ok {
		str := fmt.Sprintf("map key not found: key %d", key)
		return ruleError(ErrKeyNotFound, str)
	}

	successor := image.Clone()
	successor[key] = value
	return m.verifyContinuation(ctx, successor.Digest(), change)
}

// VerifyDelete checks a spend that removes an existing key.  The key must be
// present in the proven image, and the continuation output must carry the
// digest of the image without it.
func (m *HashedMap) VerifyDelete(ctx *SpendContext, image MapImage, key int64,
	change *ChangeOutput) error {

	if err := m.beginOp(ctx, image); err != nil {
		return err
	}
	if _, ok := image[key]; !ok {
		str := fmt.Sprintf("map key not found: key %d", key)
		return ruleError(ErrKeyNotFound, str)
	}

	successor := image.Clone()
	delete(successor, key)
	return m.verifyContinuation(ctx, successor.Digest(), change)
}

// VerifyLookup checks a pure read: the key must be present in the proven
// image with exactly the claimed value, and the continuation output must
// carry the committed digest unchanged.
func (m *HashedMap) VerifyLookup(ctx *SpendContext, image MapImage, key int64,
	value []byte, change *ChangeOutput) error {

	if err := m.beginOp(ctx, image); err != nil {
		return err
	}
	if err := m.checkMember(image, key, value); err != nil {
		return err
	}
	return m.verifyContinuation(ctx, m.Digest, change)
}

// VerifyUnlock checks the terminal withdrawal: the same membership assertion
// as VerifyLookup but with no constraint on the output set, since no further
// state exists once the output is spent.
func (m *HashedMap) VerifyUnlock(ctx *SpendContext, image MapImage, key int64,
	value []byte) error {

	if err := m.beginOp(ctx, image); err != nil {
		return err
	}
	return m.checkMember(image, key, value)
}

// checkMember asserts the proven image carries exactly the claimed value for
// the passed key.
func (m *HashedMap) checkMember(image MapImage, key int64, value []byte) error {
	have, ok := image[key]
	if !ok {
		str := fmt.Sprintf("map key not found: key %d", key)
		return ruleError(ErrKeyNotFound, str)
	}
	if !bytes.Equal(have, value) {
		str := fmt.Sprintf("map value mismatch: key %d carries %x, "+
			"claimed %x", key, have, value)
		return ruleError(ErrValueMismatch, str)
	}
	return nil
}
