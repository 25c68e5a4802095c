// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covenant_test

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/Ayushjhax/covenant"
	"github.com/Ayushjhax/covenant/covtest"
)

// mapLockedValue is the value locked in the map covenant outputs of these
// tests.  Map operations carry it forward unchanged.
const mapLockedValue = 10000

// deployMapWith funds a map covenant committing to the passed image.
func deployMapWith(t *testing.T, image covenant.MapImage) (*covenant.HashedMap,
	wire.OutPoint, *covtest.Ledger) {

	t.Helper()

	ledger := covtest.NewLedger()
	hashedMap := &covenant.HashedMap{
		Digest:     image.Digest(),
		CodeScript: trivialCode,
	}
	script, err := hashedMap.Script()
	require.NoError(t, err)
	covenantOut := ledger.Fund(mapLockedValue, script)

	return hashedMap, covenantOut, ledger
}

// TestMapScenario walks the digest cycle: an empty map takes an insert, a
// duplicate insert is refused, the entry is updated, then deleted, and the
// final digest equals the starting empty digest again.
func TestMapScenario(t *testing.T) {
	t.Parallel()

	empty := covenant.MapImage{}
	m0, covenantOut, ledger := deployMapWith(t, empty)

	// insert(1, 0x0001)
	v1 := []byte{0x00, 0x01}
	tx, err := covtest.InsertTx(m0, covenantOut, mapLockedValue, nil,
		empty, 1, v1, nil)
	require.NoError(t, err)
	ctx, err := ledger.Context(tx, 0)
	require.NoError(t, err)
	require.NoError(t, m0.VerifyInsert(ctx, empty, 1, v1, nil))
	created, err := ledger.Confirm(tx)
	require.NoError(t, err)
	covenantOut = created[0]

	image1 := empty.Clone()
	image1[1] = v1
	m1 := m0.NextInstance(image1.Digest())

	// The confirmed continuation output commits to the successor digest.
	parsed, err := covenant.ParseHashedMapScript(tx.TxOut[0].PkScript)
	require.NoError(t, err)
	require.Equal(t, m1.Digest, parsed.Digest)

	// insert(1, 0x0002) against the occupied key is refused.
	dupTx, err := covtest.InsertTx(m1, covenantOut, mapLockedValue, nil,
		image1, 1, []byte{0x00, 0x02}, nil)
	require.NoError(t, err)
	ctx, err = ledger.Context(dupTx, 0)
	require.NoError(t, err)
	err = m1.VerifyInsert(ctx, image1, 1, []byte{0x00, 0x02}, nil)
	requireRuleError(t, err, covenant.ErrKeyAlreadyPresent,
		"map key already present")

	// update(1, 0x0002)
	v2 := []byte{0x00, 0x02}
	tx, err = covtest.UpdateTx(m1, covenantOut, mapLockedValue, nil,
		image1, 1, v2, nil)
	require.NoError(t, err)
	ctx, err = ledger.Context(tx, 0)
	require.NoError(t, err)
	require.NoError(t, m1.VerifyUpdate(ctx, image1, 1, v2, nil))
	created, err = ledger.Confirm(tx)
	require.NoError(t, err)
	covenantOut = created[0]

	image2 := image1.Clone()
	image2[1] = v2
	m2 := m1.NextInstance(image2.Digest())

	// delete(1)
	tx, err = covtest.DeleteTx(m2, covenantOut, mapLockedValue, nil,
		image2, 1, nil)
	require.NoError(t, err)
	ctx, err = ledger.Context(tx, 0)
	require.NoError(t, err)
	require.NoError(t, m2.VerifyDelete(ctx, image2, 1, nil))
	_, err = ledger.Confirm(tx)
	require.NoError(t, err)

	// The map is empty again, so the digest cycle closes.
	m3 := m2.NextInstance(empty.Digest())
	require.Equal(t, m0.Digest, m3.Digest)
	parsed, err = covenant.ParseHashedMapScript(tx.TxOut[0].PkScript)
	require.NoError(t, err)
	require.Equal(t, m0.Digest, parsed.Digest)
}

// TestMapPreconditions exercises the per operation key preconditions and the
// image proof every operation starts with.
func TestMapPreconditions(t *testing.T) {
	t.Parallel()

	occupied := covenant.MapImage{1: []byte{0x00, 0x01}}

	tests := []struct {
		name   string
		image  covenant.MapImage
		verify func(m *covenant.HashedMap, ctx *covenant.SpendContext,
			image covenant.MapImage) error
		code   covenant.ErrorCode
		reason string
	}{{
		name:  "update of a missing key",
		image: occupied,
		verify: func(m *covenant.HashedMap, ctx *covenant.SpendContext,
			image covenant.MapImage) error {

			return m.VerifyUpdate(ctx, image, 2, []byte{0xff}, nil)
		},
		code:   covenant.ErrKeyNotFound,
		reason: "map key not found",
	}, {
		name:  "delete of a missing key",
		image: occupied,
		verify: func(m *covenant.HashedMap, ctx *covenant.SpendContext,
			image covenant.MapImage) error {

			return m.VerifyDelete(ctx, image, 2, nil)
		},
		code:   covenant.ErrKeyNotFound,
		reason: "map key not found",
	}, {
		name:  "lookup of a missing key",
		image: occupied,
		verify: func(m *covenant.HashedMap, ctx *covenant.SpendContext,
			image covenant.MapImage) error {

			return m.VerifyLookup(ctx, image, 2, []byte{0xff}, nil)
		},
		code:   covenant.ErrKeyNotFound,
		reason: "map key not found",
	}, {
		name:  "lookup with the wrong value",
		image: occupied,
		verify: func(m *covenant.HashedMap, ctx *covenant.SpendContext,
			image covenant.MapImage) error {

			return m.VerifyLookup(ctx, image, 1, []byte{0xff}, nil)
		},
		code:   covenant.ErrValueMismatch,
		reason: "map value mismatch",
	}, {
		name:  "image that does not match the committed digest",
		image: occupied,
		verify: func(m *covenant.HashedMap, ctx *covenant.SpendContext,
			image covenant.MapImage) error {

			lie := image.Clone()
			lie[9] = []byte{0xaa}
			return m.VerifyInsert(ctx, lie, 2, []byte{0xff}, nil)
		},
		code:   covenant.ErrMapDigestMismatch,
		reason: "map digest check failed",
	}}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			m, covenantOut, ledger := deployMapWith(t, test.image)

			// The transaction shape is irrelevant to these
			// preconditions; a lookup continuation serves.
			tx, err := covtest.LookupTx(m, covenantOut,
				mapLockedValue, nil, nil)
			require.NoError(t, err)
			ctx, err := ledger.Context(tx, 0)
			require.NoError(t, err)

			err = test.verify(m, ctx, test.image)
			requireRuleError(t, err, test.code, test.reason)
		})
	}
}

// TestMapLookupAndUnlock exercises the two read style operations: a lookup
// with an unchanged continuation and the terminal unlock with a free output
// set.
func TestMapLookupAndUnlock(t *testing.T) {
	t.Parallel()

	image := covenant.MapImage{7: []byte("sevens")}
	m, covenantOut, ledger := deployMapWith(t, image)

	// Lookup: the continuation carries the committed digest unchanged.
	tx, err := covtest.LookupTx(m, covenantOut, mapLockedValue, nil, nil)
	require.NoError(t, err)
	ctx, err := ledger.Context(tx, 0)
	require.NoError(t, err)
	require.NoError(t, m.VerifyLookup(ctx, image, 7, []byte("sevens"),
		nil))
	created, err := ledger.Confirm(tx)
	require.NoError(t, err)
	covenantOut = created[0]
	parsed, err := covenant.ParseHashedMapScript(tx.TxOut[0].PkScript)
	require.NoError(t, err)
	require.Equal(t, m.Digest, parsed.Digest)

	// Unlock: the spender takes the funds wherever they like.
	payoutScript, err := covtest.PayToKeyScript(covtest.PubKey("withdrawer"))
	require.NoError(t, err)
	unlockTx := covtest.SpendTx(covenantOut,
		wire.NewTxOut(mapLockedValue-500, payoutScript))
	ctx, err = ledger.Context(unlockTx, 0)
	require.NoError(t, err)
	require.NoError(t, m.VerifyUnlock(ctx, image, 7, []byte("sevens")))

	// The same membership assertion gates the unlock.
	err = m.VerifyUnlock(ctx, image, 7, []byte("sixes"))
	requireRuleError(t, err, covenant.ErrValueMismatch,
		"map value mismatch")

	_, err = ledger.Confirm(unlockTx)
	require.NoError(t, err)
}

// TestMapContinuationMismatches ensures continuations that skim value or
// commit to the wrong successor digest fail the output commitment check.
func TestMapContinuationMismatches(t *testing.T) {
	t.Parallel()

	empty := covenant.MapImage{}

	tests := []struct {
		name  string
		build func(m *covenant.HashedMap,
			covenantOut wire.OutPoint) (*wire.MsgTx, error)
		verify func(m *covenant.HashedMap,
			ctx *covenant.SpendContext) error
	}{{
		name: "continuation skims locked value",
		build: func(m *covenant.HashedMap,
			covenantOut wire.OutPoint) (*wire.MsgTx, error) {

			tx, err := covtest.InsertTx(m, covenantOut,
				mapLockedValue, nil, empty, 1, []byte{0x01},
				nil)
			if err != nil {
				return nil, err
			}
			tx.TxOut[0].Value--
			return tx, nil
		},
		verify: func(m *covenant.HashedMap,
			ctx *covenant.SpendContext) error {

			return m.VerifyInsert(ctx, empty, 1, []byte{0x01}, nil)
		},
	}, {
		name: "continuation commits to the wrong successor",
		build: func(m *covenant.HashedMap,
			covenantOut wire.OutPoint) (*wire.MsgTx, error) {

			// The transaction carries the digest for a different
			// value than the one the verifier is asked about.
			return covtest.InsertTx(m, covenantOut,
				mapLockedValue, nil, empty, 1, []byte{0x02},
				nil)
		},
		verify: func(m *covenant.HashedMap,
			ctx *covenant.SpendContext) error {

			return m.VerifyInsert(ctx, empty, 1, []byte{0x01}, nil)
		},
	}}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			m, covenantOut, ledger := deployMapWith(t, empty)
			tx, err := test.build(m, covenantOut)
			require.NoError(t, err)
			ctx, err := ledger.Context(tx, 0)
			require.NoError(t, err)

			err = test.verify(m, ctx)
			requireRuleError(t, err,
				covenant.ErrOutputDigestMismatch,
				"hashOutputs check failed")
		})
	}
}

// TestMapImageCodec pins the canonical image serialization: varint count,
// ascending keys, little endian key bytes, varbytes values.
func TestMapImageCodec(t *testing.T) {
	t.Parallel()

	// The empty image is the single zero byte.
	require.Equal(t, []byte{0x00}, covenant.MapImage{}.Serialize())

	image := covenant.MapImage{
		5:  []byte("b"),
		-2: []byte("z"),
		3:  []byte("a"),
	}
	want := []byte{
		0x03,
		// key -2
		0xfe, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0x01, 'z',
		// key 3
		0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x01, 'a',
		// key 5
		0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x01, 'b',
	}
	require.Equal(t, want, image.Serialize())

	// Round trip.
	parsed, err := covenant.ParseMapImage(want)
	require.NoError(t, err)
	require.Equal(t, image, parsed)
	require.Equal(t, image.Digest(), parsed.Digest())

	// Images built through different insertion histories agree, since
	// the serialization orders by key rather than by history.
	grown := covenant.MapImage{}
	for _, key := range []int64{5, -2, 3} {
		grown[key] = image[key]
	}
	require.Equal(t, image.Digest(), grown.Digest())
}

// TestParseMapImageErrors ensures malformed image serializations are
// rejected.
func TestParseMapImageErrors(t *testing.T) {
	t.Parallel()

	valid := covenant.MapImage{
		3: []byte("a"),
		5: []byte("b"),
	}.Serialize()

	tests := []struct {
		name       string
		serialized []byte
	}{{
		name:       "empty input",
		serialized: nil,
	}, {
		name:       "count overclaims the remaining bytes",
		serialized: []byte{0x09, 0x01},
	}, {
		name: "keys out of order",
		serialized: []byte{
			0x02,
			0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x01, 'b',
			0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x01, 'a',
		},
	}, {
		name: "duplicate keys",
		serialized: []byte{
			0x02,
			0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x01, 'a',
			0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x01, 'b',
		},
	}, {
		name:       "trailing bytes",
		serialized: append(append([]byte{}, valid...), 0x00),
	}}

	for _, test := range tests {
		_, err := covenant.ParseMapImage(test.serialized)
		if !covenant.IsErrorCode(err, covenant.ErrMalformedState) {
			t.Errorf("%s: got %v want code %v", test.name, err,
				covenant.ErrMalformedState)
		}
	}
}
