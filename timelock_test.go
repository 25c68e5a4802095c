// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covenant

import (
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// TestVerifyDeadline exercises the three joint deadline conditions across
// both lock time domains, including the domain boundary at the lock time
// threshold.
func TestVerifyDeadline(t *testing.T) {
	t.Parallel()

	const threshold = txscript.LockTimeThreshold

	tests := []struct {
		name     string
		lockTime uint32
		sequence uint32
		deadline int64
		valid    bool
	}{{
		name:     "height domain satisfied",
		lockTime: 400001,
		sequence: 0,
		deadline: 400000,
		valid:    true,
	}, {
		name:     "height domain at the deadline exactly",
		lockTime: 400000,
		sequence: 0,
		deadline: 400000,
		valid:    true,
	}, {
		name:     "height domain too early",
		lockTime: 399999,
		sequence: 0,
		deadline: 400000,
		valid:    false,
	}, {
		name:     "timestamp domain satisfied",
		lockTime: 500000101,
		sequence: 0,
		deadline: 500000100,
		valid:    true,
	}, {
		name:     "timestamp domain too early",
		lockTime: 500000099,
		sequence: 0,
		deadline: 500000100,
		valid:    false,
	}, {
		name:     "height lock time against timestamp deadline",
		lockTime: threshold - 1,
		sequence: 0,
		deadline: threshold,
		valid:    false,
	}, {
		name:     "timestamp lock time against height deadline",
		lockTime: threshold,
		sequence: 0,
		deadline: threshold - 1,
		valid:    false,
	}, {
		name:     "huge timestamp never satisfies a height deadline",
		lockTime: 1893456000,
		sequence: 0,
		deadline: 400000,
		valid:    false,
	}, {
		name:     "zero deadline in the height domain",
		lockTime: 0,
		sequence: 0,
		deadline: 0,
		valid:    true,
	}, {
		name:     "final sequence disables enforcement",
		lockTime: 500000101,
		sequence: wire.MaxTxInSequenceNum,
		deadline: 500000100,
		valid:    false,
	}, {
		name:     "almost final sequence still enforces",
		lockTime: 500000101,
		sequence: wire.MaxTxInSequenceNum - 1,
		deadline: 500000100,
		valid:    true,
	}}

	for _, test := range tests {
		err := VerifyDeadline(test.lockTime, test.sequence,
			test.deadline)
		if test.valid && err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
			continue
		}
		if !test.valid && !IsErrorCode(err, ErrAuctionNotOver) {
			t.Errorf("%s: got %v want code %v", test.name, err,
				ErrAuctionNotOver)
		}
	}
}
