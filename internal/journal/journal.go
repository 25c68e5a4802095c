// Copyright (c) 2024-2026 The covenant developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package journal persists the latest accepted instance of each covenant
// chain.  A chain is identified by its contract id, the digest of the genesis
// lock script, and every accepted continuation replaces the chain's record,
// so the journal always answers with the newest output a verifier approved.
package journal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	bolt "go.etcd.io/bbolt"
)

var bucketInstances = []byte("instances_by_contract_id")

// Record is the latest accepted covenant output of a chain: the outpoint it
// sits at, the value it locks, and the full lock script carrying the current
// committed state.
type Record struct {
	PrevOut  wire.OutPoint
	Value    int64
	PkScript []byte
}

// Journal is a handle to an open journal database.  Its methods are safe for
// concurrent use; bbolt serializes writers internally.
type Journal struct {
	db *bolt.DB
}

// Open opens the journal database at the passed path, creating the file and
// any missing parent directories as needed.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal: path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketInstances)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("journal: create bucket: %w", err)
	}

	log.Debugf("Opened instance journal %s", path)
	return &Journal{db: bdb}, nil
}

// Close releases the database.  It is a no-op on a nil journal so callers can
// defer it unconditionally.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Put records rec as the latest accepted output of the chain identified by
// id, replacing any previous record.
func (j *Journal) Put(id chainhash.Hash, rec *Record) error {
	val, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	err = j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInstances).Put(id[:], val)
	})
	if err != nil {
		return err
	}
	log.Tracef("Journaled contract %v at %v", id, rec.PrevOut)
	return nil
}

// Lookup returns the latest accepted record of the chain identified by id.
// The second return reports whether the chain is known.
func (j *Journal) Lookup(id chainhash.Hash) (*Record, bool, error) {
	var out *Record
	err := j.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketInstances).Get(id[:])
		if v == nil {
			return nil
		}
		rec, err := decodeRecord(v)
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

// FindSpent returns the chain whose latest record sits at the passed
// outpoint, which is how a verifier maps an incoming spend back to the chain
// it advances.  The journal holds one record per chain, so a bucket scan
// serves.  The third return reports whether any chain matched.
func (j *Journal) FindSpent(prevOut wire.OutPoint) (chainhash.Hash, *Record,
	bool, error) {

	var id chainhash.Hash
	var out *Record
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInstances).ForEach(func(k, v []byte) error {
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			if rec.PrevOut == prevOut {
				copy(id[:], k)
				out = rec
			}
			return nil
		})
	})
	if err != nil {
		return chainhash.Hash{}, nil, false, err
	}
	if out == nil {
		return chainhash.Hash{}, nil, false, nil
	}
	return id, out, true, nil
}

// Delete drops the chain identified by id, which is how terminal spends
// retire a chain.  Deleting an unknown chain is not an error.
func (j *Journal) Delete(id chainhash.Hash) error {
	err := j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInstances).Delete(id[:])
	})
	if err != nil {
		return err
	}
	log.Tracef("Retired contract %v", id)
	return nil
}

func encodeRecord(rec *Record) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("journal: nil record")
	}
	// Layout: hash 32 | index u32le | value u64le | script varbytes
	var b bytes.Buffer
	b.Write(rec.PrevOut.Hash[:])
	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], rec.PrevOut.Index)
	b.Write(scratch[:4])
	binary.LittleEndian.PutUint64(scratch[:], uint64(rec.Value))
	b.Write(scratch[:])
	if err := wire.WriteVarBytes(&b, 0, rec.PkScript); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func decodeRecord(v []byte) (*Record, error) {
	r := bytes.NewReader(v)
	rec := &Record{}
	if _, err := io.ReadFull(r, rec.PrevOut.Hash[:]); err != nil {
		return nil, fmt.Errorf("journal: record truncated")
	}
	var scratch [8]byte
	if _, err := io.ReadFull(r, scratch[:4]); err != nil {
		return nil, fmt.Errorf("journal: record truncated")
	}
	rec.PrevOut.Index = binary.LittleEndian.Uint32(scratch[:4])
	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return nil, fmt.Errorf("journal: record truncated")
	}
	rec.Value = int64(binary.LittleEndian.Uint64(scratch[:]))
	script, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "lock script")
	if err != nil {
		return nil, fmt.Errorf("journal: record script: %w", err)
	}
	rec.PkScript = script
	if r.Len() != 0 {
		return nil, fmt.Errorf("journal: record carries %d trailing bytes",
			r.Len())
	}
	return rec, nil
}
