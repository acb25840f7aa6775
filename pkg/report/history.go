// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sclogin.
//
// go-sclogin is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package report

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"
)

// ErrNotFound indicates no stored run matches the requested ID.
var ErrNotFound = errors.New("report: run not found")

// Store bucket layout: runs holds CBOR-encoded results keyed by a
// big-endian sequence number, byID maps run ID to that key, byScenario is
// a scenario-name index for filtered listing.
var (
	bucketRuns       = []byte("runs")
	bucketByID       = []byte("byID")
	bucketByScenario = []byte("byScenario")
)

// Store is the persistent run history, a single-file bbolt database. It
// survives across invocations so failed-run transcripts stay available for
// post-hoc debugging.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("report: failed to open history db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketRuns, bucketByID, bucketByScenario} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("report: failed to initialize history db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save appends a run result to the history.
func (s *Store) Save(r *Result) error {
	data, err := cbor.Marshal(r)
	if err != nil {
		return fmt.Errorf("report: failed to encode result: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		seq, err := runs.NextSequence()
		if err != nil {
			return err
		}
		key := seqKey(seq)
		if err := runs.Put(key, data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketByID).Put([]byte(r.ID), key); err != nil {
			return err
		}
		return tx.Bucket(bucketByScenario).Put(scenarioKey(r.Scenario, seq), key)
	})
}

// SaveSummary appends every result of a summary.
func (s *Store) SaveSummary(sum *Summary) error {
	for _, r := range sum.Results {
		if err := s.Save(r); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the stored run with the given ID.
func (s *Store) Get(id string) (*Result, error) {
	var result *Result
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket(bucketByID).Get([]byte(id))
		if key == nil {
			return ErrNotFound
		}
		data := tx.Bucket(bucketRuns).Get(key)
		if data == nil {
			return ErrNotFound
		}
		var r Result
		if err := cbor.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("report: failed to decode result: %w", err)
		}
		result = &r
		return nil
	})
	return result, err
}

// List returns up to limit runs, newest first, optionally filtered by
// scenario name. A non-positive limit means no limit.
func (s *Store) List(scenario string, limit int) ([]*Result, error) {
	var results []*Result
	err := s.db.View(func(tx *bbolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		c := runs.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var r Result
			if err := cbor.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("report: failed to decode result: %w", err)
			}
			if scenario != "" && r.Scenario != scenario {
				continue
			}
			results = append(results, &r)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
		return nil
	})
	return results, err
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func scenarioKey(scenario string, seq uint64) []byte {
	var buf bytes.Buffer
	buf.WriteString(scenario)
	buf.WriteByte(0)
	buf.Write(seqKey(seq))
	return buf.Bytes()
}
