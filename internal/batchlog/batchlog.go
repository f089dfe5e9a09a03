// Package batchlog remembers which uploads were already ingested.
//
// Each upload is keyed by a digest of the owning user and its raw bytes.
// Recording a batch is create-only: a second Record for the same digest
// leaves the first entry in place and returns it, so a replayed upload
// reports the original result instead of being processed again.
package batchlog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "batches"

// ErrNotFound is returned when no batch is recorded under a digest.
var ErrNotFound = errors.New("batch not found")

// Entry is the recorded outcome of one ingested upload.
type Entry struct {
	Digest      string              `json:"digest"`
	UserID      string              `json:"user_id"`
	Source      string              `json:"source"`
	Processed   int                 `json:"processed"`
	Skipped     int                 `json:"skipped"`
	Errors      []string            `json:"errors,omitempty"`
	Suggestions map[string][]string `json:"suggestions,omitempty"`
	RecordedAt  time.Time           `json:"recorded_at"`
}

// Store is a bolt-backed batch ledger.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the ledger file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Digest keys an upload by user and content.
func Digest(userID string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the entry recorded under digest.
func (s *Store) Get(digest string) (*Entry, error) {
	var e Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(digest))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Record stores e unless its digest is already present. It returns the
// stored entry and whether this call wrote it.
func (s *Store) Record(e Entry) (Entry, bool, error) {
	var result Entry
	created := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if existing := b.Get([]byte(e.Digest)); existing != nil {
			return json.Unmarshal(existing, &result)
		}
		if e.RecordedAt.IsZero() {
			e.RecordedAt = time.Now().UTC()
		}
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		result = e
		created = true
		return b.Put([]byte(e.Digest), data)
	})
	if err != nil {
		return Entry{}, false, err
	}
	return result, created, nil
}

// List returns every entry for userID, oldest first.
func (s *Store) List(userID string) ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.UserID == userID {
				out = append(out, e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

// Forget drops a recorded batch so the same upload can be ingested again.
// Deleting a missing digest is not an error.
func (s *Store) Forget(digest string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(digest))
	})
}

// Clear drops every recorded batch.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}
