// Package history provides durable storage for completed predictions. It
// uses BoltDB as the underlying storage engine with one nested bucket per
// identity, so ownership is structural rather than encoded in key strings
// and per-identity scans never touch another identity's records.
//
// Records are created only for authenticated identities, are immutable once
// written, and may only be deleted by their owner.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"medpredict/internal/domain"
)

const recordsBucket = "predictions"

// ErrNotFound is returned when a record does not exist for the identity.
var ErrNotFound = errors.New("history record not found")

// Store persists prediction history using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens the history database under dataPath and creates the records
// bucket if needed.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "medpredict-history.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recordsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create records bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a completed prediction in the owner's bucket. The record ID
// and creation time are assigned here when unset. Keys are "paddedNanos_id"
// so iteration yields one identity's records in creation order.
func (s *Store) Record(ctx context.Context, rec domain.HistoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Identity == "" {
		return fmt.Errorf("history record requires an identity")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		owner, err := tx.Bucket([]byte(recordsBucket)).CreateBucketIfNotExists([]byte(rec.Identity))
		if err != nil {
			return fmt.Errorf("create identity bucket: %w", err)
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		return owner.Put(recordKey(rec.CreatedAt, rec.ID), data)
	})
}

// List returns all records owned by the identity, oldest first.
func (s *Store) List(ctx context.Context, identity string) ([]domain.HistoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []domain.HistoryRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		owner := tx.Bucket([]byte(recordsBucket)).Bucket([]byte(identity))
		if owner == nil {
			return nil
		}
		return owner.ForEach(func(k, v []byte) error {
			var rec domain.HistoryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil // skip malformed records
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, err
}

// Delete removes one record by ID, scoped to its owner. Deleting another
// identity's record is indistinguishable from a missing record.
func (s *Store) Delete(ctx context.Context, identity, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		owner := tx.Bucket([]byte(recordsBucket)).Bucket([]byte(identity))
		if owner == nil {
			return ErrNotFound
		}

		c := owner.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec domain.HistoryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			if rec.ID == id {
				return owner.Delete(k)
			}
		}
		return ErrNotFound
	})
}

// recordKey pads the timestamp to a fixed width so byte ordering matches
// chronological ordering within the owner's bucket.
func recordKey(ts time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", ts.UnixNano(), id))
}
