package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/teemow/replydesk/internal/logging"
)

// Snapshot bucket names, one per collection.
var (
	bucketDashboard = []byte("dashboard")
	bucketReview    = []byte("review_queue")
	bucketThreads   = []byte("threads")
	bucketProposals = []byte("proposals")
	bucketConfirmed = []byte("confirmed_events")
	bucketSent      = []byte("sent_history")
)

type snapshotDB struct {
	db *bolt.DB
}

func openSnapshotDB(path string) (*snapshotDB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file %s: %w", path, err)
	}
	return &snapshotDB{db: db}, nil
}

func (d *snapshotDB) Close() error {
	return d.db.Close()
}

// saveLocked rewrites the whole snapshot from the current state. The
// caller holds s.mu.
func (s *Store) saveLocked() error {
	if s.db == nil {
		return nil
	}

	return s.db.db.Update(func(tx *bolt.Tx) error {
		if err := writeList(tx, bucketDashboard, s.dashboard); err != nil {
			return err
		}
		if err := writeList(tx, bucketReview, s.reviewQueue); err != nil {
			return err
		}
		if err := writeList(tx, bucketConfirmed, s.confirmed); err != nil {
			return err
		}
		if err := writeList(tx, bucketSent, s.sent); err != nil {
			return err
		}
		if err := writeMap(tx, bucketThreads, s.threads); err != nil {
			return err
		}
		return writeMap(tx, bucketProposals, s.proposals)
	})
}

// load replaces the in-memory state with the snapshot contents. Entries
// that fail to decode are skipped, not fatal; a partially readable
// snapshot is better than none.
func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.db.View(func(tx *bolt.Tx) error {
		s.dashboard = readList[DashboardRecord](tx, bucketDashboard, s.logger)
		s.reviewQueue = readList[ReviewItem](tx, bucketReview, s.logger)
		s.confirmed = readList[ConfirmedEvent](tx, bucketConfirmed, s.logger)
		s.sent = readList[SentRecord](tx, bucketSent, s.logger)
		s.threads = readMap[[]ThreadMessage](tx, bucketThreads, s.logger)
		s.proposals = readMap[Proposal](tx, bucketProposals, s.logger)
		return nil
	})
}

// writeList replaces a bucket with the list's entries keyed by index.
func writeList[T any](tx *bolt.Tx, name []byte, items []T) error {
	b, err := resetBucket(tx, name)
	if err != nil {
		return err
	}
	for i, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to encode %s entry: %w", name, err)
		}
		if err := b.Put(itob(uint64(i)), data); err != nil {
			return fmt.Errorf("failed to write %s entry: %w", name, err)
		}
	}
	return nil
}

// writeMap replaces a bucket with the map's entries keyed by map key.
func writeMap[T any](tx *bolt.Tx, name []byte, items map[string]T) error {
	b, err := resetBucket(tx, name)
	if err != nil {
		return err
	}
	for key, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to encode %s entry: %w", name, err)
		}
		if err := b.Put([]byte(key), data); err != nil {
			return fmt.Errorf("failed to write %s entry: %w", name, err)
		}
	}
	return nil
}

func readList[T any](tx *bolt.Tx, name []byte, logger *slog.Logger) []T {
	b := tx.Bucket(name)
	if b == nil {
		return nil
	}
	var out []T
	_ = b.ForEach(func(k, v []byte) error {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			logger.Warn("skipping malformed snapshot entry",
				logging.Operation("snapshot_load"),
				"bucket", string(name), logging.Err(err))
			return nil
		}
		out = append(out, item)
		return nil
	})
	return out
}

func readMap[T any](tx *bolt.Tx, name []byte, logger *slog.Logger) map[string]T {
	out := make(map[string]T)
	b := tx.Bucket(name)
	if b == nil {
		return out
	}
	_ = b.ForEach(func(k, v []byte) error {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			logger.Warn("skipping malformed snapshot entry",
				logging.Operation("snapshot_load"),
				"bucket", string(name), logging.Err(err))
			return nil
		}
		out[string(k)] = item
		return nil
	})
	return out
}

// resetBucket drops and recreates a bucket for a wholesale overwrite.
func resetBucket(tx *bolt.Tx, name []byte) (*bolt.Bucket, error) {
	if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
		return nil, fmt.Errorf("failed to reset bucket %s: %w", name, err)
	}
	b, err := tx.CreateBucket(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", name, err)
	}
	return b, nil
}

// itob encodes an index as a big-endian key so bucket iteration preserves
// append order.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
