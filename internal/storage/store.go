package storage

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/reelfeed/reelfeed/internal/debuglog"
)

var (
	snapshotsBucket = []byte("snapshots")
	savedBucket     = []byte("saved")
)

const (
	snapshotKeyPrefix = "feed_cache_"
	savedIDsKey       = "saved_ids"
	savedTimesKey     = "saved_times"

	// DefaultSnapshotMax bounds a persisted per-tab snapshot.
	DefaultSnapshotMax = 50
)

type Store struct {
	db *bolt.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{snapshotsBucket, savedBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot persists the first maxItems stories under the tab's key.
// Callers pass the list already sorted newest-first; the stored order is
// the given order.
func (s *Store) SaveSnapshot(tab string, stories []*Story, maxItems int) error {
	if maxItems <= 0 {
		maxItems = DefaultSnapshotMax
	}
	if len(stories) > maxItems {
		stories = stories[:maxItems]
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(snapshotsBucket)
		data, err := json.Marshal(stories)
		if err != nil {
			return err
		}
		return b.Put([]byte(snapshotKeyPrefix+tab), data)
	})
}

// LoadSnapshot returns the persisted snapshot for a tab. A missing or
// corrupt blob degrades to an empty result, never an error: a broken
// cache must behave exactly like no cache.
func (s *Store) LoadSnapshot(tab string) []*Story {
	var stories []*Story
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(snapshotsBucket)
		data := b.Get([]byte(snapshotKeyPrefix + tab))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &stories); err != nil {
			debuglog.Warnf("discarding corrupt snapshot for tab %q: %v", tab, err)
			stories = nil
		}
		return nil
	})
	if err != nil {
		debuglog.Warnf("reading snapshot for tab %q: %v", tab, err)
		return nil
	}
	return stories
}

func (s *Store) ClearSnapshot(tab string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Delete([]byte(snapshotKeyPrefix + tab))
	})
}

// SaveBookmarks persists the saved-id set and its parallel timestamp map
// under their two fixed keys in one transaction.
func (s *Store) SaveBookmarks(ids []string, savedAt map[string]int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(savedBucket)

		idData, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(savedIDsKey), idData); err != nil {
			return err
		}

		timeData, err := json.Marshal(savedAt)
		if err != nil {
			return err
		}
		return b.Put([]byte(savedTimesKey), timeData)
	})
}

// LoadBookmarks reads back the saved-id set and timestamp map. Corrupt
// data degrades to empty state, same policy as snapshots.
func (s *Store) LoadBookmarks() ([]string, map[string]int64) {
	var ids []string
	savedAt := make(map[string]int64)

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(savedBucket)

		if data := b.Get([]byte(savedIDsKey)); data != nil {
			if err := json.Unmarshal(data, &ids); err != nil {
				debuglog.Warnf("discarding corrupt saved-id list: %v", err)
				ids = nil
			}
		}
		if data := b.Get([]byte(savedTimesKey)); data != nil {
			if err := json.Unmarshal(data, &savedAt); err != nil {
				debuglog.Warnf("discarding corrupt saved-time map: %v", err)
				savedAt = make(map[string]int64)
			}
		}
		return nil
	})
	if err != nil {
		debuglog.Warnf("reading bookmarks: %v", err)
		return nil, make(map[string]int64)
	}
	return ids, savedAt
}
