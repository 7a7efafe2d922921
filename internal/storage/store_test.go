package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	tmpDir, err := os.MkdirTemp("", "store-test-*")
	if err != nil {
		t.Fatal(err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	store, err := NewStore(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatal(err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

func testStory(id string, published time.Time) *Story {
	return &Story{
		ID:          id,
		Kind:        "news",
		Title:       "Story " + id,
		PublishedAt: &published,
	}
}

func TestStore_SaveAndLoadSnapshot(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	now := time.Now().UTC().Truncate(time.Second)
	stories := []*Story{
		testStory("a", now),
		testStory("b", now.Add(-time.Hour)),
		testStory("c", now.Add(-2*time.Hour)),
	}

	if err := store.SaveSnapshot("trailers", stories, 50); err != nil {
		t.Fatalf("failed to save snapshot: %v", err)
	}

	loaded := store.LoadSnapshot("trailers")
	if len(loaded) != 3 {
		t.Fatalf("expected 3 stories, got %d", len(loaded))
	}
	// Stored order is the given order
	for i, want := range []string{"a", "b", "c"} {
		if loaded[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, loaded[i].ID)
		}
	}
}

func TestStore_SnapshotIsPerTab(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	now := time.Now()
	if err := store.SaveSnapshot("trailers", []*Story{testStory("t1", now)}, 50); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSnapshot("ott", []*Story{testStory("o1", now), testStory("o2", now)}, 50); err != nil {
		t.Fatal(err)
	}

	if got := store.LoadSnapshot("trailers"); len(got) != 1 {
		t.Errorf("trailers: expected 1 story, got %d", len(got))
	}
	if got := store.LoadSnapshot("ott"); len(got) != 2 {
		t.Errorf("ott: expected 2 stories, got %d", len(got))
	}
	if got := store.LoadSnapshot("comingsoon"); len(got) != 0 {
		t.Errorf("comingsoon: expected empty, got %d", len(got))
	}
}

func TestStore_SnapshotTrimsToMax(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	now := time.Now()
	stories := make([]*Story, 80)
	for i := range stories {
		stories[i] = testStory(fmt.Sprintf("s%d", i), now.Add(time.Duration(-i)*time.Minute))
	}

	if err := store.SaveSnapshot("all", stories, 50); err != nil {
		t.Fatal(err)
	}

	loaded := store.LoadSnapshot("all")
	if len(loaded) != 50 {
		t.Fatalf("expected snapshot capped at 50, got %d", len(loaded))
	}
	if loaded[0].ID != "s0" || loaded[49].ID != "s49" {
		t.Errorf("expected first 50 in order, got %s..%s", loaded[0].ID, loaded[49].ID)
	}
}

func TestStore_LoadSnapshot_Missing(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	if got := store.LoadSnapshot("all"); got != nil {
		t.Errorf("expected nil for missing snapshot, got %v", got)
	}
}

func TestStore_LoadSnapshot_CorruptBlobDegradesToEmpty(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Put([]byte(snapshotKeyPrefix+"all"), []byte("{not json"))
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := store.LoadSnapshot("all"); len(got) != 0 {
		t.Errorf("corrupt snapshot should load as empty, got %d stories", len(got))
	}
}

func TestStore_ClearSnapshot(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	if err := store.SaveSnapshot("all", []*Story{testStory("a", time.Now())}, 50); err != nil {
		t.Fatal(err)
	}
	if err := store.ClearSnapshot("all"); err != nil {
		t.Fatal(err)
	}
	if got := store.LoadSnapshot("all"); len(got) != 0 {
		t.Errorf("expected empty after clear, got %d", len(got))
	}
}

func TestStore_BookmarksRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ids := []string{"a", "b", "c"}
	savedAt := map[string]int64{"a": 100, "b": 200, "c": 300}

	if err := store.SaveBookmarks(ids, savedAt); err != nil {
		t.Fatalf("failed to save bookmarks: %v", err)
	}

	gotIDs, gotTimes := store.LoadBookmarks()
	if len(gotIDs) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(gotIDs))
	}
	for id, want := range savedAt {
		if gotTimes[id] != want {
			t.Errorf("id %s: expected time %d, got %d", id, want, gotTimes[id])
		}
	}
}

func TestStore_LoadBookmarks_Empty(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ids, savedAt := store.LoadBookmarks()
	if len(ids) != 0 {
		t.Errorf("expected no ids, got %d", len(ids))
	}
	if savedAt == nil {
		t.Error("expected non-nil time map")
	}
}

func TestStore_LoadBookmarks_CorruptDegradesToEmpty(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(savedBucket)
		if err := b.Put([]byte(savedIDsKey), []byte("]]")); err != nil {
			return err
		}
		return b.Put([]byte(savedTimesKey), []byte("]]"))
	})
	if err != nil {
		t.Fatal(err)
	}

	ids, savedAt := store.LoadBookmarks()
	if len(ids) != 0 || len(savedAt) != 0 {
		t.Errorf("corrupt bookmark data should load as empty, got %v / %v", ids, savedAt)
	}
}
