package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelfeed/reelfeed/internal/config"
	"github.com/reelfeed/reelfeed/internal/storage"
)

type engineFixture struct {
	engine *Engine
	store  *storage.Store
	index  *Index
	cfg    *config.Config
}

func setupEngine(t *testing.T, handler http.HandlerFunc) *engineFixture {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.TestConfig()
	cfg.API.BaseURL = server.URL
	cfg.Database.Path = filepath.Join(t.TempDir(), "engine.db")

	store, err := storage.NewStore(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	index := NewIndex()
	return &engineFixture{
		engine: NewEngine("all", NewClient(cfg, nil), store, index, cfg),
		store:  store,
		index:  index,
		cfg:    cfg,
	}
}

func pageJSON(cursor string, ids ...string) string {
	items := ""
	for i, id := range ids {
		if i > 0 {
			items += ","
		}
		ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(-i) * time.Hour)
		items += fmt.Sprintf(`{"id":%q,"title":"Story %s","published_at":%q}`, id, id, ts.Format(time.RFC3339))
	}
	return fmt.Sprintf(`{"items":[%s],"next_cursor":%q}`, items, cursor)
}

func TestEngine_LoadPopulatesItemsAndIndex(t *testing.T) {
	f := setupEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pageJSON("", "a", "b", "c")))
	})

	require.NoError(t, f.engine.Load(context.Background(), true))

	items := f.engine.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, StateReady, f.engine.Current().State)
	assert.False(t, f.engine.HasError())
	assert.NotNil(t, f.index.Get("b"))
}

func TestEngine_MergeIsIdempotent(t *testing.T) {
	f := setupEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pageJSON("", "a", "b")))
	})

	require.NoError(t, f.engine.Load(context.Background(), true))
	require.NoError(t, f.engine.Load(context.Background(), true))

	assert.Len(t, f.engine.Items(), 2, "re-merging the same page must not duplicate")
}

func TestEngine_MergeLastWriteWins(t *testing.T) {
	var calls int32
	f := setupEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write([]byte(`{"items":[{"id":"a","title":"Old Title","published_at":"2025-06-01T10:00:00Z"}]}`))
			return
		}
		w.Write([]byte(`{"items":[{"id":"a","title":"New Title","published_at":"2025-06-02T10:00:00Z"}]}`))
	})

	require.NoError(t, f.engine.Load(context.Background(), true))
	require.NoError(t, f.engine.Load(context.Background(), true))

	items := f.engine.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "New Title", items[0].Title)
	assert.Equal(t, "New Title", f.index.Get("a").Title)
}

func TestEngine_SortNewestFirstNilLast(t *testing.T) {
	f := setupEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[
			{"id":"undated","title":"No date"},
			{"id":"old","published_at":"2025-01-01T00:00:00Z"},
			{"id":"new","published_at":"2025-06-01T00:00:00Z"}
		]}`))
	})

	require.NoError(t, f.engine.Load(context.Background(), true))

	items := f.engine.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "new", items[0].ID)
	assert.Equal(t, "old", items[1].ID)
	assert.Equal(t, "undated", items[2].ID, "undated stories sort last")
}

func TestEngine_ColdStartServesSnapshotBeforeNetwork(t *testing.T) {
	release := make(chan struct{})
	f := setupEngine(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(pageJSON("", "fresh")))
	})

	pub := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	cached := []*storage.Story{{ID: "cached", Title: "From disk", PublishedAt: &pub}}
	require.NoError(t, f.store.SaveSnapshot("all", cached, 50))

	done := make(chan error, 1)
	go func() { done <- f.engine.Load(context.Background(), true) }()

	// Cached content must be visible while the request is still blocked.
	deadline := time.After(2 * time.Second)
	for len(f.engine.Items()) == 0 {
		select {
		case <-deadline:
			t.Fatal("snapshot never surfaced before the network returned")
		case <-time.After(5 * time.Millisecond):
		}
	}
	assert.Equal(t, "cached", f.engine.Items()[0].ID)

	close(release)
	require.NoError(t, <-done)

	ids := make(map[string]bool)
	for _, s := range f.engine.Items() {
		ids[s.ID] = true
	}
	assert.True(t, ids["cached"] && ids["fresh"], "merged list keeps cached and fresh items")
}

func TestEngine_FailureWithEmptyListIsErrorEmpty(t *testing.T) {
	f := setupEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := f.engine.Load(context.Background(), true)
	require.Error(t, err)

	snap := f.engine.Current()
	assert.Equal(t, StateErrorEmpty, snap.State)
	assert.True(t, snap.HasError)
	assert.NotEmpty(t, snap.ErrMsg)
}

func TestEngine_FailureKeepsStaleContent(t *testing.T) {
	var fail atomic.Bool
	f := setupEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(pageJSON("", "a", "b")))
	})

	require.NoError(t, f.engine.Load(context.Background(), true))
	fail.Store(true)
	require.Error(t, f.engine.Load(context.Background(), true))

	snap := f.engine.Current()
	assert.Equal(t, StateReady, snap.State, "stale items stay readable on failure")
	assert.True(t, snap.HasError)
	assert.Len(t, snap.Items, 2)
}

func TestEngine_LoadMoreUsesCursor(t *testing.T) {
	var calls int32
	f := setupEngine(t, func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.Write([]byte(pageJSON("page2", "a", "b")))
		default:
			assert.Equal(t, "page2", r.URL.Query().Get("cursor"))
			assert.NotEmpty(t, r.URL.Query().Get("since"))
			w.Write([]byte(pageJSON("", "c")))
		}
	})

	require.NoError(t, f.engine.Load(context.Background(), true))
	assert.True(t, f.engine.HasMore())

	require.NoError(t, f.engine.LoadMore(context.Background()))
	assert.Len(t, f.engine.Items(), 3)
}

func TestEngine_LoadMoreNoOpWhenExhausted(t *testing.T) {
	var calls int32
	f := setupEngine(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"items":[]}`))
	})

	require.NoError(t, f.engine.Load(context.Background(), true))
	assert.False(t, f.engine.HasMore())

	require.NoError(t, f.engine.LoadMore(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "LoadMore must not hit the network when exhausted")
}

func TestEngine_SnapshotWrittenOnResetOnly(t *testing.T) {
	var calls int32
	f := setupEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write([]byte(pageJSON("more", "a")))
			return
		}
		w.Write([]byte(pageJSON("", "b")))
	})

	require.NoError(t, f.engine.Load(context.Background(), true))
	require.Len(t, f.store.LoadSnapshot("all"), 1)

	require.NoError(t, f.engine.LoadMore(context.Background()))
	assert.Len(t, f.engine.Items(), 2)
	assert.Len(t, f.store.LoadSnapshot("all"), 1, "pagination must not rewrite the persisted snapshot")
}

func TestEngine_SubscribePublishesStates(t *testing.T) {
	f := setupEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pageJSON("", "a")))
	})

	var states []State
	unsub := f.engine.Subscribe(func(s Snapshot) {
		states = append(states, s.State)
	})

	require.NoError(t, f.engine.Load(context.Background(), true))
	require.NotEmpty(t, states)
	assert.Equal(t, StateLoadingInitial, states[0])
	assert.Equal(t, StateReady, states[len(states)-1])

	unsub()
	before := len(states)
	require.NoError(t, f.engine.Load(context.Background(), true))
	assert.Equal(t, before, len(states), "unsubscribed observer must not fire")
}

type recordingListener struct {
	tabs    []string
	stories int
}

func (r *recordingListener) OnStoriesMerged(tab string, stories []*storage.Story) {
	r.tabs = append(r.tabs, tab)
	r.stories += len(stories)
}

func TestEngine_ListenersReceiveMergedPages(t *testing.T) {
	f := setupEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pageJSON("", "a", "b")))
	})

	rec := &recordingListener{}
	f.engine.AddUpdateListener(rec)

	require.NoError(t, f.engine.Load(context.Background(), true))
	assert.Equal(t, []string{"all"}, rec.tabs)
	assert.Equal(t, 2, rec.stories)
}
