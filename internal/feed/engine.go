package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/reelfeed/reelfeed/internal/config"
	"github.com/reelfeed/reelfeed/internal/debuglog"
	"github.com/reelfeed/reelfeed/internal/storage"
)

// State is the per-tab sync state machine:
// Idle → LoadingInitial → {Ready, ErrorEmpty}; Ready → LoadingMore → Ready.
type State int

const (
	StateIdle State = iota
	StateLoadingInitial
	StateReady
	StateLoadingMore
	StateErrorEmpty
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingInitial:
		return "loading_initial"
	case StateReady:
		return "ready"
	case StateLoadingMore:
		return "loading_more"
	case StateErrorEmpty:
		return "error_empty"
	default:
		return "unknown"
	}
}

// Snapshot is the read-only view published to subscribers on every
// state change.
type Snapshot struct {
	Tab      string
	State    State
	Items    []*storage.Story
	HasError bool
	ErrMsg   string
	HasMore  bool
}

// UpdateListener receives every successfully merged page, e.g. to keep
// an external search index current.
type UpdateListener interface {
	OnStoriesMerged(tab string, stories []*storage.Story)
}

// Engine synchronizes one feed tab: it owns the authoritative in-memory
// story list, the pagination boundary, and the error state, and it is
// the only writer of that tab's persisted snapshot.
type Engine struct {
	tab    string
	client *Client
	store  *storage.Store
	index  *Index

	pageSize    int
	snapshotMax int

	mu        sync.Mutex
	state     State
	items     []*storage.Story
	byID      map[string]*storage.Story
	cursor    string     // opaque server cursor, the canonical resume point
	since     *time.Time // legacy date boundary: min publishedAt of the merged list
	hasMore   bool
	errMsg    string
	hasErr    bool
	subs      map[int]func(Snapshot)
	nextSub   int
	listeners []UpdateListener
}

func NewEngine(tab string, client *Client, store *storage.Store, index *Index, cfg *config.Config) *Engine {
	return &Engine{
		tab:         NormalizeTab(tab),
		client:      client,
		store:       store,
		index:       index,
		pageSize:    cfg.Cache.PageSize,
		snapshotMax: cfg.Cache.MaxSnapshotItems,
		state:       StateIdle,
		byID:        make(map[string]*storage.Story),
		subs:        make(map[int]func(Snapshot)),
	}
}

// AddUpdateListener registers a post-merge hook. Not safe to call once
// loads are in flight; wire listeners at startup.
func (e *Engine) AddUpdateListener(l UpdateListener) {
	e.listeners = append(e.listeners, l)
}

// Subscribe registers an observer and returns its unsubscribe func. The
// observer is called synchronously on every published state change.
func (e *Engine) Subscribe(fn func(Snapshot)) func() {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

func (e *Engine) Tab() string { return e.tab }

func (e *Engine) Current() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Items returns the current merged list, newest-first.
func (e *Engine) Items() []*storage.Story {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*storage.Story(nil), e.items...)
}

func (e *Engine) IsLoading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateLoadingInitial || e.state == StateLoadingMore
}

func (e *Engine) HasError() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasErr
}

func (e *Engine) ErrorMessage() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errMsg
}

func (e *Engine) HasMore() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasMore
}

// Load refreshes the tab. With reset=true the pagination cursor is
// cleared, the persisted snapshot (if any) is published immediately for
// instant cold-start content, and the merged result is written back to
// the snapshot store. Overlapping calls are dropped; callers serialize.
func (e *Engine) Load(ctx context.Context, reset bool) error {
	e.mu.Lock()
	if e.state == StateLoadingInitial || e.state == StateLoadingMore {
		e.mu.Unlock()
		return nil
	}
	e.state = StateLoadingInitial
	if reset {
		e.cursor = ""
		e.since = nil
	}

	// Stale-but-instant: surface the persisted snapshot before touching
	// the network.
	if reset && len(e.items) == 0 {
		if cached := e.store.LoadSnapshot(e.tab); len(cached) > 0 {
			for _, s := range cached {
				e.byID[s.ID] = s
			}
			e.index.PutAll(cached)
			e.rebuildLocked()
			debuglog.Debugf("tab %s: hydrated %d stories from snapshot", e.tab, len(cached))
		}
	}
	e.publishLocked()
	e.mu.Unlock()

	page, err := e.client.FetchFeedPage(ctx, e.tab, nil, "", e.pageSize)
	if err != nil {
		return e.failLoad(err)
	}
	return e.applyPage(page, reset)
}

// LoadMore fetches the next page. No-op unless a previous load reported
// more pages and nothing is currently in flight. The snapshot store is
// not rewritten on this path.
func (e *Engine) LoadMore(ctx context.Context) error {
	e.mu.Lock()
	if !e.hasMore || e.state == StateLoadingInitial || e.state == StateLoadingMore {
		e.mu.Unlock()
		return nil
	}
	e.state = StateLoadingMore
	since := e.since
	cursor := e.cursor
	e.publishLocked()
	e.mu.Unlock()

	page, err := e.client.FetchFeedPage(ctx, e.tab, since, cursor, e.pageSize)
	if err != nil {
		return e.failLoad(err)
	}
	return e.applyPage(page, false)
}

// applyPage merges a fetched page into the list. The merge is id-keyed
// last-write-wins whole-object replacement, applied atomically: either
// the whole page lands or none of it.
func (e *Engine) applyPage(page *storage.FeedPage, writeSnapshot bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range page.Items {
		if s == nil || s.ID == "" {
			continue
		}
		e.byID[s.ID] = s
	}
	e.index.PutAll(page.Items)
	e.rebuildLocked()

	e.cursor = page.NextCursor
	e.hasMore = page.NextCursor != "" || (len(page.Items) > 0 && e.since != nil)
	e.errMsg = ""
	e.hasErr = false
	e.state = StateReady

	if writeSnapshot {
		if err := e.store.SaveSnapshot(e.tab, e.items, e.snapshotMax); err != nil {
			debuglog.Warnf("tab %s: writing snapshot: %v", e.tab, err)
		}
	}

	for _, l := range e.listeners {
		l.OnStoriesMerged(e.tab, page.Items)
	}
	e.publishLocked()
	return nil
}

func (e *Engine) failLoad(err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.errMsg = err.Error()
	e.hasErr = true
	if len(e.items) == 0 {
		e.state = StateErrorEmpty
	} else {
		// Stale content stays visible; the error is available for a banner.
		e.state = StateReady
	}
	debuglog.Infof("tab %s: load failed: %v", e.tab, err)
	e.publishLocked()
	return err
}

// rebuildLocked regenerates the ordered list from the id map and
// recomputes the legacy date boundary. Newest-first; a nil publishedAt
// sorts after any non-nil value; two nils keep their relative order.
func (e *Engine) rebuildLocked() {
	items := make([]*storage.Story, 0, len(e.byID))
	for _, s := range e.byID {
		items = append(items, s)
	}
	sortStories(items)
	e.items = items

	e.since = nil
	for _, s := range items {
		if s.PublishedAt == nil {
			continue
		}
		if e.since == nil || s.PublishedAt.Before(*e.since) {
			t := *s.PublishedAt
			e.since = &t
		}
	}
}

func sortStories(items []*storage.Story) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PublishedAt, items[j].PublishedAt
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Tab:      e.tab,
		State:    e.state,
		Items:    append([]*storage.Story(nil), e.items...),
		HasError: e.hasErr,
		ErrMsg:   e.errMsg,
		HasMore:  e.hasMore,
	}
}

func (e *Engine) publishLocked() {
	snap := e.snapshotLocked()
	for _, fn := range e.subs {
		fn(snap)
	}
}
