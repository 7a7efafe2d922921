// Package bookmarks persists the user's saved stories. Saves survive
// restarts and stay valid even when the story itself is no longer
// resolvable; display falls back to the raw id.
package bookmarks

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reelfeed/reelfeed/internal/feed"
	"github.com/reelfeed/reelfeed/internal/storage"
)

// SortMode selects the ordering of OrderedIDs.
type SortMode int

const (
	// SortRecent orders by save time, newest save first.
	SortRecent SortMode = iota
	// SortTitle orders case-insensitively by the story title resolved
	// via the index, falling back to the raw id.
	SortTitle
)

type Store struct {
	db    *storage.Store
	index *feed.Index
	now   func() time.Time

	mu      sync.Mutex
	ready   bool
	saved   map[string]struct{}
	savedAt map[string]int64 // unix millis
	subs    map[int]func()
	nextSub int
}

func NewStore(db *storage.Store, index *feed.Index) *Store {
	return &Store{
		db:      db,
		index:   index,
		now:     time.Now,
		saved:   make(map[string]struct{}),
		savedAt: make(map[string]int64),
		subs:    make(map[int]func()),
	}
}

// Init loads persisted state. Toggle and IsSaved are meaningless before
// Init completes; UI gates on Ready.
func (s *Store) Init() error {
	ids, savedAt := s.db.LoadBookmarks()

	s.mu.Lock()
	s.saved = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.saved[id] = struct{}{}
	}
	s.savedAt = savedAt
	s.ready = true
	s.mu.Unlock()
	return nil
}

func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Toggle saves the id if absent, removes it if present. State is
// persisted before observers hear about it; the returned bool is the
// new saved state.
func (s *Store) Toggle(id string) (bool, error) {
	s.mu.Lock()
	var nowSaved bool
	if _, ok := s.saved[id]; ok {
		delete(s.saved, id)
		delete(s.savedAt, id)
	} else {
		s.saved[id] = struct{}{}
		s.savedAt[id] = s.now().UnixMilli()
		nowSaved = true
	}
	err := s.persistLocked()
	s.mu.Unlock()

	s.notify()
	return nowSaved, err
}

func (s *Store) IsSaved(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.saved[id]
	return ok
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

// OrderedIDs returns every saved id in the requested order.
func (s *Store) OrderedIDs(mode SortMode) []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.saved))
	for id := range s.saved {
		ids = append(ids, id)
	}
	savedAt := make(map[string]int64, len(s.savedAt))
	for id, t := range s.savedAt {
		savedAt[id] = t
	}
	s.mu.Unlock()

	switch mode {
	case SortTitle:
		sort.SliceStable(ids, func(i, j int) bool {
			return strings.ToLower(s.displayTitle(ids[i])) < strings.ToLower(s.displayTitle(ids[j]))
		})
	default:
		sort.SliceStable(ids, func(i, j int) bool {
			ti, tj := savedAt[ids[i]], savedAt[ids[j]]
			if ti != tj {
				return ti > tj
			}
			return ids[i] < ids[j]
		})
	}
	return ids
}

// ClearAll drops every save and persists the empty state.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	s.saved = make(map[string]struct{})
	s.savedAt = make(map[string]int64)
	err := s.persistLocked()
	s.mu.Unlock()

	s.notify()
	return err
}

// ExportLinks renders the saved set as a newline-joined list in recent
// order: the story's canonical URL when resolvable, else its title,
// else the raw id.
func (s *Store) ExportLinks() string {
	var lines []string
	for _, id := range s.OrderedIDs(SortRecent) {
		line := id
		if story := s.index.Get(id); story != nil {
			if story.URL != "" {
				line = story.URL
			} else if story.Title != "" {
				line = story.Title
			}
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Subscribe registers a change observer and returns its unsubscribe func.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) displayTitle(id string) string {
	if story := s.index.Get(id); story != nil && story.Title != "" {
		return story.Title
	}
	return id
}

func (s *Store) persistLocked() error {
	ids := make([]string, 0, len(s.saved))
	for id := range s.saved {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return s.db.SaveBookmarks(ids, s.savedAt)
}

func (s *Store) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
