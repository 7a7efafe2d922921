package feed

import (
	"sync"

	"github.com/reelfeed/reelfeed/internal/storage"
)

// Index is the process-wide story lookup shared across screens: deep
// links, saved items, and search hydration all resolve ids here without
// re-fetching. Entries are overwritten by id and live for the process
// lifetime; there is no eviction.
type Index struct {
	mu   sync.RWMutex
	byID map[string]*storage.Story
}

func NewIndex() *Index {
	return &Index{byID: make(map[string]*storage.Story)}
}

func (i *Index) Put(story *storage.Story) {
	if story == nil || story.ID == "" {
		return
	}
	i.mu.Lock()
	i.byID[story.ID] = story
	i.mu.Unlock()
}

func (i *Index) PutAll(stories []*storage.Story) {
	i.mu.Lock()
	for _, s := range stories {
		if s != nil && s.ID != "" {
			i.byID[s.ID] = s
		}
	}
	i.mu.Unlock()
}

func (i *Index) Get(id string) *storage.Story {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.byID[id]
}

func (i *Index) Values() []*storage.Story {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]*storage.Story, 0, len(i.byID))
	for _, s := range i.byID {
		out = append(out, s)
	}
	return out
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byID)
}

func (i *Index) Clear() {
	i.mu.Lock()
	i.byID = make(map[string]*storage.Story)
	i.mu.Unlock()
}
