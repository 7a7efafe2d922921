package search

import "github.com/reelfeed/reelfeed/internal/storage"

// Searcher is the minimal offline-search API used by the TUI when the
// remote search endpoint is unreachable.
type Searcher interface {
	Search(query string, limit int) ([]*storage.Story, error)
	DocCount() (int, error)
}
