package search

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/reelfeed/reelfeed/internal/feed"
	"github.com/reelfeed/reelfeed/internal/storage"
)

// bleveEngine indexes every merged story so search keeps working
// offline. Hits are hydrated back into full stories through the shared
// index; stories that have aged out of it fall back to stored fields.
type bleveEngine struct {
	index *feed.Index
	idx   bleve.Index
}

// NewBleveEngine creates or opens a bleve index at indexPath.
func NewBleveEngine(index *feed.Index, indexPath string) (Searcher, error) {
	if mkErr := os.MkdirAll(filepath.Dir(indexPath), 0o755); mkErr != nil {
		// Open/New below will report the real failure
		_ = mkErr
	}

	idx, err := bleve.Open(indexPath)
	if err != nil {
		idx, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, err
		}
	}

	return &bleveEngine{index: index, idx: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.Store = true
	title.IncludeTermVectors = true

	summary := bleve.NewTextFieldMapping()
	summary.Analyzer = standard.Name
	summary.Store = true

	kind := bleve.NewTextFieldMapping()
	kind.Analyzer = standard.Name
	kind.Store = true

	genres := bleve.NewTextFieldMapping()
	genres.Analyzer = standard.Name
	genres.Store = false

	dm.AddFieldMappingsAt("title", title)
	dm.AddFieldMappingsAt("summary", summary)
	dm.AddFieldMappingsAt("kind", kind)
	dm.AddFieldMappingsAt("genres", genres)

	im.DefaultMapping = dm
	return im
}

// OnStoriesMerged indexes a freshly merged page. Implements
// feed.UpdateListener.
func (b *bleveEngine) OnStoriesMerged(tab string, stories []*storage.Story) {
	batch := b.idx.NewBatch()
	for _, s := range stories {
		if s == nil || s.ID == "" {
			continue
		}
		_ = batch.Index(s.ID, map[string]any{
			"title":   s.Title,
			"summary": s.Summary,
			"kind":    s.Kind,
			"genres":  strings.Join(s.Genres, " "),
		})
	}
	_ = b.idx.Batch(batch)
}

func (b *bleveEngine) Search(query string, limit int) ([]*storage.Story, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*storage.Story{}, nil
	}

	tokens := strings.Fields(strings.ToLower(query))
	var qs []bleveQuery.Query
	for _, tok := range tokens {
		qt := bleve.NewMatchQuery(tok)
		qt.SetField("title")
		qt.SetBoost(4.0)
		qs = append(qs, qt)
		qtp := bleve.NewPrefixQuery(tok)
		qtp.SetField("title")
		qtp.SetBoost(3.5)
		qs = append(qs, qtp)
		qsm := bleve.NewMatchQuery(tok)
		qsm.SetField("summary")
		qsm.SetBoost(2.0)
		qs = append(qs, qsm)
		qg := bleve.NewMatchQuery(tok)
		qg.SetField("genres")
		qg.SetBoost(1.0)
		qs = append(qs, qg)
		qk := bleve.NewMatchQuery(tok)
		qk.SetField("kind")
		qk.SetBoost(0.5)
		qs = append(qs, qk)
	}
	if len(qs) == 0 {
		return []*storage.Story{}, nil
	}

	q := bleve.NewDisjunctionQuery(qs...)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"title", "summary", "kind"}
	res, err := b.idx.Search(req)
	if err != nil {
		return nil, err
	}

	out := make([]*storage.Story, 0, len(res.Hits))
	for _, h := range res.Hits {
		if story := b.index.Get(h.ID); story != nil {
			out = append(out, story)
			continue
		}
		// Hydration miss: rebuild a minimal story from stored fields.
		story := &storage.Story{ID: h.ID}
		if t, ok := h.Fields["title"].(string); ok {
			story.Title = t
		}
		if sm, ok := h.Fields["summary"].(string); ok {
			story.Summary = sm
		}
		if k, ok := h.Fields["kind"].(string); ok {
			story.Kind = k
		}
		out = append(out, story)
	}
	return out, nil
}

// DocCount reports total documents in the index.
func (b *bleveEngine) DocCount() (int, error) {
	n, err := b.idx.DocCount()
	return int(n), err
}
