package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/reelfeed/reelfeed/internal/feed"
	"github.com/reelfeed/reelfeed/internal/storage"
)

type View int

const (
	ViewFeed View = iota
	ViewReader
	ViewSaved
	ViewSearch
)

// storyItem adapts a story for bubbles' list component.
type storyItem struct {
	story *storage.Story
	saved bool
}

func (i storyItem) Title() string {
	marker := "  "
	if i.saved {
		marker = "★ "
	}
	return marker + i.story.Title
}

func (i storyItem) Description() string {
	var parts []string
	if i.story.Kind != "" {
		parts = append(parts, i.story.Kind)
	}
	if i.story.PublishedAt != nil {
		parts = append(parts, i.story.PublishedAt.Local().Format("Jan 2 15:04"))
	}
	if i.story.OTTPlatform != "" {
		parts = append(parts, i.story.OTTPlatform)
	}
	if len(i.story.Genres) > 0 {
		parts = append(parts, strings.Join(i.story.Genres, ", "))
	}
	if len(parts) == 0 {
		return i.story.ID
	}
	return strings.Join(parts, " · ")
}

func (i storyItem) FilterValue() string { return i.story.Title }

// Messages

type feedUpdatedMsg struct {
	snap feed.Snapshot
}

type loadDoneMsg struct {
	tab string
	err error
}

type searchResultsMsg struct {
	stories []*storage.Story
	offline bool
	err     error
}

type storyRenderedMsg struct {
	story   *storage.Story
	content string
}

type savedChangedMsg struct{}

type errorMsg struct {
	err error
}

func formatRuntime(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	d := time.Duration(minutes) * time.Minute
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}
