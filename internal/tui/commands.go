package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/reelfeed/reelfeed/internal/feed"
	"github.com/reelfeed/reelfeed/internal/storage"
)

// waitForUpdate blocks on the engine subscription channel; re-armed by
// Update after every delivered snapshot.
func (a *App) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return feedUpdatedMsg{snap: <-a.updates}
	}
}

func (a *App) loadTab(tab string, reset bool) tea.Cmd {
	engine := a.engines[tab]
	return func() tea.Msg {
		err := engine.Load(context.Background(), reset)
		return loadDoneMsg{tab: tab, err: err}
	}
}

func (a *App) loadMore(tab string) tea.Cmd {
	engine := a.engines[tab]
	return func() tea.Msg {
		err := engine.LoadMore(context.Background())
		return loadDoneMsg{tab: tab, err: err}
	}
}

// performSearch asks the server first and falls back to the local index
// when the network is down; search keeps working offline, just stale.
func (a *App) performSearch(query string) tea.Cmd {
	return func() tea.Msg {
		stories, err := a.client.SearchStories(context.Background(), query, 20)
		if err == nil {
			a.index.PutAll(stories)
			return searchResultsMsg{stories: stories}
		}
		if !feed.IsNetworkOrigin(err) {
			return searchResultsMsg{err: err}
		}

		local, lerr := a.searcher.Search(query, 20)
		if lerr != nil {
			return searchResultsMsg{err: err}
		}
		return searchResultsMsg{stories: local, offline: true}
	}
}

func (a *App) toggleBookmark(story *storage.Story) tea.Cmd {
	return func() tea.Msg {
		if _, err := a.bookmarks.Toggle(story.ID); err != nil {
			return errorMsg{err: err}
		}
		return savedChangedMsg{}
	}
}

func (a *App) clearBookmarks() tea.Cmd {
	return func() tea.Msg {
		if err := a.bookmarks.ClearAll(); err != nil {
			return errorMsg{err: err}
		}
		return savedChangedMsg{}
	}
}

func (a *App) openStory(story *storage.Story) tea.Cmd {
	return func() tea.Msg {
		if story.URL == "" {
			return errorMsg{err: fmt.Errorf("story has no link")}
		}
		if err := a.launcher.Open(story.URL); err != nil {
			return errorMsg{err: err}
		}
		return nil
	}
}

func (a *App) renderStory(story *storage.Story) tea.Cmd {
	return func() tea.Msg {
		var md strings.Builder
		md.WriteString(fmt.Sprintf("# %s\n\n", story.Title))

		var meta []string
		if story.Kind != "" {
			meta = append(meta, story.Kind)
		}
		if story.PublishedAt != nil {
			meta = append(meta, story.PublishedAt.Local().Format("Mon, 2 Jan 2006 15:04"))
		}
		if story.Source != "" {
			meta = append(meta, story.Source)
		}
		if story.RatingCert != "" {
			meta = append(meta, story.RatingCert)
		}
		if rt := formatRuntime(story.RuntimeMinutes); rt != "" {
			meta = append(meta, rt)
		}
		if len(meta) > 0 {
			md.WriteString(fmt.Sprintf("*%s*\n\n", strings.Join(meta, " · ")))
		}

		if story.IsUpcoming() && story.ReleaseDate != nil {
			md.WriteString(fmt.Sprintf("**Releases %s**\n\n", story.ReleaseDate.Local().Format("2 Jan 2006")))
		}
		if story.OTTPlatform != "" {
			md.WriteString(fmt.Sprintf("**Streaming on %s**\n\n", story.OTTPlatform))
		}
		if len(story.Genres) > 0 {
			md.WriteString(fmt.Sprintf("Genres: %s\n\n", strings.Join(story.Genres, ", ")))
		}
		if len(story.Languages) > 0 {
			md.WriteString(fmt.Sprintf("Languages: %s\n\n", strings.Join(story.Languages, ", ")))
		}

		if story.URL != "" {
			md.WriteString(fmt.Sprintf("[Watch / Read](%s)\n\n", story.URL))
		}
		if img := a.resolver.Resolve(story); img != "" {
			md.WriteString(fmt.Sprintf("[Image](%s)\n\n", img))
		}

		md.WriteString("---\n\n")
		if story.Summary != "" {
			md.WriteString(story.Summary)
		} else {
			md.WriteString("*No summary available.*")
		}

		r, err := a.getRenderer()
		if err != nil {
			return storyRenderedMsg{story: story, content: "Error initializing renderer: " + err.Error()}
		}
		rendered, err := r.Render(md.String())
		if err != nil {
			return storyRenderedMsg{story: story, content: fmt.Sprintf("# Error\n\nFailed to render story: %s", err.Error())}
		}
		return storyRenderedMsg{story: story, content: rendered}
	}
}
