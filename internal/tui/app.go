package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/reelfeed/reelfeed/internal/bookmarks"
	"github.com/reelfeed/reelfeed/internal/config"
	"github.com/reelfeed/reelfeed/internal/feed"
	"github.com/reelfeed/reelfeed/internal/images"
	"github.com/reelfeed/reelfeed/internal/media"
	"github.com/reelfeed/reelfeed/internal/search"
	"github.com/reelfeed/reelfeed/internal/storage"
)

var (
	tabStyle       = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("#94A3B8"))
	activeTabStyle = lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(lipgloss.Color("#4ECDC4")).Underline(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
	offlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA86B"))
)

type App struct {
	config    *config.Config
	client    *feed.Client
	engines   map[string]*feed.Engine
	index     *feed.Index
	bookmarks *bookmarks.Store
	resolver  *images.Resolver
	searcher  search.Searcher
	launcher  *media.Launcher

	updates chan feed.Snapshot

	storyList   list.Model
	savedList   list.Model
	searchList  list.Model
	searchInput textinput.Model
	viewport    viewport.Model
	spin        spinner.Model

	view         View
	tabIdx       int
	currentStory *feed.Snapshot
	readerStory  *storyItem
	savedSort    bookmarks.SortMode
	offline      bool
	err          error

	width  int
	height int

	glamourRenderer *glamour.TermRenderer
	rendererWidth   int
}

type Deps struct {
	Config    *config.Config
	Client    *feed.Client
	Engines   map[string]*feed.Engine
	Index     *feed.Index
	Bookmarks *bookmarks.Store
	Resolver  *images.Resolver
	Searcher  search.Searcher
	Launcher  *media.Launcher
}

func NewApp(d Deps) *App {
	storyList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	storyList.Title = "› feed"
	storyList.SetShowStatusBar(false)
	storyList.SetFilteringEnabled(true)

	savedList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	savedList.Title = "› saved"
	savedList.SetShowStatusBar(false)
	savedList.SetFilteringEnabled(false)

	searchList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	searchList.Title = "› search results"
	searchList.SetShowStatusBar(false)
	searchList.SetFilteringEnabled(false)

	si := textinput.New()
	si.Placeholder = "Search stories..."

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	app := &App{
		config:    d.Config,
		client:    d.Client,
		engines:   d.Engines,
		index:     d.Index,
		bookmarks: d.Bookmarks,
		resolver:  d.Resolver,
		searcher:  d.Searcher,
		launcher:  d.Launcher,

		updates:     make(chan feed.Snapshot, 32),
		storyList:   storyList,
		savedList:   savedList,
		searchList:  searchList,
		searchInput: si,
		viewport:    viewport.New(0, 0),
		spin:        sp,
		view:        ViewFeed,
	}

	// Engines publish synchronously; the channel decouples them from the
	// bubbletea loop. A full channel drops the snapshot, the next one
	// carries the same list anyway.
	for _, engine := range d.Engines {
		engine.Subscribe(func(snap feed.Snapshot) {
			select {
			case app.updates <- snap:
			default:
			}
		})
	}

	return app
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.spin.Tick,
		a.waitForUpdate(),
		a.loadTab(a.currentTab(), true),
	)
}

func (a *App) currentTab() string { return feed.Tabs[a.tabIdx] }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		listHeight := a.height - 4
		a.storyList.SetSize(a.width, listHeight)
		a.savedList.SetSize(a.width, listHeight)
		a.searchList.SetSize(a.width, listHeight)
		a.viewport.Width = a.width
		a.viewport.Height = a.height - 2
		return a, nil

	case feedUpdatedMsg:
		if msg.snap.Tab == a.currentTab() {
			a.currentStory = &msg.snap
			a.refreshStoryList(msg.snap)
		}
		return a, a.waitForUpdate()

	case loadDoneMsg:
		// State already arrived via the subscription; nothing to apply.
		return a, nil

	case searchResultsMsg:
		a.offline = msg.offline
		a.err = msg.err
		items := make([]list.Item, 0, len(msg.stories))
		for _, s := range msg.stories {
			items = append(items, storyItem{story: s, saved: a.bookmarks.IsSaved(s.ID)})
		}
		a.searchList.SetItems(items)
		return a, nil

	case storyRenderedMsg:
		a.readerStory = &storyItem{story: msg.story}
		a.viewport.SetContent(msg.content)
		a.viewport.GotoTop()
		a.view = ViewReader
		return a, nil

	case savedChangedMsg:
		a.refreshCurrentLists()
		return a, nil

	case errorMsg:
		a.err = msg.err
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.view == ViewSearch && a.searchInput.Focused() {
		switch msg.String() {
		case "enter":
			query := strings.TrimSpace(a.searchInput.Value())
			a.searchInput.Blur()
			if query == "" {
				return a, nil
			}
			return a, a.performSearch(query)
		case "esc":
			a.searchInput.Blur()
			a.view = ViewFeed
			return a, nil
		default:
			var cmd tea.Cmd
			a.searchInput, cmd = a.searchInput.Update(msg)
			return a, cmd
		}
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return a, tea.Quit

	case "esc":
		if a.view != ViewFeed {
			a.view = ViewFeed
			return a, nil
		}

	case "tab":
		return a.switchTab((a.tabIdx + 1) % len(feed.Tabs))
	case "shift+tab":
		return a.switchTab((a.tabIdx + len(feed.Tabs) - 1) % len(feed.Tabs))
	case "1", "2", "3", "4", "5":
		return a.switchTab(int(msg.String()[0] - '1'))

	case "r":
		if a.view == ViewFeed {
			return a, a.loadTab(a.currentTab(), true)
		}

	case "m":
		if a.view == ViewFeed {
			return a, a.loadMore(a.currentTab())
		}

	case "/":
		a.view = ViewSearch
		a.searchInput.Focus()
		a.err = nil
		return a, textinput.Blink

	case "S":
		a.view = ViewSaved
		a.refreshSavedList()
		return a, nil

	case "t":
		if a.view == ViewSaved {
			if a.savedSort == bookmarks.SortRecent {
				a.savedSort = bookmarks.SortTitle
			} else {
				a.savedSort = bookmarks.SortRecent
			}
			a.refreshSavedList()
			return a, nil
		}

	case "C":
		if a.view == ViewSaved {
			return a, a.clearBookmarks()
		}

	case "b":
		if item, ok := a.selectedItem(); ok {
			return a, a.toggleBookmark(item.story)
		}

	case "o":
		if a.view == ViewReader && a.readerStory != nil {
			return a, a.openStory(a.readerStory.story)
		}
		if item, ok := a.selectedItem(); ok {
			return a, a.openStory(item.story)
		}

	case "enter":
		if item, ok := a.selectedItem(); ok {
			return a, a.renderStory(item.story)
		}
	}

	var cmd tea.Cmd
	switch a.view {
	case ViewFeed:
		a.storyList, cmd = a.storyList.Update(msg)
	case ViewSaved:
		a.savedList, cmd = a.savedList.Update(msg)
	case ViewSearch:
		a.searchList, cmd = a.searchList.Update(msg)
	case ViewReader:
		a.viewport, cmd = a.viewport.Update(msg)
	}
	return a, cmd
}

func (a *App) switchTab(idx int) (tea.Model, tea.Cmd) {
	if idx < 0 || idx >= len(feed.Tabs) {
		return a, nil
	}
	a.tabIdx = idx
	a.view = ViewFeed
	a.err = nil

	engine := a.engines[a.currentTab()]
	snap := engine.Current()
	a.currentStory = &snap
	a.refreshStoryList(snap)

	if snap.State == feed.StateIdle {
		return a, a.loadTab(a.currentTab(), true)
	}
	return a, nil
}

func (a *App) selectedItem() (storyItem, bool) {
	var sel list.Item
	switch a.view {
	case ViewFeed:
		sel = a.storyList.SelectedItem()
	case ViewSaved:
		sel = a.savedList.SelectedItem()
	case ViewSearch:
		sel = a.searchList.SelectedItem()
	default:
		return storyItem{}, false
	}
	item, ok := sel.(storyItem)
	return item, ok
}

func (a *App) refreshStoryList(snap feed.Snapshot) {
	items := make([]list.Item, 0, len(snap.Items))
	for _, s := range snap.Items {
		items = append(items, storyItem{story: s, saved: a.bookmarks.IsSaved(s.ID)})
	}
	a.storyList.SetItems(items)
	a.storyList.Title = "› " + snap.Tab
}

func (a *App) refreshSavedList() {
	ids := a.bookmarks.OrderedIDs(a.savedSort)
	items := make([]list.Item, 0, len(ids))
	for _, id := range ids {
		story := a.index.Get(id)
		if story == nil {
			// Unresolvable saves still render, by raw id.
			story = &storage.Story{ID: id, Title: id}
		}
		items = append(items, storyItem{story: story, saved: true})
	}
	a.savedList.SetItems(items)
}

func (a *App) refreshCurrentLists() {
	if a.currentStory != nil {
		a.refreshStoryList(*a.currentStory)
	}
	if a.view == ViewSaved {
		a.refreshSavedList()
	}
}

func (a *App) getRenderer() (*glamour.TermRenderer, error) {
	wrap := (a.width * 9) / 10
	if wrap > 120 {
		wrap = 120
	}
	if wrap < 40 {
		wrap = 40
	}

	if a.glamourRenderer == nil || abs(a.rendererWidth-wrap) > 10 {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return nil, err
		}
		a.glamourRenderer = r
		a.rendererWidth = wrap
	}
	return a.glamourRenderer, nil
}

func (a *App) View() string {
	var body string
	switch a.view {
	case ViewReader:
		return a.viewport.View() + "\n" + statusStyle.Render("esc back · o open link · q quit")
	case ViewSaved:
		body = a.savedList.View()
	case ViewSearch:
		body = a.searchInput.View() + "\n" + a.searchList.View()
	default:
		body = a.storyList.View()
	}

	return a.tabBar() + "\n" + body + "\n" + a.statusBar()
}

func (a *App) tabBar() string {
	var tabs []string
	for i, t := range feed.Tabs {
		if i == a.tabIdx && a.view == ViewFeed {
			tabs = append(tabs, activeTabStyle.Render(t))
		} else {
			tabs = append(tabs, tabStyle.Render(t))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (a *App) statusBar() string {
	if a.err != nil {
		return errorStyle.Render("error: " + a.err.Error())
	}
	if a.offline && a.view == ViewSearch {
		return offlineStyle.Render("offline results (local index)")
	}

	snap := a.currentStory
	if snap == nil {
		return statusStyle.Render("loading…")
	}

	var parts []string
	switch snap.State {
	case feed.StateLoadingInitial, feed.StateLoadingMore:
		parts = append(parts, a.spin.View()+" loading")
	case feed.StateErrorEmpty:
		return errorStyle.Render(fmt.Sprintf("failed: %s (press r to retry)", snap.ErrMsg))
	}
	if snap.HasError && snap.State == feed.StateReady {
		parts = append(parts, offlineStyle.Render("stale: "+snap.ErrMsg))
	}
	parts = append(parts, fmt.Sprintf("%d stories", len(snap.Items)))
	if snap.HasMore {
		parts = append(parts, "m for more")
	}
	parts = append(parts, "/ search · S saved · b save · q quit")
	return statusStyle.Render(strings.Join(parts, " · "))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
