package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/reelfeed/reelfeed/internal/bookmarks"
	"github.com/reelfeed/reelfeed/internal/config"
	"github.com/reelfeed/reelfeed/internal/debuglog"
	"github.com/reelfeed/reelfeed/internal/feed"
	"github.com/reelfeed/reelfeed/internal/images"
	"github.com/reelfeed/reelfeed/internal/media"
	"github.com/reelfeed/reelfeed/internal/search"
	"github.com/reelfeed/reelfeed/internal/storage"
	"github.com/reelfeed/reelfeed/internal/tui"
)

// Version is the version of the application, set at build time
var Version = "dev"

func main() {
	var (
		dbPath         = flag.String("db", "", "Path to database file (overrides config)")
		configPath     = flag.String("config", "", "Path to configuration file")
		generateConfig = flag.Bool("generate-config", false, "Generate default config file")
		version        = flag.Bool("version", false, "Show version information")
		quiet          = flag.Bool("quiet", false, "Skip startup banner")
		exportSaved    = flag.Bool("export-saved", false, "Print saved story links and exit")
		health         = flag.Bool("health", false, "Print server feed length and exit")
		storyID        = flag.String("story", "", "Print a single story by id and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("reelfeed %s\n", Version)
		fmt.Println("offline-first movie & entertainment feed")
		fmt.Println("github.com/reelfeed/reelfeed")
		return
	}

	if *generateConfig {
		home, _ := os.UserHomeDir()
		configFile := filepath.Join(home, ".config", "reelfeed", "config.toml")

		if err := config.GenerateDefaultConfig(configFile); err != nil {
			log.Fatalf("Failed to generate config: %v", err)
		}
		fmt.Printf("Generated default configuration at: %s\n", configFile)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	if err := debuglog.Setup(cfg.Log.Level, cfg.Log.Path); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer debuglog.Close()

	client := feed.NewClient(cfg, nil)

	// Headless modes that never touch the local database.
	if *health {
		n, err := client.FetchHealthLength(context.Background())
		if err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		fmt.Printf("feed_len: %d\n", n)
		return
	}

	store, err := storage.NewStore(cfg.Database.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	index := feed.NewIndex()

	marks := bookmarks.NewStore(store, index)
	if err := marks.Init(); err != nil {
		log.Fatalf("Failed to load bookmarks: %v", err)
	}

	if *exportSaved {
		if out := marks.ExportLinks(); out != "" {
			fmt.Println(out)
		}
		return
	}

	if *storyID != "" {
		story := index.Get(*storyID)
		if story == nil {
			story, err = client.FetchStory(context.Background(), *storyID)
			if err != nil {
				log.Fatalf("Failed to fetch story %q: %v", *storyID, err)
			}
		}
		fmt.Printf("%s\n", story.Title)
		if story.Summary != "" {
			fmt.Printf("%s\n", story.Summary)
		}
		if story.URL != "" {
			fmt.Printf("%s\n", story.URL)
		}
		return
	}

	resolver, err := images.NewResolver(cfg.API.BaseURL)
	if err != nil {
		log.Fatalf("Failed to build image resolver: %v", err)
	}

	searcher, err := search.NewBleveEngine(index, cfg.Search.IndexPath)
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}

	engines := make(map[string]*feed.Engine, len(feed.Tabs))
	for _, tab := range feed.Tabs {
		engine := feed.NewEngine(tab, client, store, index, cfg)
		if listener, ok := searcher.(feed.UpdateListener); ok {
			engine.AddUpdateListener(listener)
		}
		engines[tab] = engine
	}

	if !*quiet {
		showBanner()
	}

	app := tui.NewApp(tui.Deps{
		Config:    cfg,
		Client:    client,
		Engines:   engines,
		Index:     index,
		Bookmarks: marks,
		Resolver:  resolver,
		Searcher:  searcher,
		Launcher:  media.NewLauncher(),
	})

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func showBanner() {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#4ECDC4")).
		Render("reelfeed")

	tagline := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#94A3B8")).
		Render("movies, trailers & streaming news, works offline")

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#4ECDC4")).
		Padding(0, 3).
		Render(title + "\n" + tagline)

	fmt.Println(box)
}
