// Package media opens a story's playable link in an external player.
// Trailer links get a video player when one is installed; everything
// else goes to the platform browser opener.
package media

import (
	_ "embed"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed players.toml
var playersTOML []byte

type playerDefinition struct {
	Description string   `toml:"description"`
	Platforms   []string `toml:"platforms"`
	Args        []string `toml:"args"`
}

type playersConfig struct {
	Players map[string]playerDefinition `toml:"players"`
}

var videoMarkers = []string{"youtube.com/watch", "youtu.be/", ".mp4", ".webm", ".m3u8"}

type Launcher struct {
	players     map[string]playerDefinition
	videoPlayer string
	opener      string
}

func NewLauncher() *Launcher {
	var cfg playersConfig
	if err := toml.Unmarshal(playersTOML, &cfg); err != nil {
		cfg.Players = make(map[string]playerDefinition)
	}

	l := &Launcher{
		players: cfg.Players,
		opener:  defaultOpener(),
	}

	for _, name := range []string{"iina", "mpv", "vlc"} {
		if def, ok := cfg.Players[name]; ok && supportsPlatform(def) {
			if _, err := exec.LookPath(name); err == nil {
				l.videoPlayer = name
				break
			}
		}
	}
	return l
}

// Open launches the URL, preferring a dedicated video player for
// playable links.
func (l *Launcher) Open(url string) error {
	if url == "" {
		return fmt.Errorf("nothing to open")
	}

	name := l.opener
	var args []string
	if l.videoPlayer != "" && looksPlayable(url) {
		name = l.videoPlayer
		args = l.players[name].Args
	}
	if name == "" {
		return fmt.Errorf("no application found to open URL")
	}

	cmd := exec.Command(name, append(args, url)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}

	// Detach; the player outlives the keypress that launched it.
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

func looksPlayable(url string) bool {
	lower := strings.ToLower(url)
	for _, marker := range videoMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func supportsPlatform(def playerDefinition) bool {
	for _, p := range def.Platforms {
		if p == runtime.GOOS {
			return true
		}
	}
	return false
}

func defaultOpener() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "linux":
		return "xdg-open"
	case "windows":
		return "start"
	default:
		return "open"
	}
}
