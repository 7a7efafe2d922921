// Package images decides how a story's raw image references get loaded.
// The resolver is pure: same story, same API origin, same answer.
package images

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/reelfeed/reelfeed/internal/storage"
)

//go:embed hosts.toml
var hostsTOML []byte

// hostRules holds the three host lists the resolver consults.
type hostRules struct {
	Deny    []string `toml:"deny"`
	Allow   []string `toml:"allow"`
	Article []string `toml:"article"`
}

type rulesFile struct {
	Hosts hostRules `toml:"hosts"`
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif"}

var imagePathMarkers = []string{"/vi/", "/thumb", "/images/"}

// strayPortSuffix matches a ":<port>"-looking fragment stuck to the end
// of a path component by a broken upstream encoder.
var strayPortSuffix = regexp.MustCompile(`:\d+$`)

// Resolver turns a story's candidate image URLs into a single safe URL,
// or "" when nothing usable survives.
type Resolver struct {
	apiBase string
	apiHost string
	rules   hostRules
}

// NewResolver builds a resolver for the given API origin using the
// embedded host rules, merged with any user override file.
func NewResolver(apiBase string) (*Resolver, error) {
	var rf rulesFile
	if err := toml.Unmarshal(hostsTOML, &rf); err != nil {
		return nil, fmt.Errorf("parsing hosts.toml: %w", err)
	}
	loadUserRules(&rf)

	apiBase = strings.TrimRight(apiBase, "/")
	apiHost := ""
	if u, err := url.Parse(apiBase); err == nil {
		apiHost = u.Host
	}

	return &Resolver{apiBase: apiBase, apiHost: apiHost, rules: rf.Hosts}, nil
}

// loadUserRules merges rules from the user's config directory, appending
// to the embedded lists.
func loadUserRules(rf *rulesFile) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	data, err := os.ReadFile(filepath.Join(home, ".config", "reelfeed", "hosts.toml"))
	if err != nil {
		return
	}
	var user rulesFile
	if err := toml.Unmarshal(data, &user); err != nil {
		return
	}
	rf.Hosts.Deny = append(rf.Hosts.Deny, user.Hosts.Deny...)
	rf.Hosts.Allow = append(rf.Hosts.Allow, user.Hosts.Allow...)
	rf.Hosts.Article = append(rf.Hosts.Article, user.Hosts.Article...)
}

// Resolve picks the first usable image candidate (poster before thumb)
// and returns either a directly loadable URL, a proxied URL through the
// API's /v1/img endpoint, or "" when the story has no usable image.
func (r *Resolver) Resolve(story *storage.Story) string {
	if story == nil {
		return ""
	}

	for _, candidate := range []string{story.PosterURL, story.ThumbURL} {
		if out, ok := r.resolveCandidate(candidate, story.URL); ok {
			return out
		}
	}
	return ""
}

func (r *Resolver) resolveCandidate(raw, storyURL string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if r.isJunk(raw) {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	u.Path = strayPortSuffix.ReplaceAllString(u.Path, "")

	// Already pointed at our own image proxy: accept as-is, unless the
	// wrapped URL is itself junk.
	if r.isOwnProxy(u) {
		inner := u.Query().Get("u")
		if inner == "" {
			inner = u.Query().Get("url")
		}
		if r.isJunk(inner) {
			return "", false
		}
		return u.String(), true
	}

	if u.Scheme == "http" || u.Scheme == "https" {
		// An article-page host can never be an image host.
		if r.isArticleHost(u.Host) {
			return "", false
		}
		if !looksLikeImage(u.Path) {
			return "", false
		}
		if r.isAllowedHost(u.Host) {
			return u.String(), true
		}
		return r.proxied(u.String(), storyURL), true
	}

	// Last resort: a relative path gets served from the API origin.
	if u.Scheme == "" && strings.HasPrefix(u.Path, "/") {
		return r.apiBase + u.Path, true
	}

	return "", false
}

// isJunk rejects candidates that can never load: empty values, blank
// pages, inline data, and hosts on the deny list.
func (r *Resolver) isJunk(raw string) bool {
	if raw == "" || raw == "about:blank" {
		return true
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "blob:") {
		return true
	}
	for _, bad := range r.rules.Deny {
		if strings.Contains(lower, bad) {
			return true
		}
	}
	return false
}

func (r *Resolver) isOwnProxy(u *url.URL) bool {
	return strings.Contains(u.Path, "/v1/img") && u.Host == r.apiHost
}

func (r *Resolver) isArticleHost(host string) bool {
	host = strings.ToLower(stripPort(host))
	for _, a := range r.rules.Article {
		if host == a {
			return true
		}
	}
	return false
}

func (r *Resolver) isAllowedHost(host string) bool {
	host = strings.ToLower(stripPort(host))
	for _, a := range r.rules.Allow {
		if host == a {
			return true
		}
	}
	return false
}

func (r *Resolver) proxied(imageURL, storyURL string) string {
	out := r.apiBase + "/v1/img?u=" + url.QueryEscape(imageURL)
	if storyURL != "" {
		out += "&ref=" + url.QueryEscape(storyURL)
	}
	return out
}

func looksLikeImage(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	for _, marker := range imagePathMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func stripPort(host string) string {
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(host, "]") {
		return host[:i]
	}
	return host
}
