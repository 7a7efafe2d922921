package storage

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Story is a single feed item as served by the API. Identity for every
// cache and merge operation is ID alone; instances are never mutated
// after decoding, a newer fetch replaces the whole object.
type Story struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	Title          string     `json:"title"`
	Summary        string     `json:"summary,omitempty"`
	URL            string     `json:"url,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	ReleaseDate    *time.Time `json:"release_date,omitempty"`
	Source         string     `json:"source,omitempty"`
	OTTPlatform    string     `json:"ott_platform,omitempty"`
	RatingCert     string     `json:"rating_cert,omitempty"`
	RuntimeMinutes int        `json:"runtime_minutes,omitempty"`
	Languages      []string   `json:"languages,omitempty"`
	Genres         []string   `json:"genres,omitempty"`
	ThumbURL       string     `json:"thumb_url,omitempty"`
	PosterURL      string     `json:"poster_url,omitempty"`
	TheatricalFlag *bool      `json:"is_theatrical,omitempty"`
	UpcomingFlag   *bool      `json:"is_upcoming,omitempty"`
}

// FeedPage is one page of feed results. NextCursor is opaque; empty
// means no further pages are known.
type FeedPage struct {
	Items      []*Story `json:"items"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// IsTheatrical reports whether the story is a theatrical release,
// preferring the server's explicit flag over the kind-derived default.
func (s *Story) IsTheatrical() bool {
	if s.TheatricalFlag != nil {
		return *s.TheatricalFlag
	}
	return s.Kind == "release"
}

// IsUpcoming reports whether the story's release is still in the future.
func (s *Story) IsUpcoming() bool {
	if s.UpcomingFlag != nil {
		return *s.UpcomingFlag
	}
	return s.ReleaseDate != nil && s.ReleaseDate.After(time.Now())
}

// UnmarshalJSON accepts both snake_case and camelCase keys, dates as
// RFC3339 strings or epoch seconds/millis, and list fields as JSON
// arrays or comma/pipe-delimited strings. The server has shipped all of
// these shapes at one point or another.
func (s *Story) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	s.ID = pickString(obj, "id")
	s.Kind = pickString(obj, "kind")
	s.Title = pickString(obj, "title")
	s.Summary = pickString(obj, "summary")
	s.URL = pickString(obj, "url", "link")
	s.PublishedAt = pickTime(obj, "published_at", "publishedAt")
	s.ReleaseDate = pickTime(obj, "release_date", "releaseDate")
	s.Source = pickString(obj, "source")
	s.OTTPlatform = pickString(obj, "ott_platform", "ottPlatform")
	s.RatingCert = pickString(obj, "rating_cert", "ratingCert")
	s.RuntimeMinutes = pickInt(obj, "runtime_minutes", "runtimeMinutes")
	s.Languages = pickStrings(obj, "languages")
	s.Genres = pickStrings(obj, "genres")
	s.ThumbURL = pickString(obj, "thumb_url", "thumbUrl")
	s.PosterURL = pickString(obj, "poster_url", "posterUrl")
	s.TheatricalFlag = pickBool(obj, "is_theatrical", "isTheatrical")
	s.UpcomingFlag = pickBool(obj, "is_upcoming", "isUpcoming")
	return nil
}

// UnmarshalJSON tolerates both next_cursor and nextCursor.
func (p *FeedPage) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	p.NextCursor = pickString(obj, "next_cursor", "nextCursor")
	p.Items = nil
	if raw, ok := firstRaw(obj, "items"); ok {
		if err := json.Unmarshal(raw, &p.Items); err != nil {
			return err
		}
	}
	return nil
}

func firstRaw(obj map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := obj[k]; ok && !isNull(raw) {
			return raw, true
		}
	}
	return nil, false
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func pickString(obj map[string]json.RawMessage, keys ...string) string {
	raw, ok := firstRaw(obj, keys...)
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return ""
}

func pickInt(obj map[string]json.RawMessage, keys ...string) int {
	raw, ok := firstRaw(obj, keys...)
	if !ok {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	// Some encoders ship numbers as strings
	var v string
	if err := json.Unmarshal(raw, &v); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}

func pickBool(obj map[string]json.RawMessage, keys ...string) *bool {
	raw, ok := firstRaw(obj, keys...)
	if !ok {
		return nil
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err == nil {
		return &v
	}
	return nil
}

// epochMillisFloor disambiguates epoch seconds from millis: anything at
// or above this magnitude cannot be a seconds value until the year 33658.
const epochMillisFloor = 1_000_000_000_000

func pickTime(obj map[string]json.RawMessage, keys ...string) *time.Time {
	raw, ok := firstRaw(obj, keys...)
	if !ok {
		return nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		str = strings.TrimSpace(str)
		if str == "" {
			return nil
		}
		if t, err := time.Parse(time.RFC3339, str); err == nil {
			t = t.UTC()
			return &t
		}
		// Numeric string epoch
		if n, err := strconv.ParseInt(str, 10, 64); err == nil {
			return epochToTime(n)
		}
		return nil
	}

	var num int64
	if err := json.Unmarshal(raw, &num); err == nil {
		return epochToTime(num)
	}
	// Fractional epoch seconds
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return epochToTime(int64(f))
	}
	return nil
}

func epochToTime(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	var t time.Time
	if n >= epochMillisFloor {
		t = time.UnixMilli(n).UTC()
	} else {
		t = time.Unix(n, 0).UTC()
	}
	return &t
}

func pickStrings(obj map[string]json.RawMessage, keys ...string) []string {
	raw, ok := firstRaw(obj, keys...)
	if !ok {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	// Comma or pipe-delimited single string
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return nil
	}
	sep := ","
	if strings.Contains(str, "|") {
		sep = "|"
	}
	var out []string
	for _, part := range strings.Split(str, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
