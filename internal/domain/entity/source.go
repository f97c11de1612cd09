package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Source represents a tracked origin (a blog or site) loaded from the registry.
// Sources are immutable for the duration of a run.
type Source struct {
	// ID is the stable identifier used to key persisted state and artifacts.
	ID string
	// Name is the human-readable label, or the ID when the registry gives none.
	Name string
	// BaseURL is the page that is checked for feeds and rendered for screenshots.
	BaseURL string
}

// NewSource builds a Source from a registry URL and an optional label.
// The URL is validated; the identifier is derived from it.
func NewSource(rawURL, label string) (Source, error) {
	if err := ValidateURL(rawURL); err != nil {
		return Source{}, err
	}

	id := DeriveSourceID(rawURL)
	name := strings.TrimSpace(label)
	if name == "" {
		name = id
	}

	return Source{ID: id, Name: name, BaseURL: rawURL}, nil
}

// Host returns the source's host name without a leading "www.".
func (s Source) Host() string {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// DeriveSourceID turns a URL into a file-name safe identifier. The host
// (without "www.") and the path segments are joined with "_", which never
// occurs in a host name:
//
//	https://a.example/          -> a.example
//	https://www.b.example/blog/ -> b.example_blog
//	https://a.example-blog/     -> a.example-blog
//
// When that form could stand for more than one URL (a port, a query string,
// or path segments with characters other than lowercase letters, digits, dots
// and dashes) a short hash of the URL is appended:
//
//	https://d.example/?page=2   -> d.example-7ffa2fa6
func DeriveSourceID(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return slugify(rawURL)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	parts := []string{host}
	clean := u.Port() == "" && u.RawQuery == ""
	for _, seg := range strings.Split(u.EscapedPath(), "/") {
		if seg == "" {
			continue
		}
		if !plainSegment(seg) {
			clean = false
		}
		parts = append(parts, seg)
	}

	id := slugify(strings.Join(parts, "_"))
	if clean {
		return id
	}

	canonical := host + ":" + u.Port() + strings.TrimRight(u.EscapedPath(), "/") + "?" + u.RawQuery
	sum := sha256.Sum256([]byte(canonical))
	return id + "-" + hex.EncodeToString(sum[:4])
}

func plainSegment(seg string) bool {
	for _, r := range seg {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '-') {
			return false
		}
	}
	return true
}

// slugify keeps lowercase letters, digits, dots, underscores and dashes,
// replacing every other run of characters with a single dash.
func slugify(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
