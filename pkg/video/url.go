package video

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// Ref points at one video on one platform.
type Ref struct {
	Platform Platform
	ID       string
}

var (
	youtubeIDRe   = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	vimeoIDRe     = regexp.MustCompile(`^\d+$`)
	behancePathRe = regexp.MustCompile(`^/(?:gallery|project)/(\d+)`)
)

// ParseURL recognises YouTube, Vimeo and Behance links and extracts the video id.
func ParseURL(raw string) (Ref, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return Ref{}, false
	}

	host := strings.ToLower(u.Hostname())
	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return Ref{}, false
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch domain {
	case "youtube.com":
		var id string
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case len(segments) >= 2 && (segments[0] == "embed" || segments[0] == "v" || segments[0] == "shorts" || segments[0] == "e"):
			id = segments[1]
		}
		if youtubeIDRe.MatchString(id) {
			return Ref{Platform: YouTube, ID: id}, true
		}
	case "youtu.be":
		if len(segments) >= 1 && youtubeIDRe.MatchString(segments[0]) {
			return Ref{Platform: YouTube, ID: segments[0]}, true
		}
	case "vimeo.com":
		for _, s := range segments {
			if vimeoIDRe.MatchString(s) {
				return Ref{Platform: Vimeo, ID: s}, true
			}
		}
	case "behance.net":
		if m := behancePathRe.FindStringSubmatch(u.Path); m != nil {
			return Ref{Platform: Behance, ID: m[1]}, true
		}
	}
	return Ref{}, false
}

// CanonicalURL renders the URL the search adapters use as identity for r.
// Behance canonical URLs carry a slug, so callers must keep the original link for those.
func CanonicalURL(r Ref) string {
	switch r.Platform {
	case YouTube:
		return "https://www.youtube.com/watch?v=" + r.ID
	case Vimeo:
		return "https://vimeo.com/" + r.ID
	case Behance:
		return "https://www.behance.net/gallery/" + r.ID
	}
	return ""
}
