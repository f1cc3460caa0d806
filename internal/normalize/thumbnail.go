package normalize

import (
	"net/url"
	"regexp"
	"strings"
)

// CanonicalThumbnailHost is the single host every YouTube thumbnail URL is rewritten to.
const CanonicalThumbnailHost = "i.ytimg.com"

var numberedThumbHostRe = regexp.MustCompile(`^i\d+\.ytimg\.com$`)

// NormalizeThumbnailURL forces https and collapses equivalent thumbnail hosts
// (i1..iN.ytimg.com, img.youtube.com) onto CanonicalThumbnailHost. Relative
// paths and unparseable values are returned unchanged.
func NormalizeThumbnailURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	if u.Scheme == "http" || u.Scheme == "" {
		u.Scheme = "https"
	}

	host := strings.ToLower(u.Hostname())
	if numberedThumbHostRe.MatchString(host) || host == "img.youtube.com" {
		u.Host = CanonicalThumbnailHost
	}

	return u.String()
}

// SynthesizeThumbnail builds the default high quality thumbnail URL for a video id.
func SynthesizeThumbnail(videoID string) string {
	return "https://" + CanonicalThumbnailHost + "/vi/" + url.PathEscape(videoID) + "/hqdefault.jpg"
}

// ResolveThumbnail picks the first non-empty candidate, falling back to a synthesized URL.
func ResolveThumbnail(candidates []string, videoID string) string {
	for _, c := range candidates {
		if n := NormalizeThumbnailURL(c); n != "" {
			return n
		}
	}
	return SynthesizeThumbnail(videoID)
}
