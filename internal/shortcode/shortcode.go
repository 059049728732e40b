// Package shortcode resolves the content identifier of a reel from whatever
// the user pasted: a share URL, a post URL or the bare shortcode.
package shortcode

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Domain is the host the domain fallback matches against.
const Domain = "instagram.com"

var (
	contentPathRe = regexp.MustCompile(`/(?:reels?|p|tv)/([^/?#]+)`)
	domainPathRe  = regexp.MustCompile(regexp.QuoteMeta(Domain) + `/([^/?#]+)`)
)

// Resolve returns the identifier for input. It never fails: empty input gives
// an empty string and unrecognised input is returned trimmed.
func Resolve(input string) string {
	id, _ := resolve(input)
	return id
}

// IsCanonical reports whether input resolves through a bare identifier, a
// content path or the domain, as opposed to the trimmed-input fallback.
func IsCanonical(input string) bool {
	_, ok := resolve(input)
	return ok
}

func resolve(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", false
	}

	if !strings.Contains(s, "://") && !strings.Contains(s, "/") {
		return s, true
	}

	if m := contentPathRe.FindStringSubmatch(s); m != nil {
		return m[1], true
	}

	// unexpected shapes still routed through the domain, e.g. instagram.com/someuser
	if m := domainPathRe.FindStringSubmatch(s); m != nil {
		return m[1], true
	}

	return s, false
}

// IsFileSafe reports whether id can name a file inside a directory: a single
// path element that is not "." or "..".
func IsFileSafe(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	if strings.ContainsAny(id, `/\`) {
		return false
	}
	return filepath.Base(id) == id
}
