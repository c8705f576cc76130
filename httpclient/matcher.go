package httpclient

import (
	"net/url"
	"strings"

	"github.com/tidwall/match"
)

// methodPrefix marks a pattern that matches the HTTP method instead of the path.
const methodPrefix = "method:"

// Matcher scopes a policy by request method and URL path.
//
// Exclude wins over Include. An empty Include list admits everything that is
// not excluded. Patterns are one of:
//
//	method:put       the HTTP method, case-insensitive
//	/user/*          a glob over the path; '*' also spans '/'
//	/user            the exact path or any path below it ("/user/1", not "/users")
//
// Query strings and the scheme and host of absolute URLs are ignored.
type Matcher struct {
	Include []string
	Exclude []string
}

// NewMatcher creates a Matcher from include and exclude pattern lists.
func NewMatcher(include, exclude []string) Matcher {
	return Matcher{Include: include, Exclude: exclude}
}

// Matches reports whether a request with the given method and URL is in scope.
func (m Matcher) Matches(method, rawURL string) bool {
	path := matchPath(rawURL)

	for _, p := range m.Exclude {
		if matchPattern(p, method, path) {
			return false
		}
	}
	if len(m.Include) == 0 {
		return true
	}
	for _, p := range m.Include {
		if matchPattern(p, method, path) {
			return true
		}
	}
	return false
}

// MatchesConfig reports whether cfg is in scope.
func (m Matcher) MatchesConfig(cfg *RequestConfig) bool {
	if cfg == nil {
		return false
	}
	return m.Matches(cfg.HTTPMethod(), cfg.URL)
}

func matchPattern(pattern, method, path string) bool {
	if len(pattern) > len(methodPrefix) && strings.EqualFold(pattern[:len(methodPrefix)], methodPrefix) {
		return strings.EqualFold(strings.TrimSpace(pattern[len(methodPrefix):]), method)
	}
	if pattern == "" {
		return false
	}
	if match.IsPattern(pattern) {
		return match.Match(path, pattern)
	}

	pattern = strings.TrimRight(pattern, "/")
	if pattern == "" {
		return true
	}
	return path == pattern || strings.HasPrefix(path, pattern+"/")
}

// matchPath strips query, fragment, scheme and host from rawURL.
func matchPath(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if u.Path == "" && u.IsAbs() {
			return "/"
		}
		return u.Path
	}
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
