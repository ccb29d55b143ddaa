package crawler

import (
	"net/url"
	"strings"
	"sync"
)

// VisitedSet records the URLs processed during one scan session.
// It only grows, and it is safe for concurrent use.
type VisitedSet struct {
	mutex   sync.Mutex
	visited map[string]bool
}

// NewVisitedSet creates an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{visited: make(map[string]bool)}
}

// MarkVisited adds pageURL to the set. It returns false when the URL was
// already present, so check-and-add is a single atomic step.
func (v *VisitedSet) MarkVisited(pageURL string) bool {
	key := normalizeURL(pageURL)

	v.mutex.Lock()
	defer v.mutex.Unlock()
	if v.visited[key] {
		return false
	}
	v.visited[key] = true
	return true
}

// IsVisited reports whether pageURL has been processed.
func (v *VisitedSet) IsVisited(pageURL string) bool {
	key := normalizeURL(pageURL)

	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.visited[key]
}

// Len returns the number of distinct URLs in the set.
func (v *VisitedSet) Len() int {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return len(v.visited)
}

// normalizeURL reduces equivalent spellings of a URL to one key.
// The fragment is dropped, scheme and host are lower-cased and an empty
// path becomes "/". The query is kept as written because parameter order
// changes which requests the injection detectors send.
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
