package route

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// ErrMalformedRouteURL is returned for URLs that do not point at a route page.
var ErrMalformedRouteURL = errors.New("malformed route URL")

var routeURLRe = regexp.MustCompile(`^https?://[^/\s]+/route/([0-9]+)/([\w-]+)`)

// Ref identifies a route in the route database.
type Ref struct {
	ID   int64
	Slug string
}

// URL rebuilds the canonical route page URL under baseURL. The slug segment
// is left out when Slug is empty.
func (r Ref) URL(baseURL string) string {
	u := fmt.Sprintf("%s/route/%d", strings.TrimRight(baseURL, "/"), r.ID)
	if r.Slug != "" {
		u += "/" + r.Slug
	}
	return u
}

// Resolver parses route URLs and memoizes the results for the lifetime of a run.
// It is safe for concurrent use.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string]Ref
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[string]Ref)}
}

// Resolve extracts the route ID and slug from a route URL.
func (r *Resolver) Resolve(rawURL string) (Ref, error) {
	r.mu.RLock()
	ref, ok := r.cache[rawURL]
	r.mu.RUnlock()
	if ok {
		return ref, nil
	}

	ref, err := Parse(rawURL)
	if err != nil {
		return Ref{}, err
	}

	r.mu.Lock()
	r.cache[rawURL] = ref
	r.mu.Unlock()
	return ref, nil
}

// Len returns the number of memoized URLs.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Reset drops every memoized URL.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cache = make(map[string]Ref)
	r.mu.Unlock()
}

// Parse is the uncached form of Resolver.Resolve.
func Parse(rawURL string) (Ref, error) {
	m := routeURLRe.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil {
		return Ref{}, fmt.Errorf("%w: %q", ErrMalformedRouteURL, rawURL)
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %q: %v", ErrMalformedRouteURL, rawURL, err)
	}
	return Ref{ID: id, Slug: m[2]}, nil
}
