package gateway

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Route maps an external path prefix to an upstream service.
type Route struct {
	// Prefix is the external prefix, e.g. /v1/content.
	Prefix string
	// Upstream is the service base URL.
	Upstream *url.URL
	// TargetPrefix replaces Prefix on the forwarded path, e.g. /api/content.
	TargetPrefix string
	// RequireIdentity demands a valid bearer token and forwards the user id.
	RequireIdentity bool
}

// RewritePath maps an external path under r.Prefix to the upstream path.
func (r Route) RewritePath(path string) string {
	return r.TargetPrefix + strings.TrimPrefix(path, r.Prefix)
}

// Table resolves request paths to routes by longest prefix. Prefixes match
// on whole path segments only, so /v1/contentx does not match /v1/content.
type Table struct {
	routes []Route
}

func NewTable(routes ...Route) (*Table, error) {
	seen := make(map[string]bool)
	out := make([]Route, 0, len(routes))
	for _, r := range routes {
		r.Prefix = "/" + strings.Trim(r.Prefix, "/")
		r.TargetPrefix = strings.TrimSuffix(r.TargetPrefix, "/")
		if r.Upstream == nil || r.Upstream.Host == "" {
			return nil, fmt.Errorf("route %s: upstream is required", r.Prefix)
		}
		if seen[r.Prefix] {
			return nil, fmt.Errorf("route %s: duplicate prefix", r.Prefix)
		}
		seen[r.Prefix] = true
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Prefix) > len(out[j].Prefix)
	})
	return &Table{routes: out}, nil
}

// Resolve returns the route with the longest prefix matching path.
func (t *Table) Resolve(path string) (Route, bool) {
	for _, r := range t.routes {
		if matchPrefix(path, r.Prefix) {
			return r, true
		}
	}
	return Route{}, false
}

func matchPrefix(path, prefix string) bool {
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
