package search

import (
	"strings"

	qerrors "github.com/quarrydocs/quarry/internal/errors"
)

// Filter restricts retrieval results by chunk metadata. Filters are
// caller-owned values threaded through each call; the retriever keeps no
// session state about previously returned chunks.
type Filter struct {
	// ExcludeChunkIDs drops chunks by ID. Used to avoid repeating excerpts
	// across successive calls.
	ExcludeChunkIDs map[string]struct{}

	// Origins keeps only chunks whose origin starts with one of these
	// prefixes. Empty means all origins.
	Origins []string
}

// NewFilter creates a filter excluding the given chunk IDs.
func NewFilter(excludeIDs ...string) *Filter {
	f := &Filter{ExcludeChunkIDs: make(map[string]struct{}, len(excludeIDs))}
	for _, id := range excludeIDs {
		f.ExcludeChunkIDs[id] = struct{}{}
	}
	return f
}

// Allows reports whether a chunk passes the filter.
func (f *Filter) Allows(chunkID, origin string) bool {
	if f == nil {
		return true
	}
	if _, excluded := f.ExcludeChunkIDs[chunkID]; excluded {
		return false
	}
	if len(f.Origins) == 0 {
		return true
	}
	for _, prefix := range f.Origins {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

// ParseFilter parses a filter expression of space-separated key=value
// clauses:
//
//	exclude=<id>[,<id>...]   drop chunks by ID
//	origin=<prefix>[,...]    keep only chunks under an origin prefix
//
// An empty expression yields a nil filter. Unknown keys or malformed
// clauses fail with InvalidFilterError.
func ParseFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	f := &Filter{ExcludeChunkIDs: make(map[string]struct{})}
	for _, clause := range strings.Fields(expr) {
		key, value, found := strings.Cut(clause, "=")
		if !found || value == "" {
			return nil, qerrors.InvalidFilterError(expr,
				"filter clause must have the form key=value")
		}

		switch key {
		case "exclude":
			for _, id := range strings.Split(value, ",") {
				if id = strings.TrimSpace(id); id != "" {
					f.ExcludeChunkIDs[id] = struct{}{}
				}
			}
		case "origin":
			for _, prefix := range strings.Split(value, ",") {
				if prefix = strings.TrimSpace(prefix); prefix != "" {
					f.Origins = append(f.Origins, prefix)
				}
			}
		default:
			return nil, qerrors.InvalidFilterError(expr,
				"unknown filter key "+key)
		}
	}
	return f, nil
}
