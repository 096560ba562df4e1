// Package ignore matches paths against gitignore-style patterns.
// Ingest discovery uses it to honor .gitignore and .quarryignore files.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreFileNames are the ignore files loaded from the ingest root, in
// precedence order. Later files override earlier ones.
var IgnoreFileNames = []string{".gitignore", ".quarryignore"}

// Matcher matches slash-separated relative paths against a compiled
// pattern list. The zero value matches nothing.
type Matcher struct {
	rules []rule
}

type rule struct {
	regex    *regexp.Regexp
	negated  bool
	dirOnly  bool
	anchored bool
}

// New returns an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// Load builds a Matcher from the ignore files present at root.
// Missing files are skipped.
func Load(root string) (*Matcher, error) {
	m := New()
	for _, name := range IgnoreFileNames {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := m.AddFile(path); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AddFile appends all patterns from an ignore file.
func (m *Matcher) AddFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open ignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.Add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read ignore file %s: %w", path, err)
	}
	return nil
}

// Add appends a single pattern. Blank lines and comments are ignored.
func (m *Matcher) Add(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	var r rule
	if after, ok := strings.CutPrefix(pattern, "!"); ok {
		r.negated = true
		pattern = after
	}
	if after, ok := strings.CutSuffix(pattern, "/"); ok {
		r.dirOnly = true
		pattern = after
	}
	if after, ok := strings.CutPrefix(pattern, "/"); ok {
		r.anchored = true
		pattern = after
	} else if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		// A slash anywhere in the pattern anchors it to the root,
		// per gitignore semantics ("doc/frotz" is not "**/doc/frotz").
		r.anchored = true
	}

	r.regex = regexp.MustCompile("^" + patternToRegex(pattern) + "$")
	m.rules = append(m.rules, r)
}

// Match reports whether the relative path should be ignored.
// The path must use forward slashes.
func (m *Matcher) Match(path string, isDir bool) bool {
	if m == nil {
		return false
	}
	path = filepath.ToSlash(path)

	ignored := false
	for _, r := range m.rules {
		if matchRule(path, isDir, r) {
			ignored = !r.negated
		}
	}
	return ignored
}

func matchRule(path string, isDir bool, r rule) bool {
	parts := strings.Split(path, "/")

	if r.anchored {
		if r.regex.MatchString(path) {
			return !r.dirOnly || isDir
		}
		// A matched directory ignores everything beneath it.
		for i := range parts[:len(parts)-1] {
			if r.regex.MatchString(strings.Join(parts[:i+1], "/")) {
				return true
			}
		}
		return false
	}

	if r.dirOnly {
		for i, part := range parts {
			if r.regex.MatchString(part) {
				return i < len(parts)-1 || isDir
			}
		}
		return false
	}

	// Unanchored patterns match the basename, the full path, or any
	// single path component.
	if r.regex.MatchString(parts[len(parts)-1]) || r.regex.MatchString(path) {
		return true
	}
	for _, part := range parts {
		if r.regex.MatchString(part) {
			return true
		}
	}
	return false
}

// patternToRegex translates a gitignore glob into a regular expression.
func patternToRegex(pattern string) string {
	var b strings.Builder

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if strings.HasPrefix(pattern[i:], "**/") {
				b.WriteString("(?:.*/)?")
				i += 3
				continue
			}
			if strings.HasPrefix(pattern[i:], "**") {
				b.WriteString(".*")
				i += 2
				continue
			}
			b.WriteString("[^/]*")
			i++

		case '?':
			b.WriteString("[^/]")
			i++

		case '[':
			j := strings.IndexByte(pattern[i:], ']')
			if j > 0 {
				b.WriteString(pattern[i : i+j+1])
				i += j + 1
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}

		case '\\':
			if i+1 < len(pattern) {
				b.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}

		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}

	return b.String()
}
