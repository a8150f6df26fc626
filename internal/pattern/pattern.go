// Package pattern implements the ignore/preprocess pattern language: an
// ordered list of gitignore-flavored globs where later entries can flip
// the match decision of earlier ones.
package pattern

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// rule is one parsed pattern entry.
type rule struct {
	negated   bool
	dirOnly   bool
	anchored  bool
	glob      string // lower-cased, without leading '!' or trailing '/'
}

// parse turns a raw pattern string into a rule.
func parse(raw string) rule {
	p := strings.ReplaceAll(raw, "\\", "/")

	var r rule
	if strings.HasPrefix(p, "!") {
		r.negated = true
		p = p[1:]
	}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimSuffix(p, "/")
	}
	if strings.Contains(p, "/") {
		r.anchored = true
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
	}
	r.glob = strings.ToLower(p)
	return r
}

// Matches reports whether path (a POSIX-style relative path without a
// leading '/') is matched by patterns, applying them in order: result
// starts false, and each matching pattern sets result to !negated. Later
// patterns can re-include a previously excluded path and vice versa.
func Matches(path string, patterns []string, isDir bool) bool {
	result := false
	candidateFull := "/" + strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
	candidateBase := strings.ToLower(filepath.Base(path))

	for _, raw := range patterns {
		if strings.TrimSpace(raw) == "" || strings.HasPrefix(strings.TrimSpace(raw), "#") {
			continue
		}
		r := parse(raw)
		if r.dirOnly && !isDir {
			continue
		}

		var matched bool
		var err error
		if r.anchored {
			matched, err = doublestar.Match(r.glob, candidateFull)
		} else {
			matched, err = doublestar.Match(r.glob, candidateBase)
		}
		if err != nil || !matched {
			continue
		}
		result = !r.negated
	}
	return result
}
