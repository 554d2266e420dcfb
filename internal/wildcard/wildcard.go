// Package wildcard expands multi-file input patterns against a directory
// listing.
//
// Only the final path element may carry wildcards. '*' and '^' match any run
// of characters (the caret spares users from shell expansion), '?' and '#'
// match exactly one. Every other character must match literally, so both the
// leading and trailing literal parts of a pattern anchor the match.
package wildcard

import (
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

// ErrNoMatch is returned when a pattern matches nothing.
var ErrNoMatch = errors.New("no files match pattern")

// Split separates the directory part of a pattern from its final element.
// The directory defaults to ".".
func Split(pattern string) (dir, base string) {
	i := strings.LastIndexByte(pattern, '/')
	if i < 0 {
		return ".", pattern
	}
	return pattern[:i], pattern[i+1:]
}

// translate rewrites a user pattern into doublestar syntax.
func translate(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	for _, r := range p {
		switch r {
		case '^':
			b.WriteByte('*')
		case '#':
			b.WriteByte('?')
		case '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Match reports whether name matches the single-element pattern.
func Match(pattern, name string) (bool, error) {
	ok, err := doublestar.Match(translate(pattern), name)
	if err != nil {
		return false, errors.Errorf("bad pattern %q: %w", pattern, err)
	}
	return ok, nil
}

// Expand returns every directory entry matching pattern, sorted by name and
// prefixed with the directory.
func Expand(pattern string) ([]string, error) {
	dir, base := Split(pattern)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Errorf("scanning directory %s for multiple files: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		ok, err := Match(base, e.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, dir+"/"+e.Name())
		}
	}
	if len(out) == 0 {
		return nil, errors.Errorf("%w: %s", ErrNoMatch, pattern)
	}
	sort.Strings(out)
	return out, nil
}
