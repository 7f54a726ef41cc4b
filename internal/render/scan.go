package render

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/oxhq/archc/internal/model"
)

// Predicates combines include and exclude glob patterns for a directory
// scan: a path matches when any include accepts it (no includes accept
// everything) and no exclude rejects it.
type Predicates struct {
	Includes []string
	Excludes []string
}

// Match reports whether the slash-separated relative path passes.
func (p Predicates) Match(rel string) (bool, error) {
	included := len(p.Includes) == 0
	for _, pattern := range p.Includes {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("render: bad include pattern %q: %w", pattern, err)
		}
		if ok {
			included = true
			break
		}
	}
	if !included {
		return false, nil
	}
	for _, pattern := range p.Excludes {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("render: bad exclude pattern %q: %w", pattern, err)
		}
		if ok {
			return false, nil
		}
	}
	return true, nil
}

// Scan walks the directory and returns the matching file paths relative to
// it, slash-separated and sorted. Read failures are fatal.
func Scan(fsys fs.FS, dir string, preds Predicates) ([]string, error) {
	var out []string
	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return model.ErrIO.New(fmt.Sprintf("scan %s: %v", path, err))
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return model.ErrIO.New(fmt.Sprintf("scan %s: %v", path, err))
		}
		rel = filepath.ToSlash(rel)
		ok, err := preds.Match(rel)
		if err != nil {
			return err
		}
		if ok {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// SplitPatterns parses a whitespace- or comma-separated pattern list
// attribute.
func SplitPatterns(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
