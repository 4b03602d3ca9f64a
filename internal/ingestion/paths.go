package ingestion

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/54b3r/ragqa-go/internal/loader"
)

// ExpandPaths resolves CLI arguments into a sorted, de-duplicated list of
// files the loader can read. Each pattern may be a file, a directory (walked
// recursively) or a doublestar glob such as "docs/**/*.pdf".
//
// A file named explicitly is returned even when its extension is unsupported
// so the caller reports the failure; files found through a directory or glob
// are filtered by extension. A pattern that matches nothing is an error.
func ExpandPaths(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, pattern := range patterns {
		info, err := os.Stat(pattern)
		switch {
		case err == nil && info.IsDir():
			if err := walkDir(pattern, add); err != nil {
				return nil, err
			}
			continue
		case err == nil:
			add(pattern)
			continue
		case !hasMeta(pattern):
			return nil, fmt.Errorf("ingestion: %s: %w", pattern, err)
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("ingestion: bad pattern %q: %w", pattern, err)
		}
		found := false
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && !fi.IsDir() && loader.Supported(m) {
				add(m)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("ingestion: pattern %q matched no supported files (%s)", pattern, strings.Join(loader.Extensions(), ", "))
		}
	}

	slices.Sort(out)
	return out, nil
}

func walkDir(root string, add func(string)) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if loader.Supported(path) {
			add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ingestion: walk %s: %w", root, err)
	}
	return nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
