// Package discover finds merge inputs on disk and maps them to archive entry
// names.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/mergetools/mergecat/internal/archive"
)

// Dir walks dir recursively and returns the regular files whose base name
// matches pattern (filepath.Match syntax; "*" matches everything), in sorted
// order. Files or directories matching an exclude pattern are skipped,
// excluded directories without descending into them.
func Dir(dir, pattern string, exclude []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	if pattern == "" {
		pattern = "*"
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if excluded(d.Name(), exclude) {
			if d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			if !d.IsDir() {
				return nil
			}
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		matched, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if matched {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, nil
}

func excluded(name string, exclude []string) bool {
	for _, pattern := range exclude {
		if name == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// NamesByBase names each file by its base name. Two files sharing a base name
// collapse to one entry at merge time; callers wanting uniqueness should use
// NamesRelativeTo.
func NamesByBase(files []string) []archive.Entry {
	entries := make([]archive.Entry, 0, len(files))
	for _, f := range files {
		entries = append(entries, archive.Entry{Name: filepath.Base(f), Source: f})
	}
	return entries
}

// NamesByPath names each file by its path as given.
func NamesByPath(files []string) []archive.Entry {
	entries := make([]archive.Entry, 0, len(files))
	for _, f := range files {
		entries = append(entries, archive.Entry{Name: f, Source: f})
	}
	return entries
}

// NamesRelativeTo names each file by its path relative to root. Entry names
// use forward slashes regardless of platform so archives are portable.
func NamesRelativeTo(files []string, root string) ([]archive.Entry, error) {
	entries := make([]archive.Entry, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			return nil, fmt.Errorf("relativizing %s to %s: %w", f, root, err)
		}
		entries = append(entries, archive.Entry{Name: filepath.ToSlash(rel), Source: f})
	}
	return entries, nil
}

// AssertExist fails fast if any path is not an existing regular file. The
// merge codec itself skips missing inputs; the CLI runs this first so a typo
// surfaces before an archive is half-declared.
func AssertExist(files []string) error {
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("input %s not found", f)
		}
	}
	return nil
}
