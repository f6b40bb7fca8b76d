package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// source is one discovered input. rel is the path relative to the directory
// argument it was found under, or the base name for file arguments.
type source struct {
	path string
	rel  string
}

// discoverImageFiles expands files and directories into a sorted,
// de-duplicated list of inputs. Directory contents are limited to supported
// image extensions and PDFs; explicit file arguments are taken as given.
func discoverImageFiles(args []string, recursive bool, includePatterns, excludePatterns []string) ([]source, error) {
	var found []source
	seen := make(map[string]bool)
	add := func(s source) {
		key := filepath.Clean(s.path)
		if seen[key] {
			return
		}
		seen[key] = true
		found = append(found, s)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			files, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		} else if shouldIncludeFile(arg, includePatterns, excludePatterns) {
			add(source{path: arg, rel: filepath.Base(arg)})
		}
	}

	slices.SortFunc(found, func(a, b source) int {
		switch {
		case a.path < b.path:
			return -1
		case a.path > b.path:
			return 1
		}
		return 0
	})
	return found, nil
}

// discoverInDirectory walks dir, descending only when recursive is set.
func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]source, error) {
	var files []source

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !utils.IsSupportedInput(path) {
			return nil
		}
		if shouldIncludeFile(path, includePatterns, excludePatterns) {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, source{path: path, rel: rel})
		}
		return nil
	}

	return files, filepath.WalkDir(dir, walkFn)
}

// shouldIncludeFile determines if a file should be included based on include/exclude patterns.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern checks the base name of path against patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
