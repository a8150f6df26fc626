// Package scanner walks a local directory tree and produces a
// fingerprint.FileMap, honoring ignore patterns and the preprocessor.
package scanner

import (
	"os"
	"path/filepath"

	"htdeploy/internal/fingerprint"
	"htdeploy/internal/logger"
	"htdeploy/internal/pattern"
	"htdeploy/internal/preprocess"
)

// Preprocessor is the subset of *preprocess.Preprocessor the scanner
// needs, so tests can supply a stub.
type Preprocessor interface {
	Process(absPath, relPath string) (string, error)
}

var _ Preprocessor = (*preprocess.Preprocessor)(nil)

// Options configures a Scan.
type Options struct {
	IgnorePatterns []string
	Preprocessor   Preprocessor // may be nil
	Logger         *logger.Logger
}

// Scan walks root depth-first and returns the resulting FileMap.
// Unreadable entries are silently skipped. Traversal order within a
// directory follows os.ReadDir, which is already lexicographically
// sorted, so results are deterministic for a fixed filesystem state.
func Scan(root string, opts Options) (fingerprint.FileMap, error) {
	fm := fingerprint.FileMap{}
	log := opts.Logger
	if log == nil {
		log = logger.Default
	}

	var walk func(dir, relDir string) error
	walk = func(dir, relDir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil
		}
		for _, entry := range entries {
			name := entry.Name()
			if name == "." || name == ".." {
				continue
			}
			relPath := filepath.Join(relDir, name)
			isDir := entry.IsDir()

			if pattern.Matches(filepath.ToSlash(relPath), opts.IgnorePatterns, isDir) {
				log.Ignoredf("%s", relPath)
				continue
			}

			absPath := filepath.Join(dir, name)
			if isDir {
				fm[fingerprint.ToPosix(relPath, true)] = fingerprint.DirSentinel
				if err := walk(absPath, relPath); err != nil {
					return err
				}
				continue
			}

			hashSource := absPath
			if opts.Preprocessor != nil {
				if processed, err := opts.Preprocessor.Process(absPath, filepath.ToSlash(relPath)); err == nil {
					hashSource = processed
				} else {
					log.Warnf("preprocess failed for %s: %v", relPath, err)
				}
			}

			digest, err := fingerprint.HashFile(hashSource)
			if err != nil {
				continue
			}
			fm[fingerprint.ToPosix(relPath, false)] = digest
		}
		return nil
	}

	if err := walk(root, ""); err != nil {
		return nil, err
	}
	return fm, nil
}
