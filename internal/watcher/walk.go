package watcher

import (
	"io/fs"
	"iter"
	"path/filepath"
)

// Walk yields root and every directory below it, parents before children.
// Symlinks are not followed. An entry that cannot be read is yielded with its
// error and the walk continues with its siblings; the consumer decides
// whether that is fatal. Each call starts a fresh walk.
func Walk(root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				if !yield(path, err) {
					return filepath.SkipAll
				}
				if entry != nil && entry.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !entry.IsDir() {
				return nil
			}
			if !yield(path, nil) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}
