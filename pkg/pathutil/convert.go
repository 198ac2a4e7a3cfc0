// Package pathutil resolves a schema script's relative paths to absolute
// ones.
//
// pymala resolves every -input glob, -output path, and sidecar config
// lookup against the schema script's own directory, so a script can be
// invoked from anywhere and still find its files.
package pathutil

import (
	"path/filepath"
)

// ToAbsolute resolves path against baseDir if it is not already absolute.
// Used to resolve the -input glob template and the -output path relative
// to the schema script's directory.
func ToAbsolute(path, baseDir string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(baseDir, path))
}
