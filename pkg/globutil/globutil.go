// Package globutil expands -input file templates and computes the
// fixed-size chunk boundaries a Reader job needs (spec.md 4.3 job
// seeding). Templates may use doublestar's recursive "**" segments in
// addition to the single-component "*"/"?" wildcards a plain
// filepath.Glob would support.
package globutil

import (
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Expand resolves a glob template to a sorted list of matching file
// paths. Templates without any wildcard are returned as a single-element
// slice provided the file exists.
func Expand(template string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(template)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// Chunk is one fixed-size byte range of a file, except the last Chunk of
// a file which always has End == -1 (to EOF).
type Chunk struct {
	Start int64
	End   int64 // -1 means "to EOF"
}

// PlanChunks computes the chunk boundaries for a file of size
// given chunkBytes (> 0): floor(size/chunkBytes)-1 fixed chunks of
// chunkBytes, followed by one final chunk spanning to EOF. When the
// file is smaller than 2 chunks, a single to-EOF chunk is returned
// (spec.md 4.3).
func PlanChunks(size int64, chunkBytes int64) []Chunk {
	if chunkBytes <= 0 {
		return []Chunk{{Start: 0, End: -1}}
	}

	fixedCount := size/chunkBytes - 1
	if fixedCount < 0 {
		fixedCount = 0
	}

	chunks := make([]Chunk, 0, fixedCount+1)
	var start int64
	for i := int64(0); i < fixedCount; i++ {
		chunks = append(chunks, Chunk{Start: start, End: start + chunkBytes})
		start += chunkBytes
	}
	chunks = append(chunks, Chunk{Start: start, End: -1})
	return chunks
}

// FileSize stats path and returns its size in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
