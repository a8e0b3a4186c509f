package tree

import (
	"errors"
	"strings"
)

// ErrInvalidPath is returned for empty paths, empty segments and dot segments
var ErrInvalidPath = errors.New("tree: invalid path")

// Join builds a slash-delimited path from segments
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Parent returns the parent path ("" for a root-level key)
func Parent(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Key returns the last segment of path
func Key(path string) string {
	return path[strings.LastIndexByte(path, '/')+1:]
}

// IsWithin reports whether path equals root or lies below it
func IsWithin(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

// overlaps reports whether a change at changed is visible to a watcher of watched:
// the same node, a descendant, or an ancestor (subtree replace/remove).
func overlaps(watched, changed string) bool {
	return IsWithin(changed, watched) || IsWithin(watched, changed)
}

func validatePath(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrInvalidPath
		}
	}
	return nil
}

// subtreeBounds returns the half-open key range [lo, hi) holding every
// descendant of path. '0' is the byte after '/'.
func subtreeBounds(path string) (lo, hi string) {
	return path + "/", path + "0"
}
