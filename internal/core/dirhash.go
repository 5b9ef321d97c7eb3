package core

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExclusionSet lists entries that never contribute to a directory digest.
type ExclusionSet struct {
	// Segments excludes any file with a path segment equal to one of these
	// names (matched against the root-relative path only).
	Segments []string

	// Names excludes files whose base name equals one of these names.
	Names []string
}

// DefaultExclusions skips version-control metadata, the placeholder keep
// marker, and the dependency manifest (hashed separately as a file input).
var DefaultExclusions = ExclusionSet{
	Segments: []string{".git"},
	Names:    []string{".gitkeep", "requirements.txt"},
}

// Excludes reports whether the slash-separated, root-relative path rel is
// excluded. rel must not carry a leading slash.
func (e ExclusionSet) Excludes(rel string) bool {
	parts := strings.Split(rel, "/")
	for _, part := range parts[:len(parts)-1] {
		if e.excludesSegment(part) {
			return true
		}
	}
	base := parts[len(parts)-1]
	if e.excludesSegment(base) {
		return true
	}
	for _, n := range e.Names {
		if base == n {
			return true
		}
	}
	return false
}

func (e ExclusionSet) excludesSegment(seg string) bool {
	for _, s := range e.Segments {
		if seg == s {
			return true
		}
	}
	return false
}

// FileEntry is a file observed during a tree walk.
type FileEntry struct {
	// RelPath is the path relative to the walk root in its hashed encoding:
	// forward slashes with a single leading slash ("/src/app.py").
	RelPath string

	// Path is the OS path used to read the content.
	Path string
}

// DirectoryHasher folds every non-excluded file beneath a root into one digest.
//
// For each file, in sorted order, the digest of its relative path is written
// into the running accumulator, followed by the file content. Renames,
// additions, and deletions therefore all perturb the result even though a
// single accumulator is used.
type DirectoryHasher struct {
	Algorithm  Algorithm
	Exclusions ExclusionSet

	files *FileHasher
}

// NewDirectoryHasher creates a DirectoryHasher with DefaultExclusions.
func NewDirectoryHasher(alg Algorithm) *DirectoryHasher {
	return &DirectoryHasher{
		Algorithm:  alg,
		Exclusions: DefaultExclusions,
		files:      NewFileHasher(alg),
	}
}

// Hash returns the digest of the tree rooted at root.
//
// Returns a NotFound error if root does not exist. A tree with no files left
// after exclusions yields the digest of zero inputs.
func (h *DirectoryHasher) Hash(root string) (Digest, error) {
	entries, err := h.Entries(root)
	if err != nil {
		return nil, err
	}

	acc := h.Algorithm.New()
	for _, entry := range entries {
		acc.Write(h.Algorithm.Sum([]byte(entry.RelPath)))
		if err := h.fileHasher().Feed(acc, entry.Path); err != nil {
			return nil, err
		}
	}
	return Digest(acc.Sum(nil)), nil
}

// Entries lists the files that contribute to the digest of root, in hashing
// order.
//
// Ordering: files are grouped by containing directory; directories are
// visited in lexicographic order of their relative path, and file names
// within a directory are sorted. The OS enumeration order is never used.
func (h *DirectoryHasher) Entries(root string) ([]FileEntry, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFoundf("", err, "directory %q does not exist", root)
		}
		return nil, internalf(err, "stat %q", root)
	}
	if !info.IsDir() {
		return []FileEntry{}, nil
	}

	byDir := make(map[string][]FileEntry)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if h.Exclusions.excludesSegment(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if h.Exclusions.Excludes(rel) {
			return nil
		}
		if !d.Type().IsRegular() {
			// Symlinks to files are followed; links to directories, dangling
			// links, sockets, and devices hold no content.
			target, err := os.Stat(path)
			if err != nil || !target.Mode().IsRegular() {
				return nil
			}
		}

		dir := ""
		if i := strings.LastIndexByte(rel, '/'); i >= 0 {
			dir = "/" + rel[:i]
		}
		byDir[dir] = append(byDir[dir], FileEntry{RelPath: "/" + rel, Path: path})
		return nil
	})
	if err != nil {
		return nil, internalf(err, "walking %q", root)
	}

	// CRITICAL: sort explicitly at every level.
	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	entries := make([]FileEntry, 0)
	for _, dir := range dirs {
		files := byDir[dir]
		sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
		entries = append(entries, files...)
	}
	return entries, nil
}

func (h *DirectoryHasher) fileHasher() *FileHasher {
	if h.files == nil || h.files.Algorithm != h.Algorithm {
		h.files = NewFileHasher(h.Algorithm)
	}
	return h.files
}
