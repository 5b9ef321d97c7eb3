package core

import (
	"errors"
	"hash"
	"io"
	"io/fs"
	"os"
)

// chunkSize bounds the read buffer so memory use does not grow with file size.
const chunkSize = 1024 * 1024

// FileHasher streams single files into a digest accumulator.
type FileHasher struct {
	// Algorithm is used when the caller does not supply an accumulator.
	Algorithm Algorithm
}

// NewFileHasher creates a FileHasher for the given algorithm.
func NewFileHasher(alg Algorithm) *FileHasher {
	return &FileHasher{Algorithm: alg}
}

// Hash streams the file at path into acc and returns the finalized digest.
// A nil acc starts from a fresh accumulator.
//
// Returns a NotFound error if path does not name an existing regular file.
func (h *FileHasher) Hash(path string, acc hash.Hash) (Digest, error) {
	if acc == nil {
		acc = h.Algorithm.New()
	}
	if err := h.Feed(acc, path); err != nil {
		return nil, err
	}
	return Digest(acc.Sum(nil)), nil
}

// Feed writes the content of the file at path into acc without finalizing it.
// Only content is read; mtime and permissions never reach the digest.
func (h *FileHasher) Feed(acc hash.Hash, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFoundf("", err, "file %q does not exist", path)
		}
		return internalf(err, "stat %q", path)
	}
	if !info.Mode().IsRegular() {
		return notFoundf("", nil, "%q is not a regular file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFoundf("", err, "file %q does not exist", path)
		}
		return internalf(err, "open %q", path)
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return internalf(rerr, "read %q", path)
		}
	}
}
