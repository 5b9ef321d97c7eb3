package packaging

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// archiveEpoch is the modification time stamped on every entry. It is the
// earliest time the zip format can represent.
var archiveEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// archiveEntry is one file to add, keyed by its slash-separated name.
type archiveEntry struct {
	name string
	path string
	mode fs.FileMode
}

// collectEntries lists the regular files under root sorted by entry name.
func collectEntries(root string) ([]archiveEntry, error) {
	var entries []archiveEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, archiveEntry{
			name: filepath.ToSlash(rel),
			path: path,
			mode: normalizeMode(fi.Mode()),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries, nil
}

// normalizeMode keeps only the executable bit so umask differences between
// build hosts do not leak into the archive.
func normalizeMode(m fs.FileMode) fs.FileMode {
	if m.Perm()&0o111 != 0 {
		return 0o755
	}
	return 0o644
}

// writeArchive zips the regular files under srcDir into dest and returns the
// number of entries written. dest is replaced atomically.
func writeArchive(srcDir, dest string) (int, error) {
	entries, err := collectEntries(srcDir)
	if err != nil {
		return 0, errors.Wrapf(err, "list %s", srcDir)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, errors.Wrapf(err, "create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".tmp.*")
	if err != nil {
		return 0, errors.Wrap(err, "create temporary archive")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, e := range entries {
		if err := addEntry(zw, e); err != nil {
			return 0, errors.Wrapf(err, "add %s", e.name)
		}
	}
	if err := zw.Close(); err != nil {
		return 0, errors.Wrap(err, "finish archive")
	}

	if err := tmp.Chmod(0o644); err != nil {
		return 0, errors.Wrap(err, "chmod archive")
	}
	if err := tmp.Sync(); err != nil {
		return 0, errors.Wrap(err, "sync archive")
	}
	if err := tmp.Close(); err != nil {
		return 0, errors.Wrap(err, "close archive")
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return 0, errors.Wrapf(err, "rename archive to %s", dest)
	}
	committed = true
	return len(entries), fsyncDir(dir)
}

func addEntry(zw *zip.Writer, e archiveEntry) error {
	hdr := &zip.FileHeader{
		Name:     e.name,
		Method:   zip.Deflate,
		Modified: archiveEpoch,
	}
	hdr.SetMode(e.mode)

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	f, err := os.Open(e.path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return errors.Wrapf(err, "open %s", dir)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", dir)
	}
	return nil
}
