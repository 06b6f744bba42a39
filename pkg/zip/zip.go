// Package zip streams directories of downloaded payloads as zip archives.
package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Entry is one archived file.
type Entry struct {
	// Name is the path inside the archive.
	Name string
	// Path is the file on disk.
	Path string
}

// DirEntries maps file names below dir to entries stored under prefix.
func DirEntries(dir, prefix string, names []string) []Entry {
	out := make([]Entry, 0, len(names))
	for _, name := range names {
		archived := name
		if prefix != "" {
			archived = prefix + "/" + name
		}
		out = append(out, Entry{Name: archived, Path: filepath.Join(dir, name)})
	}
	return out
}

// Write streams entries to w as a deflated zip archive. It stops at the
// first entry that cannot be read.
func Write(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		if err := addFile(zw, e); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, e Entry) error {
	f, err := os.Open(e.Path)
	if err != nil {
		return fmt.Errorf("zip: open %s: %w", e.Name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("zip: stat %s: %w", e.Name, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = e.Name
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("zip: copy %s: %w", e.Name, err)
	}
	return nil
}
