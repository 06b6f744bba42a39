package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Artifact describes one listed output: a .bible file or a per-translation
// directory of raw or structured files.
type Artifact struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	FileCount int       `json:"fileCount,omitempty"`
	Modified  time.Time `json:"modified"`
}

// ListBible lists the assembled .bible files.
func (s *FileStore) ListBible() ([]Artifact, error) {
	entries, err := s.readDir(DirBible)
	if err != nil {
		return nil, err
	}
	var out []Artifact
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bible") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Artifact{Name: e.Name(), Type: DirBible, Size: info.Size(), Modified: info.ModTime()})
	}
	return out, nil
}

// ListDirs lists translation directories below top (DirRaw or DirJSON),
// counting files with the given extensions.
func (s *FileStore) ListDirs(top string, exts ...string) ([]Artifact, error) {
	entries, err := s.readDir(top)
	if err != nil {
		return nil, err
	}
	var out []Artifact
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files, size := s.countFiles(filepath.Join(s.basePath, top, e.Name()), exts)
		out = append(out, Artifact{Name: e.Name(), Type: top, Size: size, FileCount: files, Modified: info.ModTime()})
	}
	return out, nil
}

// Files lists regular files directly below dirKey, sorted by name.
func (s *FileStore) Files(dirKey string) ([]string, error) {
	entries, err := s.readDir(dirKey)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (s *FileStore) readDir(key string) ([]os.DirEntry, error) {
	dir, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", key, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (s *FileStore) countFiles(dir string, exts []string) (int, int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	var count int
	var size int64
	for _, e := range entries {
		if !e.Type().IsRegular() || !hasExt(e.Name(), exts) {
			continue
		}
		count++
		if info, err := e.Info(); err == nil {
			size += info.Size()
		}
	}
	return count, size
}

func hasExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
