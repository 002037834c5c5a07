// Package archive keeps a rotating shelf of gzipped autosave copies so a
// corrupted live save never costs more than one archive cycle of
// progress.
package archive

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Archiver snapshots the live save file into timestamped gzip copies and
// prunes the shelf down to a fixed count.
type Archiver struct {
	savePath string
	dir      string
	keep     int
}

// New creates an archiver for the save file at savePath. keep bounds how
// many archives survive rotation; values below 1 keep one.
func New(savePath, dir string, keep int) *Archiver {
	if keep < 1 {
		keep = 1
	}
	return &Archiver{savePath: savePath, dir: dir, keep: keep}
}

// Cycle archives the current save file and rotates old copies. A missing
// save file is not an error; there is simply nothing to shelve yet.
func (a *Archiver) Cycle() error {
	if _, err := os.Stat(a.savePath); os.IsNotExist(err) {
		return nil
	}
	path, err := a.compress()
	if err != nil {
		return err
	}
	log.Printf("archive: shelved %s", path)
	a.rotate()
	return nil
}

// compress writes dir/<base>.<timestamp>.gz from the live save file.
func (a *Archiver) compress() (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", a.dir, err)
	}

	src, err := os.Open(a.savePath)
	if err != nil {
		return "", fmt.Errorf("open save: %w", err)
	}
	defer src.Close()

	stamp := time.Now().UTC().Format("20060102T150405")
	path := filepath.Join(a.dir, fmt.Sprintf("%s.%s.gz", filepath.Base(a.savePath), stamp))

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		return "", fmt.Errorf("compress: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return path, nil
}

// rotate deletes the oldest archives until at most keep remain. The
// timestamp in the name makes lexicographic order chronological.
func (a *Archiver) rotate() {
	pattern := filepath.Join(a.dir, filepath.Base(a.savePath)+".*.gz")
	files, err := filepath.Glob(pattern)
	if err != nil || len(files) <= a.keep {
		return
	}

	sort.Strings(files)
	for _, f := range files[:len(files)-a.keep] {
		if err := os.Remove(f); err != nil {
			log.Printf("archive: remove %s: %v", f, err)
			continue
		}
		log.Printf("archive: rotated out %s", f)
	}
}
