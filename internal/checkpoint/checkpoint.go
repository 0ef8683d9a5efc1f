// Package checkpoint implements the atomic snapshot/load cycle, ported
// from original_source/src/crawler/checkpoint.cpp's save/load pair.
package checkpoint

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/connoryin/crawler/internal/frontier"
	"github.com/connoryin/crawler/internal/scheduled"
	"github.com/connoryin/crawler/internal/urlmodel"
)

// Snapshot writes a checkpoint of f and s to path: acquire frontier then
// scheduled-set state (in that lock order), write to a temp file in the
// system temp directory, then atomically replace path. Locks are held for
// the full duration of the write — a stop-the-world checkpoint.
func Snapshot(path string, f *frontier.Frontier, s *scheduled.BloomSet, numCrawledTotal int) error {
	tmpPath := filepath.Join(os.TempDir(), "crawler-checkpoint-"+uuid.NewString())
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	f.Lock()
	defer f.Unlock()

	urls := f.SnapshotLocked()

	w := bufio.NewWriter(tmp)
	if _, err := fmt.Fprintf(w, "%d %d\n", numCrawledTotal, len(urls)); err != nil {
		tmp.Close()
		return err
	}
	for _, u := range urls {
		if _, err := fmt.Fprintf(w, "%s\n", u.String()); err != nil {
			tmp.Close()
			return err
		}
	}
	if _, err := w.WriteString("\n"); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if _, err := s.WriteTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return atomicCopy(tmpPath, path)
}

// atomicCopy copies src's contents to a fresh file at dst then renames it
// into place, so a reader never observes a partially-written path.
func atomicCopy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	stagePath := dst + ".tmp-" + uuid.NewString()
	out, err := os.Create(stagePath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(stagePath)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(stagePath)
		return err
	}
	return os.Rename(stagePath, dst)
}

// Result is the counters a Load recovers, for the caller to prime its own
// progress state (e.g. the worker pool's artifact sequence).
type Result struct {
	NumCrawledTotal int
	FrontierSize    int
}

// Load reads a checkpoint written by Snapshot: counters, then that many
// URL strings (skipping individually malformed ones), then the raw Bloom
// byte stream read directly into s. A missing or unopenable file is a
// hard failure.
func Load(path string, f *frontier.Frontier, s *scheduled.BloomSet) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer file.Close()

	r := bufio.NewReader(file)

	var numCrawledTotal, numLinks int
	if _, err := fmt.Fscanf(r, "%d %d\n", &numCrawledTotal, &numLinks); err != nil {
		return Result{}, fmt.Errorf("checkpoint: malformed header: %w", err)
	}

	for i := 0; i < numLinks; i++ {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return Result{}, fmt.Errorf("checkpoint: truncated URL section: %w", err)
		}
		line = trimNewline(line)
		u, err := urlmodel.Parse(line)
		if err != nil || !u.Absolute() {
			continue
		}
		f.Insert(u)
	}

	// consume the blank separator line
	if _, err := r.ReadString('\n'); err != nil {
		return Result{}, fmt.Errorf("checkpoint: missing separator: %w", err)
	}

	if _, err := s.ReadFrom(r); err != nil {
		return Result{}, fmt.Errorf("checkpoint: malformed bloom stream: %w", err)
	}

	return Result{NumCrawledTotal: numCrawledTotal, FrontierSize: numLinks}, nil
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}
