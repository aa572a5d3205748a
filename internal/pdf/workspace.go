package pdf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Workspace manages the scratch directory where uploads are staged and
// processed outputs are written before being streamed back to the client.
// Files are short-lived; a janitor goroutine sweeps anything older than the
// configured TTL so failed requests cannot leak disk space.
type Workspace struct {
	dir string
	ttl time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// FilePair is a staged input file and the output path reserved next to it.
type FilePair struct {
	// Base is the sanitized stem of the original filename, without extension.
	Base   string
	Input  string
	Output string
}

// NewWorkspace ensures dir exists with mode 0755 and returns a workspace over it.
func NewWorkspace(dir string, ttl time.Duration) (*Workspace, error) {
	if dir == "" {
		return nil, fmt.Errorf("workspace dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}
	// MkdirAll applies the umask; pin the documented mode explicitly.
	if err := os.Chmod(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chmod workspace dir: %w", err)
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Workspace{
		dir:  dir,
		ttl:  ttl,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}, nil
}

// Dir returns the scratch directory path.
func (w *Workspace) Dir() string { return w.dir }

// SaveUpload stages the uploaded content as an input file and reserves an
// output path carrying the given suffix, e.g. "unlocked" yields
// output_<base>_<uid>_unlocked.pdf.
func (w *Workspace) SaveUpload(r io.Reader, originalFilename, outputSuffix string) (FilePair, error) {
	base := sanitizeBase(originalFilename)
	uid := uuid.NewString()

	p := FilePair{
		Base:   base,
		Input:  filepath.Join(w.dir, fmt.Sprintf("input_%s_%s.pdf", base, uid)),
		Output: filepath.Join(w.dir, fmt.Sprintf("output_%s_%s_%s.pdf", base, uid, outputSuffix)),
	}

	f, err := os.OpenFile(p.Input, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return FilePair{}, fmt.Errorf("create input file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p.Input)
		return FilePair{}, fmt.Errorf("write input file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p.Input)
		return FilePair{}, fmt.Errorf("close input file: %w", err)
	}
	return p, nil
}

// ReleaseInput removes only the staged input, leaving the output for the
// caller to stream; the janitor reclaims the output after the TTL.
func (w *Workspace) ReleaseInput(p FilePair) {
	if p.Input != "" {
		os.Remove(p.Input)
	}
}

// Release removes both files of a pair, ignoring ones that were never written.
func (w *Workspace) Release(p FilePair) {
	if p.Input != "" {
		os.Remove(p.Input)
	}
	if p.Output != "" {
		os.Remove(p.Output)
	}
}

// StartJanitor launches the TTL sweeper. Call StopJanitor on shutdown.
func (w *Workspace) StartJanitor() {
	interval := w.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		defer close(w.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-t.C:
				w.Sweep(time.Now())
			}
		}
	}()
}

// StopJanitor stops the sweeper and waits for it to exit.
func (w *Workspace) StopJanitor() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

// Sweep removes scratch files whose modification time is older than the TTL
// relative to now. It returns the number of files removed.
func (w *Workspace) Sweep(now time.Time) int {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(fi.ModTime()) > w.ttl {
			if os.Remove(filepath.Join(w.dir, e.Name())) == nil {
				removed++
			}
		}
	}
	return removed
}

// sanitizeBase reduces an uploaded filename to a safe stem for scratch names.
func sanitizeBase(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
