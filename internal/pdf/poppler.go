package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"pdfunlocker/internal/config"
)

// PopplerInspector implements Inspector by shelling out to the poppler-utils
// binaries (pdfinfo, pdftotext) installed in the runtime image.
type PopplerInspector struct {
	pdfinfo   string
	pdftotext string
	timeout   time.Duration
}

var _ Inspector = (*PopplerInspector)(nil)

// NewPopplerInspector creates an Inspector backed by poppler-utils.
// It verifies the pdfinfo binary is resolvable so misconfigured deployments
// fail at startup rather than on the first request.
func NewPopplerInspector(cfg config.PDFConfig) (*PopplerInspector, error) {
	bin := cfg.PdfinfoPath
	if bin == "" {
		bin = "pdfinfo"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("pdfinfo not found: %w", err)
	}
	txt := cfg.PdftotextPath
	if txt == "" {
		txt = "pdftotext"
	}
	timeout := time.Duration(cfg.ExecTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PopplerInspector{pdfinfo: bin, pdftotext: txt, timeout: timeout}, nil
}

// Info runs pdfinfo and parses its key/value output.
// pdfinfo refuses to open files protected with a user password; that failure
// mode is reported as Encrypted=true rather than an error, since protection
// status is exactly what callers ask this method for.
func (p *PopplerInspector) Info(ctx context.Context, path string) (*Info, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.pdfinfo, path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("pdfinfo timed out: %w", ctx.Err())
		}
		if isPasswordError(stderr.String()) {
			info := &Info{Encrypted: true}
			if st, serr := os.Stat(path); serr == nil {
				info.FileSize = st.Size()
			}
			return info, nil
		}
		return nil, fmt.Errorf("%w: pdfinfo: %s", ErrUnreadable, firstLine(stderr.String()))
	}

	info := parsePdfinfoOutput(stdout.String())
	if info.FileSize == 0 {
		if st, err := os.Stat(path); err == nil {
			info.FileSize = st.Size()
		}
	}
	return info, nil
}

// Text runs pdftotext with stdout as the target file.
func (p *PopplerInspector) Text(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.pdftotext, "-q", path, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("pdftotext timed out: %w", ctx.Err())
		}
		if isPasswordError(stderr.String()) {
			return "", ErrInvalidPassword
		}
		return "", fmt.Errorf("%w: pdftotext: %s", ErrUnreadable, firstLine(stderr.String()))
	}
	return stdout.String(), nil
}

// parsePdfinfoOutput parses the "Key: value" lines emitted by pdfinfo.
func parsePdfinfoOutput(out string) *Info {
	info := &Info{}
	for _, line := range strings.Split(out, "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "Title":
			info.Title = val
		case "Author":
			info.Author = val
		case "Pages":
			if n, err := strconv.Atoi(val); err == nil {
				info.Pages = n
			}
		case "Encrypted":
			// "yes (print:no copy:no ...)" or "no"
			info.Encrypted = strings.HasPrefix(val, "yes")
		case "PDF version":
			info.PDFVersion = val
		case "File size":
			// "12345 bytes"
			if sz, _, found := strings.Cut(val, " "); found {
				if n, err := strconv.ParseInt(sz, 10, 64); err == nil {
					info.FileSize = n
				}
			}
		}
	}
	return info
}

// isPasswordError reports whether poppler stderr indicates a password problem.
func isPasswordError(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "incorrect password") || strings.Contains(s, "encrypted file")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
