// Package pdf contains the PDF processing layer: inspection of uploaded files
// via the poppler-utils binaries and password operations via pdfcpu, plus the
// scratch-file workspace both of them operate on.
package pdf

import (
	"context"
	"errors"
)

var (
	// ErrInvalidPassword is returned when a decryption password is rejected.
	ErrInvalidPassword = errors.New("invalid pdf password")
	// ErrUnreadable is returned when a file cannot be analyzed as a PDF at all.
	ErrUnreadable = errors.New("unable to analyze pdf file")
)

// Info contains the metadata reported for a PDF file.
type Info struct {
	Encrypted  bool   `json:"encrypted"`
	Pages      int    `json:"pages"`
	Title      string `json:"title,omitempty"`
	Author     string `json:"author,omitempty"`
	PDFVersion string `json:"pdf_version,omitempty"`
	FileSize   int64  `json:"file_size"`
}

// Inspector reports metadata about PDF files on disk.
type Inspector interface {
	// Info returns document metadata, including whether the file is
	// password protected. Files protected with a user password are still
	// reported (Encrypted=true) even though their content is unreadable.
	Info(ctx context.Context, path string) (*Info, error)

	// Text extracts the plain text content of an unprotected PDF.
	Text(ctx context.Context, path string) (string, error)
}

// Engine performs password operations on PDF files on disk.
type Engine interface {
	// Decrypt writes a password-free copy of the protected file at in to out.
	// A rejected password yields ErrInvalidPassword.
	Decrypt(ctx context.Context, in, out, password string) error

	// Encrypt writes a password-protected copy of the file at in to out.
	// ownerPassword may equal userPassword.
	Encrypt(ctx context.Context, in, out, userPassword, ownerPassword string) error
}
