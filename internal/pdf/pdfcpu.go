package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// CPUEngine implements Engine using the pure-Go pdfcpu library.
// AES-256 is used for newly encrypted files; decryption accepts whatever
// algorithm the source document carries.
type CPUEngine struct{}

var _ Engine = (*CPUEngine)(nil)

// NewCPUEngine returns a pdfcpu-backed Engine.
func NewCPUEngine() *CPUEngine {
	return &CPUEngine{}
}

// Decrypt removes password protection from the file at in, writing the
// password-free result to out. The password is accepted as either the user or
// the owner password of the document.
func (e *CPUEngine) Decrypt(ctx context.Context, in, out, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conf := model.NewAESConfiguration(password, password, 256)
	if err := api.DecryptFile(in, out, conf); err != nil {
		if isPdfcpuPasswordError(err) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("%w: decrypt: %v", ErrUnreadable, err)
	}
	return nil
}

// Encrypt writes a password-protected copy of the file at in to out.
func (e *CPUEngine) Encrypt(ctx context.Context, in, out, userPassword, ownerPassword string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ownerPassword == "" {
		ownerPassword = userPassword
	}
	conf := model.NewAESConfiguration(userPassword, ownerPassword, 256)
	if err := api.EncryptFile(in, out, conf); err != nil {
		return fmt.Errorf("%w: encrypt: %v", ErrUnreadable, err)
	}
	return nil
}

// isPdfcpuPasswordError reports whether a pdfcpu error means the supplied
// password was rejected rather than the file being structurally broken.
func isPdfcpuPasswordError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "password")
}
