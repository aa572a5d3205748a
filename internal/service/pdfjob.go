package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"pdfunlocker/internal/model"
	"pdfunlocker/internal/pdf"
	"pdfunlocker/internal/repository"
	"pdfunlocker/internal/storage"
)

var (
	ErrIDRequired       = errors.New("id is required")
	ErrNotFound         = errors.New("job not found")
	ErrReaderNil        = errors.New("reader is nil")
	ErrNotPDF           = errors.New("file must be a PDF")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooShort = errors.New("password must be at least 4 characters long")
	ErrAlreadyProtected = errors.New("pdf is already password protected")
	ErrVerifyFailed     = errors.New("output verification failed")
	ErrNoArtifact       = errors.New("job has no archived output")
)

const (
	minPasswordLen  = 4
	textPreviewMax  = 2000
	downloadExpiry  = 15 * time.Minute
	archivePrefix   = "processed"
	inspectorMethod = "pdfinfo"
)

// CheckResult is the response body for protection checks.
type CheckResult struct {
	IsProtected bool   `json:"is_protected"`
	MethodUsed  string `json:"method_used"`
	Message     string `json:"message"`
	JobID       string `json:"job_id,omitempty"`
}

// ProcessResult describes a processed file ready to be streamed to the client.
// Path points into the workspace; the janitor reclaims it after the TTL.
type ProcessResult struct {
	Path         string
	DownloadName string
	Size         int64
	JobID        string
}

// InspectResult is the response body for metadata/text inspection.
type InspectResult struct {
	Filename    string    `json:"filename"`
	Info        *pdf.Info `json:"info"`
	TextPreview string    `json:"text_preview,omitempty"`
	JobID       string    `json:"job_id,omitempty"`
}

// JobListResult is the service-level DTO for paginated jobs.
type JobListResult struct {
	Items []model.Job `json:"data"`
	Total int         `json:"total"`
}

// PDFService defines the use cases for handling PDF uploads and job history.
type PDFService interface {
	// CheckProtected reports whether an uploaded PDF is password protected.
	CheckProtected(ctx context.Context, r io.Reader, originalFilename string, size int64) (*CheckResult, error)

	// RemovePassword produces a password-free copy of a protected upload.
	// Unprotected uploads pass through unchanged.
	RemovePassword(ctx context.Context, r io.Reader, originalFilename string, size int64, password string) (*ProcessResult, error)

	// AddPassword produces a password-protected copy of an upload.
	// ownerPassword may be empty, in which case the user password is reused.
	AddPassword(ctx context.Context, r io.Reader, originalFilename string, size int64, password, ownerPassword string) (*ProcessResult, error)

	// Inspect returns metadata and a text preview for an upload.
	Inspect(ctx context.Context, r io.Reader, originalFilename string, size int64) (*InspectResult, error)

	// ListJobs returns job history using limit/offset and a total count.
	ListJobs(ctx context.Context, limit, offset int) (*JobListResult, error)

	// GetJob returns a single job by its ID.
	GetJob(ctx context.Context, id string) (*model.Job, error)

	// DeleteJob removes a job and its archived output, if any.
	DeleteJob(ctx context.Context, id string) error

	// JobDownloadURL returns a presigned URL for a job's archived output.
	JobDownloadURL(ctx context.Context, id string) (string, error)
}

// pdfService is a concrete implementation of PDFService.
type pdfService struct {
	ws        *pdf.Workspace
	inspector pdf.Inspector
	engine    pdf.Engine
	repo      repository.JobRepository
	store     storage.Storage
}

// NewPDFService constructs a new PDFService.
func NewPDFService(ws *pdf.Workspace, inspector pdf.Inspector, engine pdf.Engine, repo repository.JobRepository, store storage.Storage) PDFService {
	return &pdfService{ws: ws, inspector: inspector, engine: engine, repo: repo, store: store}
}

func (s *pdfService) CheckProtected(ctx context.Context, r io.Reader, originalFilename string, size int64) (*CheckResult, error) {
	if err := validateUpload(r, originalFilename); err != nil {
		return nil, err
	}

	pair, err := s.ws.SaveUpload(r, originalFilename, "check")
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	defer s.ws.Release(pair)

	info, err := s.inspector.Info(ctx, pair.Input)
	if err != nil {
		s.recordJob(ctx, originalFilename, model.OperationCheck, size, false, "", err)
		return nil, err
	}

	msg := "PDF is not password protected"
	if info.Encrypted {
		msg = "PDF is password protected"
	}
	job := s.recordJob(ctx, originalFilename, model.OperationCheck, size, info.Encrypted, "", nil)

	return &CheckResult{
		IsProtected: info.Encrypted,
		MethodUsed:  inspectorMethod,
		Message:     msg,
		JobID:       job,
	}, nil
}

func (s *pdfService) RemovePassword(ctx context.Context, r io.Reader, originalFilename string, size int64, password string) (*ProcessResult, error) {
	if err := validateUpload(r, originalFilename); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}

	pair, err := s.ws.SaveUpload(r, originalFilename, "unlocked")
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	info, err := s.inspector.Info(ctx, pair.Input)
	if err != nil {
		s.ws.Release(pair)
		s.recordJob(ctx, originalFilename, model.OperationUnlock, size, false, "", err)
		return nil, err
	}

	if !info.Encrypted {
		// Nothing to remove; pass the file through unchanged.
		if err := copyFile(pair.Input, pair.Output); err != nil {
			s.ws.Release(pair)
			return nil, fmt.Errorf("copy unprotected file: %w", err)
		}
	} else {
		if err := s.engine.Decrypt(ctx, pair.Input, pair.Output, password); err != nil {
			s.ws.Release(pair)
			s.recordJob(ctx, originalFilename, model.OperationUnlock, size, true, "", err)
			return nil, err
		}
		// The unlocked copy must open without a password.
		vinfo, err := s.inspector.Info(ctx, pair.Output)
		if err != nil || vinfo.Encrypted {
			s.ws.Release(pair)
			s.recordJob(ctx, originalFilename, model.OperationUnlock, size, true, "", ErrVerifyFailed)
			return nil, fmt.Errorf("%w: unlocked output is still encrypted", ErrVerifyFailed)
		}
	}

	key := s.archive(ctx, pair.Output, originalFilename)
	job := s.recordJob(ctx, originalFilename, model.OperationUnlock, size, info.Encrypted, key, nil)
	s.ws.ReleaseInput(pair)

	outSize := fileSize(pair.Output)
	return &ProcessResult{
		Path:         pair.Output,
		DownloadName: pair.Base + "_unlocked.pdf",
		Size:         outSize,
		JobID:        job,
	}, nil
}

func (s *pdfService) AddPassword(ctx context.Context, r io.Reader, originalFilename string, size int64, password, ownerPassword string) (*ProcessResult, error) {
	if err := validateUpload(r, originalFilename); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if len(password) < minPasswordLen {
		return nil, ErrPasswordTooShort
	}

	pair, err := s.ws.SaveUpload(r, originalFilename, "protected")
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	info, err := s.inspector.Info(ctx, pair.Input)
	if err != nil {
		s.ws.Release(pair)
		s.recordJob(ctx, originalFilename, model.OperationProtect, size, false, "", err)
		return nil, err
	}
	if info.Encrypted {
		s.ws.Release(pair)
		s.recordJob(ctx, originalFilename, model.OperationProtect, size, true, "", ErrAlreadyProtected)
		return nil, ErrAlreadyProtected
	}

	if err := s.engine.Encrypt(ctx, pair.Input, pair.Output, password, ownerPassword); err != nil {
		s.ws.Release(pair)
		s.recordJob(ctx, originalFilename, model.OperationProtect, size, false, "", err)
		return nil, err
	}

	// The protected copy must refuse to open without a password.
	vinfo, err := s.inspector.Info(ctx, pair.Output)
	if err != nil || !vinfo.Encrypted {
		s.ws.Release(pair)
		s.recordJob(ctx, originalFilename, model.OperationProtect, size, false, "", ErrVerifyFailed)
		return nil, fmt.Errorf("%w: protected output is not encrypted", ErrVerifyFailed)
	}

	key := s.archive(ctx, pair.Output, originalFilename)
	job := s.recordJob(ctx, originalFilename, model.OperationProtect, size, false, key, nil)
	s.ws.ReleaseInput(pair)

	outSize := fileSize(pair.Output)
	return &ProcessResult{
		Path:         pair.Output,
		DownloadName: pair.Base + "_protected.pdf",
		Size:         outSize,
		JobID:        job,
	}, nil
}

func (s *pdfService) Inspect(ctx context.Context, r io.Reader, originalFilename string, size int64) (*InspectResult, error) {
	if err := validateUpload(r, originalFilename); err != nil {
		return nil, err
	}

	pair, err := s.ws.SaveUpload(r, originalFilename, "inspect")
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	defer s.ws.Release(pair)

	info, err := s.inspector.Info(ctx, pair.Input)
	if err != nil {
		s.recordJob(ctx, originalFilename, model.OperationInspect, size, false, "", err)
		return nil, err
	}

	var preview string
	if !info.Encrypted {
		text, err := s.inspector.Text(ctx, pair.Input)
		if err != nil {
			s.recordJob(ctx, originalFilename, model.OperationInspect, size, false, "", err)
			return nil, err
		}
		preview = truncatePreview(text)
	}

	job := s.recordJob(ctx, originalFilename, model.OperationInspect, size, info.Encrypted, "", nil)

	return &InspectResult{
		Filename:    originalFilename,
		Info:        info,
		TextPreview: preview,
		JobID:       job,
	}, nil
}

// ListJobs returns paginated jobs without exposing repository types.
func (s *pdfService) ListJobs(ctx context.Context, limit, offset int) (*JobListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &JobListResult{Items: res.Items, Total: res.Total}, nil
}

// GetJob returns a job by ID.
func (s *pdfService) GetJob(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// DeleteJob removes a job's archived output, then deletes its record.
func (s *pdfService) DeleteJob(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	// Delete from storage first; if this fails, keep the DB row so the
	// archived object stays reachable.
	if job.StorageKey != "" {
		if err := s.store.Delete(ctx, job.StorageKey); err != nil {
			return fmt.Errorf("delete storage: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}

// JobDownloadURL presigns a download for the job's archived output.
func (s *pdfService) JobDownloadURL(ctx context.Context, id string) (string, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return "", err
	}
	if job.StorageKey == "" {
		return "", ErrNoArtifact
	}
	return s.store.PresignGet(ctx, job.StorageKey, downloadExpiry)
}

// archive uploads a processed output to object storage so job downloads
// survive the temp-file janitor. Failure is non-fatal: the client still gets
// the file in the response, the job just stores no key.
func (s *pdfService) archive(ctx context.Context, path, originalFilename string) string {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("archive open failed: %v", err)
		return ""
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		log.Printf("archive stat failed: %v", err)
		return ""
	}

	key := filepath.ToSlash(filepath.Join(archivePrefix, uuid.NewString()+".pdf"))
	_, err = s.store.Put(ctx, key, f, storage.PutObjectOptions{
		Size:        st.Size(),
		ContentType: "application/pdf",
		Metadata: map[string]string{
			"original-filename": originalFilename,
		},
	})
	if err != nil {
		log.Printf("archive upload failed: %v", err)
		return ""
	}
	return key
}

// recordJob persists the job row best-effort and returns its ID.
// History must never block the file response, so failures are only logged.
func (s *pdfService) recordJob(ctx context.Context, filename string, op model.Operation, size int64, protected bool, storageKey string, opErr error) string {
	job := &model.Job{
		ID:         uuid.NewString(),
		Filename:   filename,
		Operation:  op,
		Status:     model.StatusSucceeded,
		Protected:  protected,
		Size:       size,
		StorageKey: storageKey,
		CreatedAt:  time.Now().UTC(),
	}
	if opErr != nil {
		job.Status = model.StatusFailed
		job.ErrorCode = errorCode(opErr)
	}
	stored, err := s.repo.Create(ctx, job)
	if err != nil {
		log.Printf("record job failed: %v", err)
		return ""
	}
	return stored.ID
}

// errorCode maps operation errors to the persisted machine code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, pdf.ErrInvalidPassword):
		return "INVALID_PASSWORD"
	case errors.Is(err, ErrAlreadyProtected):
		return "ALREADY_PROTECTED"
	case errors.Is(err, ErrVerifyFailed):
		return "VERIFY_FAILED"
	case errors.Is(err, pdf.ErrUnreadable):
		return "UNREADABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// truncatePreview caps extracted text at textPreviewMax bytes without
// splitting a multi-byte rune at the cut.
func truncatePreview(text string) string {
	if len(text) <= textPreviewMax {
		return text
	}
	cut := textPreviewMax
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func validateUpload(r io.Reader, originalFilename string) error {
	if r == nil {
		return ErrReaderNil
	}
	if !strings.HasSuffix(strings.ToLower(originalFilename), ".pdf") {
		return ErrNotPDF
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}
