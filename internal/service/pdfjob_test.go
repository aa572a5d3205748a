package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"pdfunlocker/internal/model"
	"pdfunlocker/internal/pdf"
	pdfMocks "pdfunlocker/internal/pdf/mocks"
	"pdfunlocker/internal/repository"
	repoMocks "pdfunlocker/internal/repository/mocks"
	"pdfunlocker/internal/storage"
	storeMocks "pdfunlocker/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*pdfService, *pdfMocks.MockInspector, *pdfMocks.MockEngine, *repoMocks.MockJobRepository, *storeMocks.MockStorage) {
	t.Helper()
	ws, err := pdf.NewWorkspace(t.TempDir(), time.Minute)
	require.NoError(t, err)

	mInsp := new(pdfMocks.MockInspector)
	mEng := new(pdfMocks.MockEngine)
	mRepo := new(repoMocks.MockJobRepository)
	mStore := new(storeMocks.MockStorage)

	svc := NewPDFService(ws, mInsp, mEng, mRepo, mStore).(*pdfService)
	return svc, mInsp, mEng, mRepo, mStore
}

func isInput(p string) bool  { return strings.Contains(p, "input_") && !strings.Contains(p, "output_") }
func isOutput(p string) bool { return strings.Contains(p, "output_") }

func storageInfoFor(key string) storage.ObjectInfo {
	return storage.ObjectInfo{Key: key, ContentType: "application/pdf"}
}

func expectJobRecord(mRepo *repoMocks.MockJobRepository, op model.Operation, status string) {
	mRepo.On("Create", mock.Anything, mock.MatchedBy(func(j *model.Job) bool {
		return j.Operation == op && j.Status == status
	})).Return(&model.Job{ID: "job-1"}, nil).Once()
}

func TestCheckProtected(t *testing.T) {
	ctx := context.Background()

	t.Run("protected", func(t *testing.T) {
		svc, mInsp, _, mRepo, _ := newTestService(t)

		mInsp.On("Info", mock.Anything, mock.MatchedBy(isInput)).
			Return(&pdf.Info{Encrypted: true, Pages: 3}, nil)
		expectJobRecord(mRepo, model.OperationCheck, model.StatusSucceeded)

		res, err := svc.CheckProtected(ctx, strings.NewReader("%PDF"), "secret.pdf", 4)

		require.NoError(t, err)
		assert.True(t, res.IsProtected)
		assert.Equal(t, "pdfinfo", res.MethodUsed)
		assert.Equal(t, "PDF is password protected", res.Message)
		assert.Equal(t, "job-1", res.JobID)
		mInsp.AssertExpectations(t)
		mRepo.AssertExpectations(t)
	})

	t.Run("not protected", func(t *testing.T) {
		svc, mInsp, _, mRepo, _ := newTestService(t)

		mInsp.On("Info", mock.Anything, mock.MatchedBy(isInput)).
			Return(&pdf.Info{Encrypted: false}, nil)
		expectJobRecord(mRepo, model.OperationCheck, model.StatusSucceeded)

		res, err := svc.CheckProtected(ctx, strings.NewReader("%PDF"), "plain.pdf", 4)

		require.NoError(t, err)
		assert.False(t, res.IsProtected)
		assert.Equal(t, "PDF is not password protected", res.Message)
	})

	t.Run("unreadable file records failed job", func(t *testing.T) {
		svc, mInsp, _, mRepo, _ := newTestService(t)

		mInsp.On("Info", mock.Anything, mock.Anything).
			Return(nil, pdf.ErrUnreadable)
		expectJobRecord(mRepo, model.OperationCheck, model.StatusFailed)

		_, err := svc.CheckProtected(ctx, strings.NewReader("junk"), "junk.pdf", 4)

		assert.ErrorIs(t, err, pdf.ErrUnreadable)
		mRepo.AssertExpectations(t)
	})

	t.Run("validation", func(t *testing.T) {
		svc, _, _, _, _ := newTestService(t)

		_, err := svc.CheckProtected(ctx, nil, "a.pdf", 0)
		assert.ErrorIs(t, err, ErrReaderNil)

		_, err = svc.CheckProtected(ctx, strings.NewReader("x"), "a.txt", 1)
		assert.ErrorIs(t, err, ErrNotPDF)
	})
}

func TestRemovePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		svc, mInsp, mEng, mRepo, mStore := newTestService(t)

		mInsp.On("Info", mock.Anything, mock.MatchedBy(isInput)).
			Return(&pdf.Info{Encrypted: true}, nil).Once()
		mEng.On("Decrypt", mock.Anything, mock.MatchedBy(isInput), mock.MatchedBy(isOutput), "hunter2").
			Run(func(args mock.Arguments) {
				require.NoError(t, os.WriteFile(args.String(2), []byte("%PDF unlocked"), 0o644))
			}).Return(nil).Once()
		mInsp.On("Info", mock.Anything, mock.MatchedBy(isOutput)).
			Return(&pdf.Info{Encrypted: false}, nil).Once()
		mStore.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "processed/") && strings.HasSuffix(key, ".pdf")
		}), mock.Anything, mock.Anything).
			Return(storageInfoFor("processed/x.pdf"), nil).Once()
		expectJobRecord(mRepo, model.OperationUnlock, model.StatusSucceeded)

		res, err := svc.RemovePassword(ctx, strings.NewReader("%PDF locked"), "My Doc.pdf", 11, "hunter2")

		require.NoError(t, err)
		assert.Equal(t, "My_Doc_unlocked.pdf", res.DownloadName)
		assert.Equal(t, "job-1", res.JobID)
		assert.Equal(t, int64(len("%PDF unlocked")), res.Size)

		// Output remains for streaming, input is gone.
		_, statErr := os.Stat(res.Path)
		assert.NoError(t, statErr)

		mEng.AssertExpectations(t)
		mRepo.AssertExpectations(t)
	})

	t.Run("unprotected input passes through", func(t *testing.T) {
		svc, mInsp, mEng, mRepo, mStore := newTestService(t)

		mInsp.On("Info", mock.Anything, mock.MatchedBy(isInput)).
			Return(&pdf.Info{Encrypted: false}, nil).Once()
		mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(storageInfoFor("processed/y.pdf"), nil).Once()
		expectJobRecord(mRepo, model.OperationUnlock, model.StatusSucceeded)

		res, err := svc.RemovePassword(ctx, strings.NewReader("%PDF plain"), "plain.pdf", 10, "whatever")

		require.NoError(t, err)
		got, readErr := os.ReadFile(res.Path)
		require.NoError(t, readErr)
		assert.Equal(t, "%PDF plain", string(got))
		mEng.AssertNotCalled(t, "Decrypt", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid password", func(t *testing.T) {
		svc, mInsp, mEng, mRepo, _ := newTestService(t)

		mInsp.On("Info", mock.Anything, mock.MatchedBy(isInput)).
			Return(&pdf.Info{Encrypted: true}, nil).Once()
		mEng.On("Decrypt", mock.Anything, mock.Anything, mock.Anything, "wrong").
			Return(pdf.ErrInvalidPassword).Once()
		expectJobRecord(mRepo, model.OperationUnlock, model.StatusFailed)

		_, err := svc.RemovePassword(ctx, strings.NewReader("%PDF"), "doc.pdf", 4, "wrong")

		assert.ErrorIs(t, err, pdf.ErrInvalidPassword)
		mRepo.AssertExpectations(t)
	})

	t.Run("verification failure", func(t *testing.T) {
		svc, mInsp, mEng, mRepo, _ := newTestService(t)

		mInsp.On("Info", mock.Anything, mock.MatchedBy(isInput)).
			Return(&pdf.Info{Encrypted: true}, nil).Once()
		mEng.On("Decrypt", mock.Anything, mock.Anything, mock.Anything, "pw").
			Return(nil).Once()
		mInsp.On("Info", mock.Anything, mock.MatchedBy(isOutput)).
			Return(&pdf.Info{Encrypted: true}, nil).Once()
		expectJobRecord(mRepo, model.OperationUnlock, model.StatusFailed)

		_, err := svc.RemovePassword(ctx, strings.NewReader("%PDF"), "doc.pdf", 4, "pw")

		assert.ErrorIs(t, err, ErrVerifyFailed)
	})

	t.Run("validation", func(t *testing.T) {
		svc, _, _, _, _ := newTestService(t)

		_, err := svc.RemovePassword(ctx, strings.NewReader("x"), "doc.pdf", 1, "")
		assert.ErrorIs(t, err, ErrPasswordRequired)

		_, err = svc.RemovePassword(ctx, strings.NewReader("x"), "doc.docx", 1, "pw")
		assert.ErrorIs(t, err, ErrNotPDF)
	})
}

func TestAddPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		svc, mInsp, mEng, mRepo, mStore := newTestService(t)

		mInsp.On("Info", mock.Anything, mock.MatchedBy(isInput)).
			Return(&pdf.Info{Encrypted: false}, nil).Once()
		mEng.On("Encrypt", mock.Anything, mock.MatchedBy(isInput), mock.MatchedBy(isOutput), "hunter2", "owner9").
			Run(func(args mock.Arguments) {
				require.NoError(t, os.WriteFile(args.String(2), []byte("%PDF protected!"), 0o644))
			}).Return(nil).Once()
		mInsp.On("Info", mock.Anything, mock.MatchedBy(isOutput)).
			Return(&pdf.Info{Encrypted: true}, nil).Once()
		mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(storageInfoFor("processed/z.pdf"), nil).Once()
		expectJobRecord(mRepo, model.OperationProtect, model.StatusSucceeded)

		res, err := svc.AddPassword(ctx, strings.NewReader("%PDF"), "report.pdf", 4, "hunter2", "owner9")

		require.NoError(t, err)
		assert.Equal(t, "report_protected.pdf", res.DownloadName)
		mEng.AssertExpectations(t)
	})

	t.Run("already protected", func(t *testing.T) {
		svc, mInsp, mEng, mRepo, _ := newTestService(t)

		mInsp.On("Info", mock.Anything, mock.MatchedBy(isInput)).
			Return(&pdf.Info{Encrypted: true}, nil).Once()
		expectJobRecord(mRepo, model.OperationProtect, model.StatusFailed)

		_, err := svc.AddPassword(ctx, strings.NewReader("%PDF"), "locked.pdf", 4, "hunter2", "")

		assert.ErrorIs(t, err, ErrAlreadyProtected)
		mEng.AssertNotCalled(t, "Encrypt", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("verification failure", func(t *testing.T) {
		svc, mInsp, mEng, mRepo, _ := newTestService(t)

		mInsp.On("Info", mock.Anything, mock.MatchedBy(isInput)).
			Return(&pdf.Info{Encrypted: false}, nil).Once()
		mEng.On("Encrypt", mock.Anything, mock.Anything, mock.Anything, "hunter2", "").
			Return(nil).Once()
		mInsp.On("Info", mock.Anything, mock.MatchedBy(isOutput)).
			Return(&pdf.Info{Encrypted: false}, nil).Once()
		expectJobRecord(mRepo, model.OperationProtect, model.StatusFailed)

		_, err := svc.AddPassword(ctx, strings.NewReader("%PDF"), "doc.pdf", 4, "hunter2", "")

		assert.ErrorIs(t, err, ErrVerifyFailed)
	})

	t.Run("validation", func(t *testing.T) {
		svc, _, _, _, _ := newTestService(t)

		_, err := svc.AddPassword(ctx, strings.NewReader("x"), "doc.pdf", 1, "", "")
		assert.ErrorIs(t, err, ErrPasswordRequired)

		_, err = svc.AddPassword(ctx, strings.NewReader("x"), "doc.pdf", 1, "abc", "")
		assert.ErrorIs(t, err, ErrPasswordTooShort)
	})
}

func TestInspect(t *testing.T) {
	ctx := context.Background()

	t.Run("unprotected with preview", func(t *testing.T) {
		svc, mInsp, _, mRepo, _ := newTestService(t)

		mInsp.On("Info", mock.Anything, mock.MatchedBy(isInput)).
			Return(&pdf.Info{Encrypted: false, Pages: 2, Title: "T"}, nil).Once()
		mInsp.On("Text", mock.Anything, mock.MatchedBy(isInput)).
			Return("hello world", nil).Once()
		expectJobRecord(mRepo, model.OperationInspect, model.StatusSucceeded)

		res, err := svc.Inspect(ctx, strings.NewReader("%PDF"), "doc.pdf", 4)

		require.NoError(t, err)
		assert.Equal(t, "hello world", res.TextPreview)
		assert.Equal(t, 2, res.Info.Pages)
	})

	t.Run("protected skips text extraction", func(t *testing.T) {
		svc, mInsp, _, mRepo, _ := newTestService(t)

		mInsp.On("Info", mock.Anything, mock.MatchedBy(isInput)).
			Return(&pdf.Info{Encrypted: true}, nil).Once()
		expectJobRecord(mRepo, model.OperationInspect, model.StatusSucceeded)

		res, err := svc.Inspect(ctx, strings.NewReader("%PDF"), "doc.pdf", 4)

		require.NoError(t, err)
		assert.Empty(t, res.TextPreview)
		mInsp.AssertNotCalled(t, "Text", mock.Anything, mock.Anything)
	})

	t.Run("long preview truncated", func(t *testing.T) {
		svc, mInsp, _, mRepo, _ := newTestService(t)

		mInsp.On("Info", mock.Anything, mock.Anything).
			Return(&pdf.Info{Encrypted: false}, nil).Once()
		mInsp.On("Text", mock.Anything, mock.Anything).
			Return(strings.Repeat("a", 5000), nil).Once()
		expectJobRecord(mRepo, model.OperationInspect, model.StatusSucceeded)

		res, err := svc.Inspect(ctx, strings.NewReader("%PDF"), "doc.pdf", 4)

		require.NoError(t, err)
		assert.Len(t, res.TextPreview, textPreviewMax)
	})

	t.Run("truncation keeps rune boundaries", func(t *testing.T) {
		svc, mInsp, _, mRepo, _ := newTestService(t)

		// "€" is 3 bytes; the byte cap falls mid-rune.
		mInsp.On("Info", mock.Anything, mock.Anything).
			Return(&pdf.Info{Encrypted: false}, nil).Once()
		mInsp.On("Text", mock.Anything, mock.Anything).
			Return(strings.Repeat("€", 700), nil).Once()
		expectJobRecord(mRepo, model.OperationInspect, model.StatusSucceeded)

		res, err := svc.Inspect(ctx, strings.NewReader("%PDF"), "doc.pdf", 4)

		require.NoError(t, err)
		assert.True(t, utf8.ValidString(res.TextPreview))
		assert.LessOrEqual(t, len(res.TextPreview), textPreviewMax)
		assert.Len(t, res.TextPreview, textPreviewMax-textPreviewMax%3)
	})
}

func TestListJobs(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		svc, _, _, mRepo, _ := newTestService(t)

		mRepo.On("List", ctx, repository.PageQuery{Limit: 10, Offset: 0}).
			Return(&repository.PageResult[model.Job]{
				Items: []model.Job{{ID: "1"}, {ID: "2"}},
				Total: 2,
			}, nil)

		res, err := svc.ListJobs(ctx, 10, 0)

		require.NoError(t, err)
		assert.Len(t, res.Items, 2)
		assert.Equal(t, 2, res.Total)
	})

	t.Run("zero limit uses default", func(t *testing.T) {
		svc, _, _, mRepo, _ := newTestService(t)

		mRepo.On("List", ctx, repository.PageQuery{Limit: 10, Offset: 0}).
			Return(&repository.PageResult[model.Job]{Items: []model.Job{}, Total: 0}, nil)

		_, err := svc.ListJobs(ctx, 0, -1)
		assert.NoError(t, err)
		mRepo.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		svc, _, _, mRepo, _ := newTestService(t)

		mRepo.On("List", ctx, mock.Anything).Return(nil, errors.New("db fail"))

		_, err := svc.ListJobs(ctx, 10, 0)
		assert.Error(t, err)
	})
}

func TestGetJob(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		svc, _, _, mRepo, _ := newTestService(t)
		mRepo.On("FindByID", ctx, "valid-id").Return(&model.Job{ID: "valid-id"}, nil)

		job, err := svc.GetJob(ctx, "valid-id")

		require.NoError(t, err)
		assert.Equal(t, "valid-id", job.ID)
	})

	t.Run("empty id", func(t *testing.T) {
		svc, _, _, _, _ := newTestService(t)
		_, err := svc.GetJob(ctx, "")
		assert.ErrorIs(t, err, ErrIDRequired)
	})

	t.Run("not found maps sql.ErrNoRows", func(t *testing.T) {
		svc, _, _, mRepo, _ := newTestService(t)
		mRepo.On("FindByID", ctx, "missing").Return(nil, sql.ErrNoRows)

		_, err := svc.GetJob(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteJob(t *testing.T) {
	ctx := context.Background()

	t.Run("with archived output", func(t *testing.T) {
		svc, _, _, mRepo, mStore := newTestService(t)

		mRepo.On("FindByID", ctx, "id-1").Return(&model.Job{ID: "id-1", StorageKey: "processed/a.pdf"}, nil)
		mStore.On("Delete", ctx, "processed/a.pdf").Return(nil)
		mRepo.On("Delete", ctx, "id-1").Return(nil)

		err := svc.DeleteJob(ctx, "id-1")

		assert.NoError(t, err)
		mStore.AssertExpectations(t)
		mRepo.AssertExpectations(t)
	})

	t.Run("without archived output skips storage", func(t *testing.T) {
		svc, _, _, mRepo, mStore := newTestService(t)

		mRepo.On("FindByID", ctx, "id-2").Return(&model.Job{ID: "id-2"}, nil)
		mRepo.On("Delete", ctx, "id-2").Return(nil)

		err := svc.DeleteJob(ctx, "id-2")

		assert.NoError(t, err)
		mStore.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("storage delete error keeps row", func(t *testing.T) {
		svc, _, _, mRepo, mStore := newTestService(t)

		mRepo.On("FindByID", ctx, "id-3").Return(&model.Job{ID: "id-3", StorageKey: "processed/c.pdf"}, nil)
		mStore.On("Delete", ctx, "processed/c.pdf").Return(errors.New("storage fail"))

		err := svc.DeleteJob(ctx, "id-3")

		assert.Error(t, err)
		mRepo.AssertNotCalled(t, "Delete", ctx, "id-3")
	})

	t.Run("not found", func(t *testing.T) {
		svc, _, _, mRepo, _ := newTestService(t)
		mRepo.On("FindByID", ctx, "missing").Return(nil, sql.ErrNoRows)

		err := svc.DeleteJob(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestJobDownloadURL(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		svc, _, _, mRepo, mStore := newTestService(t)

		mRepo.On("FindByID", ctx, "id-1").Return(&model.Job{ID: "id-1", StorageKey: "processed/a.pdf"}, nil)
		mStore.On("PresignGet", ctx, "processed/a.pdf", downloadExpiry).
			Return("https://minio.local/presigned", nil)

		url, err := svc.JobDownloadURL(ctx, "id-1")

		require.NoError(t, err)
		assert.Equal(t, "https://minio.local/presigned", url)
	})

	t.Run("no artifact", func(t *testing.T) {
		svc, _, _, mRepo, _ := newTestService(t)

		mRepo.On("FindByID", ctx, "id-2").Return(&model.Job{ID: "id-2"}, nil)

		_, err := svc.JobDownloadURL(ctx, "id-2")
		assert.ErrorIs(t, err, ErrNoArtifact)
	})
}
