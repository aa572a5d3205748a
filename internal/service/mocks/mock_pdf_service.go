package mocks

import (
	"context"
	"io"

	"pdfunlocker/internal/model"
	"pdfunlocker/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockPDFService struct {
	mock.Mock
}

func (m *MockPDFService) CheckProtected(ctx context.Context, r io.Reader, originalFilename string, size int64) (*service.CheckResult, error) {
	args := m.Called(ctx, r, originalFilename, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CheckResult), args.Error(1)
}

func (m *MockPDFService) RemovePassword(ctx context.Context, r io.Reader, originalFilename string, size int64, password string) (*service.ProcessResult, error) {
	args := m.Called(ctx, r, originalFilename, size, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProcessResult), args.Error(1)
}

func (m *MockPDFService) AddPassword(ctx context.Context, r io.Reader, originalFilename string, size int64, password, ownerPassword string) (*service.ProcessResult, error) {
	args := m.Called(ctx, r, originalFilename, size, password, ownerPassword)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProcessResult), args.Error(1)
}

func (m *MockPDFService) Inspect(ctx context.Context, r io.Reader, originalFilename string, size int64) (*service.InspectResult, error) {
	args := m.Called(ctx, r, originalFilename, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.InspectResult), args.Error(1)
}

func (m *MockPDFService) ListJobs(ctx context.Context, limit, offset int) (*service.JobListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.JobListResult), args.Error(1)
}

func (m *MockPDFService) GetJob(ctx context.Context, id string) (*model.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Job), args.Error(1)
}

func (m *MockPDFService) DeleteJob(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPDFService) JobDownloadURL(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}
