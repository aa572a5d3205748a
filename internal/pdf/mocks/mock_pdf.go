package mocks

import (
	"context"

	"pdfunlocker/internal/pdf"

	"github.com/stretchr/testify/mock"
)

type MockInspector struct {
	mock.Mock
}

func (m *MockInspector) Info(ctx context.Context, path string) (*pdf.Info, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pdf.Info), args.Error(1)
}

func (m *MockInspector) Text(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Decrypt(ctx context.Context, in, out, password string) error {
	args := m.Called(ctx, in, out, password)
	return args.Error(0)
}

func (m *MockEngine) Encrypt(ctx context.Context, in, out, userPassword, ownerPassword string) error {
	args := m.Called(ctx, in, out, userPassword, ownerPassword)
	return args.Error(0)
}
