package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/castcrawler/internal/credit"
)

// MockStore is a mock implementation of the Store interface for testing.
type MockStore struct {
	mock.Mock
}

// SaveRun is the mock implementation of the SaveRun method.
func (m *MockStore) SaveRun(ctx context.Context, run credit.Run, credits []credit.Credit) error {
	args := m.Called(ctx, run, credits)
	return args.Error(0) //nolint:wrapcheck
}

// ListCredits is the mock implementation of the ListCredits method.
func (m *MockStore) ListCredits(ctx context.Context, runID string) ([]credit.Credit, error) {
	args := m.Called(ctx, runID)
	credits, _ := args.Get(0).([]credit.Credit)
	return credits, args.Error(1) //nolint:wrapcheck
}

// Close is the mock implementation of the Close method.
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0) //nolint:wrapcheck
}

// MockBlobStore is a mock implementation of the BlobStore interface for testing.
type MockBlobStore struct {
	mock.Mock
}

// PutObject is the mock implementation of the PutObject method.
func (m *MockBlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	args := m.Called(ctx, path, contentType, r)
	return args.String(0), args.Error(1) //nolint:wrapcheck
}
