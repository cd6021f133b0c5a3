// Package storage holds test doubles shared by the blob store implementations.
package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockBlobStore is a testify mock of crawler.BlobStore.
type MockBlobStore struct {
	mock.Mock
}

// Exists is the mock implementation of the Exists method.
func (m *MockBlobStore) Exists(ctx context.Context, path string) (bool, error) {
	args := m.Called(ctx, path)
	return args.Bool(0), args.Error(1) //nolint:wrapcheck
}

// PutObject is the mock implementation of the PutObject method. The reader is
// drained so expectations can match on its content.
func (m *MockBlobStore) PutObject(ctx context.Context, path, contentType string, data io.Reader) (string, error) {
	body, err := io.ReadAll(data)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	args := m.Called(ctx, path, contentType, string(body))
	return args.String(0), args.Error(1) //nolint:wrapcheck
}
