package blob

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"
)

// mockBackend records calls; abort behaviour is configurable through testify mock.
type mockBackend struct {
	mock.Mock
	mu sync.Mutex
	n  int
}

func (m *mockBackend) CreateMultipartUpload(ctx context.Context, params *CreateMultipartParams) (*CreateMultipartResponse, error) {
	m.mu.Lock()
	m.n++
	id := fmt.Sprintf("upload-%d", m.n)
	m.mu.Unlock()
	return &CreateMultipartResponse{Key: params.Key, UploadID: id}, nil
}

func (m *mockBackend) PresignUploadPart(ctx context.Context, params *PresignPartParams) (string, error) {
	return fmt.Sprintf("https://storage.test/%s?partNumber=%d&uploadId=%s", params.Key, params.PartNumber, params.UploadID), nil
}

func (m *mockBackend) CompleteMultipartUpload(ctx context.Context, params *CompleteMultipartParams) (*CompleteMultipartResponse, error) {
	return &CompleteMultipartResponse{Key: params.Key, ETag: "final"}, nil
}

func (m *mockBackend) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	args := m.Called(key, uploadID)
	return args.Error(0)
}

func (m *mockBackend) PresignUpload(ctx context.Context, params *PresignUploadParams) (*PresignUploadResponse, error) {
	return &PresignUploadResponse{URL: "https://storage.test/" + params.Key}, nil
}

func (m *mockBackend) PresignDownload(ctx context.Context, key string) (string, error) {
	return "https://storage.test/" + key, nil
}

func (m *mockBackend) ObjectExists(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (m *mockBackend) DeleteObject(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (m *mockBackend) Name() string {
	return "mock"
}

var _ Backend = (*mockBackend)(nil)
