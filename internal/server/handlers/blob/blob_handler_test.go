package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftupload/internal/db"
	"github.com/openmined/syftupload/internal/server/blob"
	"github.com/openmined/syftupload/internal/server/handlers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) CreateMultipartUpload(context.Context, *blob.CreateMultipartParams) (*blob.CreateMultipartResponse, error) {
	return nil, errors.New("unused")
}

func (m *mockBackend) PresignUploadPart(context.Context, *blob.PresignPartParams) (string, error) {
	return "", errors.New("unused")
}

func (m *mockBackend) CompleteMultipartUpload(context.Context, *blob.CompleteMultipartParams) (*blob.CompleteMultipartResponse, error) {
	return nil, errors.New("unused")
}

func (m *mockBackend) AbortMultipartUpload(context.Context, string, string) error {
	return errors.New("unused")
}

func (m *mockBackend) PresignUpload(_ context.Context, params *blob.PresignUploadParams) (*blob.PresignUploadResponse, error) {
	args := m.Called(params.Key, params.ContentType)
	resp, _ := args.Get(0).(*blob.PresignUploadResponse)
	return resp, args.Error(1)
}

func (m *mockBackend) PresignDownload(_ context.Context, key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}

func (m *mockBackend) ObjectExists(_ context.Context, key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

func (m *mockBackend) DeleteObject(_ context.Context, key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

func (m *mockBackend) Name() string {
	return "mock"
}

func newTestRouter(t *testing.T, backend blob.Backend) *gin.Engine {
	t.Helper()
	database, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	svc, err := blob.NewBlobServiceWithBackend(backend, &blob.Config{KeyPrefix: "uploads"}, database)
	require.NoError(t, err)

	h := New(svc)
	r := gin.New()
	r.POST("/blob/presign-upload", h.PresignUpload)
	r.POST("/blob/presign-download", h.PresignDownload)
	r.POST("/blob/exists", h.Exists)
	r.POST("/blob/delete", h.Delete)
	return r
}

func post(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, &buf))
	return w
}

func TestPresignUpload(t *testing.T) {
	backend := &mockBackend{}
	headers := http.Header{}
	headers.Set("Content-Type", "text/plain")
	backend.On("PresignUpload", "uploads/a/b.txt", "text/plain").
		Return(&blob.PresignUploadResponse{URL: "https://storage.test/put", Headers: headers}, nil)

	r := newTestRouter(t, backend)
	w := post(t, r, "/blob/presign-upload", PresignUploadRequest{Key: "uploads/a/b.txt", ContentType: "text/plain"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp PresignUploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://storage.test/put", resp.URL)
	assert.Equal(t, map[string]string{"Content-Type": "text/plain"}, resp.Headers)
	backend.AssertExpectations(t)
}

func TestPresignDownload(t *testing.T) {
	backend := &mockBackend{}
	backend.On("PresignDownload", "uploads/a/b.txt").Return("https://storage.test/get", nil)

	r := newTestRouter(t, backend)
	w := post(t, r, "/blob/presign-download", KeyRequest{Key: "uploads/a/b.txt"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp PresignDownloadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://storage.test/get", resp.URL)
}

func TestExistsAndDelete(t *testing.T) {
	backend := &mockBackend{}
	backend.On("ObjectExists", "uploads/x").Return(true, nil)
	backend.On("DeleteObject", "uploads/x").Return(true, nil)

	r := newTestRouter(t, backend)

	w := post(t, r, "/blob/exists", KeyRequest{Key: "uploads/x"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"exists":true}`, w.Body.String())

	w = post(t, r, "/blob/delete", KeyRequest{Key: "uploads/x"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":true}`, w.Body.String())
}

func TestKeyValidation(t *testing.T) {
	backend := &mockBackend{}
	r := newTestRouter(t, backend)

	for _, key := range []string{"", "/uploads/a", "uploads/../etc/passwd", "other/a.bin", "uploads"} {
		for _, path := range []string{"/blob/presign-upload", "/blob/presign-download", "/blob/exists", "/blob/delete"} {
			w := post(t, r, path, KeyRequest{Key: key})
			assert.Equal(t, http.StatusBadRequest, w.Code, "%s %q", path, key)

			var body api.Error
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, api.CodeInvalidRequest, body.Code)
		}
	}
	backend.AssertNotCalled(t, "ObjectExists", mock.Anything)
	backend.AssertNotCalled(t, "DeleteObject", mock.Anything)
}

func TestStorageError(t *testing.T) {
	backend := &mockBackend{}
	backend.On("ObjectExists", "uploads/x").Return(false, errors.New("timeout"))

	r := newTestRouter(t, backend)
	w := post(t, r, "/blob/exists", KeyRequest{Key: "uploads/x"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var body api.Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, api.CodeStorageError, body.Code)
}
