package multipart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftupload/internal/db"
	"github.com/openmined/syftupload/internal/server/blob"
	"github.com/openmined/syftupload/internal/server/handlers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBackend struct {
	mu        sync.Mutex
	n         int
	created   []*blob.CreateMultipartParams
	completed []*blob.CompleteMultipartParams
	aborted   []string
	failWith  error
}

func (f *fakeBackend) CreateMultipartUpload(_ context.Context, params *blob.CreateMultipartParams) (*blob.CreateMultipartResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.n++
	f.created = append(f.created, params)
	return &blob.CreateMultipartResponse{Key: params.Key, UploadID: fmt.Sprintf("up-%d", f.n)}, nil
}

func (f *fakeBackend) PresignUploadPart(_ context.Context, params *blob.PresignPartParams) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	return fmt.Sprintf("https://storage.test/%s?partNumber=%d&uploadId=%s", params.Key, params.PartNumber, params.UploadID), nil
}

func (f *fakeBackend) CompleteMultipartUpload(_ context.Context, params *blob.CompleteMultipartParams) (*blob.CompleteMultipartResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.completed = append(f.completed, params)
	return &blob.CompleteMultipartResponse{Key: params.Key, ETag: "final-etag"}, nil
}

func (f *fakeBackend) AbortMultipartUpload(_ context.Context, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, uploadID)
	return nil
}

func (f *fakeBackend) PresignUpload(context.Context, *blob.PresignUploadParams) (*blob.PresignUploadResponse, error) {
	return nil, errors.New("unused")
}

func (f *fakeBackend) PresignDownload(context.Context, string) (string, error) {
	return "", errors.New("unused")
}

func (f *fakeBackend) ObjectExists(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fakeBackend) DeleteObject(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fakeBackend) Name() string {
	return "fake"
}

type testEnv struct {
	router  *gin.Engine
	backend *fakeBackend
	svc     *blob.BlobService
	user    string
}

func newTestEnv(t *testing.T, cfg *Config) *testEnv {
	t.Helper()
	database, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	backend := &fakeBackend{}
	svc, err := blob.NewBlobServiceWithBackend(backend, &blob.Config{KeyPrefix: "uploads"}, database)
	require.NoError(t, err)

	env := &testEnv{backend: backend, svc: svc, user: "alice"}
	h := New(svc, cfg)

	r := gin.New()
	r.Use(func(ctx *gin.Context) {
		ctx.Set("user", env.user)
	})
	r.POST("/multipart/create", h.Create)
	r.POST("/multipart/presign-parts", h.PresignParts)
	r.POST("/multipart/complete", h.Complete)
	r.POST("/multipart/abort", h.Abort)
	env.router = r
	return env
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, &buf))
	return w
}

func (e *testEnv) create(t *testing.T, size, partSize int64) *CreateResponse {
	t.Helper()
	w := e.post(t, "/multipart/create", CreateRequest{Filename: "report.pdf", Size: size, PartSize: partSize})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp CreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body api.Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Code
}

func TestCreate(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.create(t, 250, 100)
	assert.NotEmpty(t, resp.UploadID)
	assert.True(t, strings.HasPrefix(resp.Key, "uploads/"))
	assert.True(t, strings.HasSuffix(resp.Key, "/report.pdf"))

	require.Len(t, env.backend.created, 1)
	assert.Equal(t, "application/pdf", env.backend.created[0].ContentType)

	rec, err := env.svc.Index().Get(context.Background(), resp.UploadID)
	require.NoError(t, err)
	assert.Equal(t, blob.UploadCreated, rec.Status)
	assert.Equal(t, "alice", rec.Subject)
	assert.Equal(t, int64(250), rec.Size)
}

func TestCreate_Validation(t *testing.T) {
	env := newTestEnv(t, &Config{MaxPresignBatch: 10, MaxParts: 5})

	tests := []struct {
		name string
		req  any
	}{
		{"missing filename", CreateRequest{Size: 10}},
		{"zero size", CreateRequest{Filename: "a", Size: 0}},
		{"negative part size", CreateRequest{Filename: "a", Size: 10, PartSize: -1}},
		{"too many parts", CreateRequest{Filename: "a", Size: 60, PartSize: 10}},
		{"bad encryption", CreateRequest{Filename: "a", Size: 10, Encryption: &blob.Encryption{Algorithm: "rot13"}}},
		{"not json", "nope"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := env.post(t, "/multipart/create", tc.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, api.CodeInvalidRequest, errorCode(t, w))
		})
	}
	assert.Empty(t, env.backend.created)
}

func TestCreate_HugePartSize(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.post(t, "/multipart/create", CreateRequest{Filename: "a.bin", Size: 10, PartSize: math.MaxInt64})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.EqualValues(t, 1, partCount(10, math.MaxInt64))
	assert.EqualValues(t, 2, partCount(math.MaxInt64, math.MaxInt64-1))
}

func TestCreate_StorageError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.failWith = errors.New("bucket missing")

	w := env.post(t, "/multipart/create", CreateRequest{Filename: "a.bin", Size: 10})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, api.CodeStorageError, errorCode(t, w))
}

func TestPresignParts(t *testing.T) {
	env := newTestEnv(t, nil)
	up := env.create(t, 250, 100)

	w := env.post(t, "/multipart/presign-parts", PresignPartsRequest{
		Key:      up.Key,
		UploadID: up.UploadID,
		Parts:    []PartNumber{{3}, {1}, {2}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp PresignPartsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Parts, 3)
	for i, want := range []int{3, 1, 2} {
		assert.Equal(t, want, resp.Parts[i].PartNumber)
		assert.Contains(t, resp.Parts[i].PresignedURL, fmt.Sprintf("partNumber=%d", want))
	}

	rec, err := env.svc.Index().Get(context.Background(), up.UploadID)
	require.NoError(t, err)
	assert.Equal(t, blob.UploadUploading, rec.Status)
}

func TestPresignParts_Validation(t *testing.T) {
	env := newTestEnv(t, &Config{MaxPresignBatch: 2, MaxParts: 10000})
	up := env.create(t, 250, 100)

	tests := []struct {
		name  string
		parts []PartNumber
	}{
		{"empty", nil},
		{"batch too large", []PartNumber{{1}, {2}, {3}}},
		{"zero part", []PartNumber{{0}}},
		{"beyond the file", []PartNumber{{4}}},
		{"duplicate", []PartNumber{{2}, {2}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := env.post(t, "/multipart/presign-parts", PresignPartsRequest{Key: up.Key, UploadID: up.UploadID, Parts: tc.parts})
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, api.CodeInvalidRequest, errorCode(t, w))
		})
	}
}

func TestPresignParts_UnknownOrForeignUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	up := env.create(t, 250, 100)

	tests := []struct {
		name     string
		key      string
		uploadID string
		user     string
	}{
		{"unknown id", up.Key, "missing", "alice"},
		{"wrong key", "uploads/other/file", up.UploadID, "alice"},
		{"other user", up.Key, up.UploadID, "mallory"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env.user = tc.user
			w := env.post(t, "/multipart/presign-parts", PresignPartsRequest{Key: tc.key, UploadID: tc.uploadID, Parts: []PartNumber{{1}}})
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, api.CodeUploadNotFound, errorCode(t, w))
		})
	}
}

func TestComplete(t *testing.T) {
	env := newTestEnv(t, nil)
	up := env.create(t, 250, 100)

	manifest := []blob.CompletedPart{{PartNumber: 1, ETag: "a"}, {PartNumber: 2, ETag: "b"}, {PartNumber: 3, ETag: "c"}}
	w := env.post(t, "/multipart/complete", CompleteRequest{Key: up.Key, UploadID: up.UploadID, Parts: manifest})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp CompleteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, up.Key, resp.Key)
	assert.Equal(t, "final-etag", resp.ETag)

	require.Len(t, env.backend.completed, 1)
	assert.Equal(t, manifest, env.backend.completed[0].Parts)

	rec, err := env.svc.Index().Get(context.Background(), up.UploadID)
	require.NoError(t, err)
	assert.Equal(t, blob.UploadCompleted, rec.Status)

	// terminal sessions reject further work
	w = env.post(t, "/multipart/presign-parts", PresignPartsRequest{Key: up.Key, UploadID: up.UploadID, Parts: []PartNumber{{1}}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, api.CodeUploadConflict, errorCode(t, w))

	w = env.post(t, "/multipart/complete", CompleteRequest{Key: up.Key, UploadID: up.UploadID, Parts: manifest})
	assert.Equal(t, api.CodeUploadConflict, errorCode(t, w))

	w = env.post(t, "/multipart/abort", AbortRequest{Key: up.Key, UploadID: up.UploadID})
	assert.Equal(t, api.CodeUploadConflict, errorCode(t, w))
}

func TestComplete_ManifestValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	up := env.create(t, 250, 100)

	tests := []struct {
		name  string
		parts []blob.CompletedPart
	}{
		{"empty", nil},
		{"unsorted", []blob.CompletedPart{{PartNumber: 2, ETag: "b"}, {PartNumber: 1, ETag: "a"}}},
		{"duplicate", []blob.CompletedPart{{PartNumber: 1, ETag: "a"}, {PartNumber: 1, ETag: "a"}}},
		{"missing etag", []blob.CompletedPart{{PartNumber: 1}}},
		{"zero part", []blob.CompletedPart{{PartNumber: 0, ETag: "a"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := env.post(t, "/multipart/complete", CompleteRequest{Key: up.Key, UploadID: up.UploadID, Parts: tc.parts})
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, api.CodeInvalidRequest, errorCode(t, w))
		})
	}
	assert.Empty(t, env.backend.completed)
}

func TestAbort(t *testing.T) {
	env := newTestEnv(t, nil)
	up := env.create(t, 250, 100)

	w := env.post(t, "/multipart/abort", AbortRequest{Key: up.Key, UploadID: up.UploadID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{up.UploadID}, env.backend.aborted)

	rec, err := env.svc.Index().Get(context.Background(), up.UploadID)
	require.NoError(t, err)
	assert.Equal(t, blob.UploadAborted, rec.Status)

	// a second abort is a no-op
	w = env.post(t, "/multipart/abort", AbortRequest{Key: up.Key, UploadID: up.UploadID})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, env.backend.aborted, 1)

	w = env.post(t, "/multipart/abort", AbortRequest{Key: up.Key, UploadID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidateManifest(t *testing.T) {
	assert.NoError(t, validateManifest([]blob.CompletedPart{{PartNumber: 1, ETag: "a"}, {PartNumber: 5, ETag: "b"}}, 10))
	assert.Error(t, validateManifest([]blob.CompletedPart{{PartNumber: 11, ETag: "a"}}, 10))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxParts = 10001
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxPresignBatch = 0
	assert.Error(t, cfg.Validate())
}
