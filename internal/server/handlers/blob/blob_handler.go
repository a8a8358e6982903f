package blob

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftupload/internal/server/blob"
	"github.com/openmined/syftupload/internal/server/handlers/api"
)

// BlobHandler exposes the single-object storage operations.
type BlobHandler struct {
	blob *blob.BlobService
}

func New(blob *blob.BlobService) *BlobHandler {
	return &BlobHandler{blob: blob}
}

func (h *BlobHandler) PresignUpload(ctx *gin.Context) {
	var req PresignUploadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.Abort(ctx, api.Errorf(api.CodeInvalidRequest, "failed to bind json: %v", err))
		return
	}
	if err := h.checkKey(req.Key); err != nil {
		api.Abort(ctx, err)
		return
	}

	resp, err := h.blob.Backend().PresignUpload(ctx.Request.Context(), &blob.PresignUploadParams{
		Key:         req.Key,
		ContentType: req.ContentType,
	})
	if err != nil {
		api.Abort(ctx, api.Errorf(api.CodeStorageError, "presign upload: %v", err))
		return
	}

	var headers map[string]string
	if len(resp.Headers) > 0 {
		headers = make(map[string]string, len(resp.Headers))
		for name := range resp.Headers {
			headers[name] = resp.Headers.Get(name)
		}
	}

	ctx.PureJSON(http.StatusOK, &PresignUploadResponse{URL: resp.URL, Headers: headers})
}

func (h *BlobHandler) PresignDownload(ctx *gin.Context) {
	key, ok := h.bindKey(ctx)
	if !ok {
		return
	}

	url, err := h.blob.Backend().PresignDownload(ctx.Request.Context(), key)
	if err != nil {
		api.Abort(ctx, api.Errorf(api.CodeStorageError, "presign download: %v", err))
		return
	}

	ctx.PureJSON(http.StatusOK, &PresignDownloadResponse{URL: url})
}

func (h *BlobHandler) Exists(ctx *gin.Context) {
	key, ok := h.bindKey(ctx)
	if !ok {
		return
	}

	exists, err := h.blob.Backend().ObjectExists(ctx.Request.Context(), key)
	if err != nil {
		api.Abort(ctx, api.Errorf(api.CodeStorageError, "object exists: %v", err))
		return
	}

	ctx.PureJSON(http.StatusOK, &ExistsResponse{Exists: exists})
}

func (h *BlobHandler) Delete(ctx *gin.Context) {
	key, ok := h.bindKey(ctx)
	if !ok {
		return
	}

	deleted, err := h.blob.Backend().DeleteObject(ctx.Request.Context(), key)
	if err != nil {
		api.Abort(ctx, api.Errorf(api.CodeStorageError, "delete object: %v", err))
		return
	}

	ctx.PureJSON(http.StatusOK, &DeleteResponse{Deleted: deleted})
}

func (h *BlobHandler) bindKey(ctx *gin.Context) (string, bool) {
	var req KeyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.Abort(ctx, api.Errorf(api.CodeInvalidRequest, "failed to bind json: %v", err))
		return "", false
	}
	if err := h.checkKey(req.Key); err != nil {
		api.Abort(ctx, err)
		return "", false
	}
	return req.Key, true
}

// checkKey only admits well-formed keys inside the service's key prefix.
func (h *BlobHandler) checkKey(key string) error {
	if !blob.ValidateKey(key) {
		return api.Errorf(api.CodeInvalidRequest, "invalid key %q", key)
	}
	if !h.blob.OwnsKey(key) {
		return api.NewError(api.CodeInvalidRequest, fmt.Sprintf("key must be under %s/", h.blob.KeyPrefix()))
	}
	return nil
}
