package multipart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gin-gonic/gin"
	"github.com/openmined/syftupload/internal/server/blob"
	"github.com/openmined/syftupload/internal/server/handlers/api"
	"github.com/openmined/syftupload/internal/utils"
)

type MultipartHandler struct {
	blob   *blob.BlobService
	config *Config
}

func New(blob *blob.BlobService, config *Config) *MultipartHandler {
	if config == nil {
		config = DefaultConfig()
	}
	return &MultipartHandler{blob: blob, config: config}
}

// Create starts a multipart upload under a freshly generated key.
func (h *MultipartHandler) Create(ctx *gin.Context) {
	var req CreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.Abort(ctx, api.Errorf(api.CodeInvalidRequest, "failed to bind json: %v", err))
		return
	}

	if err := req.Encryption.Validate(); err != nil {
		api.Abort(ctx, api.NewError(api.CodeInvalidRequest, err.Error()))
		return
	}

	if req.PartSize > 0 {
		if parts := partCount(req.Size, req.PartSize); parts > int64(h.config.MaxParts) {
			api.Abort(ctx, api.Errorf(api.CodeInvalidRequest, "partSize %d yields %d parts, max %d", req.PartSize, parts, h.config.MaxParts))
			return
		}
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = utils.DetectContentType(req.Filename)
	}

	key := h.blob.NewObjectKey(req.Filename)
	resp, err := h.blob.Backend().CreateMultipartUpload(ctx.Request.Context(), &blob.CreateMultipartParams{
		Key:         key,
		ContentType: contentType,
		Metadata:    req.Metadata,
		Encryption:  req.Encryption,
	})
	if err != nil {
		api.Abort(ctx, storageError("create multipart upload", err))
		return
	}

	err = h.blob.Index().Create(ctx.Request.Context(), &blob.UploadRecord{
		UploadID: resp.UploadID,
		Key:      resp.Key,
		Size:     req.Size,
		PartSize: req.PartSize,
		Subject:  ctx.GetString("user"),
	})
	if err != nil {
		// the session is untracked, so nothing would ever reap it
		h.abortDetached(resp.Key, resp.UploadID)
		api.Abort(ctx, err)
		return
	}

	slog.Info("multipart create", "key", resp.Key, "uploadId", resp.UploadID, "size", req.Size)
	ctx.PureJSON(http.StatusOK, &CreateResponse{
		UploadID: resp.UploadID,
		Key:      resp.Key,
	})
}

// PresignParts returns one presigned PUT URL per requested part, in request order.
func (h *MultipartHandler) PresignParts(ctx *gin.Context) {
	var req PresignPartsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.Abort(ctx, api.Errorf(api.CodeInvalidRequest, "failed to bind json: %v", err))
		return
	}

	if len(req.Parts) > h.config.MaxPresignBatch {
		api.Abort(ctx, api.Errorf(api.CodeInvalidRequest, "at most %d parts per batch, got %d", h.config.MaxPresignBatch, len(req.Parts)))
		return
	}

	rec, err := h.session(ctx, req.Key, req.UploadID)
	if err != nil {
		api.Abort(ctx, err)
		return
	}

	maxPart := h.maxPartNumber(rec)
	seen := mapset.NewThreadUnsafeSetWithSize[int](len(req.Parts))
	for _, p := range req.Parts {
		if p.PartNumber > maxPart {
			api.Abort(ctx, api.Errorf(api.CodeInvalidRequest, "partNumber %d out of range 1..%d", p.PartNumber, maxPart))
			return
		}
		if !seen.Add(p.PartNumber) {
			api.Abort(ctx, api.Errorf(api.CodeInvalidRequest, "duplicate partNumber %d", p.PartNumber))
			return
		}
	}

	// also refreshes updated_at, which keeps an active upload away from the reaper
	if err := h.blob.Index().Transition(ctx.Request.Context(), rec.UploadID, blob.UploadUploading); err != nil {
		api.Abort(ctx, indexError(err))
		return
	}

	parts := make([]PresignedPart, 0, len(req.Parts))
	for _, p := range req.Parts {
		url, err := h.blob.Backend().PresignUploadPart(ctx.Request.Context(), &blob.PresignPartParams{
			Key:        rec.Key,
			UploadID:   rec.UploadID,
			PartNumber: p.PartNumber,
		})
		if err != nil {
			api.Abort(ctx, storageError("presign part", err))
			return
		}
		parts = append(parts, PresignedPart{PartNumber: p.PartNumber, PresignedURL: url})
	}

	ctx.PureJSON(http.StatusOK, &PresignPartsResponse{Parts: parts})
}

// Complete assembles the uploaded parts. The manifest must be strictly ascending.
func (h *MultipartHandler) Complete(ctx *gin.Context) {
	var req CompleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.Abort(ctx, api.Errorf(api.CodeInvalidRequest, "failed to bind json: %v", err))
		return
	}

	if err := validateManifest(req.Parts, h.config.MaxParts); err != nil {
		api.Abort(ctx, api.NewError(api.CodeInvalidRequest, err.Error()))
		return
	}

	rec, err := h.session(ctx, req.Key, req.UploadID)
	if err != nil {
		api.Abort(ctx, err)
		return
	}

	resp, err := h.blob.Backend().CompleteMultipartUpload(ctx.Request.Context(), &blob.CompleteMultipartParams{
		Key:      rec.Key,
		UploadID: rec.UploadID,
		Parts:    req.Parts,
	})
	if err != nil {
		api.Abort(ctx, storageError("complete multipart upload", err))
		return
	}

	if err := h.blob.Index().Transition(ctx.Request.Context(), rec.UploadID, blob.UploadCompleted); err != nil {
		// storage already has the object, the index is only behind
		slog.Warn("multipart complete index", "key", rec.Key, "uploadId", rec.UploadID, "error", err)
	}

	slog.Info("multipart complete", "key", rec.Key, "uploadId", rec.UploadID, "parts", len(req.Parts))
	ctx.PureJSON(http.StatusOK, &CompleteResponse{Key: resp.Key, ETag: resp.ETag})
}

// Abort discards an upload. Aborting an already aborted upload succeeds.
func (h *MultipartHandler) Abort(ctx *gin.Context) {
	var req AbortRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.Abort(ctx, api.Errorf(api.CodeInvalidRequest, "failed to bind json: %v", err))
		return
	}

	rec, err := h.lookup(ctx, req.Key, req.UploadID)
	if err != nil {
		api.Abort(ctx, err)
		return
	}

	switch rec.Status {
	case blob.UploadAborted:
		ctx.PureJSON(http.StatusOK, &AbortResponse{Key: rec.Key, UploadID: rec.UploadID})
		return
	case blob.UploadCompleted:
		api.Abort(ctx, indexError(blob.ErrUploadConflict))
		return
	}

	err = h.blob.Backend().AbortMultipartUpload(ctx.Request.Context(), rec.Key, rec.UploadID)
	if err != nil && !errors.Is(err, blob.ErrUploadNotFound) {
		api.Abort(ctx, storageError("abort multipart upload", err))
		return
	}

	if err := h.blob.Index().Transition(ctx.Request.Context(), rec.UploadID, blob.UploadAborted); err != nil {
		api.Abort(ctx, indexError(err))
		return
	}

	slog.Info("multipart abort", "key", rec.Key, "uploadId", rec.UploadID)
	ctx.PureJSON(http.StatusOK, &AbortResponse{Key: rec.Key, UploadID: rec.UploadID})
}

// session returns a non-terminal upload owned by the caller.
func (h *MultipartHandler) session(ctx *gin.Context, key, uploadID string) (*blob.UploadRecord, error) {
	rec, err := h.lookup(ctx, key, uploadID)
	if err != nil {
		return nil, err
	}
	if rec.Status.IsTerminal() {
		return nil, api.Errorf(api.CodeUploadConflict, "upload %s is %s", uploadID, rec.Status).
			WithDetail("status", string(rec.Status))
	}
	return rec, nil
}

// lookup hides uploads that belong to a different key or subject.
func (h *MultipartHandler) lookup(ctx *gin.Context, key, uploadID string) (*blob.UploadRecord, error) {
	rec, err := h.blob.Index().Get(ctx.Request.Context(), uploadID)
	if err != nil {
		return nil, indexError(err)
	}

	user := ctx.GetString("user")
	if rec.Key != key || (rec.Subject != "" && rec.Subject != user) {
		return nil, indexError(blob.ErrUploadNotFound)
	}
	return rec, nil
}

func (h *MultipartHandler) maxPartNumber(rec *blob.UploadRecord) int {
	if rec.PartSize <= 0 {
		return h.config.MaxParts
	}
	return int(min(partCount(rec.Size, rec.PartSize), int64(h.config.MaxParts)))
}

func (h *MultipartHandler) abortDetached(key, uploadID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.blob.Backend().AbortMultipartUpload(ctx, key, uploadID); err != nil {
		slog.Warn("multipart create rollback", "key", key, "uploadId", uploadID, "error", err)
	}
}

// validateManifest checks that parts are non-empty, in range, duplicate free
// and strictly ascending.
func validateManifest(parts []blob.CompletedPart, maxParts int) error {
	seen := mapset.NewThreadUnsafeSetWithSize[int](len(parts))
	prev := 0
	for _, p := range parts {
		if p.PartNumber < 1 || p.PartNumber > maxParts {
			return fmt.Errorf("partNumber %d out of range 1..%d", p.PartNumber, maxParts)
		}
		if p.ETag == "" {
			return fmt.Errorf("part %d has no eTag", p.PartNumber)
		}
		if !seen.Add(p.PartNumber) {
			return fmt.Errorf("duplicate partNumber %d", p.PartNumber)
		}
		if p.PartNumber < prev {
			return fmt.Errorf("parts must be sorted by partNumber, %d follows %d", p.PartNumber, prev)
		}
		prev = p.PartNumber
	}
	return nil
}

// partCount is ceil(size/partSize) without the overflow of size+partSize-1.
func partCount(size, partSize int64) int64 {
	n := size / partSize
	if size%partSize != 0 {
		n++
	}
	return n
}

func indexError(err error) error {
	switch {
	case errors.Is(err, blob.ErrUploadNotFound):
		return api.NewError(api.CodeUploadNotFound, "upload not found")
	case errors.Is(err, blob.ErrUploadConflict):
		return api.NewError(api.CodeUploadConflict, "upload is already completed or aborted")
	default:
		return err
	}
}

func storageError(op string, err error) error {
	switch {
	case errors.Is(err, blob.ErrUploadNotFound):
		return api.Errorf(api.CodeUploadNotFound, "%s: %v", op, err)
	case errors.Is(err, blob.ErrInvalidKey), errors.Is(err, blob.ErrInvalidEncrypt), errors.Is(err, blob.ErrInvalidPartList):
		return api.Errorf(api.CodeInvalidRequest, "%s: %v", op, err)
	default:
		return api.Errorf(api.CodeStorageError, "%s: %v", op, err)
	}
}
