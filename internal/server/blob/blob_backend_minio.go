package blob

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/encrypt"
)

// MinioBackend talks to MinIO or any S3-compatible endpoint through the
// minio-go Core API, which exposes the individual multipart calls.
type MinioBackend struct {
	core   *minio.Core
	config *Config
}

func NewMinioBackend(core *minio.Core, config *Config) *MinioBackend {
	return &MinioBackend{core: core, config: config}
}

func NewMinioBackendWithConfig(cfg *Config) (*MinioBackend, error) {
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	core, err := minio.NewCore(endpoint.Host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL || endpoint.Scheme == "https",
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return NewMinioBackend(core, cfg), nil
}

func (m *MinioBackend) Name() string {
	return BackendMinio
}

// ===================================================================================================

func (m *MinioBackend) CreateMultipartUpload(ctx context.Context, params *CreateMultipartParams) (*CreateMultipartResponse, error) {
	if !ValidateKey(params.Key) {
		return nil, ErrInvalidKey
	}

	sse, err := minioSSE(params.Encryption)
	if err != nil {
		return nil, err
	}

	uploadID, err := m.core.NewMultipartUpload(ctx, m.config.BucketName, params.Key, minio.PutObjectOptions{
		ContentType:          params.ContentType,
		UserMetadata:         params.Metadata,
		ServerSideEncryption: sse,
	})
	if err != nil {
		return nil, err
	}

	return &CreateMultipartResponse{Key: params.Key, UploadID: uploadID}, nil
}

func (m *MinioBackend) PresignUploadPart(ctx context.Context, params *PresignPartParams) (string, error) {
	if !ValidateKey(params.Key) {
		return "", ErrInvalidKey
	}

	query := url.Values{}
	query.Set("partNumber", strconv.Itoa(params.PartNumber))
	query.Set("uploadId", params.UploadID)

	u, err := m.core.Presign(ctx, "PUT", m.config.BucketName, params.Key, m.config.uploadExpiry(), query)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (m *MinioBackend) CompleteMultipartUpload(ctx context.Context, params *CompleteMultipartParams) (*CompleteMultipartResponse, error) {
	if !ValidateKey(params.Key) {
		return nil, ErrInvalidKey
	}
	if len(params.Parts) == 0 {
		return nil, ErrInvalidPartList
	}

	parts := make([]minio.CompletePart, len(params.Parts))
	for i, part := range params.Parts {
		parts[i] = minio.CompletePart{PartNumber: part.PartNumber, ETag: part.ETag}
	}

	info, err := m.core.CompleteMultipartUpload(ctx, m.config.BucketName, params.Key, params.UploadID, parts, minio.PutObjectOptions{})
	if err != nil {
		return nil, mapMinioError(err)
	}

	lastModified := info.LastModified
	if lastModified.IsZero() {
		lastModified = time.Now().UTC()
	}

	return &CompleteMultipartResponse{
		Key:          params.Key,
		ETag:         cleanETag(info.ETag),
		Version:      info.VersionID,
		LastModified: lastModified,
	}, nil
}

func (m *MinioBackend) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	if !ValidateKey(key) {
		return ErrInvalidKey
	}
	return mapMinioError(m.core.AbortMultipartUpload(ctx, m.config.BucketName, key, uploadID))
}

// ===================================================================================================

func (m *MinioBackend) PresignUpload(ctx context.Context, params *PresignUploadParams) (*PresignUploadResponse, error) {
	if !ValidateKey(params.Key) {
		return nil, ErrInvalidKey
	}

	u, err := m.core.PresignedPutObject(ctx, m.config.BucketName, params.Key, m.config.uploadExpiry())
	if err != nil {
		return nil, err
	}

	// content type is not part of a v4 query presign, so it is only advisory here
	resp := &PresignUploadResponse{URL: u.String(), Headers: make(map[string][]string)}
	if params.ContentType != "" {
		resp.Headers.Set("Content-Type", params.ContentType)
	}
	return resp, nil
}

func (m *MinioBackend) PresignDownload(ctx context.Context, key string) (string, error) {
	if !ValidateKey(key) {
		return "", ErrInvalidKey
	}

	u, err := m.core.PresignedGetObject(ctx, m.config.BucketName, key, m.config.downloadExpiry(), nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (m *MinioBackend) ObjectExists(ctx context.Context, key string) (bool, error) {
	if !ValidateKey(key) {
		return false, ErrInvalidKey
	}

	_, err := m.core.StatObject(ctx, m.config.BucketName, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *MinioBackend) DeleteObject(ctx context.Context, key string) (bool, error) {
	if !ValidateKey(key) {
		return false, ErrInvalidKey
	}

	if err := m.core.RemoveObject(ctx, m.config.BucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return false, err
	}
	return true, nil
}

// ===================================================================================================

func minioSSE(enc *Encryption) (encrypt.ServerSide, error) {
	if enc == nil {
		return nil, nil
	}
	if err := enc.Validate(); err != nil {
		return nil, err
	}

	switch enc.Algorithm {
	case SSEAlgorithmKMS:
		return encrypt.NewSSEKMS(enc.KMSKeyID, nil)
	default:
		return encrypt.NewSSE(), nil
	}
}

func mapMinioError(err error) error {
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchUpload" {
		return fmt.Errorf("%w: %w", ErrUploadNotFound, err)
	}
	return err
}

var _ Backend = (*MinioBackend)(nil)
