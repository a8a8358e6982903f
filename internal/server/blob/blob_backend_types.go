package blob

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	ErrInvalidKey      = errors.New("invalid key")
	ErrUploadNotFound  = errors.New("multipart upload not found")
	ErrUnknownBackend  = errors.New("unknown blob backend")
	ErrInvalidEncrypt  = errors.New("invalid encryption parameters")
	ErrInvalidPartList = errors.New("invalid part list")
)

const (
	SSEAlgorithmAES256 = "AES256"
	SSEAlgorithmKMS    = "aws:kms"
)

// Backend is the storage surface the control plane needs. Implementations
// never see part bytes; clients PUT those directly to presigned URLs.
type Backend interface {
	// CreateMultipartUpload starts a multipart upload and returns its id.
	CreateMultipartUpload(ctx context.Context, params *CreateMultipartParams) (*CreateMultipartResponse, error)

	// PresignUploadPart returns a URL accepting a PUT of one part's bytes.
	PresignUploadPart(ctx context.Context, params *PresignPartParams) (string, error)

	// CompleteMultipartUpload assembles the parts listed in ascending order.
	CompleteMultipartUpload(ctx context.Context, params *CompleteMultipartParams) (*CompleteMultipartResponse, error)

	// AbortMultipartUpload discards the parts uploaded so far.
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error

	// PresignUpload returns a URL, and the headers the client must send with it,
	// for a single-request PUT of a whole object.
	PresignUpload(ctx context.Context, params *PresignUploadParams) (*PresignUploadResponse, error)

	// PresignDownload returns a GET URL for key.
	PresignDownload(ctx context.Context, key string) (string, error)

	ObjectExists(ctx context.Context, key string) (bool, error)

	// DeleteObject removes key, returns true if successful.
	DeleteObject(ctx context.Context, key string) (bool, error)

	// Name identifies the backend in logs.
	Name() string
}

// ===================================================================================================

type Encryption struct {
	Algorithm string `json:"algorithm"`
	KMSKeyID  string `json:"kmsKeyId,omitempty"`
}

func (e *Encryption) Validate() error {
	if e == nil {
		return nil
	}
	switch e.Algorithm {
	case SSEAlgorithmAES256:
		if e.KMSKeyID != "" {
			return errors.Join(ErrInvalidEncrypt, errors.New("kmsKeyId is only valid with aws:kms"))
		}
	case SSEAlgorithmKMS:
	default:
		return errors.Join(ErrInvalidEncrypt, errors.New("algorithm must be AES256 or aws:kms"))
	}
	return nil
}

type CreateMultipartParams struct {
	Key         string
	ContentType string
	Metadata    map[string]string
	Encryption  *Encryption
}

type CreateMultipartResponse struct {
	Key      string
	UploadID string
}

type PresignPartParams struct {
	Key        string
	UploadID   string
	PartNumber int
}

type CompletedPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"eTag"`
}

type CompleteMultipartParams struct {
	Key      string
	UploadID string
	Parts    []CompletedPart
}

type CompleteMultipartResponse struct {
	Key          string
	ETag         string
	Version      string
	LastModified time.Time
}

type PresignUploadParams struct {
	Key         string
	ContentType string
}

type PresignUploadResponse struct {
	URL     string
	Headers http.Header
}
