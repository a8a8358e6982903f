package upload

import (
	"context"

	"github.com/openmined/syftupload/internal/retry"
	"github.com/openmined/syftupload/internal/sdk"
)

const (
	DefaultConcurrency      = 4
	DefaultPresignBatchSize = 100
)

// ControlPlane is the subset of the control-plane API an upload drives.
// *sdk.MultipartAPI implements it.
type ControlPlane interface {
	Create(ctx context.Context, params *sdk.CreateMultipartParams) (*sdk.CreateMultipartResponse, error)
	PresignParts(ctx context.Context, params *sdk.PresignPartsParams) (*sdk.PresignPartsResponse, error)
	Complete(ctx context.Context, params *sdk.CompleteMultipartParams) (*sdk.CompleteMultipartResponse, error)
	Abort(ctx context.Context, params *sdk.AbortMultipartParams) error
}

var _ ControlPlane = (*sdk.MultipartAPI)(nil)

type Options struct {
	// PartSize in bytes. Zero picks DefaultPartSize, grown to fit MaxParts.
	PartSize int64
	// Concurrency is the number of parts in flight.
	Concurrency int
	// PresignBatchSize is the number of parts presigned per request.
	PresignBatchSize int
	// Retry applies to each part PUT and each presign batch.
	Retry      retry.Config
	OnProgress ProgressFunc
	Encryption *sdk.Encryption
}

func (o *Options) withDefaults() Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.PresignBatchSize <= 0 {
		opts.PresignBatchSize = DefaultPresignBatchSize
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.DefaultConfig()
	}
	return opts
}

type Status string

const (
	StatusCreated   Status = "created"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// Session describes one multipart upload. It is never reused across files.
type Session struct {
	Key        string
	UploadID   string
	PartSize   int64
	TotalParts int
	Status     Status
	// ETag of the assembled object, set once completed.
	ETag string
	// Parts is the completion manifest, ascending by part number.
	Parts []sdk.CompletedPart
}
