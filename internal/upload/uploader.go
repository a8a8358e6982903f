package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openmined/syftupload/internal/retry"
	"github.com/openmined/syftupload/internal/sdk"
	"golang.org/x/sync/errgroup"
)

const abortTimeout = 10 * time.Second

// Uploader runs multipart uploads against a control plane. It holds no
// per-upload state and is safe for concurrent use.
type Uploader struct {
	cp    ControlPlane
	parts *PartUploader
}

type UploaderOption func(*Uploader)

// WithHTTPClient sets the client used for part PUTs.
func WithHTTPClient(client *http.Client) UploaderOption {
	return func(u *Uploader) {
		u.parts = NewPartUploader(client)
	}
}

func New(cp ControlPlane, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		cp:    cp,
		parts: NewPartUploader(nil),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// partTask is a part together with the URL it will be PUT to.
type partTask struct {
	part Part
	url  string
}

// Upload sends file as a multipart upload. ctx is the cancellation signal:
// cancelling it stops every in-flight part. Any failure after the upload was
// created triggers a best-effort abort before the error is returned.
func (u *Uploader) Upload(ctx context.Context, file *File, metadata map[string]string, options *Options) (*Session, error) {
	opts := options.withDefaults()

	partSize, err := ResolvePartSize(file.Size, opts.PartSize)
	if err != nil {
		return nil, newError(OpPlan, 0, err)
	}
	parts := PlanParts(file.Size, partSize)

	created, err := u.cp.Create(ctx, &sdk.CreateMultipartParams{
		Filename:    file.Name,
		Size:        file.Size,
		ContentType: file.ContentType,
		PartSize:    partSize,
		Metadata:    metadata,
		Encryption:  opts.Encryption,
	})
	if err != nil {
		// nothing exists server-side yet
		return nil, u.fail(ctx, nil, OpCreate, 0, err)
	}

	session := &Session{
		Key:        created.Key,
		UploadID:   created.UploadID,
		PartSize:   partSize,
		TotalParts: len(parts),
		Status:     StatusCreated,
	}
	log := slog.With("key", session.Key, "uploadId", session.UploadID)
	log.Debug("multipart upload start", "size", file.Size, "partSize", partSize, "parts", len(parts), "concurrency", opts.Concurrency)

	manifest, err := u.uploadParts(ctx, session, file, parts, &opts)
	if err != nil {
		var upErr *Error
		if !errors.As(err, &upErr) {
			upErr = newError(OpUpload, 0, err)
		}
		return nil, u.fail(ctx, session, upErr.Op, upErr.Part, upErr.Err)
	}

	resp, err := u.cp.Complete(ctx, &sdk.CompleteMultipartParams{
		Key:      session.Key,
		UploadID: session.UploadID,
		Parts:    manifest,
	})
	if err != nil {
		return nil, u.fail(ctx, session, OpComplete, 0, err)
	}

	session.Status = StatusCompleted
	session.ETag = resp.ETag
	session.Parts = manifest
	log.Debug("multipart upload complete", "parts", len(manifest))
	return session, nil
}

// fail aborts session, if any, and builds the error the caller sees.
func (u *Uploader) fail(ctx context.Context, session *Session, op string, part int, err error) error {
	if ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}

	upErr := newError(op, part, err)
	if session != nil {
		upErr.Key = session.Key
		upErr.UploadID = session.UploadID
		u.abort(ctx, session)
	}
	return upErr
}

// abort runs detached from ctx so cancelled uploads are still cleaned up.
// Its own failure is only logged.
func (u *Uploader) abort(ctx context.Context, session *Session) {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	session.Status = StatusAborted
	err := u.cp.Abort(abortCtx, &sdk.AbortMultipartParams{Key: session.Key, UploadID: session.UploadID})
	if err != nil {
		slog.Warn("multipart abort failed", "key", session.Key, "uploadId", session.UploadID, "error", err)
	}
}

// uploadParts presigns parts in batches and uploads them with exactly
// opts.Concurrency workers. The manifest is ordered by part number no matter
// in which order the parts finish.
func (u *Uploader) uploadParts(ctx context.Context, session *Session, file *File, parts []Part, opts *Options) ([]sdk.CompletedPart, error) {
	session.Status = StatusUploading

	tracker := newProgressTracker(file.Size, len(parts), opts.OnProgress)
	etags := make([]string, len(parts))

	eg, egCtx := errgroup.WithContext(ctx)
	work := make(chan partTask, opts.Concurrency)

	// producer: batches are presigned only when the queue has room, so URLs
	// are minted shortly before they are used
	eg.Go(func() error {
		defer close(work)
		for start := 0; start < len(parts); start += opts.PresignBatchSize {
			batch := parts[start:min(start+opts.PresignBatchSize, len(parts))]

			urls, err := u.presign(egCtx, session, batch, opts.Retry)
			if err != nil {
				return newError(OpPresign, batch[0].Number, err)
			}

			for _, p := range batch {
				select {
				case work <- partTask{part: p, url: urls[p.Number]}:
				case <-egCtx.Done():
					return egCtx.Err()
				}
			}
		}
		return nil
	})

	workers := min(opts.Concurrency, len(parts))
	for range workers {
		eg.Go(func() error {
			for task := range work {
				etag, err := u.uploadPart(egCtx, session, file, task, opts.Retry, tracker)
				if err != nil {
					return newError(OpUpload, task.part.Number, err)
				}
				etags[task.part.Number-1] = etag
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	manifest := make([]sdk.CompletedPart, len(parts))
	for i, etag := range etags {
		manifest[i] = sdk.CompletedPart{PartNumber: i + 1, ETag: etag}
	}
	return manifest, nil
}

// uploadPart PUTs one part, retrying transient failures. A 403 usually means
// the presigned URL expired, so the part is presigned again once within the
// same attempt.
func (u *Uploader) uploadPart(ctx context.Context, session *Session, file *File, task partTask, cfg retry.Config, tracker *progressTracker) (string, error) {
	p := task.part
	url := task.url
	onProgress := func(n int64) { tracker.set(p.Number, n) }

	var etag string
	err := retry.Do(ctx, cfg, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			tracker.set(p.Number, 0)
			slog.Debug("part retry", "key", session.Key, "part", p.Number, "attempt", attempt)
		}

		var err error
		etag, err = u.parts.Put(ctx, url, file.section(p), onProgress)
		if err == nil || !isExpiredURL(err) {
			return err
		}

		tracker.set(p.Number, 0)
		urls, presignErr := u.presign(ctx, session, []Part{p}, cfg)
		if presignErr != nil {
			return presignErr
		}
		url = urls[p.Number]

		etag, err = u.parts.Put(ctx, url, file.section(p), onProgress)
		return err
	}, isTransientPartError)
	if err != nil {
		return "", err
	}

	tracker.complete(p.Number, p.Size)
	return etag, nil
}

// presign requests URLs for parts in one call, retried on transient errors.
// Every attempt is a new signed request.
func (u *Uploader) presign(ctx context.Context, session *Session, parts []Part, cfg retry.Config) (map[int]string, error) {
	params := &sdk.PresignPartsParams{
		Key:      session.Key,
		UploadID: session.UploadID,
		Parts:    make([]sdk.PartNumber, len(parts)),
	}
	for i, p := range parts {
		params.Parts[i] = sdk.PartNumber{PartNumber: p.Number}
	}

	var resp *sdk.PresignPartsResponse
	err := retry.Do(ctx, cfg, func(ctx context.Context, _ int) error {
		var err error
		resp, err = u.cp.PresignParts(ctx, params)
		return err
	}, sdk.IsRetryable)
	if err != nil {
		return nil, err
	}

	urls := make(map[int]string, len(resp.Parts))
	for _, p := range resp.Parts {
		urls[p.PartNumber] = p.PresignedURL
	}
	for _, p := range parts {
		if urls[p.Number] == "" {
			return nil, fmt.Errorf("presign response is missing part %d", p.Number)
		}
	}
	return urls, nil
}
