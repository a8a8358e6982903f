package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openmined/syftupload/internal/sdk"
)

// PartUploader PUTs part bytes straight to presigned storage URLs.
type PartUploader struct {
	client *http.Client
}

func NewPartUploader(client *http.Client) *PartUploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &PartUploader{client: client}
}

// Put uploads body to url and returns the part's ETag. onProgress receives the
// running byte count for this attempt.
//
// net/http is used directly: presigned PUTs need an exact Content-Length and a
// body that is streamed, not buffered.
func (u *PartUploader) Put(ctx context.Context, url string, body *io.SectionReader, onProgress func(int64)) (string, error) {
	size := body.Size()
	reader := &progressReader{reader: body, callback: onProgress}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, reader)
	if err != nil {
		return "", err
	}
	req.ContentLength = size
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(&progressReader{reader: io.NewSectionReader(body, 0, size), callback: onProgress}), nil
	}
	if size == 0 {
		req.Body = http.NoBody
	}

	resp, err := u.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("put part: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	etag := strings.Trim(resp.Header.Get("ETag"), `"`)
	if etag == "" {
		return "", ErrMissingETag
	}
	return etag, nil
}

// isTransientPartError reports whether a failed PUT is worth another attempt.
func isTransientPartError(err error) bool {
	if errors.Is(err, ErrMissingETag) {
		return false
	}

	// a failed re-presign surfaces here too
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return sdk.IsRetryable(err)
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return true
		default:
			return statusErr.StatusCode >= http.StatusInternalServerError
		}
	}

	// transport failures
	return true
}

func isExpiredURL(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusForbidden
}

type progressReader struct {
	reader   io.Reader
	read     int64
	callback func(int64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		if pr.callback != nil {
			pr.callback(pr.read)
		}
	}
	return n, err
}
