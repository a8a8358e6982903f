package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
)

const (
	// client-side codes, never sent by the server
	CodeNetworkError = "NETWORK_ERROR"
	CodeUnknownError = "UNKNOWN_ERROR"

	CodeSignatureMissing  = "SIGNATURE_MISSING"
	CodeTimestampMissing  = "TIMESTAMP_MISSING"
	CodeTimestampInvalid  = "TIMESTAMP_INVALID"
	CodeTimestampExpired  = "TIMESTAMP_EXPIRED"
	CodeNonceMissing      = "NONCE_MISSING"
	CodeNonceReused       = "NONCE_REUSED"
	CodeSignatureInvalid  = "SIGNATURE_INVALID"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeUploadNotFound    = "UPLOAD_NOT_FOUND"
	CodeUploadConflict    = "UPLOAD_CONFLICT"
	CodeStorageError      = "STORAGE_ERROR"
	CodeInternalError     = "INTERNAL_SERVER_ERROR"
)

// APIError is a failed control-plane call.
type APIError struct {
	Code       string         `json:"code"`
	Message    string         `json:"error"`
	Details    map[string]any `json:"details,omitempty"`
	StatusCode int            `json:"-"`

	err error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("api error: %s (%d) - %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.err
}

// IsRetryable reports whether a call failing with err may succeed when signed
// and sent again: transport failures, 429 and 5xx responses.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch {
	case apiErr.Code == CodeNetworkError:
		return true
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return true
	case apiErr.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// handleAPIError turns a transport error or an error response into an error.
func handleAPIError(ctx context.Context, resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", operation, ctxErr)
		}
		return fmt.Errorf("%s: %w", operation, &APIError{
			Code:    CodeNetworkError,
			Message: requestErr.Error(),
			err:     requestErr,
		})
	}

	if !resp.IsErrorState() {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	body := resp.Bytes()
	if err := jsonUnmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = CodeUnknownError
		apiErr.Message = fmt.Sprintf("unexpected response: %s %s", resp.Status, truncate(string(body), 256))
	}
	return fmt.Errorf("%s: %w", operation, apiErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
