package api

import "net/http"

const (
	// Signature verification
	CodeSignatureMissing = "SIGNATURE_MISSING" // x-signature header absent
	CodeTimestampMissing = "TIMESTAMP_MISSING" // x-timestamp header absent
	CodeTimestampInvalid = "TIMESTAMP_INVALID" // x-timestamp is not a Unix millisecond integer
	CodeTimestampExpired = "TIMESTAMP_EXPIRED" // outside the accepted clock skew
	CodeNonceMissing     = "NONCE_MISSING"     // nonce required but absent
	CodeNonceReused      = "NONCE_REUSED"      // replayed request; re-sign with a new nonce
	CodeSignatureInvalid = "SIGNATURE_INVALID" // HMAC did not match

	// Access
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"

	// Requests and uploads
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUploadNotFound = "UPLOAD_NOT_FOUND"
	CodeUploadConflict = "UPLOAD_CONFLICT" // upload already completed or aborted
	CodeStorageError   = "STORAGE_ERROR"   // the storage backend rejected the operation

	CodeInternalError = "INTERNAL_SERVER_ERROR"
)

var statusByCode = map[string]int{
	CodeSignatureMissing:  http.StatusUnauthorized,
	CodeTimestampMissing:  http.StatusUnauthorized,
	CodeTimestampInvalid:  http.StatusUnauthorized,
	CodeTimestampExpired:  http.StatusUnauthorized,
	CodeNonceMissing:      http.StatusUnauthorized,
	CodeNonceReused:       http.StatusUnauthorized,
	CodeSignatureInvalid:  http.StatusUnauthorized,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeRateLimitExceeded: http.StatusTooManyRequests,
	CodeInvalidRequest:    http.StatusBadRequest,
	CodeUploadNotFound:    http.StatusNotFound,
	CodeUploadConflict:    http.StatusConflict,
	CodeStorageError:      http.StatusBadGateway,
	CodeInternalError:     http.StatusInternalServerError,
}

// StatusFor returns the HTTP status served for code.
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
