package upload

import (
	"errors"
	"fmt"

	"github.com/openmined/syftupload/internal/sdk"
)

var (
	ErrCancelled    = errors.New("upload cancelled")
	ErrEmptyFile    = errors.New("file is empty")
	ErrFileNotFound = errors.New("file not found")
	ErrMissingETag  = errors.New("storage response has no ETag")
)

const (
	CodeCancelled    = "CANCELLED"
	CodeInvalidInput = "INVALID_INPUT"
	CodePartFailed   = "PART_UPLOAD_FAILED"
)

const (
	OpPlan     = "plan"
	OpCreate   = "create"
	OpPresign  = "presign"
	OpUpload   = "upload"
	OpComplete = "complete"
)

// Error is the single error an upload fails with. Code is a control-plane
// error code when the control plane rejected a call, otherwise one of the
// Code* constants of this package.
type Error struct {
	Code     string
	Op       string
	Part     int
	Key      string
	UploadID string
	Err      error
}

func newError(op string, part int, err error) *Error {
	e := &Error{Op: op, Part: part, Err: err}

	var apiErr *sdk.APIError
	switch {
	case errors.Is(err, ErrCancelled):
		e.Code = CodeCancelled
	case errors.As(err, &apiErr):
		e.Code = apiErr.Code
	case op == OpPlan:
		e.Code = CodeInvalidInput
	case op == OpUpload:
		e.Code = CodePartFailed
	default:
		e.Code = sdk.CodeUnknownError
	}
	return e
}

func (e *Error) Error() string {
	if e.Part > 0 {
		return fmt.Sprintf("upload %s part %d: %s: %v", e.Op, e.Part, e.Code, e.Err)
	}
	return fmt.Sprintf("upload %s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusError is a part PUT answered with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("storage responded %d: %s", e.StatusCode, e.Body)
}
