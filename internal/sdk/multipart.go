package sdk

import (
	"context"
)

const (
	multipartCreate       = "/multipart/create"
	multipartPresignParts = "/multipart/presign-parts"
	multipartComplete     = "/multipart/complete"
	multipartAbort        = "/multipart/abort"
)

type MultipartAPI struct {
	sdk *SDK
}

func newMultipartAPI(sdk *SDK) *MultipartAPI {
	return &MultipartAPI{sdk: sdk}
}

// Create starts a multipart upload.
func (m *MultipartAPI) Create(ctx context.Context, params *CreateMultipartParams) (*CreateMultipartResponse, error) {
	var resp CreateMultipartResponse
	if err := m.sdk.post(ctx, multipartCreate, params, &resp, "multipart create"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PresignParts requests one presigned PUT URL per part.
func (m *MultipartAPI) PresignParts(ctx context.Context, params *PresignPartsParams) (*PresignPartsResponse, error) {
	var resp PresignPartsResponse
	if err := m.sdk.post(ctx, multipartPresignParts, params, &resp, "multipart presign parts"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Complete submits the part manifest, which must be sorted by part number.
func (m *MultipartAPI) Complete(ctx context.Context, params *CompleteMultipartParams) (*CompleteMultipartResponse, error) {
	var resp CompleteMultipartResponse
	if err := m.sdk.post(ctx, multipartComplete, params, &resp, "multipart complete"); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (m *MultipartAPI) Abort(ctx context.Context, params *AbortMultipartParams) error {
	return m.sdk.post(ctx, multipartAbort, params, nil, "multipart abort")
}
