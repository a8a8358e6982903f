package sdk

import (
	"context"
)

const (
	blobPresignUpload   = "/blob/presign-upload"
	blobPresignDownload = "/blob/presign-download"
	blobExists          = "/blob/exists"
	blobDelete          = "/blob/delete"
)

type BlobAPI struct {
	sdk *SDK
}

func newBlobAPI(sdk *SDK) *BlobAPI {
	return &BlobAPI{sdk: sdk}
}

// PresignUpload returns a URL for a single PUT of the whole object. The
// returned headers must be sent with it.
func (b *BlobAPI) PresignUpload(ctx context.Context, key, contentType string) (*PresignUploadResponse, error) {
	var resp PresignUploadResponse
	err := b.sdk.post(ctx, blobPresignUpload, &presignUploadParams{Key: key, ContentType: contentType}, &resp, "blob presign upload")
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *BlobAPI) PresignDownload(ctx context.Context, key string) (string, error) {
	var resp presignDownloadResponse
	if err := b.sdk.post(ctx, blobPresignDownload, &keyParams{Key: key}, &resp, "blob presign download"); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (b *BlobAPI) Exists(ctx context.Context, key string) (bool, error) {
	var resp existsResponse
	if err := b.sdk.post(ctx, blobExists, &keyParams{Key: key}, &resp, "blob exists"); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

func (b *BlobAPI) Delete(ctx context.Context, key string) (bool, error) {
	var resp deleteResponse
	if err := b.sdk.post(ctx, blobDelete, &keyParams{Key: key}, &resp, "blob delete"); err != nil {
		return false, err
	}
	return resp.Deleted, nil
}
