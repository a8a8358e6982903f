package multipart

import (
	"github.com/openmined/syftupload/internal/server/blob"
)

type CreateRequest struct {
	Filename    string            `json:"filename" binding:"required"`
	Size        int64             `json:"size" binding:"required,gt=0"`
	ContentType string            `json:"contentType"`
	PartSize    int64             `json:"partSize" binding:"gte=0"`
	Metadata    map[string]string `json:"metadata"`
	Encryption  *blob.Encryption  `json:"encryption"`
}

type CreateResponse struct {
	UploadID string `json:"uploadId"`
	Key      string `json:"key"`
}

type PartNumber struct {
	PartNumber int `json:"partNumber" binding:"required,gte=1"`
}

type PresignPartsRequest struct {
	Key      string       `json:"key" binding:"required"`
	UploadID string       `json:"uploadId" binding:"required"`
	Parts    []PartNumber `json:"parts" binding:"required,min=1,dive"`
}

type PresignedPart struct {
	PartNumber   int    `json:"partNumber"`
	PresignedURL string `json:"presignedUrl"`
}

type PresignPartsResponse struct {
	Parts []PresignedPart `json:"parts"`
}

type CompleteRequest struct {
	Key      string               `json:"key" binding:"required"`
	UploadID string               `json:"uploadId" binding:"required"`
	Parts    []blob.CompletedPart `json:"parts" binding:"required,min=1"`
}

type CompleteResponse struct {
	Key  string `json:"key"`
	ETag string `json:"eTag,omitempty"`
}

type AbortRequest struct {
	Key      string `json:"key" binding:"required"`
	UploadID string `json:"uploadId" binding:"required"`
}

type AbortResponse struct {
	Key      string `json:"key"`
	UploadID string `json:"uploadId"`
}
