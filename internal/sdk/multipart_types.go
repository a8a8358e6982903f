package sdk

type Encryption struct {
	Algorithm string `json:"algorithm"`
	KMSKeyID  string `json:"kmsKeyId,omitempty"`
}

type CreateMultipartParams struct {
	Filename    string            `json:"filename"`
	Size        int64             `json:"size"`
	ContentType string            `json:"contentType,omitempty"`
	PartSize    int64             `json:"partSize,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Encryption  *Encryption       `json:"encryption,omitempty"`
}

type CreateMultipartResponse struct {
	UploadID string `json:"uploadId"`
	Key      string `json:"key"`
}

type PartNumber struct {
	PartNumber int `json:"partNumber"`
}

type PresignPartsParams struct {
	Key      string       `json:"key"`
	UploadID string       `json:"uploadId"`
	Parts    []PartNumber `json:"parts"`
}

type PresignedPart struct {
	PartNumber   int    `json:"partNumber"`
	PresignedURL string `json:"presignedUrl"`
}

type PresignPartsResponse struct {
	Parts []PresignedPart `json:"parts"`
}

type CompletedPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"eTag"`
}

type CompleteMultipartParams struct {
	Key      string          `json:"key"`
	UploadID string          `json:"uploadId"`
	Parts    []CompletedPart `json:"parts"`
}

type CompleteMultipartResponse struct {
	Key  string `json:"key"`
	ETag string `json:"eTag,omitempty"`
}

type AbortMultipartParams struct {
	Key      string `json:"key"`
	UploadID string `json:"uploadId"`
}
