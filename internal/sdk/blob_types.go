package sdk

type keyParams struct {
	Key string `json:"key"`
}

type presignUploadParams struct {
	Key         string `json:"key"`
	ContentType string `json:"contentType,omitempty"`
}

type PresignUploadResponse struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

type presignDownloadResponse struct {
	URL string `json:"url"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

type deleteResponse struct {
	Deleted bool `json:"deleted"`
}
