package blob

type KeyRequest struct {
	Key string `json:"key" binding:"required"`
}

type PresignUploadRequest struct {
	Key         string `json:"key" binding:"required"`
	ContentType string `json:"contentType"`
}

type PresignUploadResponse struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

type PresignDownloadResponse struct {
	URL string `json:"url"`
}

type ExistsResponse struct {
	Exists bool `json:"exists"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}
