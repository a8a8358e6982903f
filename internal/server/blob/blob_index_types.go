package blob

import "errors"

var ErrUploadConflict = errors.New("multipart upload is already finished")

type UploadStatus string

const (
	UploadCreated   UploadStatus = "created"
	UploadUploading UploadStatus = "uploading"
	UploadCompleted UploadStatus = "completed"
	UploadAborted   UploadStatus = "aborted"
)

// IsTerminal reports whether no further transitions are allowed.
func (s UploadStatus) IsTerminal() bool {
	return s == UploadCompleted || s == UploadAborted
}

// UploadRecord is the server's view of one multipart upload. Times are Unix ms.
type UploadRecord struct {
	UploadID  string       `db:"upload_id" json:"uploadId"`
	Key       string       `db:"key" json:"key"`
	Status    UploadStatus `db:"status" json:"status"`
	Size      int64        `db:"size" json:"size"`
	PartSize  int64        `db:"part_size" json:"partSize"`
	Subject   string       `db:"subject" json:"subject,omitempty"`
	CreatedAt int64        `db:"created_at" json:"createdAt"`
	UpdatedAt int64        `db:"updated_at" json:"updatedAt"`
}
