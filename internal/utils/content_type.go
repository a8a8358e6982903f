package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

const DefaultContentType = "application/octet-stream"

// types missing from, or wrong in, the platform mime tables
var contentTypes = map[string]string{
	".yaml":    "text/plain; charset=utf-8",
	".yml":     "text/plain; charset=utf-8",
	".toml":    "text/plain; charset=utf-8",
	".md":      "text/markdown; charset=utf-8",
	".csv":     "text/csv; charset=utf-8",
	".jsonl":   "application/x-ndjson",
	".ndjson":  "application/x-ndjson",
	".parquet": "application/vnd.apache.parquet",
	".gz":      "application/gzip",
	".zst":     "application/zstd",
}

// DetectContentType guesses a MIME type from the file extension of name.
func DetectContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return DefaultContentType
	}
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return DefaultContentType
}
