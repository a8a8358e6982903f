package upload

import (
	"fmt"
)

const (
	// MaxParts is the storage limit on parts per multipart upload.
	MaxParts        = 10000
	DefaultPartSize = 64 << 20
)

// Part is one contiguous byte range of the file. Numbers start at 1.
type Part struct {
	Number int
	Offset int64
	Size   int64
}

// ResolvePartSize picks the part size for a file of size bytes. An explicit
// request is used as given; otherwise the default is doubled until the file
// fits in MaxParts.
func ResolvePartSize(size, requested int64) (int64, error) {
	if size <= 0 {
		return 0, ErrEmptyFile
	}

	if requested < 0 {
		return 0, fmt.Errorf("part size must not be negative, got %d", requested)
	}

	if requested > 0 {
		if n := partCount(size, requested); n > MaxParts {
			return 0, fmt.Errorf("part size %d splits %d bytes into %d parts, max %d", requested, size, n, MaxParts)
		}
		return requested, nil
	}

	partSize := int64(DefaultPartSize)
	for partCount(size, partSize) > MaxParts {
		partSize *= 2
	}
	return partSize, nil
}

// PlanParts splits size bytes into ceil(size/partSize) parts. Only the last
// part may be shorter than partSize.
func PlanParts(size, partSize int64) []Part {
	n := partCount(size, partSize)
	parts := make([]Part, n)
	for i := range parts {
		offset := int64(i) * partSize
		parts[i] = Part{
			Number: i + 1,
			Offset: offset,
			Size:   min(partSize, size-offset),
		}
	}
	return parts
}

// partCount is ceil(size/partSize) without the overflow of size+partSize-1.
func partCount(size, partSize int64) int64 {
	n := size / partSize
	if size%partSize != 0 {
		n++
	}
	return n
}
