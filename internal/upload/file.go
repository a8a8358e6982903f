package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openmined/syftupload/internal/utils"
)

// File is the source of an upload. Parts are read concurrently through
// ReadAt, so the reader must support concurrent calls (os.File and
// bytes.Reader do).
type File struct {
	Name        string
	ContentType string
	Size        int64

	reader io.ReaderAt
	closer io.Closer
}

// NewFile wraps r. ContentType is guessed from name.
func NewFile(name string, r io.ReaderAt, size int64) *File {
	return &File{
		Name:        name,
		ContentType: utils.DetectContentType(name),
		Size:        size,
		reader:      r,
	}
}

// Open opens a local file for upload. The caller must Close it.
func Open(path string) (*File, error) {
	if !utils.FileExists(path) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	file := NewFile(filepath.Base(path), f, info.Size())
	file.closer = f
	return file, nil
}

func (f *File) section(p Part) *io.SectionReader {
	return io.NewSectionReader(f.reader, p.Offset, p.Size)
}

func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
