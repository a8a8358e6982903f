package upload

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rows":[1,2,3]}`), 0o644))

	file, err := Open(path)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, "report.json", file.Name)
	assert.EqualValues(t, 16, file.Size)
	assert.Equal(t, "application/json", file.ContentType)

	b, err := io.ReadAll(file.section(Part{Number: 2, Offset: 9, Size: 7}))
	require.NoError(t, err)
	assert.Equal(t, "1,2,3]}", string(b))
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.bin"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}
