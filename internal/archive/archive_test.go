package archive

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raoulx24/save-archiver/internal/fs"
)

func writeZip(t *testing.T, dir string, content []byte) string {
	t.Helper()
	var buf bytes.Buffer
	mod := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err := Write(&buf, "Slot_00000002.save", mod, bytes.NewReader(content))
	require.NoError(t, err)

	p := filepath.Join(dir, "Slot_00000002.save_2024-03-01_10-00-00.zip")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
	return p
}

func TestCompressedRoundTrip(t *testing.T) {
	content := bytes.Repeat([]byte("household "), 1000)
	p := writeZip(t, t.TempDir(), content)

	c, err := Open(fs.New(), p, true)
	require.NoError(t, err)
	defer c.Close()

	got, err := io.ReadAll(c)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, "Slot_00000002.save", c.Name)
}

func TestRawOpen(t *testing.T) {
	p := filepath.Join(t.TempDir(), "Slot_1.save_2024-03-01_10-00-00.bak")
	require.NoError(t, os.WriteFile(p, []byte("raw"), 0o644))

	c, err := Open(fs.New(), p, false)
	require.NoError(t, err)
	defer c.Close()

	got, err := io.ReadAll(c)
	require.NoError(t, err)
	assert.Equal(t, "raw", string(got))
}

func TestMissingBackupIsCorrupt(t *testing.T) {
	_, err := Open(fs.New(), filepath.Join(t.TempDir(), "gone.zip"), true)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGarbageArchiveIsCorrupt(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(p, []byte("definitely not a zip file"), 0o644))

	_, err := Open(fs.New(), p, true)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestTruncatedArchiveIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	p := writeZip(t, dir, bytes.Repeat([]byte("x"), 4096))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p, b[:len(b)/2], 0o644))

	c, err := Open(fs.New(), p, true)
	if err == nil {
		_, err = io.ReadAll(c)
		c.Close()
	}
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestMultiEntryArchiveIsCorrupt(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, n := range []string{"a.save", "b.save"} {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte(n))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	p := filepath.Join(t.TempDir(), "two.zip")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))

	_, err := Open(fs.New(), p, true)
	assert.ErrorIs(t, err, ErrCorrupt)
}
