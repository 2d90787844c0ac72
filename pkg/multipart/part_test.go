package multipart_test

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamform/pkg/multipart"
)

func fieldHeader(name string) multipart.Header {
	h := make(multipart.Header)
	h.Set("Content-Disposition", `form-data; name="`+name+`"`)
	return h
}

func fileHeader(name, filename string) multipart.Header {
	h := make(multipart.Header)
	h.Set("Content-Disposition", `form-data; name="`+name+`"; filename="`+filename+`"`)
	return h
}

func TestMemoryPart(t *testing.T) {
	p := multipart.NewMemoryPart(fieldHeader("greeting"))

	n, err := p.Write([]byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, err = p.Write([]byte("world"))
	require.NoError(t, err)

	require.NoError(t, p.Finalize())
	assert.True(t, p.Finished())
	assert.Equal(t, int64(11), p.Size())
	assert.Equal(t, "hello world", p.String())
	assert.Equal(t, []byte("hello world"), p.Bytes())

	rc, err := p.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	require.NoError(t, rc.Close())

	require.NoError(t, p.Release())
	require.NoError(t, p.Release())
}

func TestFilePart_WriteReadBack(t *testing.T) {
	dir := t.TempDir()
	p, err := multipart.NewFilePart(fileHeader("doc", "a.txt"), dir)
	require.NoError(t, err)

	_, err = p.Write([]byte("first "))
	require.NoError(t, err)
	_, err = p.Write([]byte("second"))
	require.NoError(t, err)
	require.NoError(t, p.Finalize())

	assert.Equal(t, int64(12), p.Size())
	assert.Equal(t, "doc", p.Name())
	assert.Equal(t, "a.txt", p.Filename())
	assert.True(t, p.IsFile())

	// Open repositions to the start every time.
	for i := 0; i < 2; i++ {
		rc, err := p.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "first second", string(data))
	}

	path := p.Path()
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, p.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "temp file should be removed on release")
}

func TestFilePart_ReleaseWithoutFinalize(t *testing.T) {
	dir := t.TempDir()
	p, err := multipart.NewFilePart(fieldHeader("partial"), dir)
	require.NoError(t, err)

	_, err = p.Write([]byte("half-written"))
	require.NoError(t, err)

	// Aborted upload: release without finalize must not leak the file.
	require.NoError(t, p.Release())
	require.NoError(t, p.Release())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Using a released part is a storage error, not a panic.
	_, err = p.Write([]byte("more"))
	assert.True(t, multipart.IsStorageError(err))
	_, err = p.Open()
	assert.True(t, multipart.IsStorageError(err))
}

func TestCompressedFilePart(t *testing.T) {
	content := "compressible compressible compressible compressible"

	for _, algo := range []string{multipart.CompressionGzip, multipart.CompressionLZ4} {
		t.Run(algo, func(t *testing.T) {
			dir := t.TempDir()
			p, err := multipart.NewCompressedFilePart(fileHeader("f", "f.bin"), dir, algo)
			require.NoError(t, err)

			_, err = p.Write([]byte(content))
			require.NoError(t, err)

			// The body is not readable until the trailer is flushed.
			_, err = p.Open()
			assert.True(t, multipart.IsStorageError(err))

			require.NoError(t, p.Finalize())
			assert.Equal(t, int64(len(content)), p.Size())

			rc, err := p.Open()
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, content, string(data))

			stored, err := p.StoredSize()
			require.NoError(t, err)
			assert.Greater(t, stored, int64(0))

			require.NoError(t, p.Release())
			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestCompressedFilePart_ReleaseWithoutFinalize(t *testing.T) {
	dir := t.TempDir()
	p, err := multipart.NewCompressedFilePart(fieldHeader("x"), dir, multipart.CompressionGzip)
	require.NoError(t, err)

	_, err = p.Write([]byte("abandoned"))
	require.NoError(t, err)

	require.NoError(t, p.Release())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCompressedFilePart_CorruptBackingFile(t *testing.T) {
	dir := t.TempDir()
	p, err := multipart.NewCompressedFilePart(fieldHeader("x"), dir, multipart.CompressionGzip)
	require.NoError(t, err)

	_, err = p.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, p.Finalize())

	require.NoError(t, os.WriteFile(p.Path(), []byte("not a gzip stream"), 0o600))

	_, err = p.Open()
	require.Error(t, err)
	assert.True(t, multipart.IsStorageError(err))
}

func TestCompressedFilePart_UnknownAlgorithm(t *testing.T) {
	_, err := multipart.NewCompressedFilePart(fieldHeader("x"), t.TempDir(), "zstd")
	require.Error(t, err)
	assert.True(t, multipart.IsConfigurationError(err))
}
