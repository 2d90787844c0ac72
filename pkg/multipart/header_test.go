package multipart_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamform/pkg/multipart"
)

// feedOnePart runs a single-part body through a streamer and returns the
// parsed header of that part.
func parseOnePartHeader(t *testing.T, headerBlock string) (multipart.Header, error) {
	t.Helper()
	body := "--B\r\n" + headerBlock + "\r\n\r\nx\r\n--B--\r\n"
	s := newMemoryStreamer(t, int64(len(body)), "B")
	if err := s.DataReceived([]byte(body)); err != nil {
		return nil, err
	}
	require.NoError(t, s.DataComplete())
	require.Len(t, s.Parts(), 1)
	return s.Parts()[0].Header(), nil
}

func TestHeader_FieldAccessors(t *testing.T) {
	h, err := parseOnePartHeader(t,
		"Content-Disposition: form-data; name=\"photo\"; filename=\"cat.jpg\"\r\n"+
			"Content-Type: image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, "photo", h.Name())
	assert.Equal(t, "cat.jpg", h.Filename())
	assert.Equal(t, "image/jpeg", h.ContentType())
	assert.True(t, h.IsFile())
}

func TestHeader_PlainField(t *testing.T) {
	h, err := parseOnePartHeader(t, "Content-Disposition: form-data; name=\"age\"")
	require.NoError(t, err)

	assert.Equal(t, "age", h.Name())
	assert.Empty(t, h.Filename())
	assert.False(t, h.IsFile())
}

func TestHeader_CaseInsensitiveLookup(t *testing.T) {
	h, err := parseOnePartHeader(t,
		"content-disposition: form-data; name=\"a\"\r\n"+
			"CONTENT-TYPE: text/plain\r\n"+
			"x-custom-header:   padded value  ")
	require.NoError(t, err)

	assert.Equal(t, "a", h.Name())
	assert.Equal(t, "text/plain", h.Get("Content-Type"))
	assert.Equal(t, "text/plain", h.Get("content-type"))
	// Values are trimmed, names canonicalized.
	assert.Equal(t, "padded value", h.Get("X-Custom-Header"))
}

func TestHeader_MalformedLines(t *testing.T) {
	cases := []struct {
		name  string
		block string
	}{
		{"no colon", "Content-Disposition form-data"},
		{"empty name", ": form-data"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseOnePartHeader(t, tc.block)
			require.Error(t, err)
			assert.True(t, multipart.IsParseError(err))
		})
	}
}

func TestHeader_SetAndGet(t *testing.T) {
	h := make(multipart.Header)
	h.Set("x-thing", "v")
	assert.Equal(t, "v", h.Get("X-Thing"))
	assert.Equal(t, "", h.Get("missing"))
}
