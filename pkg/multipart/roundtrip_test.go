package multipart_test

import (
	"bytes"
	"io"
	mimemultipart "mime/multipart"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recoveredPart struct {
	Name     string
	Filename string
	Body     string
}

// TestRoundTrip builds real multipart bodies with the standard library
// writer and checks every part comes back byte for byte.
func TestRoundTrip(t *testing.T) {
	tbl := []struct {
		name  string
		parts []recoveredPart
	}{
		{
			name: "fields only",
			parts: []recoveredPart{
				{Name: "a", Body: "1"},
				{Name: "b", Body: "two"},
				{Name: "c", Body: ""},
			},
		},
		{
			name: "mixed fields and files",
			parts: []recoveredPart{
				{Name: "title", Body: "holiday photos"},
				{Name: "photo", Filename: "p.bin", Body: "\x00\x01\x02\xff binary \r\n\r\n--not-a-boundary\r\n"},
				{Name: "notes", Body: strings.Repeat("long text ", 500)},
			},
		},
		{
			name: "large file straddling many chunks",
			parts: []recoveredPart{
				{Name: "blob", Filename: "blob.dat", Body: strings.Repeat("0123456789\r\n", 10000)},
			},
		},
	}

	for _, tc := range tbl {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := mimemultipart.NewWriter(&buf)
			for _, p := range tc.parts {
				var (
					fw  io.Writer
					err error
				)
				if p.Filename != "" {
					fw, err = w.CreateFormFile(p.Name, p.Filename)
				} else {
					fw, err = w.CreateFormField(p.Name)
				}
				if err != nil {
					t.Fatalf("create part: %v", err)
				}
				if _, err := fw.Write([]byte(p.Body)); err != nil {
					t.Fatalf("write part: %v", err)
				}
			}
			if err := w.Close(); err != nil {
				t.Fatalf("close writer: %v", err)
			}

			body := buf.String()
			s := newMemoryStreamer(t, int64(len(body)), w.Boundary())
			if err := feedAll(t, s, body, 1000); err != nil {
				t.Fatalf("feed failed: %v", err)
			}

			got := make([]recoveredPart, 0, len(s.Parts()))
			for _, p := range s.Parts() {
				got = append(got, recoveredPart{
					Name:     p.Name(),
					Filename: p.Filename(),
					Body:     partBody(t, p),
				})
			}

			if diff := cmp.Diff(tc.parts, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
