package multipart

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
)

// Header holds the header block of a single form part. Keys are stored
// in canonical form ("Content-Disposition"); lookups are case-insensitive.
type Header map[string]string

// Get returns the value for the given header name, or "".
func (h Header) Get(name string) string {
	return h[canonicalKey(name)]
}

// Set stores a header value under the canonical form of name.
func (h Header) Set(name, value string) {
	h[canonicalKey(name)] = value
}

// Name returns the form field name from the Content-Disposition header.
func (h Header) Name() string {
	_, params := h.disposition()
	return params["name"]
}

// Filename returns the filename parameter of the Content-Disposition
// header, or "" for a plain form value.
func (h Header) Filename() string {
	_, params := h.disposition()
	return params["filename"]
}

// ContentType returns the part's declared Content-Type, or "".
func (h Header) ContentType() string {
	return h.Get("Content-Type")
}

// IsFile reports whether the part was submitted as a file input,
// which browsers signal with a filename parameter.
func (h Header) IsFile() bool {
	return h.Filename() != ""
}

func (h Header) disposition() (string, map[string]string) {
	v := h.Get("Content-Disposition")
	if v == "" {
		return "", nil
	}
	mt, params, err := mime.ParseMediaType(v)
	if err != nil {
		return "", nil
	}
	return mt, params
}

// canonicalKey normalizes a header name the way net/textproto does:
// first letter and letters after hyphens upper-cased, rest lower.
func canonicalKey(name string) string {
	b := []byte(strings.TrimSpace(name))
	upper := true
	for i, c := range b {
		if upper && 'a' <= c && c <= 'z' {
			b[i] = c - ('a' - 'A')
		} else if !upper && 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
		upper = c == '-'
	}
	return string(b)
}

// parseHeaderBlock parses the raw bytes of a part's header block, already
// stripped of the final blank line. Each line must contain a colon.
func parseHeaderBlock(block []byte) (Header, error) {
	h := make(Header)
	for _, line := range bytes.Split(block, []byte("\r\n")) {
		if len(line) == 0 {
			continue
		}
		idx := bytes.IndexByte(line, ':')
		if idx < 0 {
			return nil, fmt.Errorf("%w: header line %q has no colon", ErrParse, line)
		}
		name := string(line[:idx])
		value := strings.TrimSpace(string(line[idx+1:]))
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: header line %q has empty name", ErrParse, line)
		}
		h.Set(name, value)
	}
	return h, nil
}
