package multipart

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Part is one form field or file reconstructed from the stream.
//
// Lifetime convention: the Streamer creates parts through its factory,
// writes body bytes into them, and calls Finalize when the part's
// terminating boundary is seen. Ownership of the backing resource stays
// with the part until Release is called; completed parts remain readable
// via Open until then. Release is always the creator's job, normally
// triggered through Streamer.ReleaseParts.
type Part interface {
	// Header returns the part's parsed header block.
	Header() Header

	// Name returns the form field name from Content-Disposition.
	Name() string

	// Filename returns the submitted filename, or "" for plain values.
	Filename() string

	// Size returns the number of body bytes written so far.
	Size() int64

	// IsFile reports whether the part carries a filename parameter.
	IsFile() bool

	// Finished reports whether the part's terminating boundary was seen.
	Finished() bool

	// Write appends body bytes to the backing store.
	Write(p []byte) (int, error)

	// Finalize marks the part complete and flushes the backing store.
	Finalize() error

	// Open returns a reader over the accumulated body, from the start.
	Open() (io.ReadCloser, error)

	// Release closes and deletes the backing store. Idempotent, and
	// safe on parts that were never finalized (aborted uploads).
	Release() error
}

// PartFactory decides how a new part stores its body, given the part's
// already-parsed headers. Returning an error aborts the stream.
type PartFactory func(h Header) (Part, error)

// basePart carries the bookkeeping shared by all part variants.
type basePart struct {
	header   Header
	size     int64
	finished bool
}

func (p *basePart) Header() Header   { return p.header }
func (p *basePart) Name() string     { return p.header.Name() }
func (p *basePart) Filename() string { return p.header.Filename() }
func (p *basePart) Size() int64      { return p.size }
func (p *basePart) IsFile() bool     { return p.header.IsFile() }
func (p *basePart) Finished() bool   { return p.finished }

// MemoryPart accumulates its body in memory. Meant for small form
// values; route large file parts to a FilePart via the part factory.
type MemoryPart struct {
	basePart
	buf bytes.Buffer
}

// NewMemoryPart creates an in-memory part for the given headers.
func NewMemoryPart(h Header) *MemoryPart {
	return &MemoryPart{basePart: basePart{header: h}}
}

func (p *MemoryPart) Write(b []byte) (int, error) {
	n, err := p.buf.Write(b)
	p.size += int64(n)
	return n, err
}

func (p *MemoryPart) Finalize() error {
	p.finished = true
	return nil
}

// Bytes returns the accumulated body without copying.
func (p *MemoryPart) Bytes() []byte {
	return p.buf.Bytes()
}

// String returns the accumulated body as a string.
func (p *MemoryPart) String() string {
	return p.buf.String()
}

func (p *MemoryPart) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(p.buf.Bytes())), nil
}

func (p *MemoryPart) Release() error {
	p.buf.Reset()
	return nil
}

// FilePart streams its body into a uniquely named temporary file, keeping
// memory flat regardless of upload size.
type FilePart struct {
	basePart
	file     *os.File
	path     string
	released bool
}

// NewFilePart creates a part backed by a fresh temp file in dir.
// An empty dir means the system default temp directory.
func NewFilePart(h Header, dir string) (*FilePart, error) {
	f, err := os.CreateTemp(dir, "streamform-*.part")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %v", ErrStorage, err)
	}
	return &FilePart{
		basePart: basePart{header: h},
		file:     f,
		path:     f.Name(),
	}, nil
}

// Path returns the location of the backing temp file.
func (p *FilePart) Path() string { return p.path }

func (p *FilePart) Write(b []byte) (int, error) {
	if p.released {
		return 0, fmt.Errorf("%w: write to released part", ErrStorage)
	}
	n, err := p.file.Write(b)
	p.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("%w: write: %v", ErrStorage, err)
	}
	return n, nil
}

func (p *FilePart) Finalize() error {
	if p.released {
		return fmt.Errorf("%w: finalize released part", ErrStorage)
	}
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrStorage, err)
	}
	p.finished = true
	return nil
}

// Open repositions the backing file to the start and returns it wrapped
// in a reader that does not close the underlying file, so the part can
// be re-read until Release.
func (p *FilePart) Open() (io.ReadCloser, error) {
	if p.released {
		return nil, fmt.Errorf("%w: open released part", ErrStorage)
	}
	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek: %v", ErrStorage, err)
	}
	return io.NopCloser(p.file), nil
}

// Release closes and removes the temp file. Safe to call twice, and
// safe on never-finalized parts left over from an aborted upload.
func (p *FilePart) Release() error {
	if p.released {
		return nil
	}
	p.released = true
	closeErr := p.file.Close()
	removeErr := os.Remove(p.path)
	if closeErr != nil {
		return fmt.Errorf("%w: close: %v", ErrStorage, closeErr)
	}
	if removeErr != nil {
		return fmt.Errorf("%w: remove: %v", ErrStorage, removeErr)
	}
	return nil
}
