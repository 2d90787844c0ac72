package multipart

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4"
)

// Compression algorithms accepted by NewCompressedFilePart.
const (
	CompressionGzip = "gzip"
	CompressionLZ4  = "lz4"
)

// CompressedFilePart is a FilePart variant that writes the body through a
// streaming compressor, trading CPU for disk when uploads are kept around
// for a while. Size reports uncompressed body bytes; StoredSize reports
// what actually landed on disk.
type CompressedFilePart struct {
	basePart
	algo     string
	file     *os.File
	path     string
	comp     io.WriteCloser
	released bool
}

// NewCompressedFilePart creates a compressed temp-file part in dir using
// the given algorithm (CompressionGzip or CompressionLZ4).
func NewCompressedFilePart(h Header, dir, algo string) (*CompressedFilePart, error) {
	f, err := os.CreateTemp(dir, "streamform-*.part."+algo)
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %v", ErrStorage, err)
	}
	comp, err := newCompressor(algo, f)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &CompressedFilePart{
		basePart: basePart{header: h},
		algo:     algo,
		file:     f,
		path:     f.Name(),
		comp:     comp,
	}, nil
}

// Path returns the location of the backing temp file.
func (p *CompressedFilePart) Path() string { return p.path }

// StoredSize returns the compressed size currently on disk.
func (p *CompressedFilePart) StoredSize() (int64, error) {
	st, err := p.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: stat: %v", ErrStorage, err)
	}
	return st.Size(), nil
}

func (p *CompressedFilePart) Write(b []byte) (int, error) {
	if p.released {
		return 0, fmt.Errorf("%w: write to released part", ErrStorage)
	}
	n, err := p.comp.Write(b)
	p.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("%w: write: %v", ErrStorage, err)
	}
	return n, nil
}

// Finalize flushes the compressor trailer. Required before Open can
// return the full body.
func (p *CompressedFilePart) Finalize() error {
	if p.released {
		return fmt.Errorf("%w: finalize released part", ErrStorage)
	}
	if p.finished {
		return nil
	}
	if err := p.comp.Close(); err != nil {
		return fmt.Errorf("%w: close compressor: %v", ErrStorage, err)
	}
	p.finished = true
	return nil
}

func (p *CompressedFilePart) Open() (io.ReadCloser, error) {
	if p.released {
		return nil, fmt.Errorf("%w: open released part", ErrStorage)
	}
	if !p.finished {
		return nil, fmt.Errorf("%w: open before finalize", ErrStorage)
	}
	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek: %v", ErrStorage, err)
	}
	dec, err := newDecompressor(p.algo, p.file)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(dec), nil
}

func (p *CompressedFilePart) Release() error {
	if p.released {
		return nil
	}
	p.released = true
	if !p.finished {
		// Abandon the half-written stream; only the file matters now.
		p.comp.Close()
	}
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

func newCompressor(algo string, dst io.Writer) (io.WriteCloser, error) {
	switch algo {
	case CompressionGzip:
		return gzip.NewWriter(dst), nil
	case CompressionLZ4:
		return lz4.NewWriter(dst), nil
	default:
		return nil, fmt.Errorf("%w: unsupported compression algorithm %q", ErrConfiguration, algo)
	}
}

func newDecompressor(algo string, src io.Reader) (io.Reader, error) {
	switch algo {
	case CompressionGzip:
		zr, err := gzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("%w: open gzip reader: %v", ErrStorage, err)
		}
		return zr, nil
	case CompressionLZ4:
		return lz4.NewReader(src), nil
	default:
		return nil, fmt.Errorf("%w: unsupported compression algorithm %q", ErrConfiguration, algo)
	}
}
