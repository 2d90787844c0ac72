// Package multipart incrementally parses a multipart/form-data body as
// chunks arrive, routing each part's payload into a caller-chosen sink so
// memory stays bounded no matter how large the upload is.
//
// The package is push-driven: the embedding transport feeds raw body
// chunks through Streamer.DataReceived in arrival order, signals the end
// with DataComplete, reads the finished parts, and finally calls
// ReleaseParts. Calls for one Streamer must not overlap; the embedding
// layer is expected to finish one call before issuing the next.
package multipart

import (
	"bytes"
	"fmt"
)

type state int

const (
	stateAwaitingFirstBoundary state = iota
	stateReadingHeaders
	stateReadingBody
	stateComplete
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateAwaitingFirstBoundary:
		return "awaiting-first-boundary"
	case stateReadingHeaders:
		return "reading-headers"
	case stateReadingBody:
		return "reading-body"
	case stateComplete:
		return "complete"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RFC 2046 limits a boundary token to 70 characters.
const maxBoundaryLen = 70

// Streamer parses one multipart/form-data body incrementally.
// Instances are single-use and not safe for concurrent calls; each
// request gets its own Streamer.
type Streamer struct {
	boundary  string
	delimiter []byte // "\r\n--" + boundary
	totalSize int64
	received  int64

	state   state
	carry   []byte
	parts   []Part
	current Part
	err     error

	cfg config
}

// New creates a Streamer for a body with the given declared total size
// (advisory, 0 if unknown) and boundary token from the Content-Type
// header. The boundary must be non-empty printable ASCII of at most 70
// bytes, or New fails with a configuration error.
func New(totalSize int64, boundary string, opts ...Option) (*Streamer, error) {
	if err := validateBoundary(boundary); err != nil {
		return nil, err
	}
	if totalSize < 0 {
		return nil, fmt.Errorf("%w: negative total size %d", ErrConfiguration, totalSize)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Streamer{
		boundary:  boundary,
		delimiter: []byte("\r\n--" + boundary),
		totalSize: totalSize,
		cfg:       cfg,
	}
	if s.cfg.factory == nil {
		s.cfg.factory = func(h Header) (Part, error) {
			return NewFilePart(h, s.cfg.tempDir)
		}
	}
	// A leading virtual CRLF lets the first delimiter line, which has no
	// preceding CRLF on the wire, match the same "\r\n--boundary" needle
	// as every later one.
	s.carry = []byte("\r\n")
	return s, nil
}

func validateBoundary(boundary string) error {
	if boundary == "" {
		return fmt.Errorf("%w: empty boundary", ErrConfiguration)
	}
	if len(boundary) > maxBoundaryLen {
		return fmt.Errorf("%w: boundary exceeds %d bytes", ErrConfiguration, maxBoundaryLen)
	}
	for i := 0; i < len(boundary); i++ {
		if boundary[i] < 0x20 || boundary[i] > 0x7e {
			return fmt.Errorf("%w: boundary contains non-printable byte 0x%02x", ErrConfiguration, boundary[i])
		}
	}
	if boundary[len(boundary)-1] == ' ' {
		return fmt.Errorf("%w: boundary ends with a space", ErrConfiguration)
	}
	return nil
}

// Boundary returns the delimiter token the Streamer was built with.
func (s *Streamer) Boundary() string { return s.boundary }

// TotalSize returns the declared body size passed to New.
func (s *Streamer) TotalSize() int64 { return s.totalSize }

// ReceivedSize returns the number of body bytes fed in so far.
func (s *Streamer) ReceivedSize() int64 { return s.received }

// Parts returns the completed parts in arrival order. Only meaningful
// after DataComplete has returned nil.
func (s *Streamer) Parts() []Part { return s.parts }

// PartByName returns the first completed part with the given form field
// name.
func (s *Streamer) PartByName(name string) (Part, bool) {
	for _, p := range s.parts {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Err returns the error the Streamer failed with, if any.
func (s *Streamer) Err() error { return s.err }

// DataReceived feeds the next chunk of the body. Chunks may be of any
// size; the result is identical no matter how the byte stream is split.
// Bytes fed after the closing delimiter are epilogue and are discarded.
// Once it returns an error the Streamer is failed and every later call
// returns the same error.
func (s *Streamer) DataReceived(chunk []byte) error {
	if s.err != nil {
		return s.err
	}

	s.received += int64(len(chunk))
	if s.cfg.progress != nil {
		s.cfg.progress(s.received, s.totalSize)
	}
	if s.cfg.sizeSlack > 0 && s.totalSize > 0 &&
		float64(s.received) > s.cfg.sizeSlack*float64(s.totalSize) {
		return s.fail(fmt.Errorf("%w: received %d bytes, more than declared %d plus slack",
			ErrParse, s.received, s.totalSize))
	}

	buf := append(s.carry, chunk...)
	s.carry = nil
	return s.scan(buf)
}

// scan drives the state machine over carry+chunk, leaving the
// unconsumable tail in carry.
func (s *Streamer) scan(buf []byte) error {
	for {
		switch s.state {
		case stateAwaitingFirstBoundary, stateReadingBody:
			rest, again, err := s.scanForDelimiter(buf)
			if err != nil {
				return s.fail(err)
			}
			if !again {
				return nil
			}
			buf = rest

		case stateReadingHeaders:
			end := bytes.Index(buf, []byte("\r\n\r\n"))
			if end < 0 {
				if len(buf) > s.cfg.maxHeaderBytes {
					return s.fail(fmt.Errorf("%w: part header block exceeds %d bytes without blank line",
						ErrParse, s.cfg.maxHeaderBytes))
				}
				s.setCarry(buf)
				return nil
			}
			header, err := parseHeaderBlock(buf[:end])
			if err != nil {
				return s.fail(err)
			}
			part, err := s.cfg.factory(header)
			if err != nil {
				return s.fail(err)
			}
			s.current = part
			s.state = stateReadingBody
			buf = buf[end+4:]

		case stateComplete:
			// Everything after the closing delimiter, in this chunk
			// or any later one, is epilogue and is discarded.
			return nil

		default:
			return s.err
		}
	}
}

// scanForDelimiter searches buf for the next "\r\n--boundary" line.
// It returns the bytes after a fully classified delimiter and whether
// the caller should keep scanning; when the delimiter is absent or
// incomplete it stows the undecidable tail in carry.
func (s *Streamer) scanForDelimiter(buf []byte) (rest []byte, again bool, err error) {
	from := 0
	for {
		idx := bytes.Index(buf[from:], s.delimiter)
		if idx < 0 {
			// Keep the longest tail that could still begin a
			// delimiter; everything before it is settled body
			// (or discardable preamble).
			keep := overlapLen(buf, s.delimiter)
			if err := s.routeBody(buf[:len(buf)-keep]); err != nil {
				return nil, false, err
			}
			s.setCarry(buf[len(buf)-keep:])
			return nil, false, nil
		}
		idx += from

		tail := buf[idx+len(s.delimiter):]
		if len(tail) < 2 {
			// Can't yet tell a mid-stream delimiter from the final
			// one; hold the candidate until more bytes arrive.
			if err := s.routeBody(buf[:idx]); err != nil {
				return nil, false, err
			}
			s.setCarry(buf[idx:])
			return nil, false, nil
		}

		switch {
		case tail[0] == '\r' && tail[1] == '\n':
			if err := s.routeBody(buf[:idx]); err != nil {
				return nil, false, err
			}
			if err := s.finishCurrentPart(); err != nil {
				return nil, false, err
			}
			s.state = stateReadingHeaders
			return tail[2:], true, nil

		case tail[0] == '-' && tail[1] == '-':
			if err := s.routeBody(buf[:idx]); err != nil {
				return nil, false, err
			}
			if err := s.finishCurrentPart(); err != nil {
				return nil, false, err
			}
			s.state = stateComplete
			s.carry = nil
			return nil, false, nil

		default:
			// The boundary text occurred inside the body without a
			// valid line ending after it. Not a delimiter; rescan
			// one byte further in.
			from = idx + 1
		}
	}
}

// routeBody sends settled bytes to the current part, or drops them when
// still scanning the preamble.
func (s *Streamer) routeBody(b []byte) error {
	if len(b) == 0 || s.state != stateReadingBody {
		return nil
	}
	if _, err := s.current.Write(b); err != nil {
		return err
	}
	return nil
}

func (s *Streamer) finishCurrentPart() error {
	if s.state != stateReadingBody {
		// First delimiter of the stream; no part is open yet.
		return nil
	}
	if err := s.current.Finalize(); err != nil {
		return err
	}
	s.parts = append(s.parts, s.current)
	s.current = nil
	return nil
}

// DataComplete signals that the last chunk has been fed. It fails with a
// parse error unless the final "--boundary--" delimiter was seen.
func (s *Streamer) DataComplete() error {
	if s.err != nil {
		return s.err
	}
	if s.state != stateComplete {
		return s.fail(fmt.Errorf("%w: body ended in state %s before the closing boundary",
			ErrParse, s.state))
	}
	return nil
}

// ReleaseParts releases the backing store of every part, finished or not.
// Idempotent, and safe after an aborted upload.
func (s *Streamer) ReleaseParts() error {
	var firstErr error
	if s.current != nil {
		if err := s.current.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.current = nil
	}
	for _, p := range s.parts {
		if err := p.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Streamer) fail(err error) error {
	s.state = stateFailed
	s.err = err
	return err
}

// setCarry copies the retained tail out of the scratch buffer so the
// next chunk append cannot clobber it.
func (s *Streamer) setCarry(tail []byte) {
	s.carry = append([]byte(nil), tail...)
}

// overlapLen returns the length of the longest suffix of buf that is a
// proper prefix of delim.
func overlapLen(buf, delim []byte) int {
	max := len(delim) - 1
	if max > len(buf) {
		max = len(buf)
	}
	for k := max; k > 0; k-- {
		if bytes.Equal(buf[len(buf)-k:], delim[:k]) {
			return k
		}
	}
	return 0
}
