package multipart

import "errors"

// Base errors wrapped by everything this package returns,
// so callers can classify failures with errors.Is.
var (
	// ErrConfiguration indicates invalid construction parameters.
	// Raised once, at construction; never retried.
	ErrConfiguration = errors.New("invalid streamer configuration")

	// ErrParse indicates malformed multipart structure. Fatal for the
	// request: the streamer enters its failed state and keeps returning
	// the original error on every subsequent call.
	ErrParse = errors.New("malformed multipart stream")

	// ErrStorage indicates a failure of a part's backing store
	// (temp file creation, write, read-back, removal).
	ErrStorage = errors.New("part storage failure")
)

// IsConfigurationError reports whether err is a construction-time error.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsParseError reports whether err indicates malformed input structure.
func IsParseError(err error) bool {
	return errors.Is(err, ErrParse)
}

// IsStorageError reports whether err originated in a part's backing store.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorage)
}
