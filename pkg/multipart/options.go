package multipart

// Defaults applied by New when no option overrides them.
const (
	// DefaultSizeSlack is how far past the declared total size the body
	// may run before the stream is declared malformed.
	DefaultSizeSlack = 1.25

	// DefaultMaxHeaderBytes bounds one part's header block.
	DefaultMaxHeaderBytes = 16 * 1024
)

type config struct {
	tempDir        string
	factory        PartFactory
	progress       func(received, total int64)
	sizeSlack      float64
	maxHeaderBytes int
}

func defaultConfig() config {
	return config{
		sizeSlack:      DefaultSizeSlack,
		maxHeaderBytes: DefaultMaxHeaderBytes,
	}
}

// Option customizes a Streamer at construction.
type Option func(*config)

// WithTempDir directs the default part factory's temp files into dir
// instead of the system temp directory.
func WithTempDir(dir string) Option {
	return func(c *config) {
		c.tempDir = dir
	}
}

// WithPartFactory replaces the default temp-file part factory. The
// factory runs once per part, right after its header block is parsed, so
// it can pick a sink per part (small fields in memory, big files on
// disk) or reject a part early by returning an error.
func WithPartFactory(f PartFactory) Option {
	return func(c *config) {
		c.factory = f
	}
}

// WithProgressFunc registers a hook called on every received chunk,
// before its bytes are routed to the current part.
func WithProgressFunc(f func(received, total int64)) Option {
	return func(c *config) {
		c.progress = f
	}
}

// WithSizeSlack sets the tolerated overrun factor beyond the declared
// total size before the stream is declared malformed. Zero disables the
// bound. The declared size itself is advisory; only the slackened bound
// is enforced.
func WithSizeSlack(factor float64) Option {
	return func(c *config) {
		c.sizeSlack = factor
	}
}

// WithMaxHeaderBytes bounds how much unterminated header data one part
// may accumulate before the stream is declared malformed.
func WithMaxHeaderBytes(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxHeaderBytes = n
		}
	}
}
