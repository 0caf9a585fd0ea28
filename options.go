package dnswire

import "time"

const (
	// DefaultBufSize is the initial size of a Reader/Writer's internal
	// byte buffer.
	DefaultBufSize = 4096
	// DefaultBufInc is the default growth increment.
	DefaultBufInc = 4096
	// DefaultBufMax is the default maximum buffer size.
	DefaultBufMax = 64 * 1024
)

// Options configures a Reader or Writer.
type Options struct {
	// BufSize is the initial buffer size.
	BufSize int
	// BufInc is the increment the buffer grows by when more space is
	// needed and the buffer cannot be compacted to make room.
	BufInc int
	// BufMax is the maximum size the buffer is allowed to reach. Must be
	// >= BufSize.
	BufMax int

	// AllowBidirectional enables the READY/ACCEPT/FINISH handshake around
	// the START...STOP exchange.
	AllowBidirectional bool

	// RetryDelay controls how the descriptor helpers (Reader.Read(fd),
	// Writer.Write(fd)) handle iox.ErrWouldBlock from a non-blocking
	// transport:
	//   - negative: nonblock, return ErrWouldBlock immediately
	//   - zero: yield (runtime.Gosched) and retry
	//   - positive: sleep for the duration and retry
	RetryDelay time.Duration

	// Logger receives structured session lifecycle and error events. The
	// zero value (zerolog.Logger{}) discards everything.
	Logger Logger
}

var defaultOptions = Options{
	BufSize:    DefaultBufSize,
	BufInc:     DefaultBufInc,
	BufMax:     DefaultBufMax,
	RetryDelay: -1, // default: nonblock
}

// Option configures a Reader or Writer at construction time.
type Option func(*Options)

// WithBidirectional enables the bi-directional handshake.
func WithBidirectional() Option {
	return func(o *Options) { o.AllowBidirectional = true }
}

// WithBufSize sets the initial buffer size.
func WithBufSize(size int) Option {
	return func(o *Options) { o.BufSize = size }
}

// WithBufInc sets the buffer growth increment.
func WithBufInc(inc int) Option {
	return func(o *Options) { o.BufInc = inc }
}

// WithBufMax sets the maximum buffer size.
func WithBufMax(max int) Option {
	return func(o *Options) { o.BufMax = max }
}

// WithRetryDelay sets the retry/wait policy used when a descriptor helper
// sees iox.ErrWouldBlock.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) { o.RetryDelay = d }
}

// WithBlock enables cooperative blocking (yield-and-retry) on ErrWouldBlock.
func WithBlock() Option {
	return func(o *Options) { o.RetryDelay = 0 }
}

// WithNonblock forces non-blocking behavior (return ErrWouldBlock immediately).
func WithNonblock() Option {
	return func(o *Options) { o.RetryDelay = -1 }
}

// WithLogger attaches a structured logger to a Reader or Writer.
func WithLogger(l Logger) Option {
	return func(o *Options) { o.Logger = l }
}
