package dnswire

import (
	"fmt"
	"io"

	"github.com/dnstap/go-dnswire/internal/descriptor"
	"github.com/dnstap/go-dnswire/session"
)

// Result is the outcome of one Reader.Push or Reader.Read(fd) call.
type Result int

const (
	// ResultAgain means the call made progress; call again with the same
	// unconsumed input (Push) or no new input (Read) to continue.
	ResultAgain Result = iota
	// ResultNeedMore means the Reader needs more input bytes before it can
	// make progress. Pushed reports how much of the last input, if any,
	// was consumed before this result.
	ResultNeedMore
	// ResultHaveRecord means a complete data frame was decoded; its
	// payload is available via Reader.Record until the next call.
	ResultHaveRecord
	// ResultEndOfData means the session reached STOP (uni-directional) or
	// FINISH (bi-directional, after the reply was fully written). No
	// further calls will make progress.
	ResultEndOfData
	// ResultError means the session failed; no further calls will make
	// progress. Reader.Err reports the cause.
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultAgain:
		return "again"
	case ResultNeedMore:
		return "need_more"
	case ResultHaveRecord:
		return "have_record"
	case ResultEndOfData:
		return "end_of_data"
	case ResultError:
		return "error"
	default:
		return "unknown"
	}
}

type readerPhase int

const (
	readerDecoding readerPhase = iota
	readerEncodingReply
	readerWritingReply
	readerDone
	readerErrored
)

// Reader decodes one ingress dnstap session out of bytes handed to it
// through Push, or read directly from a descriptor through Read. It owns a
// private, resizable buffer: decoded records borrow from that buffer and
// are only valid until the next call.
//
// If constructed WithBidirectional, a Reader that observes a READY control
// frame answers with ACCEPT over the same out buffer Push is given, and
// answers a STOP with FINISH before reporting ResultEndOfData.
type Reader struct {
	opts Options

	buf       []byte
	at, left  int
	size, max int

	wbuf        []byte
	wat, wleft  int
	wsize, wmax int

	dec *session.Decoder
	enc *session.Encoder

	phase           readerPhase
	isBidirectional bool
	replyDone       bool

	pushed int
	err    error
}

// NewReader returns a Reader ready to decode a dnstap session.
func NewReader(opts ...Option) *Reader {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Reader{
		opts: o,
		buf:  make([]byte, o.BufSize),
		size: o.BufSize,
		max:  o.BufMax,
		wbuf:  make([]byte, o.BufSize),
		wsize: o.BufSize,
		wmax:  o.BufMax,
		dec:   session.NewDecoder(),
	}
}

// Pushed returns the number of bytes of the most recent Push call's input
// that were consumed into the Reader's internal buffer.
func (r *Reader) Pushed() int { return r.pushed }

// Record returns the payload of the last record decoded via ResultHaveRecord.
// It borrows from the Reader's internal buffer and is valid only until the
// next Push or Read call.
func (r *Reader) Record() []byte { return r.dec.Record }

// IsBidirectional reports whether the peer initiated (and this Reader
// accepted) the bi-directional handshake.
func (r *Reader) IsBidirectional() bool { return r.isBidirectional }

// Err returns the error that caused the most recent ResultError, if any.
func (r *Reader) Err() error { return r.err }

// Done reports whether the session reached a terminal state.
func (r *Reader) Done() bool { return r.phase == readerDone || r.phase == readerErrored }

func (r *Reader) fail(err error) Result {
	r.err = err
	r.phase = readerErrored
	r.opts.Logger.Error().Err(err).Msg("dnswire: reader failed")
	return ResultError
}

// Push advances the session by at most one step. data is appended to the
// Reader's internal buffer (as much of it as currently fits); out receives
// bytes of an ACCEPT/FINISH reply when the session is bi-directional. Call
// Pushed after every call to learn how much of data was actually consumed;
// when the decoder needs more bytes but not all of data fit
// (Pushed() < len(data)), the result is ResultAgain: call again immediately
// with the unconsumed remainder rather than fetching new bytes.
func (r *Reader) Push(data []byte, out []byte) (Result, int) {
	r.pushed = 0
	switch r.phase {
	case readerDecoding:
		return r.pushDecoding(data), 0
	case readerEncodingReply:
		if err := r.encodeReplyOnce(); err != nil {
			return r.fail(err), 0
		}
		r.phase = readerWritingReply
		return ResultAgain, 0
	case readerWritingReply:
		n := r.drainReply(out)
		if r.wleft == 0 {
			if r.replyDone {
				r.phase = readerDone
				return ResultEndOfData, n
			}
			r.phase = readerDecoding
		}
		return ResultAgain, n
	default:
		return ResultError, 0
	}
}

func (r *Reader) pushDecoding(data []byte) Result {
	if r.left == 0 && len(data) == 0 {
		return ResultNeedMore
	}

	space := r.size - r.at - r.left
	n := len(data)
	if n > space {
		n = space
	}
	if n > 0 {
		copy(r.buf[r.at+r.left:r.at+r.left+n], data[:n])
		r.left += n
	}
	r.pushed = n

	sig := r.dec.Decode(r.buf[r.at : r.at+r.left])
	consumed := r.dec.Decoded()
	r.at += consumed
	r.left -= consumed
	if r.left == 0 {
		r.at = 0
	}

	switch sig {
	case session.SignalBidirectional:
		if !r.opts.AllowBidirectional {
			return r.fail(ErrProtocol)
		}
		if !r.dec.ReadyMatched() {
			return r.fail(ErrProtocol)
		}
		r.isBidirectional = true
		r.opts.Logger.Debug().Msg("dnswire: accepted bidirectional handshake")
		r.enc = session.NewReplyEncoder()
		r.phase = readerEncodingReply
		return ResultAgain

	case session.SignalAgain:
		return ResultAgain

	case session.SignalNeedMore:
		if err := r.growOrCompact(); err != nil {
			return r.fail(err)
		}
		if n < len(data) {
			return ResultAgain
		}
		return ResultNeedMore

	case session.SignalRecord:
		return ResultHaveRecord

	case session.SignalEndOfData:
		if r.isBidirectional {
			r.phase = readerEncodingReply
			return ResultAgain
		}
		r.opts.Logger.Debug().Msg("dnswire: session stopped")
		r.phase = readerDone
		return ResultEndOfData

	default:
		return r.fail(ErrFraming)
	}
}

// growOrCompact mirrors the compact-then-grow buffer management the teacher
// package uses before any retry: free space is reclaimed by sliding the
// unread tail to the front, and only if that yields nothing is the buffer
// grown by BufInc, up to BufMax.
func (r *Reader) growOrCompact() error {
	if r.left < r.size {
		if r.at > 0 {
			copy(r.buf, r.buf[r.at:r.at+r.left])
			r.at = 0
		}
		return nil
	}
	if r.size >= r.max {
		return ErrBufferFull
	}
	newSize := r.size + r.opts.BufInc
	if newSize > r.max {
		newSize = r.max
	}
	newBuf := make([]byte, newSize)
	copy(newBuf, r.buf[r.at:r.at+r.left])
	r.buf = newBuf
	r.size = newSize
	r.at = 0
	return nil
}

// encodeReplyOnce drives the reply encoder through exactly one control
// frame (ACCEPT, or later FINISH), growing the write buffer as needed. It
// is the only place in Reader that loops without yielding to the caller,
// since growth is memory-only and never blocks.
func (r *Reader) encodeReplyOnce() error {
	for {
		sig := r.enc.Encode(r.wbuf[r.wat:r.wsize])
		n := r.enc.Encoded()
		if sig == session.SignalNeedMore {
			if r.wsize >= r.wmax {
				return ErrBufferFull
			}
			newSize := r.wsize + r.opts.BufInc
			if newSize > r.wmax {
				newSize = r.wmax
			}
			newBuf := make([]byte, newSize)
			copy(newBuf, r.wbuf[:r.wat])
			r.wbuf = newBuf
			r.wsize = newSize
			continue
		}
		if sig == session.SignalError {
			return ErrProtocol
		}
		r.wat += n
		r.wleft += n
		r.replyDone = sig == session.SignalEndOfData
		return nil
	}
}

func (r *Reader) drainReply(out []byte) int {
	n := r.wleft
	if n > len(out) {
		n = len(out)
	}
	copy(out, r.wbuf[r.wat-r.wleft:r.wat-r.wleft+n])
	r.wleft -= n
	if r.wleft == 0 {
		r.wat = 0
	}
	return n
}

// Read advances the session by one step: it decodes the next step out of
// bytes already buffered, or, when those are not enough, performs one read
// from fd and decodes what it got, writing any ACCEPT/FINISH reply back to
// fd too. It retries internally according to the Reader's RetryDelay option
// whenever fd reports descriptor.ErrWouldBlock. A peer that closes before
// the session ends is reported as ErrTransport wrapping io.ErrUnexpectedEOF.
func (r *Reader) Read(fd interface {
	descriptor.Reader
	descriptor.Writer
}) (Result, error) {
	policy := descriptor.Policy{RetryDelay: r.opts.RetryDelay}

	switch r.phase {
	case readerDecoding:
		if r.left > 0 {
			// Only a decoder that needs more bytes falls through to a read.
			if res := r.decodeFilled(); res != ResultAgain || r.dec.Decoded() > 0 {
				return res, r.err
			}
		}
		space := r.size - r.at - r.left
		if space == 0 {
			if err := r.growOrCompact(); err != nil {
				return r.fail(err), err
			}
			return ResultAgain, nil
		}
		n, err := descriptor.ReadOnce(fd, r.buf[r.at+r.left:r.at+r.left+space], policy)
		if err == descriptor.ErrWouldBlock {
			return ResultAgain, err
		}
		if n == 0 && (err == nil || err == io.EOF) {
			closed := fmt.Errorf("%w: %w", ErrTransport, io.ErrUnexpectedEOF)
			return r.fail(closed), closed
		}
		if err != nil && err != io.EOF {
			return r.fail(ErrTransport), ErrTransport
		}
		r.left += n
		return r.decodeFilled(), r.err

	case readerEncodingReply:
		if err := r.encodeReplyOnce(); err != nil {
			return r.fail(err), err
		}
		r.phase = readerWritingReply
		return ResultAgain, nil

	case readerWritingReply:
		n, err := descriptor.WriteOnce(fd, r.wbuf[r.wat-r.wleft:r.wat], policy)
		if err != nil {
			if err == descriptor.ErrWouldBlock {
				return ResultAgain, err
			}
			return r.fail(ErrTransport), ErrTransport
		}
		if n == 0 {
			return r.fail(ErrTransport), ErrTransport
		}
		r.wleft -= n
		if r.wleft == 0 {
			r.wat = 0
			if r.replyDone {
				r.phase = readerDone
				return ResultEndOfData, nil
			}
			r.phase = readerDecoding
		}
		return ResultAgain, nil

	default:
		return ResultError, ErrClosed
	}
}

// decodeFilled drives the decoder over the bytes already appended to buf by
// Read, without touching r.pushed (there is no caller-owned input slice in
// the fd path).
func (r *Reader) decodeFilled() Result {
	sig := r.dec.Decode(r.buf[r.at : r.at+r.left])
	consumed := r.dec.Decoded()
	r.at += consumed
	r.left -= consumed
	if r.left == 0 {
		r.at = 0
	}

	switch sig {
	case session.SignalBidirectional:
		if !r.opts.AllowBidirectional {
			return r.fail(ErrProtocol)
		}
		if !r.dec.ReadyMatched() {
			return r.fail(ErrProtocol)
		}
		r.isBidirectional = true
		r.enc = session.NewReplyEncoder()
		r.phase = readerEncodingReply
		return ResultAgain
	case session.SignalAgain, session.SignalNeedMore:
		return ResultAgain
	case session.SignalRecord:
		return ResultHaveRecord
	case session.SignalEndOfData:
		if r.isBidirectional {
			r.phase = readerEncodingReply
			return ResultAgain
		}
		r.phase = readerDone
		return ResultEndOfData
	default:
		return r.fail(ErrFraming)
	}
}
