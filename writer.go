package dnswire

import (
	"fmt"
	"io"

	"github.com/dnstap/go-dnswire/internal/descriptor"
	"github.com/dnstap/go-dnswire/session"
)

type writerPhase int

const (
	writerEncoding writerPhase = iota
	writerWriting
	writerReadingReply
	writerDone
	writerErrored
)

// Writer encodes one egress dnstap session into bytes handed back through
// Pop, or written directly to a descriptor through Write. It owns a
// private, resizable buffer for outgoing frames.
//
// If constructed WithBidirectional, a Writer opens with READY instead of
// START and, after its own write buffer drains, reads ACCEPT off the same
// in buffer Pop is given before moving on to frames; likewise it reads
// FINISH after STOP before reporting ResultEndOfData.
type Writer struct {
	opts Options

	buf       []byte
	at, left  int
	size, max int

	rbuf        []byte
	rat, rleft  int
	rsize, rmax int

	enc *session.Encoder
	dec *session.Decoder

	phase          writerPhase
	bidirectional  bool
	acceptRequired bool
	pendingSig     session.Signal

	popped int
	err    error
}

// NewWriter returns a Writer ready to encode a uni-directional dnstap
// session (START → frames → STOP), or, when given WithBidirectional, a
// bi-directional one (READY → ACCEPT → START → frames → STOP → FINISH).
func NewWriter(opts ...Option) *Writer {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	w := &Writer{
		opts:  o,
		buf:   make([]byte, o.BufSize),
		size:  o.BufSize,
		max:   o.BufMax,
		rbuf:  make([]byte, o.BufSize),
		rsize: o.BufSize,
		rmax:  o.BufMax,
	}
	if o.AllowBidirectional {
		w.bidirectional = true
		w.enc = session.NewBidirectionalEncoder()
		w.dec = session.NewDecoder()
	} else {
		w.enc = session.NewEncoder()
	}
	return w
}

// Popped returns the number of bytes of the most recent Pop call's in
// argument that were consumed into the Writer's internal reply buffer.
func (w *Writer) Popped() int { return w.popped }

// Err returns the error that caused the most recent ResultError, if any.
func (w *Writer) Err() error { return w.err }

// Done reports whether the session reached a terminal state.
func (w *Writer) Done() bool { return w.phase == writerDone || w.phase == writerErrored }

func (w *Writer) fail(err error) Result {
	w.err = err
	w.phase = writerErrored
	w.opts.Logger.Error().Err(err).Msg("dnswire: writer failed")
	return ResultError
}

// SetRecord selects the payload of the next frame Pop will emit. Legal only
// once the session is ready to accept a record (after START/READY and any
// ACCEPT handshake have been fully written/read, and before Stop).
func (w *Writer) SetRecord(payload []byte) error {
	if w.left > 0 {
		// The previous step (e.g. START) has not fully drained yet.
		return ErrProtocol
	}
	return w.enc.SetRecord(payload)
}

// Stop transitions the Writer so that, once any currently buffered frame
// has drained, the next encode step emits STOP (and, if bi-directional,
// reads FINISH before ResultEndOfData).
func (w *Writer) Stop() error {
	return w.enc.Stop()
}

// encodeOnce drives the encoder through exactly one logical step (one
// control frame or one data frame), growing the write buffer as needed.
func (w *Writer) encodeOnce() (session.Signal, error) {
	for {
		sig := w.enc.Encode(w.buf[w.at:w.size])
		n := w.enc.Encoded()
		if sig == session.SignalNeedMore {
			if w.size >= w.max {
				return sig, ErrBufferFull
			}
			newSize := w.size + w.opts.BufInc
			if newSize > w.max {
				newSize = w.max
			}
			newBuf := make([]byte, newSize)
			copy(newBuf, w.buf[:w.at])
			w.buf = newBuf
			w.size = newSize
			continue
		}
		if sig == session.SignalError {
			return sig, ErrProtocol
		}
		w.at += n
		w.left += n
		return sig, nil
	}
}

func (w *Writer) drain(out []byte) int {
	n := w.left
	if n > len(out) {
		n = len(out)
	}
	copy(out, w.buf[w.at-w.left:w.at-w.left+n])
	w.left -= n
	if w.left == 0 {
		w.at = 0
	}
	return n
}

// Pop advances the session by at most one step. out receives encoded
// bytes; in carries ACCEPT/FINISH bytes read from the peer when the
// session is bi-directional (ignored otherwise). Call Popped after every
// call to learn how much of in was actually consumed.
func (w *Writer) Pop(out []byte, in []byte) (Result, int) {
	w.popped = 0
	switch w.phase {
	case writerEncoding:
		// Only step the encoder once the previous step has fully drained;
		// otherwise a small out buffer would make Pop advance the session
		// more than once per call.
		if w.left == 0 {
			sig, err := w.encodeOnce()
			if err != nil {
				return w.fail(err), 0
			}
			w.pendingSig = sig
		}
		if w.left == 0 {
			// Nothing to drain (shouldn't happen for a well-formed
			// encoder step, but stay put rather than spin).
			return ResultAgain, 0
		}
		n := w.drain(out)
		if w.left > 0 {
			return ResultAgain, n
		}
		switch w.pendingSig {
		case session.SignalRecord:
			return ResultAgain, n
		case session.SignalAgain:
			if w.bidirectional && w.dec != nil && !w.readyReplySeen() {
				w.phase = writerReadingReply
			}
			return ResultAgain, n
		case session.SignalEndOfData:
			if w.bidirectional {
				w.phase = writerReadingReply
				return ResultAgain, n
			}
			w.phase = writerDone
			return ResultEndOfData, n
		default:
			return w.fail(ErrProtocol), n
		}

	case writerReadingReply:
		return w.popReadingReply(in)

	default:
		return ResultError, 0
	}
}

// readyReplySeen reports whether the handshake's ACCEPT has already been
// consumed, so SignalAgain after READY (entering controlStart next) knows
// whether to detour through reading ACCEPT first. It only matters right
// after the very first control frame of a bi-directional session.
func (w *Writer) readyReplySeen() bool {
	return w.acceptRequired
}

func (w *Writer) popReadingReply(in []byte) (Result, int) {
	if w.rleft == 0 && len(in) == 0 {
		return ResultNeedMore, 0
	}
	space := w.rsize - w.rat - w.rleft
	n := len(in)
	if n > space {
		n = space
	}
	if n > 0 {
		copy(w.rbuf[w.rat+w.rleft:w.rat+w.rleft+n], in[:n])
		w.rleft += n
	}
	w.popped = n

	sig := w.dec.Decode(w.rbuf[w.rat : w.rat+w.rleft])
	consumed := w.dec.Decoded()
	w.rat += consumed
	w.rleft -= consumed
	if w.rleft == 0 {
		w.rat = 0
	}

	switch sig {
	case session.SignalBidirectional:
		if !w.dec.AcceptMatched() {
			return w.fail(ErrProtocol), 0
		}
		w.acceptRequired = true
		w.opts.Logger.Debug().Msg("dnswire: peer accepted bidirectional handshake")
		w.phase = writerEncoding
		return ResultAgain, 0

	case session.SignalAgain:
		return ResultAgain, 0

	case session.SignalNeedMore:
		if err := w.growReply(); err != nil {
			return w.fail(err), 0
		}
		if n < len(in) {
			return ResultAgain, 0
		}
		return ResultNeedMore, 0

	case session.SignalEndOfData:
		w.opts.Logger.Debug().Msg("dnswire: session finished")
		w.phase = writerDone
		return ResultEndOfData, 0

	default:
		return w.fail(ErrFraming), 0
	}
}

func (w *Writer) growReply() error {
	if w.rleft < w.rsize {
		if w.rat > 0 {
			copy(w.rbuf, w.rbuf[w.rat:w.rat+w.rleft])
			w.rat = 0
		}
		return nil
	}
	if w.rsize >= w.rmax {
		return ErrBufferFull
	}
	newSize := w.rsize + w.opts.BufInc
	if newSize > w.rmax {
		newSize = w.rmax
	}
	newBuf := make([]byte, newSize)
	copy(newBuf, w.rbuf[w.rat:w.rat+w.rleft])
	w.rbuf = newBuf
	w.rsize = newSize
	w.rat = 0
	return nil
}

// Write performs at most one non-blocking write to fd of whatever the
// encoder currently has buffered, reading ACCEPT/FINISH back from fd when
// the session is bi-directional. It retries internally according to the
// Writer's RetryDelay option whenever fd reports descriptor.ErrWouldBlock.
func (w *Writer) Write(fd interface {
	descriptor.Reader
	descriptor.Writer
}) (Result, error) {
	policy := descriptor.Policy{RetryDelay: w.opts.RetryDelay}

	switch w.phase {
	case writerEncoding:
		if w.left == 0 {
			if _, err := w.encodeOnce(); err != nil {
				return w.fail(err), err
			}
			if w.left == 0 {
				return ResultAgain, nil
			}
		}
		n, err := descriptor.WriteOnce(fd, w.buf[w.at-w.left:w.at], policy)
		if err != nil {
			if err == descriptor.ErrWouldBlock {
				return ResultAgain, err
			}
			return w.fail(ErrTransport), ErrTransport
		}
		if n == 0 {
			return w.fail(ErrTransport), ErrTransport
		}
		w.left -= n
		if w.left == 0 {
			w.at = 0
			if w.enc.Done() {
				if w.bidirectional {
					w.phase = writerReadingReply
				} else {
					w.phase = writerDone
					return ResultEndOfData, nil
				}
			} else if w.bidirectional && !w.readyReplySeen() {
				w.phase = writerReadingReply
			}
		}
		return ResultAgain, nil

	case writerReadingReply:
		if w.rleft > 0 {
			// Decode buffered reply bytes first; only a decoder that needs
			// more bytes falls through to a read.
			if res, _ := w.popReadingReply(nil); res != ResultNeedMore {
				return res, w.err
			}
		}
		space := w.rsize - w.rat - w.rleft
		if space == 0 {
			if err := w.growReply(); err != nil {
				return w.fail(err), err
			}
			return ResultAgain, nil
		}
		n, err := descriptor.ReadOnce(fd, w.rbuf[w.rat+w.rleft:w.rat+w.rleft+space], policy)
		if err == descriptor.ErrWouldBlock {
			return ResultAgain, err
		}
		if n == 0 && (err == nil || err == io.EOF) {
			closed := fmt.Errorf("%w: %w", ErrTransport, io.ErrUnexpectedEOF)
			return w.fail(closed), closed
		}
		if err != nil && err != io.EOF {
			return w.fail(ErrTransport), ErrTransport
		}
		w.rleft += n
		res, _ := w.popReadingReply(nil)
		return res, w.err

	default:
		return ResultError, ErrClosed
	}
}
