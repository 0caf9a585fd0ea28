package dnswire

import "errors"

var (
	// ErrNeedMore is returned by the write primitives when the destination
	// buffer is too small to hold the frame being written. No bytes are
	// written in this case.
	ErrNeedMore = errors.New("dnswire: buffer too small")

	// ErrFraming reports a malformed frame: a bad length field, control
	// field sizes that don't sum to the outer control length, or an
	// unknown control type where only the closed {READY, ACCEPT, START,
	// STOP, FINISH} set is admitted. Reader and Writer also report as
	// ErrFraming every failure the session decoder detects, because its
	// SignalError does not tell the kinds apart: an event illegal in the
	// current session state, a START, READY or ACCEPT without fields, a
	// control field other than CONTENT_TYPE, or a START whose content type
	// does not match.
	ErrFraming = errors.New("dnswire: malformed frame")

	// ErrProtocol reports a session-level violation that the Reader or
	// Writer itself detects: a READY or ACCEPT whose CONTENT_TYPE does not
	// match the dnstap content type, a READY seen by a Reader built without
	// WithBidirectional, a SetRecord or Stop call that is not legal in the
	// current state, or an encoder step that is not legal.
	ErrProtocol = errors.New("dnswire: protocol violation")

	// ErrBufferFull reports that a Reader/Writer buffer has grown to its
	// configured maximum and still cannot hold the current frame or
	// control payload.
	ErrBufferFull = errors.New("dnswire: buffer exhausted")

	// ErrTransport reports a non-positive result from the underlying
	// transport (read/write syscall or io.Reader/io.Writer), including a
	// peer closing the connection before STOP/FINISH was seen.
	ErrTransport = errors.New("dnswire: transport error")

	// ErrClosed is returned by Reader.Read and Writer.Write when called
	// after the session reached a terminal state (done or error). Push and
	// Pop report ResultError in that case.
	ErrClosed = errors.New("dnswire: session closed")
)
