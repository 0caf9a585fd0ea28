// Package session drives the dnstap frame-stream session protocol: the
// uni-directional START → frames → STOP profile and the bi-directional
// READY ↔ ACCEPT → START → frames → STOP ↔ FINISH profile, on top of the
// frame codec in the parent dnswire package.
//
// Decoder and Encoder each advance at most one step per call and never
// block; this mirrors the one-unit-of-progress-per-call contract the
// parent package's frame codec already follows.
package session

// Signal is the outcome of one Decoder.Decode or Encoder.Encode call.
type Signal int

const (
	// SignalAgain means the call made progress but the current logical
	// step (a control frame, a record) isn't finished yet; call again.
	SignalAgain Signal = iota
	// SignalNeedMore means the Decoder needs more input bytes appended
	// before it can make progress.
	SignalNeedMore
	// SignalRecord means a complete data frame was decoded; its payload
	// is available via Decoder.Record until the next Decode call.
	SignalRecord
	// SignalBidirectional means a READY (or ACCEPT) control frame with
	// its fields was fully parsed; the caller owns the handshake
	// continuation (reply with ACCEPT, or proceed to START).
	SignalBidirectional
	// SignalEndOfData means the session reached its natural end: the
	// Decoder returns it on STOP after the frames and on FINISH after an
	// ACCEPT; the Encoder returns it once STOP or FINISH has been written.
	SignalEndOfData
	// SignalError means the session failed; no further calls will make
	// progress.
	SignalError
)

func (s Signal) String() string {
	switch s {
	case SignalAgain:
		return "again"
	case SignalNeedMore:
		return "need_more"
	case SignalRecord:
		return "record"
	case SignalBidirectional:
		return "bidirectional"
	case SignalEndOfData:
		return "end_of_data"
	case SignalError:
		return "error"
	default:
		return "unknown"
	}
}
