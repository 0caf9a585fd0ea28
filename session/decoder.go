package session

import "github.com/dnstap/go-dnswire"

// DecoderState names precisely the bytes the Decoder expects next.
type DecoderState int

const (
	decodingControl DecoderState = iota
	checkingReady
	checkingAccept
	readingStart
	checkingStart
	readingFrames
	checkingFinish
	done
	errored
)

// Decoder drives one ingress session: reading_control → {checking_ready |
// checking_accept | checking_start} → (reading_start →) checking_start →
// reading_frames → checking_finish → done. The uni-directional profile is
// just the subset of this graph that never visits checking_ready,
// checking_accept, or checking_finish.
type Decoder struct {
	state DecoderState
	fr    dnswire.FrameReader

	readyMatch  bool
	acceptMatch bool

	// Record is the payload of the last record decoded via SignalRecord.
	// It borrows from the slice passed to Decode and is only valid until
	// the next call to Decode.
	Record []byte

	// n is the byte count consumed by the most recent Decode call.
	n int
}

// NewDecoder returns a Decoder ready to read a control frame.
func NewDecoder() *Decoder { return &Decoder{} }

// Decoded returns the number of bytes consumed from p by the most recent
// Decode call.
func (d *Decoder) Decoded() int { return d.n }

// ReadyMatched reports whether the READY control frame just parsed (see
// SignalBidirectional from state checking_ready) declared the dnstap
// content type.
func (d *Decoder) ReadyMatched() bool { return d.readyMatch }

// AcceptMatched reports whether the ACCEPT control frame just parsed (see
// SignalBidirectional from state checking_accept) declared the dnstap
// content type.
func (d *Decoder) AcceptMatched() bool { return d.acceptMatch }

// Decode advances the session by at most one step, consuming a prefix of p.
func (d *Decoder) Decode(p []byte) Signal {
	d.n = 0
	if d.state == errored || d.state == done {
		return SignalError
	}

	ev, n := d.fr.Read(p)
	if ev == dnswire.EventNeedMore {
		return SignalNeedMore
	}
	if ev == dnswire.EventError {
		d.state = errored
		return SignalError
	}
	d.n = n

	switch d.state {
	case decodingControl:
		return d.onReadingControl(ev)
	case checkingReady:
		return d.onCheckingReadyOrAccept(ev, &d.readyMatch, readingStart)
	case checkingAccept:
		return d.onCheckingReadyOrAccept(ev, &d.acceptMatch, checkingFinish)
	case readingStart:
		return d.onReadingStart(ev)
	case checkingStart:
		return d.onCheckingStart(ev)
	case readingFrames:
		return d.onReadingFrames(ev)
	case checkingFinish:
		return d.onCheckingFinish(ev)
	default:
		d.state = errored
		return SignalError
	}
}

func (d *Decoder) fail() Signal {
	d.state = errored
	return SignalError
}

func (d *Decoder) onReadingControl(ev dnswire.FrameEvent) Signal {
	if ev != dnswire.EventHaveControl {
		return d.fail()
	}
	switch d.fr.ControlType {
	case dnswire.ControlReady:
		d.state = checkingReady
	case dnswire.ControlAccept:
		d.state = checkingAccept
	case dnswire.ControlStart:
		d.state = checkingStart
	default:
		return d.fail()
	}
	return SignalAgain
}

// onCheckingReadyOrAccept handles both checking_ready and checking_accept:
// every field is inspected for CONTENT_TYPE, *match records whether any
// field matched the dnstap content type, and once the control payload is
// exhausted the caller transitions to next and receives SignalBidirectional.
// Content-type matching itself is not enforced here: spec.md §4.3 leaves
// the accept/reject decision on a READY/ACCEPT mismatch to the façade that
// knows whether bidirectional support was actually requested.
func (d *Decoder) onCheckingReadyOrAccept(ev dnswire.FrameEvent, match *bool, next DecoderState) Signal {
	if ev != dnswire.EventHaveControlField {
		return d.fail()
	}
	if d.fr.FieldType != dnswire.ContentType {
		return d.fail()
	}
	if string(d.fr.FieldData) == dnswire.ContentTypeDNSTap {
		*match = true
	}
	if d.fr.ControlLeft == 0 {
		d.state = next
		return SignalBidirectional
	}
	return SignalAgain
}

func (d *Decoder) onReadingStart(ev dnswire.FrameEvent) Signal {
	if ev != dnswire.EventHaveControl || d.fr.ControlType != dnswire.ControlStart {
		return d.fail()
	}
	d.state = checkingStart
	return SignalAgain
}

func (d *Decoder) onCheckingStart(ev dnswire.FrameEvent) Signal {
	if ev != dnswire.EventHaveControlField {
		return d.fail()
	}
	if d.fr.FieldType != dnswire.ContentType || string(d.fr.FieldData) != dnswire.ContentTypeDNSTap {
		return d.fail()
	}
	// START admits exactly one CONTENT_TYPE field; any further field
	// would only be reachable after this transition, at which point we
	// are already parsing frames, and onReadingFrames rejects the stray
	// EventHaveControlField as an error.
	d.state = readingFrames
	return SignalAgain
}

func (d *Decoder) onReadingFrames(ev dnswire.FrameEvent) Signal {
	switch ev {
	case dnswire.EventHaveFrame:
		d.Record = d.fr.FrameData
		return SignalRecord
	case dnswire.EventStopped:
		d.state = done
		return SignalEndOfData
	default:
		return d.fail()
	}
}

func (d *Decoder) onCheckingFinish(ev dnswire.FrameEvent) Signal {
	if ev != dnswire.EventFinished {
		return d.fail()
	}
	d.state = done
	return SignalEndOfData
}
