package session

import "github.com/dnstap/go-dnswire"

// EncoderState names precisely the bytes the Encoder will emit next.
type EncoderState int

const (
	controlReady EncoderState = iota
	controlStart
	controlAccept
	controlFinish
	frames
	controlStop
	encDone
)

// Encoder drives one egress session. The same state machine serves three
// distinct roles depending on its starting state:
//   - NewEncoder: uni-directional sender, control_start → frames → ...
//   - NewBidirectionalEncoder: the bi-directional initiator's main send
//     path, control_ready → control_start → frames → ...
//   - NewReplyEncoder: a Reader's short-lived embedded encoder that only
//     ever emits control_accept → control_finish, used to answer a peer's
//     READY/STOP with ACCEPT/FINISH.
type Encoder struct {
	state  EncoderState
	record []byte
	n      int
}

// NewEncoder returns an Encoder for a uni-directional send: START → frames → STOP.
func NewEncoder() *Encoder { return &Encoder{state: controlStart} }

// NewBidirectionalEncoder returns an Encoder for the bi-directional
// initiator: READY → START → frames → STOP.
func NewBidirectionalEncoder() *Encoder { return &Encoder{state: controlReady} }

// NewReplyEncoder returns an Encoder that only emits ACCEPT then FINISH,
// for a Reader's bi-directional reply channel.
func NewReplyEncoder() *Encoder { return &Encoder{state: controlAccept} }

// Encoded returns the number of bytes written to dst by the most recent
// Encode call.
func (e *Encoder) Encoded() int { return e.n }

var contentTypeField = []dnswire.ControlField{{Type: dnswire.ContentType, Data: []byte(dnswire.ContentTypeDNSTap)}}

// Encode advances the session by at most one step, writing into dst.
func (e *Encoder) Encode(dst []byte) Signal {
	e.n = 0
	var (
		written int
		err     error
	)

	switch e.state {
	case controlReady:
		written, err = dnswire.WriteControl(dst, dnswire.ControlReady, contentTypeField)
	case controlStart:
		written, err = dnswire.WriteControlStart(dst, []byte(dnswire.ContentTypeDNSTap))
	case controlAccept:
		written, err = dnswire.WriteControl(dst, dnswire.ControlAccept, contentTypeField)
	case controlFinish:
		written, err = dnswire.WriteControl(dst, dnswire.ControlFinish, nil)
	case controlStop:
		written, err = dnswire.WriteControlStop(dst)
	case frames:
		if e.record == nil {
			return SignalError
		}
		written, err = dnswire.WriteFrame(dst, e.record)
	default: // encDone
		return SignalError
	}

	if err != nil {
		return SignalNeedMore
	}
	e.n = written

	switch e.state {
	case controlReady:
		e.state = controlStart
		return SignalAgain
	case controlStart:
		e.state = frames
		return SignalAgain
	case controlAccept:
		e.state = controlFinish
		return SignalAgain
	case controlFinish:
		e.state = encDone
		return SignalEndOfData
	case controlStop:
		e.state = encDone
		return SignalEndOfData
	case frames:
		e.record = nil
		return SignalRecord
	}
	return SignalError
}

// SetRecord selects the payload of the next frame Encode will emit. Legal
// only once the session has reached the frames state (after START/READY
// has been fully written and before Stop).
func (e *Encoder) SetRecord(payload []byte) error {
	if e.state != frames {
		return dnswire.ErrProtocol
	}
	e.record = payload
	return nil
}

// Stop transitions the encoder so the next Encode call emits STOP. Legal
// only in state frames.
func (e *Encoder) Stop() error {
	if e.state != frames {
		return dnswire.ErrProtocol
	}
	e.state = controlStop
	return nil
}

// Done reports whether the encoder reached its terminal state.
func (e *Encoder) Done() bool { return e.state == encDone }
