package dnswire

import "encoding/binary"

// ControlType identifies the kind of an out-of-band control frame.
type ControlType uint32

const (
	ControlStart  ControlType = 1
	ControlStop   ControlType = 2
	ControlFinish ControlType = 3
	ControlAccept ControlType = 4
	ControlReady  ControlType = 5
)

func (t ControlType) known() bool {
	switch t {
	case ControlStart, ControlStop, ControlFinish, ControlAccept, ControlReady:
		return true
	default:
		return false
	}
}

func (t ControlType) requiresContentType() bool {
	switch t {
	case ControlStart, ControlReady, ControlAccept:
		return true
	default:
		return false
	}
}

func (t ControlType) String() string {
	switch t {
	case ControlStart:
		return "START"
	case ControlStop:
		return "STOP"
	case ControlFinish:
		return "FINISH"
	case ControlAccept:
		return "ACCEPT"
	case ControlReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// FieldType identifies a control field carried inside a control frame.
type FieldType uint32

// ContentType is the only control field type currently defined.
const ContentType FieldType = 1

// ContentTypeDNSTap is the canonical content-type string declaring that a
// session carries protobuf-encoded dnstap.Dnstap records.
const ContentTypeDNSTap = "protobuf:dnstap.Dnstap"

const (
	lenFieldSize = 4 // size in bytes of every u32 big-endian length/type field
	outerHdrSize = lenFieldSize
	ctrlHdrSize  = 2 * lenFieldSize // ctrl_outer_len + ctrl_type
	fieldHdrSize = 2 * lenFieldSize // field_type + field_len
)

// FrameEvent is the result of one FrameReader.Read call.
type FrameEvent int

const (
	// EventNeedMore means fewer bytes were available than needed to
	// complete the current length-prefix or payload. No bytes were
	// consumed; the caller must append more bytes and call again.
	EventNeedMore FrameEvent = iota
	// EventHaveControl means a control frame's type has just been parsed;
	// its fields (if any) follow as subsequent EventHaveControlField
	// events.
	EventHaveControl
	// EventHaveControlField means one control field of the current
	// control frame has been parsed.
	EventHaveControlField
	// EventHaveFrame means one complete data frame has been parsed.
	EventHaveFrame
	// EventStopped means a complete STOP control frame was parsed.
	EventStopped
	// EventFinished means a complete FINISH control frame was parsed.
	EventFinished
	// EventError means the input is malformed; the FrameReader is done.
	EventError
)

// FrameReader parses a stream of frames out of byte slices handed to it one
// call at a time. It never blocks and never allocates: HAVE_CONTROL_FIELD
// and HAVE_FRAME data point directly into the slice passed to Read, and are
// only valid until the next call to Read.
//
// A zero FrameReader is ready to use.
type FrameReader struct {
	inControl bool
	errored   bool

	// Control metadata of the control frame currently (or most recently)
	// being parsed.
	ControlType   ControlType
	ControlLength uint32 // outer control payload length (ctrl_outer_len)
	ControlLeft   uint32 // bytes of the control payload not yet consumed

	// Current field, valid after EventHaveControlField until the next Read.
	FieldType FieldType
	FieldData []byte // borrow into the slice passed to Read

	// Current data frame, valid after EventHaveFrame until the next Read.
	FrameData []byte // borrow into the slice passed to Read
}

// Read parses as much of the next frame as p allows and reports what it
// found. On EventNeedMore, n is always 0 and no internal state changes;
// the caller must call again with a longer p once more bytes are
// available. On any other non-error event, n is the number of bytes of p
// that were consumed.
func (fr *FrameReader) Read(p []byte) (ev FrameEvent, n int) {
	if fr.errored {
		return EventError, 0
	}
	if fr.inControl {
		ev, n = fr.readControlField(p)
	} else {
		ev, n = fr.readFrameHeader(p)
	}
	if ev == EventError {
		fr.errored = true
	}
	return ev, n
}

func (fr *FrameReader) readFrameHeader(p []byte) (FrameEvent, int) {
	if len(p) < outerHdrSize {
		return EventNeedMore, 0
	}
	outerLen := binary.BigEndian.Uint32(p[0:4])

	if outerLen != 0 {
		// Data frame.
		total := outerHdrSize + int(outerLen)
		if total < 0 || len(p) < total {
			return EventNeedMore, 0
		}
		fr.FrameData = p[outerHdrSize:total]
		return EventHaveFrame, total
	}

	// Control frame.
	if len(p) < outerHdrSize+ctrlHdrSize {
		return EventNeedMore, 0
	}
	ctrlOuterLen := binary.BigEndian.Uint32(p[4:8])
	if ctrlOuterLen < lenFieldSize {
		return EventError, 0
	}
	ctrlType := ControlType(binary.BigEndian.Uint32(p[8:12]))
	if !ctrlType.known() {
		return EventError, 0
	}
	ctrlLeft := ctrlOuterLen - lenFieldSize

	if ctrlLeft == 0 {
		switch ctrlType {
		case ControlStop:
			return EventStopped, outerHdrSize + ctrlHdrSize
		case ControlFinish:
			return EventFinished, outerHdrSize + ctrlHdrSize
		default:
			// START, READY, ACCEPT all require at least one
			// CONTENT_TYPE field; zero fields is rejected.
			return EventError, 0
		}
	}

	fr.ControlType = ctrlType
	fr.ControlLength = ctrlOuterLen
	fr.ControlLeft = ctrlLeft
	fr.inControl = true
	return EventHaveControl, outerHdrSize + ctrlHdrSize
}

func (fr *FrameReader) readControlField(p []byte) (FrameEvent, int) {
	if len(p) < fieldHdrSize {
		return EventNeedMore, 0
	}
	fieldType := FieldType(binary.BigEndian.Uint32(p[0:4]))
	fieldLen := binary.BigEndian.Uint32(p[4:8])

	need := uint64(fieldHdrSize) + uint64(fieldLen)
	if need > uint64(fr.ControlLeft) {
		// Field sizes overflow the declared control payload length.
		return EventError, 0
	}
	total := fieldHdrSize + int(fieldLen)
	if len(p) < total {
		return EventNeedMore, 0
	}

	fr.FieldType = fieldType
	fr.FieldData = p[fieldHdrSize:total]
	fr.ControlLeft -= uint32(total)
	if fr.ControlLeft == 0 {
		fr.inControl = false
	}
	return EventHaveControlField, total
}

// ControlField is one typed, length-prefixed field inside a control frame.
type ControlField struct {
	Type FieldType
	Data []byte
}

func controlSize(fields []ControlField) int {
	size := lenFieldSize // ctrl_type
	for _, f := range fields {
		size += fieldHdrSize + len(f.Data)
	}
	return size
}

// WriteControl emits a full control frame of the given type carrying
// fields, in order, into dst. It returns the number of bytes written, or
// ErrNeedMore if dst is too small (in which case nothing is written).
func WriteControl(dst []byte, t ControlType, fields []ControlField) (int, error) {
	ctrlLen := controlSize(fields)
	total := outerHdrSize + lenFieldSize + ctrlLen
	if len(dst) < total {
		return 0, ErrNeedMore
	}

	binary.BigEndian.PutUint32(dst[0:4], 0)
	binary.BigEndian.PutUint32(dst[4:8], uint32(ctrlLen))
	binary.BigEndian.PutUint32(dst[8:12], uint32(t))

	off := 12
	for _, f := range fields {
		binary.BigEndian.PutUint32(dst[off:off+4], uint32(f.Type))
		binary.BigEndian.PutUint32(dst[off+4:off+8], uint32(len(f.Data)))
		off += fieldHdrSize
		off += copy(dst[off:], f.Data)
	}
	return total, nil
}

// WriteControlStart emits a START control frame declaring contentType.
func WriteControlStart(dst []byte, contentType []byte) (int, error) {
	return WriteControl(dst, ControlStart, []ControlField{{Type: ContentType, Data: contentType}})
}

// WriteControlStop emits a STOP control frame (no fields).
func WriteControlStop(dst []byte) (int, error) {
	return WriteControl(dst, ControlStop, nil)
}

// WriteFrame emits a data frame carrying payload.
func WriteFrame(dst []byte, payload []byte) (int, error) {
	total := outerHdrSize + len(payload)
	if len(dst) < total {
		return 0, ErrNeedMore
	}
	binary.BigEndian.PutUint32(dst[0:4], uint32(len(payload)))
	copy(dst[outerHdrSize:], payload)
	return total, nil
}
