package session_test

import (
	"bytes"
	"testing"

	"github.com/dnstap/go-dnswire"
	"github.com/dnstap/go-dnswire/session"
)

func TestDecoder_UniDirectional_RecordThenStop(t *testing.T) {
	var buf bytes.Buffer
	appendStart(t, &buf)
	appendFrame(t, &buf, []byte("payload-one"))
	appendStop(t, &buf)

	d := session.NewDecoder()
	data := buf.Bytes()

	var sig session.Signal
	for sig = step(t, d, data); sig == session.SignalAgain; sig = step(t, d, data) {
		data = data[d.Decoded():]
	}
	data = data[d.Decoded():]

	if sig != session.SignalRecord {
		t.Fatalf("sig=%v, want SignalRecord", sig)
	}
	if !bytes.Equal(d.Record, []byte("payload-one")) {
		t.Fatalf("Record = %q", d.Record)
	}

	sig = step(t, d, data)
	if sig != session.SignalEndOfData {
		t.Fatalf("sig=%v, want SignalEndOfData", sig)
	}
}

func TestDecoder_NeedMore_WhenTruncated(t *testing.T) {
	var buf bytes.Buffer
	appendStart(t, &buf)

	d := session.NewDecoder()
	data := buf.Bytes()
	sig := d.Decode(data[:3]) // shorter than the outer length field
	if sig != session.SignalNeedMore {
		t.Fatalf("sig=%v, want SignalNeedMore", sig)
	}
	if d.Decoded() != 0 {
		t.Fatalf("Decoded() = %d, want 0 on SignalNeedMore", d.Decoded())
	}
}

func TestDecoder_Bidirectional_ReadyThenStart(t *testing.T) {
	var buf bytes.Buffer
	dst := make([]byte, 64)
	n, err := dnswire.WriteControl(dst, dnswire.ControlReady, []dnswire.ControlField{
		{Type: dnswire.ContentType, Data: []byte(dnswire.ContentTypeDNSTap)},
	})
	if err != nil {
		t.Fatalf("WriteControl READY: %v", err)
	}
	buf.Write(dst[:n])

	d := session.NewDecoder()
	data := buf.Bytes()

	sig := step(t, d, data)
	if sig != session.SignalAgain {
		t.Fatalf("sig=%v, want SignalAgain (control header)", sig)
	}
	data = data[d.Decoded():]

	sig = step(t, d, data)
	if sig != session.SignalBidirectional {
		t.Fatalf("sig=%v, want SignalBidirectional", sig)
	}
	if !d.ReadyMatched() {
		t.Fatalf("ReadyMatched() = false, want true")
	}
}

func TestDecoder_MismatchedContentType_OnStart_Fails(t *testing.T) {
	dst := make([]byte, 64)
	n, err := dnswire.WriteControlStart(dst, []byte("protobuf:something.else"))
	if err != nil {
		t.Fatalf("WriteControlStart: %v", err)
	}

	d := session.NewDecoder()
	data := dst[:n]

	sig := step(t, d, data)
	if sig != session.SignalAgain {
		t.Fatalf("sig=%v, want SignalAgain", sig)
	}
	data = data[d.Decoded():]

	sig = d.Decode(data)
	if sig != session.SignalError {
		t.Fatalf("sig=%v, want SignalError on content-type mismatch", sig)
	}
}

func TestDecoder_ErrorIsSticky(t *testing.T) {
	d := session.NewDecoder()
	sig := d.Decode([]byte{0, 0, 0, 0, 0, 0, 0, 4, 0, 0, 0, 99}) // unknown control type
	if sig != session.SignalError {
		t.Fatalf("sig=%v, want SignalError", sig)
	}
	sig = d.Decode([]byte{1, 2, 3, 4})
	if sig != session.SignalError {
		t.Fatalf("second Decode after error: sig=%v, want SignalError", sig)
	}
}

func step(t *testing.T, d *session.Decoder, p []byte) session.Signal {
	t.Helper()
	sig := d.Decode(p)
	if sig == session.SignalError {
		t.Fatalf("unexpected SignalError")
	}
	return sig
}

func appendStart(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	dst := make([]byte, 64)
	n, err := dnswire.WriteControlStart(dst, []byte(dnswire.ContentTypeDNSTap))
	if err != nil {
		t.Fatalf("WriteControlStart: %v", err)
	}
	buf.Write(dst[:n])
}

func appendStop(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	dst := make([]byte, 12)
	n, err := dnswire.WriteControlStop(dst)
	if err != nil {
		t.Fatalf("WriteControlStop: %v", err)
	}
	buf.Write(dst[:n])
}

func appendFrame(t *testing.T, buf *bytes.Buffer, payload []byte) {
	t.Helper()
	dst := make([]byte, 4+len(payload))
	n, err := dnswire.WriteFrame(dst, payload)
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	buf.Write(dst[:n])
}
