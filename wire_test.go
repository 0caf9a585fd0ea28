package dnswire_test

import (
	"bytes"
	"testing"

	"github.com/dnstap/go-dnswire"
)

func TestWriteControlStop_MatchesCanonicalBytes(t *testing.T) {
	dst := make([]byte, 12)
	n, err := dnswire.WriteControlStop(dst)
	if err != nil {
		t.Fatalf("WriteControlStop: %v", err)
	}
	want := []byte{0, 0, 0, 0, 0, 0, 0, 4, 0, 0, 0, 2}
	if n != len(want) || !bytes.Equal(dst[:n], want) {
		t.Fatalf("got % x, want % x", dst[:n], want)
	}
}

func TestWriteControlStop_NeedMore(t *testing.T) {
	dst := make([]byte, 11)
	_, err := dnswire.WriteControlStop(dst)
	if err != dnswire.ErrNeedMore {
		t.Fatalf("err = %v, want ErrNeedMore", err)
	}
}

func TestFrameReader_RoundTrip_Start(t *testing.T) {
	dst := make([]byte, 64)
	n, err := dnswire.WriteControlStart(dst, []byte(dnswire.ContentTypeDNSTap))
	if err != nil {
		t.Fatalf("WriteControlStart: %v", err)
	}

	var fr dnswire.FrameReader
	ev, consumed := fr.Read(dst[:n])
	if ev != dnswire.EventHaveControl || fr.ControlType != dnswire.ControlStart {
		t.Fatalf("ev=%v type=%v", ev, fr.ControlType)
	}

	ev, c2 := fr.Read(dst[consumed:n])
	if ev != dnswire.EventHaveControlField || fr.FieldType != dnswire.ContentType {
		t.Fatalf("ev=%v fieldType=%v", ev, fr.FieldType)
	}
	if string(fr.FieldData) != dnswire.ContentTypeDNSTap {
		t.Fatalf("FieldData = %q", fr.FieldData)
	}
	if consumed+c2 != n {
		t.Fatalf("consumed %d+%d != written %d", consumed, c2, n)
	}
}

func TestFrameReader_NeedMore_NoBytesConsumed(t *testing.T) {
	var fr dnswire.FrameReader
	ev, n := fr.Read([]byte{0, 0})
	if ev != dnswire.EventNeedMore || n != 0 {
		t.Fatalf("ev=%v n=%d, want EventNeedMore/0", ev, n)
	}
}

func TestFrameReader_DataFrame(t *testing.T) {
	dst := make([]byte, 32)
	payload := []byte("hello dnstap")
	n, err := dnswire.WriteFrame(dst, payload)
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	var fr dnswire.FrameReader
	ev, consumed := fr.Read(dst[:n])
	if ev != dnswire.EventHaveFrame {
		t.Fatalf("ev = %v, want EventHaveFrame", ev)
	}
	if consumed != n {
		t.Fatalf("consumed = %d, want %d", consumed, n)
	}
	if !bytes.Equal(fr.FrameData, payload) {
		t.Fatalf("FrameData = %q, want %q", fr.FrameData, payload)
	}
}

func TestFrameReader_UnknownControlType_Errors(t *testing.T) {
	dst := []byte{0, 0, 0, 0, 0, 0, 0, 4, 0, 0, 0, 99}
	var fr dnswire.FrameReader
	ev, _ := fr.Read(dst)
	if ev != dnswire.EventError {
		t.Fatalf("ev = %v, want EventError", ev)
	}
	ev, _ = fr.Read(dst)
	if ev != dnswire.EventError {
		t.Fatalf("subsequent Read after error should keep returning EventError, got %v", ev)
	}
}

func TestFrameReader_ZeroFieldStart_Errors(t *testing.T) {
	// START with ctrl_outer_len == 4 (no fields) is rejected.
	dst := []byte{0, 0, 0, 0, 0, 0, 0, 4, 0, 0, 0, 1}
	var fr dnswire.FrameReader
	ev, _ := fr.Read(dst)
	if ev != dnswire.EventError {
		t.Fatalf("ev = %v, want EventError", ev)
	}
}

func TestFrameReader_StoppedAndFinished(t *testing.T) {
	for _, tc := range []struct {
		name string
		want dnswire.FrameEvent
		dst  func() []byte
	}{
		{"stop", dnswire.EventStopped, func() []byte {
			b := make([]byte, 12)
			n, _ := dnswire.WriteControlStop(b)
			return b[:n]
		}},
		{"finish", dnswire.EventFinished, func() []byte {
			b := make([]byte, 12)
			n, _ := dnswire.WriteControl(b, dnswire.ControlFinish, nil)
			return b[:n]
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var fr dnswire.FrameReader
			ev, n := fr.Read(tc.dst())
			if ev != tc.want {
				t.Fatalf("ev = %v, want %v", ev, tc.want)
			}
			if n != 12 {
				t.Fatalf("n = %d, want 12", n)
			}
		})
	}
}
