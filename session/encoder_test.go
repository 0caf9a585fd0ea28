package session_test

import (
	"testing"

	"github.com/dnstap/go-dnswire"
	"github.com/dnstap/go-dnswire/session"
)

func TestEncoder_UniDirectional_FullSession(t *testing.T) {
	e := session.NewEncoder()
	buf := make([]byte, 256)

	sig := e.Encode(buf)
	if sig != session.SignalAgain {
		t.Fatalf("START: sig=%v", sig)
	}

	if err := e.SetRecord([]byte("abc")); err != nil {
		t.Fatalf("SetRecord: %v", err)
	}
	sig = e.Encode(buf)
	if sig != session.SignalRecord {
		t.Fatalf("frame: sig=%v", sig)
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	sig = e.Encode(buf)
	if sig != session.SignalEndOfData {
		t.Fatalf("STOP: sig=%v", sig)
	}
	if !e.Done() {
		t.Fatalf("Done() = false after STOP")
	}
}

func TestEncoder_SetRecord_IllegalBeforeStart(t *testing.T) {
	e := session.NewEncoder()
	if err := e.SetRecord([]byte("x")); err != dnswire.ErrProtocol {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestEncoder_Stop_IllegalTwice(t *testing.T) {
	e := session.NewEncoder()
	buf := make([]byte, 64)
	e.Encode(buf) // START

	if err := e.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := e.Stop(); err != dnswire.ErrProtocol {
		t.Fatalf("second Stop: err = %v, want ErrProtocol", err)
	}
}

func TestEncoder_NeedMore_OnShortBuffer(t *testing.T) {
	e := session.NewEncoder()
	sig := e.Encode(make([]byte, 2)) // START needs more than 2 bytes
	if sig != session.SignalNeedMore {
		t.Fatalf("sig=%v, want SignalNeedMore", sig)
	}
	// State should not have advanced: a longer buffer still produces START.
	buf := make([]byte, 64)
	sig = e.Encode(buf)
	if sig != session.SignalAgain {
		t.Fatalf("retry: sig=%v, want SignalAgain", sig)
	}

	var fr dnswire.FrameReader
	ev, _ := fr.Read(buf[:e.Encoded()])
	if ev != dnswire.EventHaveControl || fr.ControlType != dnswire.ControlStart {
		t.Fatalf("retry produced ev=%v type=%v, want START", ev, fr.ControlType)
	}
}

func TestEncoder_BidirectionalRoles(t *testing.T) {
	e := session.NewBidirectionalEncoder()
	buf := make([]byte, 64)

	sig := e.Encode(buf)
	if sig != session.SignalAgain {
		t.Fatalf("READY: sig=%v", sig)
	}
	var fr dnswire.FrameReader
	ev, _ := fr.Read(buf[:e.Encoded()])
	if ev != dnswire.EventHaveControl || fr.ControlType != dnswire.ControlReady {
		t.Fatalf("ev=%v type=%v, want READY", ev, fr.ControlType)
	}

	sig = e.Encode(buf)
	if sig != session.SignalAgain {
		t.Fatalf("START: sig=%v", sig)
	}

	reply := session.NewReplyEncoder()
	sig = reply.Encode(buf)
	if sig != session.SignalAgain {
		t.Fatalf("ACCEPT: sig=%v", sig)
	}
	fr = dnswire.FrameReader{}
	ev, _ = fr.Read(buf[:reply.Encoded()])
	if ev != dnswire.EventHaveControl || fr.ControlType != dnswire.ControlAccept {
		t.Fatalf("ev=%v type=%v, want ACCEPT", ev, fr.ControlType)
	}

	sig = reply.Encode(buf)
	if sig != session.SignalEndOfData {
		t.Fatalf("FINISH: sig=%v", sig)
	}
	ev, _ = (&dnswire.FrameReader{}).Read(buf[:reply.Encoded()])
	if ev != dnswire.EventFinished {
		t.Fatalf("ev=%v, want EventFinished", ev)
	}
}
