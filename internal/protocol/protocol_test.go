package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestClientInputWireLayout(t *testing.T) {
	msg := ClientInput{X: 0.5, Y: 0.25, Z: 0, Value: 1, Timestamp: 42}
	want := []byte{
		0x01,
		0x00, 0x00, 0x00, 0x3F, // 0.5
		0x00, 0x00, 0x80, 0x3E, // 0.25
		0x00, 0x00, 0x00, 0x00, // 0
		0x00, 0x00, 0x80, 0x3F, // 1
		0x2A, 0x00, 0x00, 0x00, // 42
	}

	got := msg.Encode()
	if !bytes.Equal(got, want) {
		t.Fatalf("encoded bytes = % x, want % x", got, want)
	}

	back, err := DecodeClientInput(got)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if back != msg {
		t.Errorf("round trip = %+v, want %+v", back, msg)
	}
}

func TestClientControlWireLayout(t *testing.T) {
	msg := ClientControl{Op: ControlSetSpeed, Param: 2}
	want := []byte{0x02, 0x04, 0x00, 0x00, 0x00, 0x40}

	got := msg.Encode()
	if !bytes.Equal(got, want) {
		t.Fatalf("encoded bytes = % x, want % x", got, want)
	}

	back, err := DecodeClientControl(got)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if back != msg {
		t.Errorf("round trip = %+v, want %+v", back, msg)
	}
}

func TestFrameWireLayout(t *testing.T) {
	f := Frame{SessionID: "abc123", Time: 1.5, Payload: []byte{1, 2, 3}}
	want := []byte{
		0x10,
		0x06, 0x00, 0x00, 0x00, 'a', 'b', 'c', '1', '2', '3',
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xF8, 0x3F, // 1.5
		0x03, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03,
	}

	got := f.Encode()
	if !bytes.Equal(got, want) {
		t.Fatalf("encoded bytes = % x, want % x", got, want)
	}

	back, err := DecodeFrame(got)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if back.SessionID != f.SessionID || back.Time != f.Time || !bytes.Equal(back.Payload, f.Payload) {
		t.Errorf("round trip = %+v, want %+v", back, f)
	}
}

func TestStateWireLayout(t *testing.T) {
	s := State{SessionID: "s1", Time: 0.5, Width: 128, Height: 64, Depth: 1}
	want := []byte{
		0x11,
		0x02, 0x00, 0x00, 0x00, 's', '1',
		0x00, 0x00, 0x00, 0x3F, // 0.5
		0x80, 0x00, 0x00, 0x00,
		0x40, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
	}

	got := s.Encode()
	if !bytes.Equal(got, want) {
		t.Fatalf("encoded bytes = % x, want % x", got, want)
	}

	back, err := DecodeState(got)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if back != s {
		t.Errorf("round trip = %+v, want %+v", back, s)
	}
}

func TestServerErrorRoundTrip(t *testing.T) {
	e := ServerError{SessionID: "s1", Message: "backend lost"}

	back, err := DecodeServerError(e.Encode())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if back != e {
		t.Errorf("round trip = %+v, want %+v", back, e)
	}
}

func TestEmptyStringsRoundTrip(t *testing.T) {
	f := Frame{SessionID: "", Time: 0, Payload: nil}

	back, err := DecodeFrame(f.Encode())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if back.SessionID != "" || len(back.Payload) != 0 {
		t.Errorf("round trip = %+v, want empty frame", back)
	}
}

func TestDecodeTruncated(t *testing.T) {
	full := map[string][]byte{
		"input":   ClientInput{X: 1, Timestamp: 7}.Encode(),
		"control": ClientControl{Op: ControlPause}.Encode(),
		"frame":   Frame{SessionID: "abc", Time: 2, Payload: []byte{9}}.Encode(),
		"state":   State{SessionID: "abc", Width: 4, Height: 4, Depth: 1}.Encode(),
		"error":   ServerError{SessionID: "abc", Message: "x"}.Encode(),
	}
	decode := map[string]func([]byte) error{
		"input":   func(b []byte) error { _, err := DecodeClientInput(b); return err },
		"control": func(b []byte) error { _, err := DecodeClientControl(b); return err },
		"frame":   func(b []byte) error { _, err := DecodeFrame(b); return err },
		"state":   func(b []byte) error { _, err := DecodeState(b); return err },
		"error":   func(b []byte) error { _, err := DecodeServerError(b); return err },
	}

	for name, msg := range full {
		t.Run(name, func(t *testing.T) {
			for cut := 1; cut < len(msg); cut++ {
				if err := decode[name](msg[:cut]); !errors.Is(err, ErrTruncated) {
					t.Fatalf("cut at %d: err = %v, want ErrTruncated", cut, err)
				}
			}
			if err := decode[name](msg); err != nil {
				t.Fatalf("full message failed: %v", err)
			}
		})
	}
}

func TestDecodeRejectsWrongType(t *testing.T) {
	control := ClientControl{Op: ControlReset}.Encode()

	if _, err := DecodeClientInput(control); err == nil {
		t.Error("decoding a control message as input succeeded")
	}
	if _, err := DecodeFrame(control); err == nil {
		t.Error("decoding a control message as frame succeeded")
	}
}

func TestPeekType(t *testing.T) {
	if _, err := PeekType(nil); !errors.Is(err, ErrTruncated) {
		t.Errorf("empty message: err = %v, want ErrTruncated", err)
	}
	if _, err := PeekType([]byte{0x7F}); !errors.Is(err, ErrUnknownType) {
		t.Errorf("bad header: err = %v, want ErrUnknownType", err)
	}
	got, err := PeekType(ClientInput{}.Encode())
	if err != nil || got != MsgClientInput {
		t.Errorf("PeekType = (%v, %v), want (MsgClientInput, nil)", got, err)
	}
}

func TestFrameLengthOverflowRejected(t *testing.T) {
	msg := Frame{SessionID: "s", Time: 0, Payload: []byte{1, 2, 3}}.Encode()
	// Corrupt the payload length to claim more bytes than the message holds.
	msg[len(msg)-7] = 0xFF

	if _, err := DecodeFrame(msg); !errors.Is(err, ErrTruncated) {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
}
