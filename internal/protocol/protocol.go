// Package protocol implements the little-endian binary framing spoken
// between the field server and its thin clients.
//
// Every message starts with a one-byte type. Strings are a uint32 length
// followed by raw bytes; floats and integers are little-endian. Frame
// payloads are opaque here; whether they are compressed is agreed out of
// band (see Compressor).
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// MsgType identifies a wire message.
type MsgType byte

const (
	MsgClientInput   MsgType = 0x01
	MsgClientControl MsgType = 0x02
	MsgServerFrame   MsgType = 0x10
	MsgServerState   MsgType = 0x11
	MsgServerError   MsgType = 0x12
)

// ControlOp is the subtype of a ClientControl message.
type ControlOp byte

const (
	ControlPause    ControlOp = 0x01
	ControlResume   ControlOp = 0x02
	ControlReset    ControlOp = 0x03
	ControlSetSpeed ControlOp = 0x04
)

// Decode errors.
var (
	// ErrTruncated indicates a message shorter than its own layout.
	ErrTruncated = errors.New("protocol: message truncated")

	// ErrUnknownType indicates a header byte outside the message set.
	ErrUnknownType = errors.New("protocol: unknown message type")
)

// ClientInput injects a source at a normalized position.
type ClientInput struct {
	X, Y, Z   float32
	Value     float32
	Timestamp uint32
}

// ClientControl pauses, resumes, resets or re-speeds a session.
type ClientControl struct {
	Op    ControlOp
	Param float32
}

// Frame carries one simulation frame's payload to the client.
type Frame struct {
	SessionID string
	Time      float64
	Payload   []byte
}

// State announces a session's grid geometry.
type State struct {
	SessionID string
	Time      float32
	Width     int32
	Height    int32
	Depth     int32
}

// ServerError reports a session-scoped failure to the client.
type ServerError struct {
	SessionID string
	Message   string
}

func (m ClientInput) Encode() []byte {
	buf := make([]byte, 0, 21)
	buf = append(buf, byte(MsgClientInput))
	buf = appendFloat32(buf, m.X)
	buf = appendFloat32(buf, m.Y)
	buf = appendFloat32(buf, m.Z)
	buf = appendFloat32(buf, m.Value)
	buf = binary.LittleEndian.AppendUint32(buf, m.Timestamp)
	return buf
}

func (m ClientControl) Encode() []byte {
	buf := make([]byte, 0, 6)
	buf = append(buf, byte(MsgClientControl), byte(m.Op))
	buf = appendFloat32(buf, m.Param)
	return buf
}

func (f Frame) Encode() []byte {
	buf := make([]byte, 0, 1+4+len(f.SessionID)+8+4+len(f.Payload))
	buf = append(buf, byte(MsgServerFrame))
	buf = appendString(buf, f.SessionID)
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f.Time))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(f.Payload)))
	buf = append(buf, f.Payload...)
	return buf
}

func (s State) Encode() []byte {
	buf := make([]byte, 0, 1+4+len(s.SessionID)+16)
	buf = append(buf, byte(MsgServerState))
	buf = appendString(buf, s.SessionID)
	buf = appendFloat32(buf, s.Time)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.Width))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.Height))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.Depth))
	return buf
}

func (e ServerError) Encode() []byte {
	buf := make([]byte, 0, 1+8+len(e.SessionID)+len(e.Message))
	buf = append(buf, byte(MsgServerError))
	buf = appendString(buf, e.SessionID)
	buf = appendString(buf, e.Message)
	return buf
}

// PeekType returns the message type without consuming the payload.
func PeekType(data []byte) (MsgType, error) {
	if len(data) < 1 {
		return 0, ErrTruncated
	}
	t := MsgType(data[0])
	switch t {
	case MsgClientInput, MsgClientControl, MsgServerFrame, MsgServerState, MsgServerError:
		return t, nil
	default:
		return 0, fmt.Errorf("%w: 0x%02x", ErrUnknownType, data[0])
	}
}

func DecodeClientInput(data []byte) (ClientInput, error) {
	r, err := newReader(data, MsgClientInput)
	if err != nil {
		return ClientInput{}, err
	}
	m := ClientInput{
		X:         r.float32(),
		Y:         r.float32(),
		Z:         r.float32(),
		Value:     r.float32(),
		Timestamp: r.uint32(),
	}
	return m, r.err
}

func DecodeClientControl(data []byte) (ClientControl, error) {
	r, err := newReader(data, MsgClientControl)
	if err != nil {
		return ClientControl{}, err
	}
	m := ClientControl{
		Op:    ControlOp(r.byte()),
		Param: r.float32(),
	}
	return m, r.err
}

func DecodeFrame(data []byte) (Frame, error) {
	r, err := newReader(data, MsgServerFrame)
	if err != nil {
		return Frame{}, err
	}
	f := Frame{
		SessionID: r.string(),
		Time:      r.float64(),
	}
	f.Payload = r.bytes(int(r.uint32()))
	return f, r.err
}

func DecodeState(data []byte) (State, error) {
	r, err := newReader(data, MsgServerState)
	if err != nil {
		return State{}, err
	}
	s := State{
		SessionID: r.string(),
		Time:      r.float32(),
		Width:     int32(r.uint32()),
		Height:    int32(r.uint32()),
		Depth:     int32(r.uint32()),
	}
	return s, r.err
}

func DecodeServerError(data []byte) (ServerError, error) {
	r, err := newReader(data, MsgServerError)
	if err != nil {
		return ServerError{}, err
	}
	e := ServerError{
		SessionID: r.string(),
		Message:   r.string(),
	}
	return e, r.err
}

func appendFloat32(buf []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// reader walks a message with a sticky error, so decoders read every field
// unconditionally and check once.
type reader struct {
	data []byte
	off  int
	err  error
}

func newReader(data []byte, want MsgType) (*reader, error) {
	got, err := PeekType(data)
	if err != nil {
		return nil, err
	}
	if got != want {
		return nil, fmt.Errorf("protocol: unexpected type 0x%02x, want 0x%02x", byte(got), byte(want))
	}
	return &reader{data: data, off: 1}, nil
}

func (r *reader) fail() {
	if r.err == nil {
		r.err = ErrTruncated
	}
}

func (r *reader) byte() byte {
	if r.err != nil || r.off+1 > len(r.data) {
		r.fail()
		return 0
	}
	b := r.data[r.off]
	r.off++
	return b
}

func (r *reader) uint32() uint32 {
	if r.err != nil || r.off+4 > len(r.data) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *reader) float32() float32 {
	return math.Float32frombits(r.uint32())
}

func (r *reader) float64() float64 {
	if r.err != nil || r.off+8 > len(r.data) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return math.Float64frombits(v)
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil || n < 0 || r.off+n > len(r.data) {
		r.fail()
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:])
	r.off += n
	return b
}

func (r *reader) string() string {
	return string(r.bytes(int(r.uint32())))
}
