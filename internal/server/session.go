package server

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/fdtd"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/field"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/protocol"
)

// DefaultSessionTimeout expires sessions whose client has gone silent.
const DefaultSessionTimeout = 30 * time.Minute

// maxSpeed caps the steps-per-tick multiplier a client may request.
const maxSpeed = 8

// Session couples one client connection to its own simulation sandbox.
// Every client gets a private grid; nothing is shared between sessions.
type Session struct {
	ID string

	sim *fdtd.Simulation

	mu           sync.Mutex
	paused       bool
	speed        int
	lastActivity time.Time
	hasNewFrame  bool
}

func newSessionID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

func NewSession(sim *fdtd.Simulation) (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("server: generating session id: %w", err)
	}
	return &Session{
		ID:           id,
		sim:          sim,
		speed:        1,
		lastActivity: time.Now(),
	}, nil
}

// HandleInput injects a one-cell source at the message position. The z
// coordinate is carried by the wire format but has no meaning on a 2D grid.
func (s *Session) HandleInput(msg protocol.ClientInput) {
	p := s.sim.Params()
	s.sim.InjectSource(msg.X, msg.Y,
		1/float32(p.Width), 1/float32(p.Height),
		field.Vec3{Z: msg.Value}, false)
	s.touch()
}

// HandleControl applies a pause, resume, reset or speed change.
func (s *Session) HandleControl(msg protocol.ClientControl) error {
	s.touch()

	switch msg.Op {
	case protocol.ControlPause:
		s.mu.Lock()
		s.paused = true
		s.mu.Unlock()
	case protocol.ControlResume:
		s.mu.Lock()
		s.paused = false
		s.mu.Unlock()
	case protocol.ControlReset:
		s.sim.Reset()
	case protocol.ControlSetSpeed:
		n := int(msg.Param)
		if n < 1 {
			n = 1
		}
		if n > maxSpeed {
			n = maxSpeed
		}
		s.mu.Lock()
		s.speed = n
		s.mu.Unlock()
	default:
		return fmt.Errorf("server: unknown control op 0x%02x", byte(msg.Op))
	}
	return nil
}

// Update advances the simulation by the session's speed, unless paused.
func (s *Session) Update() {
	s.mu.Lock()
	paused, speed := s.paused, s.speed
	s.mu.Unlock()

	if paused {
		return
	}
	for i := 0; i < speed; i++ {
		s.sim.Step()
	}

	s.mu.Lock()
	s.hasNewFrame = true
	s.mu.Unlock()
}

// Paused reports the session's pause flag.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Speed reports the session's steps-per-tick multiplier.
func (s *Session) Speed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Frame snapshots both field grids into one payload, electric grid first,
// raw float32 little-endian. It returns ok=false when no step has run
// since the last frame.
func (s *Session) Frame(ctx context.Context) (protocol.Frame, bool, error) {
	s.mu.Lock()
	pending := s.hasNewFrame
	s.mu.Unlock()
	if !pending {
		return protocol.Frame{}, false, nil
	}

	electric, err := s.sim.Snapshot(ctx, field.Electric)
	if err != nil {
		return protocol.Frame{}, false, err
	}
	magnetic, err := s.sim.Snapshot(ctx, field.Magnetic)
	if err != nil {
		return protocol.Frame{}, false, err
	}

	payload := make([]byte, 0, (len(electric.Data)+len(magnetic.Data))*4)
	payload = appendGridData(payload, electric)
	payload = appendGridData(payload, magnetic)

	s.mu.Lock()
	s.hasNewFrame = false
	s.mu.Unlock()

	return protocol.Frame{
		SessionID: s.ID,
		Time:      s.sim.Time(),
		Payload:   payload,
	}, true, nil
}

func appendGridData(buf []byte, g *field.Grid) []byte {
	for _, v := range g.Data {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// State describes the session's grid for the connect handshake. Depth is
// always 1; the wire format predates the move to a flat grid.
func (s *Session) State() protocol.State {
	p := s.sim.Params()
	return protocol.State{
		SessionID: s.ID,
		Time:      float32(s.sim.Time()),
		Width:     int32(p.Width),
		Height:    int32(p.Height),
		Depth:     1,
	}
}

// TakeError drains one pending solver error, if any.
func (s *Session) TakeError() error {
	select {
	case err := <-s.sim.Errors():
		return err
	default:
		return nil
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Expired reports whether the client has been silent longer than timeout.
func (s *Session) Expired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity) > timeout
}

func (s *Session) Close() {
	s.sim.Close()
}
