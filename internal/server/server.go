// Package server streams simulation frames to websocket clients. Each
// connection gets its own session and simulation; frames are pushed at a
// fixed rate and client messages inject sources or control stepping.
package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/config"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/fdtd"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/protocol"
)

const reapInterval = time.Minute

// Server owns the listener, the session manager and the frame cadence.
type Server struct {
	addr     string
	fps      int
	timeout  time.Duration
	manager  *Manager
	comp     protocol.Compressor
	upgrader websocket.Upgrader
}

// New wires a server from config. newSim builds one simulation per
// connecting client.
func New(cfg config.ServerConfig, newSim func() (*fdtd.Simulation, error)) (*Server, error) {
	comp, err := protocol.NewCompressor(cfg.Compression)
	if err != nil {
		return nil, err
	}

	fps := cfg.FPS
	if fps <= 0 {
		fps = config.DefaultFPS
	}
	timeout := time.Duration(cfg.SessionTimeoutMin * float64(time.Minute))
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}

	return &Server{
		addr:    cfg.Addr,
		fps:     fps,
		timeout: timeout,
		manager: NewManager(cfg.MaxSessions, newSim),
		comp:    comp,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}, nil
}

// Run serves until ctx is canceled, then shuts down and closes every
// session.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/health", s.serveHealth)

	srv := &http.Server{Addr: s.addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("listening on %s (fps=%d compression=%s)", s.addr, s.fps, s.comp.Name())
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(reapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				for _, id := range s.manager.ReapExpired(s.timeout) {
					log.Printf("session %s expired", id)
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutCtx)
		s.manager.CloseAll()
		return err
	})

	return g.Wait()
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Create()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.manager.Remove(sess.ID)
		return
	}
	defer conn.Close()
	defer s.manager.Remove(sess.ID)

	log.Printf("session %s connected from %s", sess.ID, r.RemoteAddr)

	c := &wsConn{conn: conn}
	if err := c.writeBinary(sess.State().Encode()); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.streamFrames(ctx, c, sess)

	s.readLoop(c, sess)
	log.Printf("session %s disconnected", sess.ID)
}

// readLoop dispatches client messages until the connection drops. It runs
// on the handler goroutine so returning tears the connection down.
func (s *Server) readLoop(c *wsConn, sess *Session) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		s.dispatch(c, sess, data)
	}
}

func (s *Server) dispatch(c *wsConn, sess *Session, data []byte) {
	t, err := protocol.PeekType(data)
	if err != nil {
		s.sendError(c, sess.ID, err.Error())
		return
	}

	switch t {
	case protocol.MsgClientInput:
		msg, err := protocol.DecodeClientInput(data)
		if err != nil {
			s.sendError(c, sess.ID, err.Error())
			return
		}
		sess.HandleInput(msg)
	case protocol.MsgClientControl:
		msg, err := protocol.DecodeClientControl(data)
		if err != nil {
			s.sendError(c, sess.ID, err.Error())
			return
		}
		if err := sess.HandleControl(msg); err != nil {
			s.sendError(c, sess.ID, err.Error())
		}
	default:
		s.sendError(c, sess.ID, "unexpected message type from client")
	}
}

// streamFrames pushes one frame per tick until the connection context
// ends. Expiry closes the connection, which also stops the read loop.
func (s *Server) streamFrames(ctx context.Context, c *wsConn, sess *Session) {
	ticker := time.NewTicker(time.Second / time.Duration(s.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if sess.Expired(s.timeout) {
			log.Printf("session %s idle too long, closing", sess.ID)
			c.conn.Close()
			return
		}

		sess.Update()

		if err := sess.TakeError(); err != nil {
			s.sendError(c, sess.ID, err.Error())
		}

		frameCtx, cancel := context.WithTimeout(ctx, time.Second)
		frame, ok, err := sess.Frame(frameCtx)
		cancel()
		if err != nil {
			s.sendError(c, sess.ID, err.Error())
			continue
		}
		if !ok {
			continue
		}

		packed, err := s.comp.Compress(frame.Payload)
		if err != nil {
			s.sendError(c, sess.ID, err.Error())
			continue
		}
		frame.Payload = packed

		if err := c.writeBinary(frame.Encode()); err != nil {
			return
		}
	}
}

func (s *Server) sendError(c *wsConn, sessionID, msg string) {
	e := protocol.ServerError{SessionID: sessionID, Message: msg}
	if err := c.writeBinary(e.Encode()); err != nil {
		log.Printf("session %s: error report failed: %v", sessionID, err)
	}
}

// wsConn serializes writers; the websocket library allows only one
// concurrent writer per connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}
