// Package manip ingests grab signals from the external manipulation
// subsystem over a websocket and feeds them to the core through the
// event bus queue. It is the only concurrent component; the core itself
// stays single-threaded.
package manip

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/planelock/planelock/internal/core/events"
	"github.com/planelock/planelock/internal/core/events/bus"
	"github.com/planelock/planelock/internal/core/observability/log"
)

const source = "manip"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// signalMessage is the wire format the manipulation subsystem sends.
type signalMessage struct {
	Object string `json:"object"`
	Action string `json:"action"` // grab | release
}

// Server accepts manipulation connections on /signals.
type Server struct {
	addr   string
	events bus.EventBus
	logger log.Log

	// names maps object names to ids; populated before Start, read-only after.
	names map[string]uuid.UUID

	mu       sync.Mutex
	selected map[uuid.UUID]struct{}

	httpSrv   *http.Server
	boundAddr string
}

func NewServer(addr string, events bus.EventBus, logger log.Log) *Server {
	return &Server{
		addr:     addr,
		events:   events,
		logger:   logger.With(log.String("component", source)),
		names:    make(map[string]uuid.UUID),
		selected: make(map[uuid.UUID]struct{}),
	}
}

// Register makes an object addressable by name over the wire. Must be
// called before Start.
func (s *Server) Register(name string, id uuid.UUID) {
	s.names[name] = id
}

// Start binds the listener and serves in the background. Bind errors
// are returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.boundAddr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/signals", s.handleSignals)
	s.httpSrv = &http.Server{Handler: mux}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("serve failed", log.Err(err))
		}
	}()

	s.logger.Info("listening for manipulation signals", log.String("addr", s.boundAddr))
	return nil
}

// Addr returns the bound listen address after Start.
func (s *Server) Addr() string { return s.boundAddr }

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Selected answers the current-selection query: the ids currently held
// by the manipulation subsystem.
func (s *Server) Selected() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, 0, len(s.selected))
	for id := range s.selected {
		out = append(out, id)
	}
	return out
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", log.Err(err))
		return
	}
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.logger.Info("manipulation source connected", log.String("remote_addr", remote))

	for {
		var msg signalMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.logger.Info("manipulation source disconnected", log.String("remote_addr", remote))
			return
		}
		s.dispatch(msg)
	}
}

// dispatch validates a message and queues the grab event for the next
// logic phase.
func (s *Server) dispatch(msg signalMessage) {
	id, ok := s.names[msg.Object]
	if !ok {
		s.logger.Warn("signal for unknown object", log.String("object", msg.Object))
		return
	}

	var typ string
	switch msg.Action {
	case "grab":
		typ = events.TypeGrabBegin
		s.mu.Lock()
		s.selected[id] = struct{}{}
		s.mu.Unlock()
	case "release":
		typ = events.TypeGrabEnd
		s.mu.Lock()
		delete(s.selected, id)
		s.mu.Unlock()
	default:
		s.logger.Warn("unknown signal action", log.String("action", msg.Action))
		return
	}

	s.events.Enqueue(bus.NewEvent(typ, source, events.GrabSignal{ObjectID: id}))
}
