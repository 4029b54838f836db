package relay

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Server accepts websocket upgrades and runs the per-connection pumps.
type Server struct {
	registry *Registry
	router   *Router
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a relay server over the given registry and router.
func NewServer(registry *Registry, router *Router, logger zerolog.Logger) *Server {
	return &Server{
		registry: registry,
		router:   router,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: readBufferSize,
			// Origin policy mirrors the permissive CORS on the HTTP API.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS upgrades an HTTP request into a relay session. It blocks until the
// connection closes, then unregisters it.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	c := newConn(ws, r.RemoteAddr)
	s.registry.Register(c)
	s.logger.Debug().Str("addr", c.addr).Int("connections", s.registry.Len()).Msg("relay connection opened")

	go c.writePump()

	c.readPump(func(raw []byte) {
		s.router.HandleFrame(c, raw)
	})

	s.registry.Unregister(c)
	ws.Close()
	s.logger.Debug().Str("addr", c.addr).Int("connections", s.registry.Len()).Msg("relay connection closed")
}

// Shutdown unregisters every live connection, which closes their outbound
// queues and lets the write pumps send close frames.
func (s *Server) Shutdown() {
	for _, c := range s.registry.Snapshot() {
		s.registry.Unregister(c)
	}
}
