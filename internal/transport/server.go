// Package transport implements the server-side WebSocket listener: HTTP
// upgrade at /data, binary-frame read/write pumps per connection, and the
// plain-HTTP healthcheck (spec.md §6.1 "Transport", "Healthcheck").
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"odin-dobj/internal/config"
	"odin-dobj/internal/metrics"
)

// SessionFactory builds the session state for a newly accepted connection
// and is invoked once per upgraded WebSocket.
type SessionFactory func() Session

// Session is the narrow surface transport needs from internal/session,
// kept as an interface here so this package doesn't import session (which
// would create an import cycle once session needs transport framing).
type Session interface {
	HandleInbound(ctx context.Context, frame []byte) error
	Outbound() <-chan []byte
	Close()
	Done() <-chan struct{}
}

// Server accepts WebSocket connections and runs one read/write pump pair
// per session.
type Server struct {
	cfg      config.Config
	logger   *zap.Logger
	metrics  *metrics.Registry
	newSess  SessionFactory
	upgrader websocket.Upgrader

	httpServer *http.Server
	wg         sync.WaitGroup
}

func NewServer(cfg config.Config, logger *zap.Logger, metricsRegistry *metrics.Registry, newSess SessionFactory) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metricsRegistry,
		newSess: newSess,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    cfg.Server.ReadBufferSize,
			WriteBufferSize:   cfg.Server.WriteBufferSize,
			EnableCompression: cfg.WebSocket.EnableCompression,
			CheckOrigin:       func(r *http.Request) bool { return true },
		},
	}
}

// Start begins listening; it returns once the listener is bound, and runs
// the accept loop in the background until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.httpServer != nil {
		return fmt.Errorf("transport: already started")
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.WebSocket.Path, s.handleUpgrade(ctx))
	// spec.md §6.1 "Healthcheck": any non-websocket path returns 200 with
	// an empty body.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: listen: %w", err)
	}
	s.logger.Info("transport listening", zap.String("addr", addr), zap.String("path", s.cfg.WebSocket.Path))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("transport serve error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the HTTP server down, waiting for in-flight
// connections to drain.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	return err
}

func (s *Server) handleUpgrade(parent context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Debug("upgrade failed", zap.Error(err))
			return
		}
		if s.cfg.WebSocket.MaxMessageBytes > 0 {
			conn.SetReadLimit(int64(s.cfg.WebSocket.MaxMessageBytes))
		}

		sess := s.newSess()
		connCtx, cancel := context.WithCancel(parent)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer cancel()
			s.writePump(connCtx, conn, sess)
		}()

		s.readPump(connCtx, conn, sess)
		cancel()
		sess.Close()
		_ = conn.Close()
	}
}

func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, sess Session) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug("read error", zap.Error(err))
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		if err := sess.HandleInbound(ctx, data); err != nil {
			s.logger.Warn("inbound frame rejected", zap.Error(err))
		}
	}
}

func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, sess Session) {
	const pingInterval = 30 * time.Second
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			return
		case payload, ok := <-sess.Outbound():
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				s.logger.Debug("write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debug("ping write error", zap.Error(err))
				return
			}
		}
	}
}
