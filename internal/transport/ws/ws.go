// Package ws serves the command protocol over WebSocket and streams each
// client's visible bodies as one msgpack frame per tick.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tomz197/tileworld/internal/loop/server"
	"github.com/tomz197/tileworld/internal/protocol"
	"github.com/tomz197/tileworld/internal/world"
)

const (
	writeWait    = 10 * time.Second
	maxLineBytes = 1 << 10
)

// Core is what the WebSocket front end needs from the world.
type Core interface {
	protocol.Core
	Client(id int) (world.Client, bool)
	Frame() *server.Frame
}

// Options configures the HTTP listener.
type Options struct {
	Addr        string
	IdleTimeout time.Duration // connections silent for longer are closed
	TickTime    time.Duration // how often /watch looks for a new frame
	Logger      *log.Logger

	// Shown on the landing page.
	SSHDisplayHost string
	SSHPort        string
}

// Server is a WebSocket front end for a Core.
type Server struct {
	core     Core
	opts     Options
	logger   *log.Logger
	upgrader websocket.Upgrader
	httpSrv  *http.Server
	page     string
}

func New(core Core, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = time.Minute
	}
	if opts.TickTime <= 0 {
		opts.TickTime = time.Second / 30
	}
	s := &Server{
		core:   core,
		opts:   opts,
		logger: opts.Logger,
		page:   landingPage(opts.SSHDisplayHost, opts.SSHPort),
		upgrader: websocket.Upgrader{
			// Viewers are served from anywhere.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.httpSrv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler routes /ws to the command endpoint, /watch to the frame stream
// and / to the landing page.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleCommands)
	mux.HandleFunc("/watch", s.handleWatch)
	return mux
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http listening", "addr", s.opts.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// handleCommands answers every text message with one binary message holding
// the protocol response.
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("conn", uuid.NewString(), "remote", r.RemoteAddr)
	logger.Debug("command connection opened")
	conn.SetReadLimit(maxLineBytes)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("command connection closed", "err", err)
			}
			return
		}

		resp, err := protocol.Execute(s.core, string(msg))
		if err != nil {
			logger.Debug("command rejected", "line", string(msg), "err", err)
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, resp); err != nil {
			logger.Debug("write failed", "err", err)
			return
		}
	}
}

// handleWatch streams /watch?client=N until the client leaves or the
// connection drops.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("client"))
	if err != nil {
		http.Error(w, "client must be a number", http.StatusBadRequest)
		return
	}
	if _, ok := s.core.Client(id); !ok {
		http.Error(w, world.ErrUnknownClient.Error(), http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	logger := s.logger.With("conn", uuid.NewString(), "client", id)

	// The reader only notices the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.opts.TickTime)
	defer ticker.Stop()
	var last uint64
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		if _, ok := s.core.Client(id); !ok {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client left"),
				time.Now().Add(writeWait))
			return
		}
		f := s.core.Frame()
		if f.Seq == last {
			continue
		}
		last = f.Seq

		data, err := msgpack.Marshal(NewWireFrame(f, id))
		if err != nil {
			logger.Error("encode frame", "err", err)
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			logger.Debug("watch closed", "err", err)
			return
		}
	}
}
