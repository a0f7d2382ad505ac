// Package sshd serves the command protocol over SSH. A session started with
// a command runs that one command; an interactive session gets a line editor
// when it has a PTY and a plain line reader otherwise.
package sshd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/tomz197/tileworld/internal/protocol"
)

// Options configures the SSH listener.
type Options struct {
	Addr        string
	HostKeyPath string
	IdleTimeout time.Duration
	Logger      *log.Logger
}

// Server is an SSH front end for a protocol.Core.
type Server struct {
	core   protocol.Core
	logger *log.Logger
	srv    *ssh.Server
}

func New(core protocol.Core, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{core: core, logger: logger}

	sshOpts := []ssh.Option{
		wish.WithAddress(opts.Addr),
		wish.WithMiddleware(
			s.middleware,
			logging.MiddlewareWithLogger(logger),
		),
		// Responses are small and latency matters more than throughput.
		ssh.WrapConn(func(ctx ssh.Context, conn net.Conn) net.Conn {
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				_ = tcpConn.SetNoDelay(true)
			}
			return conn
		}),
	}
	if opts.IdleTimeout > 0 {
		sshOpts = append(sshOpts, wish.WithIdleTimeout(opts.IdleTimeout))
	}
	if opts.HostKeyPath != "" {
		sshOpts = append(sshOpts, wish.WithHostKeyPath(opts.HostKeyPath))
	}

	srv, err := wish.NewServer(sshOpts...)
	if err != nil {
		return nil, fmt.Errorf("create ssh server: %w", err)
	}
	s.srv = srv
	return s, nil
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	s.logger.Info("ssh listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts sessions on ln until the server is shut down.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) middleware(next ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		logger := s.logger.With("session", uuid.NewString(), "user", sess.User())

		switch _, _, isPty := sess.Pty(); {
		case len(sess.Command()) > 0:
			line := strings.Join(sess.Command(), " ")
			resp, err := protocol.Execute(s.core, line)
			_, _ = sess.Write(resp)
			if err != nil {
				logger.Debug("command rejected", "line", line, "err", err)
				_ = sess.Exit(1)
			}
		case isPty:
			s.interactive(sess, logger)
		default:
			s.lines(sess, logger)
		}
		next(sess)
	}
}

// interactive runs a line editor; binary responses are shown quoted.
func (s *Server) interactive(sess ssh.Session, logger *log.Logger) {
	t := term.NewTerminal(sess, "> ")
	fmt.Fprintf(t, "commands: %s\r\n", strings.Join(protocol.Names(), ", "))
	for {
		line, err := t.ReadLine()
		if err != nil {
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}
		resp, err := protocol.Execute(s.core, line)
		if err != nil {
			logger.Debug("command rejected", "line", line, "err", err)
			if errors.Is(err, protocol.ErrMalformed) {
				name := strings.ToLower(strings.Fields(line)[0])
				if usage, ok := protocol.Usage(name); ok {
					fmt.Fprintf(t, "%q usage: %s\r\n", resp, usage)
					continue
				}
			}
		}
		fmt.Fprintf(t, "%q\r\n", resp)
	}
}

// lines answers one command per input line, each response followed by '\n'.
func (s *Server) lines(sess ssh.Session, logger *log.Logger) {
	scanner := bufio.NewScanner(sess)
	for scanner.Scan() {
		resp, err := protocol.Execute(s.core, scanner.Text())
		if err != nil {
			logger.Debug("command rejected", "line", scanner.Text(), "err", err)
		}
		out := make([]byte, 0, len(resp)+1)
		out = append(append(out, resp...), '\n')
		if _, err := sess.Write(out); err != nil {
			return
		}
	}
}
