// Package server owns the line transports: a TCP listener serving many
// connections and a stdio mode serving exactly one.
package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/mcsci/internal/config"
	"github.com/danmuck/mcsci/internal/extension"
	"github.com/danmuck/mcsci/internal/protocol/session"
)

// Version is the server build version advertised in the version response.
const Version = "0.1.0"

// Server accepts connections and runs one session per connection.
// Extensions are registered before serving starts and the set is immutable
// afterwards, which is what keeps extension ids stable.
type Server struct {
	cfg  config.ServerConfig
	exts *extension.Registry
	log  zerolog.Logger
}

func New(cfg config.ServerConfig, exts *extension.Registry, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, exts: exts, log: log}
}

// ListenAndServe accepts TCP connections until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("server listen failed: %w", err)
	}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("server accept failed: %w", err)
			}
			g.Go(func() error {
				s.serveConn(ctx, conn)
				return nil
			})
		}
	})
	return g.Wait()
}

// ServeStdio runs one session over stdin/stdout and returns when the peer
// quits or the stream closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	log := s.log.With().Str("conn", "stdio").Logger()
	return s.serveStream(ctx, os.Stdin, os.Stdout, log)
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	log := s.log.With().
		Str("conn", uuid.NewString()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()
	log.Info().Msg("connection accepted")
	defer func() {
		conn.Close()
		log.Info().Msg("connection closed")
	}()
	if err := s.serveStream(ctx, conn, conn, log); err != nil {
		log.Warn().Err(err).Msg("connection read failed")
	}
}

func (s *Server) serveStream(ctx context.Context, r io.Reader, w io.Writer, log zerolog.Logger) error {
	out := session.NewOutbox(w)
	sess := session.New(ctx, out, s.exts, s.cfg.Name+"/"+Version, log)
	defer sess.Close()
	sess.Greet()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), s.cfg.MaxLineBytes)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		log.Debug().Str("line", line).Msg("command received")
		if !sess.HandleLine(line) {
			return nil
		}
		if err := out.Err(); err != nil {
			return err
		}
	}
	return sc.Err()
}
