package novasqlwire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/tuannm99/novaorm/internal/engine"
	"github.com/tuannm99/novaorm/internal/sql/executor"
)

type ServerConfig struct {
	Addr string
	// Database names the in-process engine database served by this listener.
	Database string
	Logger   *slog.Logger
}

// Server answers ExecuteRequest frames against one engine database.
type Server struct {
	exec   *executor.Executor
	logger *slog.Logger
}

func NewServer(db *engine.Database, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		exec:   executor.NewExecutor(db),
		logger: logger,
	}
}

// Run listens on sc.Addr and serves until SIGINT/SIGTERM.
func Run(sc ServerConfig) error {
	ln, err := net.Listen("tcp", sc.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := NewServer(engine.Named(sc.Database), sc.Logger)
	srv.logger.Info("novasql tcp server listening", "addr", ln.Addr().String(), "database", sc.Database)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx, ln)
}

// Serve accepts connections until ctx is done, then waits for open sessions to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer func() { _ = ln.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var wg conc.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", "err", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		wg.Go(func() { s.ServeConn(ctx, conn) })
	}
}

// ServeConn runs one session until the peer disconnects or ctx is done.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	session := uuid.NewString()
	log := s.logger.With("session", session, "remote", remoteAddr(conn))
	log.Debug("session opened")
	defer log.Debug("session closed")

	// No global deadline; clients bound each request themselves.
	_ = conn.SetDeadline(time.Time{})

	for {
		var req ExecuteRequest
		if err := ReadFrame(conn, &req); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				log.Debug("read frame", "err", err)
			}
			return
		}

		res, err := s.exec.ExecSQL(req.SQL)
		resp := ExecuteResponse{ID: req.ID, Result: res}
		if err != nil {
			resp = ExecuteResponse{ID: req.ID, Error: err.Error(), Code: CodeFor(err)}
			log.Debug("statement failed", "id", req.ID, "code", resp.Code, "err", err)
		}

		if err := WriteFrame(conn, resp); err != nil {
			log.Debug("write frame", "err", err)
			return
		}
	}
}

func remoteAddr(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
