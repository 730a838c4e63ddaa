package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/jingkaihe/padlock/pkg/api"
	"github.com/jingkaihe/padlock/pkg/backend"
)

// Server serves backend operations to remote peers, one goroutine per
// connection. Requests on a single connection are handled in order; callers
// wanting parallelism open more connections.
type Server struct {
	backend backend.StorageBackend
	logger  *slog.Logger
}

func NewServer(b backend.StorageBackend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{backend: b, logger: logger}
}

// Serve accepts connections until the listener is closed or ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go s.HandleConnection(ctx, conn)
	}
}

// HandleConnection serves one connection to completion. Exported so tests
// and in-process pairs can drive a connection without a listener.
func (s *Server) HandleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var req Request
		if err := readFrame(conn, &req); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("remote connection closed", "error", err)
			}
			return
		}

		resp := s.dispatch(ctx, &req)
		if err := writeFrame(conn, resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Op {
	case OpPing:
		return &Response{}

	case OpRead:
		rec, err := s.backend.Read(req.Path)
		if err != nil {
			return errResponse(err)
		}
		return &Response{Record: rec}

	case OpWrite:
		if err := s.backend.Write(req.Path, req.Content); err != nil {
			return errResponse(err)
		}
		return &Response{}

	case OpList:
		entries, err := s.backend.List(req.Path)
		if err != nil {
			return errResponse(err)
		}
		return &Response{Entries: entries}

	case OpDelete:
		if err := s.backend.Delete(req.Path); err != nil {
			return errResponse(err)
		}
		return &Response{}

	case OpMove:
		if err := s.backend.Move(req.Path, req.NewPath); err != nil {
			return errResponse(err)
		}
		return &Response{}

	case OpExecute:
		exec, ok := s.backend.(backend.ExecutorBackend)
		if !ok {
			return errResponse(api.ErrExecuteUnsupported)
		}
		result, err := exec.Execute(ctx, req.Command)
		if err != nil {
			return errResponse(err)
		}
		return &Response{Exec: result}

	default:
		return errResponse(api.ErrInvalidArgument)
	}
}

func errResponse(err error) *Response {
	return &Response{ErrCode: codeForError(err), ErrMsg: err.Error()}
}
