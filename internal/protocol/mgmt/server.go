package mgmt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/danmuck/ragent/internal/protocol/frame"
	"github.com/danmuck/ragent/internal/routerconfig"
	"github.com/rs/zerolog"
)

// Handler executes management operations on a router.
type Handler interface {
	Query(ctx context.Context, typeID string) ([]routerconfig.Record, error)
	CreateEntity(ctx context.Context, typeID, name string, attrs routerconfig.Record) error
	DeleteEntity(ctx context.Context, typeID, name string) error
}

// Server answers management requests for one Handler.
type Server struct {
	handler Handler
	limits  frame.Limits
	log     zerolog.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewServer(h Handler, logger zerolog.Logger) *Server {
	return &Server{
		handler: h,
		limits:  frame.DefaultLimits(),
		log:     logger,
		conns:   make(map[net.Conn]struct{}),
	}
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mgmt: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then closes every open
// connection and waits for their handlers.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("management server listening")
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer func() {
		stop()
		_ = ln.Close()
		s.closeAllConns()
		s.wg.Wait()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.untrackConn(conn)
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	s.log.Debug().Str("remote", remote).Msg("management client connected")
	defer s.log.Debug().Str("remote", remote).Msg("management client disconnected")

	reader := bufio.NewReader(conn)
	for {
		fr, err := frame.ReadFrame(reader, s.limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Warn().Err(err).Str("remote", remote).Msg("read frame")
			}
			return
		}
		resp := s.dispatch(ctx, fr.Header, fr.Payload)
		if err := frame.WriteFrame(conn, resp, s.limits); err != nil {
			s.log.Warn().Err(err).Str("remote", remote).Msg("write frame")
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, h frame.Header, payload []byte) frame.Frame {
	req, err := DecodeRequest(MessageType(h.MessageType), payload)
	if err != nil {
		return s.errorReply(h, StatusBadRequest, err)
	}
	resp, err := s.serve(ctx, req)
	if err != nil {
		s.log.Debug().Err(err).Str("op", req.Type.String()).Str("type", req.TypeID).Str("name", req.Name).Msg("request failed")
		return s.errorReply(h, s.statusOf(err), err)
	}
	return frame.Reply(h, uint32(resp.Type), EncodeResponse(resp), false)
}

func (s *Server) serve(ctx context.Context, req Request) (resp Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Interface("panic", rec).Str("op", req.Type.String()).Msg("handler panicked")
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	switch req.Type {
	case MsgQuery:
		records, err := s.handler.Query(ctx, req.TypeID)
		if err != nil {
			return Response{}, err
		}
		return Response{Type: MsgQueryResult, Records: records}, nil
	case MsgCreate:
		if err := s.handler.CreateEntity(ctx, req.TypeID, req.Name, req.Record); err != nil {
			return Response{}, err
		}
	case MsgDelete:
		if err := s.handler.DeleteEntity(ctx, req.TypeID, req.Name); err != nil {
			return Response{}, err
		}
	}
	return Response{Type: MsgAck}, nil
}

func (s *Server) statusOf(err error) uint32 {
	if sc, ok := s.handler.(StatusCoder); ok {
		if code := sc.StatusCode(err); code != 0 {
			return code
		}
	}
	return StatusInternal
}

func (s *Server) errorReply(h frame.Header, code uint32, err error) frame.Frame {
	payload := EncodeResponse(Response{Type: MsgError, Code: code, Message: err.Error()})
	return frame.Reply(h, uint32(MsgError), payload, true)
}

func (s *Server) trackConn(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrackConn(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeAllConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
