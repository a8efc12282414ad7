package mgmt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/ragent/internal/protocol/frame"
	"github.com/danmuck/ragent/internal/routerconfig"
	"github.com/rs/zerolog"
)

// ClientConfig addresses one router.
type ClientConfig struct {
	RouterID       string
	Addr           string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	Limits         frame.Limits
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 10 * time.Second,
		Limits:         frame.DefaultLimits(),
	}
}

func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("mgmt: client addr is required")
	}
	if c.ConnectTimeout < 0 || c.RequestTimeout < 0 {
		return errors.New("mgmt: timeouts must be >= 0")
	}
	return nil
}

// Client is a management connection to one router. It dials lazily,
// serialises request/response pairs on a single connection and redials after
// any transport failure. A Client is safe for concurrent use.
type Client struct {
	cfg ClientConfig
	log zerolog.Logger

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	nextID uint64
	closed bool
}

func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.Limits.MaxPayloadBytes == 0 {
		cfg.Limits = frame.DefaultLimits()
	}
	return &Client{
		cfg: cfg,
		log: logger.With().Str("addr", cfg.Addr).Logger(),
	}
}

func (c *Client) ID() string {
	return c.cfg.RouterID
}

func (c *Client) Query(ctx context.Context, typeID string) ([]routerconfig.Record, error) {
	resp, err := c.roundTrip(ctx, Request{Type: MsgQuery, TypeID: typeID})
	if err != nil {
		return nil, err
	}
	if resp.Type != MsgQueryResult {
		return nil, fmt.Errorf("%w: %s to %s", ErrUnexpectedResponse, resp.Type, MsgQuery)
	}
	return resp.Records, nil
}

func (c *Client) CreateEntity(ctx context.Context, typeID, name string, attrs routerconfig.Record) error {
	return c.expectAck(ctx, Request{Type: MsgCreate, TypeID: typeID, Name: name, Record: attrs})
}

func (c *Client) DeleteEntity(ctx context.Context, typeID, name string) error {
	return c.expectAck(ctx, Request{Type: MsgDelete, TypeID: typeID, Name: name})
}

// Close drops the connection. Later calls fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.reader = nil, nil
	return err
}

func (c *Client) expectAck(ctx context.Context, req Request) error {
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}
	if resp.Type != MsgAck {
		return fmt.Errorf("%w: %s to %s", ErrUnexpectedResponse, resp.Type, req.Type)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req Request) (Response, error) {
	payload, err := EncodeRequest(req)
	if err != nil {
		return Response{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Response{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	conn, err := c.connLocked(ctx)
	if err != nil {
		return Response{}, err
	}

	c.nextID++
	id := c.nextID
	var deadline time.Time
	if c.cfg.RequestTimeout > 0 {
		deadline = time.Now().Add(c.cfg.RequestTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	resp, err := c.exchange(conn, id, req.Type, payload)
	stop()

	if err != nil {
		c.dropLocked(err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}
		return Response{}, fmt.Errorf("mgmt: %s %s: %w", req.Type, c.cfg.Addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	if resp.Type == MsgError {
		return Response{}, &RemoteError{Code: resp.Code, Message: resp.Message}
	}
	return resp, nil
}

func (c *Client) exchange(conn net.Conn, id uint64, t MessageType, payload []byte) (Response, error) {
	if err := frame.WriteFrame(conn, frame.New(id, uint32(t), payload), c.cfg.Limits); err != nil {
		return Response{}, err
	}
	fr, err := frame.ReadFrame(c.reader, c.cfg.Limits)
	if err != nil {
		return Response{}, err
	}
	if !fr.Header.IsResponse() || fr.Header.MessageID != id {
		return Response{}, fmt.Errorf("%w: message_id=%d want=%d", ErrUnexpectedResponse, fr.Header.MessageID, id)
	}
	return DecodeResponse(MessageType(fr.Header.MessageType), fr.Payload)
}

func (c *Client) connLocked(ctx context.Context) (net.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("mgmt: dial %s: %w", c.cfg.Addr, err)
	}
	c.log.Debug().Msg("connected to router")
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return conn, nil
}

func (c *Client) dropLocked(cause error) {
	if c.conn == nil {
		return
	}
	c.log.Debug().Err(cause).Msg("dropping router connection")
	_ = c.conn.Close()
	c.conn, c.reader = nil, nil
}
