package mgmt

import (
	"context"
	"errors"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/danmuck/ragent/internal/gateway/memory"
	"github.com/danmuck/ragent/internal/routerconfig"
	"github.com/danmuck/ragent/internal/testutil/testlog"
)

func startServer(t *testing.T, h Handler) (*Server, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(h, testlog.Logger(t))
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("serve: %v", err)
		}
	})
	return srv, ln.Addr().String()
}

func newTestClient(t *testing.T, addr string) *Client {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.RouterID = "router-a"
	cfg.Addr = addr
	cfg.RequestTimeout = 2 * time.Second
	c := NewClient(cfg, testlog.Logger(t))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRequestEncodeDecode(t *testing.T) {
	testlog.Start(t)
	in := Request{
		Type:   MsgCreate,
		TypeID: routerconfig.TypeAddress,
		Name:   "ragent-q1",
		Record: routerconfig.Record{"name": "ragent-q1", "prefix": "q1", "waypoint": "true"},
	}
	payload, err := EncodeRequest(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeRequest(MsgCreate, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("request mismatch: got=%+v want=%+v", out, in)
	}

	if _, err := EncodeRequest(Request{Type: MsgDelete, TypeID: routerconfig.TypeAddress}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("delete without name should be rejected, got %v", err)
	}
	if _, err := DecodeRequest(MsgAck, nil); !errors.Is(err, ErrMalformed) {
		t.Fatalf("ack is not a request, got %v", err)
	}
}

func TestErrorResponseDecode(t *testing.T) {
	testlog.Start(t)
	payload := EncodeResponse(Response{Type: MsgError, Code: StatusConflict, Message: "exists"})
	resp, err := DecodeResponse(MsgError, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != StatusConflict || resp.Message != "exists" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if _, err := DecodeResponse(MsgQuery, nil); !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("expected ErrUnexpectedResponse, got %v", err)
	}
}

func TestClientServerRoundTrip(t *testing.T) {
	testlog.Start(t)
	router := memory.NewRouter("router-a")
	if err := router.Put(routerconfig.TypeAddress, routerconfig.Record{"name": "foo", "prefix": "foo"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, addr := startServer(t, router)
	client := newTestClient(t, addr)
	ctx := context.Background()

	attrs := routerconfig.Record{"name": "ragent-q1", "prefix": "q1", "distribution": "balanced", "waypoint": "true"}
	if err := client.CreateEntity(ctx, routerconfig.TypeAddress, "ragent-q1", attrs); err != nil {
		t.Fatalf("create: %v", err)
	}
	records, err := client.Query(ctx, routerconfig.TypeAddress)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 2 || records[0]["name"] != "foo" || !reflect.DeepEqual(records[1], attrs) {
		t.Fatalf("unexpected records: %+v", records)
	}
	empty, err := client.Query(ctx, routerconfig.TypeLinkroute)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty query: %+v %v", empty, err)
	}

	if err := client.DeleteEntity(ctx, routerconfig.TypeAddress, "ragent-q1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = client.DeleteEntity(ctx, routerconfig.TypeAddress, "ragent-q1")
	if !errors.Is(err, ErrRemote) {
		t.Fatalf("expected ErrRemote, got %v", err)
	}
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Code != StatusNotFound {
		t.Fatalf("expected 404 remote error, got %v", err)
	}

	// remote errors keep the connection usable
	if _, err := client.Query(ctx, routerconfig.TypeAddress); err != nil {
		t.Fatalf("query after remote error: %v", err)
	}
	if _, err := client.Query(ctx, "org.apache.qpid.dispatch.listener"); !errors.As(err, &remote) || remote.Code != StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %v", err)
	}
}

func TestClientReconnectsAfterConnectionLoss(t *testing.T) {
	testlog.Start(t)
	router := memory.NewRouter("router-a")
	srv, addr := startServer(t, router)
	client := newTestClient(t, addr)
	ctx := context.Background()

	if _, err := client.Query(ctx, routerconfig.TypeAddress); err != nil {
		t.Fatalf("first query: %v", err)
	}
	srv.closeAllConns()

	// the first call after the drop may observe the closed connection
	_, _ = client.Query(ctx, routerconfig.TypeAddress)
	if _, err := client.Query(ctx, routerconfig.TypeAddress); err != nil {
		t.Fatalf("query after reconnect: %v", err)
	}
}

func TestClientCancelUnblocksPendingRequest(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 1024)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	client := newTestClient(t, ln.Addr().String())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err = client.Query(ctx, routerconfig.TypeAddress)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type panicHandler struct{ *memory.Router }

func (panicHandler) Query(context.Context, string) ([]routerconfig.Record, error) {
	panic("query exploded")
}

func TestServerRecoversHandlerPanic(t *testing.T) {
	testlog.Start(t)
	_, addr := startServer(t, panicHandler{memory.NewRouter("router-a")})
	client := newTestClient(t, addr)

	_, err := client.Query(context.Background(), routerconfig.TypeAddress)
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Code != StatusInternal {
		t.Fatalf("expected 500 remote error, got %v", err)
	}
}

func TestClosedClient(t *testing.T) {
	testlog.Start(t)
	client := NewClient(ClientConfig{Addr: "127.0.0.1:1"}, testlog.Logger(t))
	_ = client.Close()
	if _, err := client.Query(context.Background(), routerconfig.TypeAddress); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
