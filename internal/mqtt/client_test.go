package mqtt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestClient(t *testing.T) (*Client, *fakeClient) {
	t.Helper()
	c, err := NewClient(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	fc := newFakeClient()
	c.client = fc
	return c, fc
}

func TestClient_PublishRequiresConnection(t *testing.T) {
	c, fc := newTestClient(t)

	err := c.Publish(context.Background(), "weather", []byte(`{}`))
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Publish = %v, want ErrNotConnected", err)
	}
	if len(fc.published) != 0 {
		t.Errorf("published = %v, want nothing", fc.published)
	}
}

func TestClient_Publish(t *testing.T) {
	c, fc := newTestClient(t)
	fc.connected = true
	c.setConnected(true)

	if err := c.Publish(context.Background(), "weather", []byte(`{"stationId":"WS-01"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(fc.published) != 1 || fc.published[0] != `weather {"stationId":"WS-01"}` {
		t.Errorf("published = %v", fc.published)
	}
}

func TestClient_ConnectContext(t *testing.T) {
	c, fc := newTestClient(t)
	fc.connectTok = &fakeToken{done: make(chan struct{})}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Connect(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Connect = %v, want deadline exceeded", err)
	}

	fc.connectTok = doneToken(errors.New("refused"))
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Connect error = nil, want refused")
	}
}

func TestClient_DisconnectIdempotent(t *testing.T) {
	c, fc := newTestClient(t)
	fc.connected = true
	c.setConnected(true)

	c.Disconnect()
	c.Disconnect()

	if c.IsConnected() {
		t.Error("IsConnected = true after Disconnect")
	}
	if fc.disconnects != 2 {
		t.Errorf("disconnects = %d, want 2", fc.disconnects)
	}
	if err := c.Connect(context.Background()); err == nil {
		t.Error("Connect after Disconnect error = nil")
	}
}
