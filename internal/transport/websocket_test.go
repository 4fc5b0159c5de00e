package transport

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublisherToWebSocketSource(t *testing.T) {
	pub := NewPublisher(8, nil)
	srv := httptest.NewServer(pub)
	defer srv.Close()
	defer pub.Close()

	frames := make(chan []byte, 8)
	src := NewWebSocketSource(wsURL(srv), nil)
	src.OnFrame(func(data []byte) { frames <- data })
	if err := src.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer src.Close()

	waitFor(t, func() bool { return pub.Subscribers() == 1 })

	want := [][]byte{{0xff, 0xd8, 0xff, 1}, {0xff, 0xd8, 0xff, 2}}
	for _, f := range want {
		if err := pub.SendFrame(f); err != nil {
			t.Fatalf("SendFrame() error = %v", err)
		}
	}
	for i, w := range want {
		select {
		case got := <-frames:
			if !bytes.Equal(got, w) {
				t.Errorf("frame %d = %v, want %v", i, got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}
}

func TestWebSocketSourceIgnoresTextMessages(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(httpHandlerFunc(func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3})
		time.Sleep(100 * time.Millisecond)
	}, &upgrader))
	defer srv.Close()

	frames := make(chan []byte, 4)
	src := NewWebSocketSource(wsURL(srv), nil)
	src.OnFrame(func(data []byte) { frames <- data })
	if err := src.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer src.Close()

	select {
	case got := <-frames:
		if !bytes.Equal(got, []byte{1, 2, 3}) {
			t.Errorf("frame = %v, want [1 2 3]", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for binary frame")
	}
	select {
	case got := <-frames:
		t.Errorf("unexpected extra frame %v", got)
	default:
	}
}

func TestWebSocketSourceDoneWhenFeedCloses(t *testing.T) {
	pub := NewPublisher(1, nil)
	srv := httptest.NewServer(pub)
	defer srv.Close()

	src := NewWebSocketSource(wsURL(srv), nil)
	if err := src.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	waitFor(t, func() bool { return pub.Subscribers() == 1 })

	pub.Close()

	select {
	case <-src.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("source not done after publisher closed")
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close() after done error = %v", err)
	}
}

func TestWebSocketSourceConnectError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	src := NewWebSocketSource("ws://127.0.0.1:1/frames", nil)
	if err := src.Connect(ctx); err == nil {
		t.Fatal("expected dial error")
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close() on unconnected source error = %v", err)
	}
}

func TestPublisherDropsForSlowSubscriber(t *testing.T) {
	pub := NewPublisher(1, nil)
	sub := &subscriber{msgs: make(chan []byte, 1)}
	pub.addSubscriber(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			pub.SendFrame([]byte{byte(i)})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendFrame blocked on a full subscriber")
	}
	if got := <-sub.msgs; got[0] != 0 {
		t.Errorf("queued frame = %v, want the first one", got)
	}
}
