package network

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialTestConn spins up a websocket echo endpoint and returns the server-side
// wrapper together with the raw client connection.
func dialTestConn(t *testing.T) (*WSConnection, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConns := make(chan *WSConnection, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- NewWSConnection(c)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case sc := <-serverConns:
		t.Cleanup(func() { sc.Close() })
		return sc, client
	case <-time.After(time.Second):
		t.Fatal("Server side never saw the connection")
		return nil, nil
	}
}

func TestPing_PongHandlerFires(t *testing.T) {
	sc, client := dialTestConn(t)

	pongs := make(chan struct{}, 4)
	sc.OnPong(func() {
		sc.SetReadDeadline(time.Second)
		select {
		case pongs <- struct{}{}:
		default:
		}
	})
	sc.SetReadDeadline(time.Second)

	// The client answers pings through its default ping handler, but only
	// while it is reading.
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()
	// Pongs are likewise only processed during a server-side read.
	readErr := make(chan error, 1)
	go func() {
		_, err := sc.ReadMessage()
		readErr <- err
	}()

	if err := sc.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	select {
	case <-pongs:
	case err := <-readErr:
		t.Fatalf("Read loop errored before the pong arrived: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Pong never arrived")
	}
}

func TestReadDeadline_SilentPeerErrorsTheRead(t *testing.T) {
	sc, _ := dialTestConn(t)

	// The peer sends nothing at all; the read must not block forever.
	sc.SetReadDeadline(50 * time.Millisecond)

	start := time.Now()
	if _, err := sc.ReadMessage(); err == nil {
		t.Fatal("Read from a silent peer should error once the deadline passes")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Read took too long to time out: %v", elapsed)
	}
}
