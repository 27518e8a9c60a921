package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"worldcore/codec"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func newTestServer(t *testing.T, d *Dispatcher) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		d.Serve("sess-1", conn)
	}))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func dialClient(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSendDeliversFrameToClient(t *testing.T) {
	d := NewDispatcher(8, nil)
	_, wsURL := newTestServer(t, d)
	client := dialClient(t, wsURL)

	require.Eventually(t, func() bool { return d.Connected("sess-1") }, time.Second, 5*time.Millisecond)

	body := codec.EncodeHandshakeAck(codec.HandshakeAck{PlayerID: 42})
	require.True(t, d.Send("sess-1", ChannelReliableOrdered, codec.TypeS2CHandshakeAck, body))

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	msgType, gotBody, err := codec.ParseFrame(data)
	require.NoError(t, err)
	require.Equal(t, codec.TypeS2CHandshakeAck, msgType)
	ack, err := codec.DecodeHandshakeAck(gotBody)
	require.NoError(t, err)
	require.Equal(t, uint32(42), ack.PlayerID)
}

func TestSendUnknownSessionReturnsFalse(t *testing.T) {
	d := NewDispatcher(8, nil)
	require.False(t, d.Send("no-such-session", ChannelReliableOrdered, codec.TypeC2SHeartbeat, nil))
}

func TestOnFrameInvokedForClientMessage(t *testing.T) {
	d := NewDispatcher(8, nil)
	var mu sync.Mutex
	var gotType codec.MsgType
	received := make(chan struct{})
	d.OnFrame = func(sessionID string, msgType codec.MsgType, body []byte) {
		mu.Lock()
		gotType = msgType
		mu.Unlock()
		close(received)
	}

	_, wsURL := newTestServer(t, d)
	client := dialClient(t, wsURL)

	frame := codec.Frame(codec.TypeC2SHeartbeat, nil)
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, frame))

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnFrame callback")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, codec.TypeC2SHeartbeat, gotType)
}

func TestOnDisconnectInvokedOnClientClose(t *testing.T) {
	d := NewDispatcher(8, nil)
	disconnected := make(chan string, 1)
	d.OnDisconnect = func(sessionID string, err error) { disconnected <- sessionID }

	_, wsURL := newTestServer(t, d)
	client := dialClient(t, wsURL)
	require.Eventually(t, func() bool { return d.Connected("sess-1") }, time.Second, 5*time.Millisecond)

	client.Close()

	select {
	case id := <-disconnected:
		require.Equal(t, "sess-1", id)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnDisconnect callback")
	}
	require.False(t, d.Connected("sess-1"))
}

func TestUnreliableChannelDropsOldestWhenFull(t *testing.T) {
	d := NewDispatcher(1, nil)
	// A peer is registered directly, with no live read/write pump, so the
	// single-slot queue can be driven deterministically without racing a
	// goroutine that would otherwise drain it.
	p := &Peer{SessionID: "sess-1"}
	for i := range p.queues {
		p.queues[i] = make(chan []byte, 1)
	}
	d.mu.Lock()
	d.peers["sess-1"] = p
	d.mu.Unlock()

	require.True(t, d.Send("sess-1", ChannelUnreliable, codec.TypeS2CPositionBatch, []byte{1}))
	require.True(t, d.Send("sess-1", ChannelUnreliable, codec.TypeS2CPositionBatch, []byte{2}))

	queued := <-p.queues[ChannelUnreliable]
	_, body, err := codec.ParseFrame(queued)
	require.NoError(t, err)
	require.Equal(t, []byte{2}, body, "a full unreliable queue must evict the oldest entry and keep the newest")
}
