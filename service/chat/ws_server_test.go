package chat

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"VChat/module/chat/model"
	jwtsec "VChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var testJWT = jwtsec.Options{Secret: []byte("ws-test-secret"), Alg: "HS256", TTL: time.Hour}

func startWsServer(t *testing.T) (*httptest.Server, *ConnManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conns := NewConnManager()
	srv := NewServer(conns, testJWT, nil)

	r := gin.New()
	r.GET("/ws", srv.HandleWS)

	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		conns.Close()
		ts.Close()
	})
	return ts, conns
}

func dialAs(t *testing.T, ts *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	token, _, err := jwtsec.Generate(testJWT, user)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + url.QueryEscape(token)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) *Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	f, err := ParseFrame(data)
	require.NoError(t, err)
	return f
}

// waitOnline reads frames until an online-set broadcast equals want.
func waitOnline(t *testing.T, conn *websocket.Conn, want []string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f := readFrame(t, conn)
		if f.Event != EventOnlineUsers {
			continue
		}
		users, err := DecodeOnlineUsers(f)
		require.NoError(t, err)
		if len(users) == len(want) {
			match := true
			for i := range users {
				if users[i] != want[i] {
					match = false
					break
				}
			}
			if match {
				return
			}
		}
	}
	t.Fatalf("never observed online set %v", want)
}

func TestPresenceBroadcastOnConnectAndDisconnect(t *testing.T) {
	ts, conns := startWsServer(t)

	alice := dialAs(t, ts, "alice")
	waitOnline(t, alice, []string{"alice"})

	bob := dialAs(t, ts, "bob")
	waitOnline(t, bob, []string{"alice", "bob"})
	waitOnline(t, alice, []string{"alice", "bob"})

	require.NoError(t, bob.Close())
	waitOnline(t, alice, []string{"alice"})
	require.Eventually(t, func() bool { return conns.Count() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	ts, conns := startWsServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=garbage"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err) // upgrade succeeds, then the server closes
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
	require.Zero(t, conns.Count())
}

func TestReconnectReplacesConnection(t *testing.T) {
	ts, conns := startWsServer(t)

	first := dialAs(t, ts, "alice")
	waitOnline(t, first, []string{"alice"})

	second := dialAs(t, ts, "alice")
	waitOnline(t, second, []string{"alice"})
	require.Equal(t, 1, conns.Count())

	// the replaced socket is closed by the server
	require.NoError(t, first.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, _, err := first.ReadMessage()
		if err != nil {
			break
		}
	}

	// alice stays online through her fresh connection
	require.Equal(t, []string{"alice"}, conns.Online())
}

func TestFanoutDeliversToOnlineRecipient(t *testing.T) {
	ts, conns := startWsServer(t)
	fanout := NewFanout(conns, nil)

	bob := dialAs(t, ts, "bob")
	waitOnline(t, bob, []string{"bob"})

	msg := &model.Message{
		ID:         "m1",
		SenderID:   "alice",
		ReceiverID: "bob",
		Text:       "yo",
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	fanout.Deliver(msg)

	f := readFrame(t, bob)
	require.Equal(t, EventNewMessage, f.Event)
	got, err := DecodeNewMessage(f)
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

func TestFanoutOfflineRecipientIsSilent(t *testing.T) {
	_, conns := startWsServer(t)
	fanout := NewFanout(conns, nil)

	// no connection for carol: delivery is a no-op, never an error
	fanout.Deliver(&model.Message{ID: "m2", SenderID: "alice", ReceiverID: "carol", Text: "hi"})
	require.Zero(t, conns.Count())
}
