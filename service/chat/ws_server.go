package chat

import (
	"context"
	"net"
	"net/http"
	"time"

	"VChat/logger"
	"VChat/service/storage"
	jwtsec "VChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server owns the websocket endpoint: it authenticates the handshake,
// registers the connection with the presence registry and broadcasts the
// online set on every change.
type Server struct {
	conns  *ConnManager
	jwt    jwtsec.Options
	mirror *storage.Manager // may be nil
}

func NewServer(conns *ConnManager, jwt jwtsec.Options, mirror *storage.Manager) *Server {
	return &Server{conns: conns, jwt: jwt, mirror: mirror}
}

func (s *Server) ConnMgr() *ConnManager { return s.conns }

// HandleWS upgrades GET /ws?token=... to a websocket. The token is the
// connection metadata carrying the identity; an unverifiable token closes
// the socket with a policy violation.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	userID, err := jwtsec.Verify(s.jwt, c.Query("token"))
	if err != nil {
		logger.Infof("[ws] handshake auth failed: %v", err)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
			time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}

	rec, replaced := s.conns.Add(userID, ws)
	if replaced != nil {
		// single connection per identity: kick the previous socket
		_ = replaced.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced by new connection"),
			time.Now().Add(time.Second))
		replaced.closeQuiet()
	}
	s.mirror.Online(c.Request.Context(), userID)
	s.broadcastOnline()
	logger.Infof("[ws] user %s connected from %v", userID, rec.Remote)

	s.readLoop(rec)

	// Teardown. Remove refuses stale records, so a reconnect that already
	// replaced this entry keeps the user online.
	if s.conns.Remove(userID, rec) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		s.mirror.Offline(ctx, userID)
		cancel()
		s.broadcastOnline()
		logger.Infof("[ws] user %s disconnected", userID)
	}
	rec.closeQuiet()
}

// readLoop drains the connection until the peer goes away. Inbound frames
// are not part of the protocol; anything parseable is logged and dropped.
func (s *Server) readLoop(rec *WsConn) {
	ws := rec.Conn
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed user=%s", rec.UserID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout user=%s err=%v", rec.UserID, rerr)
			} else {
				logger.Infof("[ws] read err user=%s err=%v", rec.UserID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if f, perr := ParseFrame(data); perr == nil {
			logger.Infof("[ws] ignoring client frame user=%s event=%s", rec.UserID, f.Event)
		}
	}
}

func (s *Server) broadcastOnline() {
	frame, err := BuildOnlineUsers(s.conns.Online())
	if err != nil {
		logger.Errorf("[ws] encode online set: %v", err)
		return
	}
	s.conns.Broadcast(frame)
}
