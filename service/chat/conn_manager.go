package chat

import (
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WsConn is one live client connection tagged with its user id. Writes are
// serialized through mu: gorilla conns allow a single concurrent writer.
type WsConn struct {
	UserID    string
	Conn      *websocket.Conn
	Remote    net.Addr
	CreatedAt time.Time

	mu sync.Mutex
}

const writeDeadline = 5 * time.Second

// WriteFrame sends one text frame with a write deadline.
func (w *WsConn) WriteFrame(data []byte) error {
	if w == nil || w.Conn == nil {
		return errors.New("nil conn")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.Conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WsConn) closeQuiet() {
	if w != nil && w.Conn != nil {
		_ = w.Conn.Close()
	}
}

// ConnManager is the presence registry: user id -> single live connection.
// A new connection for the same user replaces the old entry and closes the
// replaced socket (no multi-device fan-out).
type ConnManager struct {
	mu    sync.RWMutex
	conns map[string]*WsConn

	clock func() time.Time
}

func NewConnManager() *ConnManager {
	return &ConnManager{
		conns: make(map[string]*WsConn),
		clock: time.Now,
	}
}

// Add registers conn for user and returns the registry record. The replaced
// connection, if any, is returned so the caller can close it outside the
// lock.
func (m *ConnManager) Add(user string, conn *websocket.Conn) (*WsConn, *WsConn) {
	if user == "" {
		return nil, nil
	}
	w := &WsConn{
		UserID:    user,
		Conn:      conn,
		CreatedAt: m.clock(),
	}
	if conn != nil {
		w.Remote = conn.RemoteAddr()
	}

	m.mu.Lock()
	old := m.conns[user]
	m.conns[user] = w
	m.mu.Unlock()
	return w, old
}

// Remove deletes user's entry only while it still maps to w. A teardown
// racing with a reconnect must not erase the fresh connection.
func (m *ConnManager) Remove(user string, w *WsConn) bool {
	m.mu.Lock()
	cur, ok := m.conns[user]
	if !ok || cur != w {
		m.mu.Unlock()
		return false
	}
	delete(m.conns, user)
	m.mu.Unlock()
	return true
}

func (m *ConnManager) Get(user string) (*WsConn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.conns[user]
	return w, ok
}

// Online returns the sorted set of user ids with a live connection.
func (m *ConnManager) Online() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.conns))
	for user := range m.conns {
		out = append(out, user)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// SendUser pushes one frame to user's connection, if any.
func (m *ConnManager) SendUser(user string, data []byte) error {
	m.mu.RLock()
	w := m.conns[user]
	m.mu.RUnlock()
	if w == nil {
		return errors.New("user not connected")
	}
	return w.WriteFrame(data)
}

// Broadcast pushes one frame to every live connection. Write failures are
// left to each connection's own read loop to notice and tear down.
func (m *ConnManager) Broadcast(data []byte) {
	m.mu.RLock()
	targets := make([]*WsConn, 0, len(m.conns))
	for _, w := range m.conns {
		targets = append(targets, w)
	}
	m.mu.RUnlock()

	for _, w := range targets {
		_ = w.WriteFrame(data)
	}
}

// Close drops and closes every connection.
func (m *ConnManager) Close() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*WsConn)
	m.mu.Unlock()

	for _, w := range conns {
		w.closeQuiet()
	}
}
