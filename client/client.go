package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"VChat/logger"
	"VChat/module/chat/model"
	usermodel "VChat/module/user/model"
	chatsrv "VChat/service/chat"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Client is the Go counterpart of the browser app: REST consumer plus one
// managed realtime connection. All exported methods are safe for concurrent
// use.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions *SessionStore

	mu      sync.Mutex
	session *Session
	ws      *websocket.Conn
	wsDone  chan struct{}
	online  []string

	state *ConvState
	users []*usermodel.User
}

func New(baseURL string, sessions *SessionStore) (*Client, error) {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 15 * time.Second},
		sessions: sessions,
		state:    NewConvState(),
	}
	if sessions != nil {
		sess, err := sessions.Load()
		if err != nil {
			return nil, err
		}
		c.session = sess
	}
	return c, nil
}

func (c *Client) State() *ConvState { return c.state }

// Identity returns the authenticated user, or nil when logged out.
func (c *Client) Identity() *usermodel.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.User
}

// ---- REST plumbing ----

type authResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Token    string          `json:"token"`
	UserData *usermodel.User `json:"userData"`
	User     *usermodel.User `json:"user"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	if c.session != nil {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "http call")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("auth rejected: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}
	return nil
}

// ---- auth operations ----

type SignupParams struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

func (c *Client) Signup(ctx context.Context, p SignupParams) error {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", p, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Message)
	}
	return c.establish(ctx, resp.Token, resp.UserData)
}

func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Message)
	}
	return c.establish(ctx, resp.Token, resp.UserData)
}

// CheckAuth validates the held token. Any failure forces a full logout so
// the client never sits in a half-authenticated state.
func (c *Client) CheckAuth(ctx context.Context) error {
	c.mu.Lock()
	hasSession := c.session != nil
	c.mu.Unlock()
	if !hasSession {
		return errors.New("not logged in")
	}

	var resp authResponse
	err := c.do(ctx, http.MethodGet, "/api/auth/check", nil, &resp)
	if err != nil || !resp.Success {
		c.Logout()
		if err == nil {
			err = errors.New(resp.Message)
		}
		return errors.Wrap(err, "auth check failed")
	}

	c.mu.Lock()
	c.session.User = resp.User
	c.mu.Unlock()
	c.persist()
	return c.Connect(ctx)
}

func (c *Client) UpdateProfile(ctx context.Context, fullName, bio, profilePic string) error {
	body := map[string]string{"fullName": fullName, "bio": bio, "profilePic": profilePic}
	var resp authResponse
	if err := c.do(ctx, http.MethodPut, "/api/auth/update-profile", body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Message)
	}
	c.mu.Lock()
	if c.session != nil {
		c.session.User = resp.User
	}
	c.mu.Unlock()
	c.persist()
	return nil
}

// Logout clears the token, cached identity and conversation state and tears
// down the realtime connection.
func (c *Client) Logout() {
	c.Disconnect()
	c.mu.Lock()
	c.session = nil
	c.online = nil
	c.users = nil
	c.mu.Unlock()
	c.state.Reset()
	if c.sessions != nil {
		if err := c.sessions.Clear(); err != nil {
			logger.Warnf("[client] clear session: %v", err)
		}
	}
}

func (c *Client) establish(ctx context.Context, token string, user *usermodel.User) error {
	c.mu.Lock()
	c.session = &Session{Token: token, User: user}
	c.mu.Unlock()
	c.persist()
	// connection errors degrade to no-push mode, they do not fail the login
	if err := c.Connect(ctx); err != nil {
		logger.Warnf("[client] realtime connect: %v", err)
	}
	return nil
}

func (c *Client) persist() {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if c.sessions == nil || sess == nil {
		return
	}
	if err := c.sessions.Save(sess); err != nil {
		logger.Warnf("[client] persist session: %v", err)
	}
}

// ---- realtime connection manager ----

// Connect opens the single realtime connection, closing any prior one
// first. The token rides as connection metadata; reconnection is not
// automatic — callers re-establish on the next login/check.
func (c *Client) Connect(ctx context.Context) error {
	c.Disconnect()

	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return errors.New("not logged in")
	}

	wsURL, err := c.wsURL(sess.Token)
	if err != nil {
		return err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return errors.Wrap(err, "dial ws")
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.ws = conn
	c.wsDone = done
	c.mu.Unlock()

	go c.readLoop(conn, done)
	return nil
}

// Disconnect tears down the active connection and clears socket state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.ws
	done := c.wsDone
	c.ws = nil
	c.wsDone = nil
	c.online = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
}

func (c *Client) wsURL(token string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", errors.Wrap(err, "parse base url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// readLoop owns inbound dispatch for one connection, preserving arrival
// order. It exits when the socket drops; the app then runs in degraded
// no-push mode.
func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Infof("[client] ws closed: %v", err)
			return
		}
		frame, err := chatsrv.ParseFrame(data)
		if err != nil {
			logger.Warnf("[client] bad frame: %v", err)
			continue
		}
		switch frame.Event {
		case chatsrv.EventOnlineUsers:
			users, err := chatsrv.DecodeOnlineUsers(frame)
			if err != nil {
				logger.Warnf("[client] online set: %v", err)
				continue
			}
			// last write wins
			c.mu.Lock()
			c.online = users
			c.mu.Unlock()
		case chatsrv.EventNewMessage:
			msg, err := chatsrv.DecodeNewMessage(frame)
			if err != nil {
				logger.Warnf("[client] message frame: %v", err)
				continue
			}
			c.state.ApplyIncoming(msg)
		default:
			logger.Infof("[client] unknown event %q", frame.Event)
		}
	}
}

// OnlineUsers returns the mirrored online set.
func (c *Client) OnlineUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.online...)
}

// ---- conversation operations ----

type usersResponse struct {
	Success        bool              `json:"success"`
	Message        string            `json:"message"`
	Users          []*usermodel.User `json:"users"`
	UnseenMessages map[string]int64  `json:"unseenMessages"`
}

type messagesResponse struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Messages []*model.Message `json:"messages"`
}

type sendResponse struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	NewMessage *model.Message `json:"newMessage"`
}

// FetchUsers loads the sidebar: all counterparts plus the server-computed
// unseen counts, which reseed the local counters.
func (c *Client) FetchUsers(ctx context.Context) ([]*usermodel.User, error) {
	var resp usersResponse
	if err := c.do(ctx, http.MethodGet, "/api/messages/users", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, errors.New(resp.Message)
	}
	c.mu.Lock()
	c.users = resp.Users
	c.mu.Unlock()
	c.state.SeedUnseen(resp.UnseenMessages)
	return resp.Users, nil
}

// Users returns the last fetched sidebar list.
func (c *Client) Users() []*usermodel.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*usermodel.User(nil), c.users...)
}

// SelectUser makes id the active counterpart and replaces the history with
// the server-returned list.
func (c *Client) SelectUser(ctx context.Context, id string) error {
	var resp messagesResponse
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(id), nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Message)
	}
	c.state.Select(id, resp.Messages)
	return nil
}

// SendMessage sends to the selected counterpart. With none selected the
// call is rejected locally, no server round trip.
func (c *Client) SendMessage(ctx context.Context, text, image string) (*model.Message, error) {
	to := c.state.Selected()
	if to == "" {
		return nil, errors.New("No user selected")
	}

	var resp sendResponse
	body := map[string]string{"text": text, "image": image}
	err := c.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(to), body, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, errors.New(resp.Message)
	}
	c.state.AppendLocal(resp.NewMessage)
	return resp.NewMessage, nil
}

// MarkSeen explicitly flags one message seen on the server.
func (c *Client) MarkSeen(ctx context.Context, id string) error {
	var resp authResponse
	if err := c.do(ctx, http.MethodPut, "/api/messages/mark/"+url.PathEscape(id), nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Message)
	}
	return nil
}
