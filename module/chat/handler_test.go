package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	midsec "VChat/middleware/security"
	"VChat/module/chat/model"
	usermodel "VChat/module/user/model"
	chatsrv "VChat/service/chat"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps messages in memory with the same semantics as the mongo
// store: insertion order per conversation, seen flag updates in place.
type fakeStore struct {
	mu   sync.Mutex
	msgs []*model.Message
}

func (s *fakeStore) Insert(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.msgs = append(s.msgs, &cp)
	return nil
}

func (s *fakeStore) Conversation(_ context.Context, a, b string) ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Message, 0)
	for _, m := range s.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkSeenFrom(_ context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.SenderID == from && m.ReceiverID == to {
			m.Seen = true
		}
	}
	return nil
}

func (s *fakeStore) MarkSeen(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.ID == id {
			m.Seen = true
		}
	}
	return nil
}

func (s *fakeStore) UnseenCounts(_ context.Context, user string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64)
	for _, m := range s.msgs {
		if m.ReceiverID == user && !m.Seen {
			out[m.SenderID]++
		}
	}
	return out, nil
}

var testUsers = map[string]*usermodel.User{
	"u-alice": {ID: "u-alice", FullName: "Alice", Email: "alice@example.com"},
	"u-bob":   {ID: "u-bob", FullName: "Bob", Email: "bob@example.com"},
}

// asUser resolves the acting identity from a test header, standing in for
// the jwt middleware.
func asUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := testUsers[c.GetHeader("X-Test-User")]
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(midsec.CtxUserKey, u)
	}
}

func listOthers(_ context.Context, exclude string) ([]*usermodel.User, error) {
	out := make([]*usermodel.User, 0)
	for id, u := range testUsers {
		if id != exclude {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &fakeStore{}
	conns := chatsrv.NewConnManager()
	t.Cleanup(conns.Close)
	h := NewHandler(store, listOthers, chatsrv.NewFanout(conns, nil))

	r := gin.New()
	auth := asUser()
	r.GET("/api/messages/users", auth, h.HandleUsers)
	r.GET("/api/messages/:userId", auth, h.HandleHistory)
	r.POST("/api/messages/send/:userId", auth, h.HandleSend)
	r.PUT("/api/messages/mark/:id", auth, h.HandleMarkSeen)
	return r, store
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user string, body any) (int, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	out := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return rr.Code, out
}

func success(t *testing.T, out map[string]json.RawMessage) bool {
	t.Helper()
	var ok bool
	require.NoError(t, json.Unmarshal(out["success"], &ok))
	return ok
}

func TestSendRejectsEmptyPayload(t *testing.T) {
	r, store := newTestRouter(t)

	code, out := doJSON(t, r, http.MethodPost, "/api/messages/send/u-bob", "u-alice",
		map[string]string{})
	require.Equal(t, http.StatusOK, code)
	require.False(t, success(t, out))
	require.Empty(t, store.msgs)
}

func TestSendRejectsSelfRecipient(t *testing.T) {
	r, _ := newTestRouter(t)

	code, out := doJSON(t, r, http.MethodPost, "/api/messages/send/u-alice", "u-alice",
		map[string]string{"text": "hi"})
	require.Equal(t, http.StatusOK, code)
	require.False(t, success(t, out))
}

func TestSendPersistsAndReturnsMessage(t *testing.T) {
	r, store := newTestRouter(t)

	code, out := doJSON(t, r, http.MethodPost, "/api/messages/send/u-bob", "u-alice",
		map[string]string{"text": "hi"})
	require.Equal(t, http.StatusOK, code)
	require.True(t, success(t, out))

	var msg model.Message
	require.NoError(t, json.Unmarshal(out["newMessage"], &msg))
	require.Equal(t, "u-alice", msg.SenderID)
	require.Equal(t, "u-bob", msg.ReceiverID)
	require.Equal(t, "hi", msg.Text)
	require.NotEmpty(t, msg.ID)
	require.False(t, msg.CreatedAt.IsZero())

	require.Len(t, store.msgs, 1)
	require.Equal(t, msg.ID, store.msgs[0].ID)
}

// Offline-recipient scenario: the message is stored, no push happens, and
// the recipient's next users fetch reports the unseen count.
func TestOfflineRecipientSeesUnseenCount(t *testing.T) {
	r, _ := newTestRouter(t)

	_, out := doJSON(t, r, http.MethodPost, "/api/messages/send/u-bob", "u-alice",
		map[string]string{"text": "hi"})
	require.True(t, success(t, out))

	code, out := doJSON(t, r, http.MethodGet, "/api/messages/users", "u-bob", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, success(t, out))

	var unseen map[string]int64
	require.NoError(t, json.Unmarshal(out["unseenMessages"], &unseen))
	require.Equal(t, int64(1), unseen["u-alice"])

	var users []*usermodel.User
	require.NoError(t, json.Unmarshal(out["users"], &users))
	require.Len(t, users, 1)
	require.Equal(t, "u-alice", users[0].ID)
}

func TestHistoryReturnsOrderedAndMarksSeen(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, text := range []string{"one", "two", "three"} {
		_, out := doJSON(t, r, http.MethodPost, "/api/messages/send/u-bob", "u-alice",
			map[string]string{"text": text})
		require.True(t, success(t, out))
	}

	_, out := doJSON(t, r, http.MethodGet, "/api/messages/u-alice", "u-bob", nil)
	require.True(t, success(t, out))

	var msgs []*model.Message
	require.NoError(t, json.Unmarshal(out["messages"], &msgs))
	require.Len(t, msgs, 3)
	require.Equal(t, "one", msgs[0].Text)
	require.Equal(t, "three", msgs[2].Text)

	// fetching reset the unseen counter
	_, out = doJSON(t, r, http.MethodGet, "/api/messages/users", "u-bob", nil)
	var unseen map[string]int64
	require.NoError(t, json.Unmarshal(out["unseenMessages"], &unseen))
	require.Zero(t, unseen["u-alice"])
}

func TestMarkSeenSingleMessage(t *testing.T) {
	r, store := newTestRouter(t)

	_, out := doJSON(t, r, http.MethodPost, "/api/messages/send/u-bob", "u-alice",
		map[string]string{"text": "hi"})
	require.True(t, success(t, out))
	var msg model.Message
	require.NoError(t, json.Unmarshal(out["newMessage"], &msg))

	_, out = doJSON(t, r, http.MethodPut, "/api/messages/mark/"+msg.ID, "u-bob", nil)
	require.True(t, success(t, out))
	require.True(t, store.msgs[0].Seen)
}
