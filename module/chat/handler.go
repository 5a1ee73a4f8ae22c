package chat

import (
	"context"
	"net/http"

	"VChat/logger"
	midsec "VChat/middleware/security"
	"VChat/module/chat/service"
	usermodel "VChat/module/user/model"
	chatsrv "VChat/service/chat"
	"VChat/tools/errs"

	"github.com/gin-gonic/gin"
)

// UserLister feeds the sidebar; kept as a function so tests can stub it.
type UserLister func(ctx context.Context, exclude string) ([]*usermodel.User, error)

// Handler serves the /api/messages routes. Fan-out happens strictly after
// persistence; a push failure never fails the request.
type Handler struct {
	store     service.Store
	listUsers UserLister
	fanout    *chatsrv.Fanout
}

func NewHandler(store service.Store, listUsers UserLister, fanout *chatsrv.Fanout) *Handler {
	return &Handler{store: store, listUsers: listUsers, fanout: fanout}
}

func fail(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "message": msg})
}

func failServer(c *gin.Context, what string, err error) {
	logger.Errorf("[chat] %s: %v", what, err)
	c.JSON(http.StatusInternalServerError,
		gin.H{"success": false, "message": errs.ErrInternal.Msg})
}

// HandleUsers GET /api/messages/users — every other user plus the
// per-counterpart unseen counts.
func (h *Handler) HandleUsers(c *gin.Context) {
	me := midsec.CurrentUser(c)

	users, err := h.listUsers(c.Request.Context(), me.ID)
	if err != nil {
		failServer(c, "list users", err)
		return
	}
	unseen, err := h.store.UnseenCounts(c.Request.Context(), me.ID)
	if err != nil {
		failServer(c, "unseen counts", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"users":          users,
		"unseenMessages": unseen,
	})
}

// HandleHistory GET /api/messages/:userId — full ordered history with one
// counterpart. Fetching marks that counterpart's messages seen, which is
// what resets the client's unseen counter on selection.
func (h *Handler) HandleHistory(c *gin.Context) {
	me := midsec.CurrentUser(c)
	other := c.Param("userId")

	msgs, err := h.store.Conversation(c.Request.Context(), me.ID, other)
	if err != nil {
		failServer(c, "fetch history", err)
		return
	}
	if err := h.store.MarkSeenFrom(c.Request.Context(), other, me.ID); err != nil {
		failServer(c, "mark seen", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "messages": msgs})
}

// HandleSend POST /api/messages/send/:userId — persist, then push to the
// recipient's live connection if any, then answer the sender either way.
func (h *Handler) HandleSend(c *gin.Context) {
	me := midsec.CurrentUser(c)
	recipient := c.Param("userId")

	var p struct {
		Text  string `json:"text"`
		Image string `json:"image"`
	}
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, "No data provided")
		return
	}
	if p.Text == "" && p.Image == "" {
		fail(c, errs.ErrEmptyPayload.Msg)
		return
	}
	if recipient == "" || recipient == me.ID {
		fail(c, "invalid recipient")
		return
	}

	msg := service.NewMessage(me.ID, recipient, p.Text, p.Image)
	if err := h.store.Insert(c.Request.Context(), msg); err != nil {
		failServer(c, "persist message", err)
		return
	}
	h.fanout.Deliver(msg)

	c.JSON(http.StatusOK, gin.H{"success": true, "newMessage": msg})
}

// HandleMarkSeen PUT /api/messages/mark/:id — the explicit single-message
// reset action.
func (h *Handler) HandleMarkSeen(c *gin.Context) {
	if err := h.store.MarkSeen(c.Request.Context(), c.Param("id")); err != nil {
		failServer(c, "mark message", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
