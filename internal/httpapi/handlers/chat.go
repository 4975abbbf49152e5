package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/travel-assistant/internal/common"
)

func (h *Handler) CreateChat(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	chat, err := h.ChatSvc.CreateChat(c.Request.Context(), uid)
	if err != nil {
		failErr(c, "Handler.CreateChat", err, "user not found")
		return
	}
	common.Created(c, chat)
}

func (h *Handler) ListUserChats(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	// other users' chat lists are hidden, not forbidden
	if c.Param("id") != uid {
		common.Fail(c, http.StatusNotFound, 40400, "user not found")
		return
	}

	chats, err := h.ChatSvc.ListUserChats(c.Request.Context(), uid)
	if err != nil {
		failErr(c, "Handler.ListUserChats", err, "user not found")
		return
	}
	common.OK(c, gin.H{"chats": chats})
}

type sendMessageReq struct {
	Prompt string `json:"prompt" binding:"required"`
	ChatID string `json:"chat_id"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		common.Fail(c, http.StatusBadRequest, 10001, "prompt required")
		return
	}

	ctx := c.Request.Context()
	chatID, err := h.ChatSvc.GetOrCreateSession(ctx, req.ChatID, uid)
	if err != nil {
		failErr(c, "Handler.SendChatMessage", err, "user not found")
		return
	}

	reply, err := h.ChatSvc.GenerateResponse(ctx, req.Prompt, chatID, uid)
	if err != nil {
		failErr(c, "Handler.SendChatMessage", err, "chat not found")
		return
	}

	common.OK(c, gin.H{
		"message":    reply.Message,
		"sources":    reply.Sources,
		"chat_id":    reply.ChatID,
		"message_id": reply.MessageID,
	})
}

func (h *Handler) GetChatHistory(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	chatID := c.Param("chat_id")

	ctx := c.Request.Context()
	chat, err := h.ChatSvc.GetChat(ctx, chatID)
	if err != nil {
		failErr(c, "Handler.GetChatHistory", err, "chat not found")
		return
	}
	if chat.UserID != uid {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40400, "chat not found")
		return
	}

	msgs, err := h.ChatSvc.RetrieveHistory(ctx, chatID)
	if err != nil {
		failErr(c, "Handler.GetChatHistory", err, "chat not found")
		return
	}
	if msgs == nil {
		common.Fail(c, http.StatusNotFound, 40400, "chat not found")
		return
	}

	history := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, gin.H{
			"role":       m.Role,
			"content":    m.Content,
			"metadata":   m.Metadata,
			"created_at": m.CreatedAt,
		})
	}
	common.OK(c, gin.H{"chat_id": chatID, "history": history})
}

func (h *Handler) SendChatMessageAsync(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async chat disabled")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		common.Fail(c, http.StatusBadRequest, 10001, "prompt required")
		return
	}

	// read idempotency key
	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}

	ctx := c.Request.Context()
	job, created, err := h.ChatSvc.CreateJob(ctx, uid, req.ChatID, req.Prompt, idempoKey)
	if err != nil {
		failErr(c, "Handler.SendChatMessageAsync", err, "user not found")
		return
	}

	// Enqueue only when a new job was created
	if created {
		if err := h.Jobs.PublishJob(ctx, job.ID); err != nil {
			log.Printf("[Handler.SendChatMessageAsync] PublishJob failed uid=%s chat_id=%s job_id=%s err=%v", uid, job.ChatID, job.ID, err)
			common.Fail(c, http.StatusServiceUnavailable, 50302, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{"job_id": job.ID, "chat_id": job.ChatID, "status": job.Status})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	j, err := h.ChatSvc.GetJob(c.Request.Context(), uid, c.Param("job_id"))
	if err != nil {
		failErr(c, "Handler.GetChatJob", err, "job not found")
		return
	}
	common.OK(c, gin.H{"job": j, "done": j.Done()})
}
