package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/suPer8Hu/travel-assistant/internal/chat"
	"github.com/suPer8Hu/travel-assistant/internal/common"
	"github.com/suPer8Hu/travel-assistant/internal/config"
	"github.com/suPer8Hu/travel-assistant/internal/destination"
	"github.com/suPer8Hu/travel-assistant/internal/filters"
	"github.com/suPer8Hu/travel-assistant/internal/httpapi/middleware"
)

// JobPublisher enqueues async chat jobs.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Handler struct {
	DB      *gorm.DB
	Cfg     config.Config
	ChatSvc *chat.Service
	DestSvc *destination.Service
	Filters *filters.Generator
	Jobs    JobPublisher
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// failErr maps service errors onto the response envelope.
func failErr(c *gin.Context, op string, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40400, notFoundMsg)
	case errors.Is(err, common.ErrUnauthorized):
		common.Fail(c, http.StatusUnauthorized, 40100, "unauthorized")
	case errors.Is(err, common.ErrUpstreamUnavailable):
		log.Printf("[%s] upstream failure request_id=%s err=%v", op, c.GetString(middleware.RequestIDKey), err)
		common.Fail(c, http.StatusServiceUnavailable, 50300, "service unavailable")
	default:
		log.Printf("[%s] request_id=%s err=%v", op, c.GetString(middleware.RequestIDKey), err)
		common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
	}
}
