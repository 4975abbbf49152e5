package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/travel-assistant/internal/common"
	"github.com/suPer8Hu/travel-assistant/internal/destination"
)

func (h *Handler) ListDestinations(c *gin.Context) {
	var f destination.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid filter")
		return
	}
	out, err := h.DestSvc.List(c.Request.Context(), f)
	if err != nil {
		failErr(c, "Handler.ListDestinations", err, "")
		return
	}
	common.OK(c, out)
}

func (h *Handler) GetDestination(c *gin.Context) {
	d, err := h.DestSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, "Handler.GetDestination", err, "destination not found")
		return
	}
	common.OK(c, d)
}

func (h *Handler) CreateDestination(c *gin.Context) {
	var in destination.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	d, err := h.DestSvc.Create(c.Request.Context(), in)
	if err != nil {
		failErr(c, "Handler.CreateDestination", err, "")
		return
	}
	common.Created(c, d)
}

func (h *Handler) UpdateDestination(c *gin.Context) {
	var in destination.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	d, err := h.DestSvc.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		failErr(c, "Handler.UpdateDestination", err, "destination not found")
		return
	}
	common.OK(c, d)
}

func (h *Handler) DeleteDestination(c *gin.Context) {
	id := c.Param("id")
	if err := h.DestSvc.Delete(c.Request.Context(), id); err != nil {
		failErr(c, "Handler.DeleteDestination", err, "destination not found")
		return
	}
	common.OK(c, gin.H{"id": id})
}
