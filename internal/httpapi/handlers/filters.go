package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/travel-assistant/internal/common"
	"github.com/suPer8Hu/travel-assistant/internal/destination"
)

// DynamicFilters ranks the features of the destinations matching the query
// against the whole catalogue.
func (h *Handler) DynamicFilters(c *gin.Context) {
	var f destination.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid filter")
		return
	}

	ctx := c.Request.Context()
	all, err := h.DestSvc.List(ctx, destination.Filter{})
	if err != nil {
		failErr(c, "Handler.DynamicFilters", err, "")
		return
	}
	selected := all
	if !f.Empty() {
		if selected, err = h.DestSvc.List(ctx, f); err != nil {
			failErr(c, "Handler.DynamicFilters", err, "")
			return
		}
	}
	ids := make([]string, 0, len(selected))
	for _, d := range selected {
		ids = append(ids, d.ID)
	}

	out, err := h.Filters.Generate(ctx, all, ids)
	if err != nil {
		failErr(c, "Handler.DynamicFilters", err, "")
		return
	}
	common.OK(c, out)
}
