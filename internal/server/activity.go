package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	activitydomain "github.com/tirtabill/tirtabill/internal/activity/domain"
)

func (s *Server) ListActivity(c *gin.Context) {
	var req activitydomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.activitySvc.ListRecent(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
