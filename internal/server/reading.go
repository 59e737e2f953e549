package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	readingdomain "github.com/tirtabill/tirtabill/internal/reading/domain"
)

func (s *Server) RecordReading(c *gin.Context) {
	var req readingdomain.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.MeterID = c.Param("id")
	req.UserID = requestUserID(c)

	resp, err := s.readingSvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListReadings(c *gin.Context) {
	page := parsePageParams(c)
	resp, err := s.readingSvc.ListByMeter(c.Request.Context(), readingdomain.ListRequest{
		MeterID:   c.Param("id"),
		PageSize:  page.PageSize,
		PageToken: page.PageToken,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
