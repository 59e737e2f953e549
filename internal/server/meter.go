package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	meterdomain "github.com/tirtabill/tirtabill/internal/meter/domain"
)

func (s *Server) CreateMeter(c *gin.Context) {
	var req meterdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.UserID = requestUserID(c)

	resp, err := s.meterSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) GetMeterByID(c *gin.Context) {
	resp, err := s.meterSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetMeterByNumber(c *gin.Context) {
	resp, err := s.meterSvc.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListCustomerMeters(c *gin.Context) {
	page := parsePageParams(c)
	resp, err := s.meterSvc.ListByCustomer(c.Request.Context(), meterdomain.ListRequest{
		CustomerID: c.Param("id"),
		Active:     parseBoolParam(c, "active"),
		PageSize:   page.PageSize,
		PageToken:  page.PageToken,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) UpdateMeter(c *gin.Context) {
	var req meterdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.ID = c.Param("id")
	req.UserID = requestUserID(c)

	resp, err := s.meterSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeactivateMeter(c *gin.Context) {
	resp, err := s.meterSvc.Deactivate(c.Request.Context(), c.Param("id"), requestUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
