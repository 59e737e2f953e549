package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	tariffdomain "github.com/tirtabill/tirtabill/internal/tariff/domain"
)

func (s *Server) CreateTariff(c *gin.Context) {
	var req tariffdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.UserID = requestUserID(c)

	resp, err := s.tariffSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListTariffs(c *gin.Context) {
	resp, err := s.tariffSvc.List(c.Request.Context(), tariffdomain.ListRequest{
		CustomerClass: strings.TrimSpace(c.Query("customer_class")),
		Active:        parseBoolParam(c, "active"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tariffs": resp})
}

func (s *Server) GetTariffByID(c *gin.Context) {
	resp, err := s.tariffSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) UpdateTariff(c *gin.Context) {
	var req tariffdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.ID = c.Param("id")
	req.UserID = requestUserID(c)

	resp, err := s.tariffSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
