package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/tirtabill/tirtabill/internal/billing/domain"
)

func (s *Server) GenerateBill(c *gin.Context) {
	var req billingdomain.GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}
	req.MeterID = c.Param("id")
	req.Trigger = billingdomain.TriggerManual
	req.UserID = requestUserID(c)

	resp, err := s.billingSvc.Generate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) GetBillByID(c *gin.Context) {
	resp, err := s.billingSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListCustomerBills(c *gin.Context) {
	page := parsePageParams(c)
	resp, err := s.billingSvc.ListByCustomer(c.Request.Context(), billingdomain.ListRequest{
		CustomerID: c.Param("id"),
		Status:     strings.TrimSpace(c.Query("status")),
		PageSize:   page.PageSize,
		PageToken:  page.PageToken,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListMeterBills(c *gin.Context) {
	page := parsePageParams(c)
	resp, err := s.billingSvc.ListByMeter(c.Request.Context(), billingdomain.ListRequest{
		MeterID:   c.Param("id"),
		Status:    strings.TrimSpace(c.Query("status")),
		PageSize:  page.PageSize,
		PageToken: page.PageToken,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) CancelBill(c *gin.Context) {
	var req billingdomain.CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}
	req.ID = c.Param("id")
	req.UserID = requestUserID(c)

	resp, err := s.billingSvc.Cancel(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
