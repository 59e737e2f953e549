package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	paymentdomain "github.com/tirtabill/tirtabill/internal/payment/domain"
)

func (s *Server) ApplyPayment(c *gin.Context) {
	var req paymentdomain.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.BillID = c.Param("id")
	req.UserID = requestUserID(c)

	resp, err := s.paymentSvc.Apply(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) GetPaymentByID(c *gin.Context) {
	resp, err := s.paymentSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListBillPayments(c *gin.Context) {
	page := parsePageParams(c)
	resp, err := s.paymentSvc.ListByBill(c.Request.Context(), paymentdomain.ListRequest{
		BillID:    c.Param("id"),
		PageSize:  page.PageSize,
		PageToken: page.PageToken,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
