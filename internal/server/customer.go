package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	customerdomain "github.com/tirtabill/tirtabill/internal/customer/domain"
)

func (s *Server) CreateCustomer(c *gin.Context) {
	var req customerdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.UserID = requestUserID(c)

	resp, err := s.customerSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListCustomers(c *gin.Context) {
	page := parsePageParams(c)
	resp, err := s.customerSvc.List(c.Request.Context(), customerdomain.ListRequest{
		Active:    parseBoolParam(c, "active"),
		Class:     strings.TrimSpace(c.Query("customer_class")),
		PageSize:  page.PageSize,
		PageToken: page.PageToken,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetCustomerByID(c *gin.Context) {
	resp, err := s.customerSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetCustomerByNumber(c *gin.Context) {
	resp, err := s.customerSvc.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) UpdateCustomer(c *gin.Context) {
	var req customerdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.ID = c.Param("id")
	req.UserID = requestUserID(c)

	resp, err := s.customerSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeactivateCustomer(c *gin.Context) {
	resp, err := s.customerSvc.Deactivate(c.Request.Context(), c.Param("id"), requestUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
