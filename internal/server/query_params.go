package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type pageParams struct {
	PageSize  int32
	PageToken string
}

func parsePageParams(c *gin.Context) pageParams {
	var params pageParams
	if raw := strings.TrimSpace(c.Query("page_size")); raw != "" {
		if size, err := strconv.ParseInt(raw, 10, 32); err == nil && size > 0 {
			params.PageSize = int32(size)
		}
	}
	params.PageToken = strings.TrimSpace(c.Query("page_token"))
	return params
}

func parseBoolParam(c *gin.Context, name string) *bool {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &value
}
