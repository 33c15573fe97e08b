package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func parseIDParam(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id <= 0 {
		AbortWithError(c, ErrNotFound)
		return 0, false
	}
	return id, true
}

func forceSyncQuery(c *gin.Context) (bool, error) {
	raw := strings.TrimSpace(c.Query("force_sync"))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, newValidationError("force_sync", "invalid_force_sync", "force_sync must be a boolean")
	}
	return v, nil
}
