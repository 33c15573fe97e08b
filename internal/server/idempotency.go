package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const maxIdempotencyKeyLength = 255

func idempotencyKeyFromHeader(c *gin.Context) (string, error) {
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(key) > maxIdempotencyKeyLength {
		return "", newValidationError("Idempotency-Key", "invalid_idempotency_key", "idempotency key is longer than 255 characters")
	}
	return key, nil
}
