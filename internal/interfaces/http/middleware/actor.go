package middleware

import (
	"github.com/erp/sourcing/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Request headers read by the dispatch API
const (
	ActorHeader          = "X-User-ID"
	IdempotencyKeyHeader = "Idempotency-Key"
)

// MaxIdempotencyKeyLength bounds the key from either the header or the body
const MaxIdempotencyKeyLength = 128

const actorKey = "actor_id"

// Actor records the operator named in the X-User-ID header.
// Authentication happens upstream; a missing or malformed header leaves the actor unset.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader(ActorHeader); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				c.Set(actorKey, id)
				c.Request = c.Request.WithContext(logger.WithActorID(c.Request.Context(), id.String()))
			} else {
				logger.GetGinLogger(c).Warn("Ignoring malformed actor header")
			}
		}
		c.Next()
	}
}

// GetActorID returns the operator recorded by Actor, or uuid.Nil
func GetActorID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(actorKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
