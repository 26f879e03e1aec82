package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
)

// WithResponseMeta prepares the per-request meta map that handlers attach to the response envelope.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
		SetMetaDefault(c, "processing_time_ms", time.Since(start).Milliseconds())
	}
}

// SetCacheHit records whether the response was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	meta(c)[cacheHitKey] = hit
}

// SetMetaDefault stores value under key unless a handler already set it.
func SetMetaDefault(c *gin.Context, key string, value interface{}) {
	m := meta(c)
	if _, exists := m[key]; !exists {
		m[key] = value
	}
}

// ExtractMeta returns the meta map stored on the context, or nil.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if value, exists := c.Get(responseMetaKey); exists {
		if typed, ok := value.(map[string]interface{}); ok {
			return typed
		}
	}
	return nil
}

func meta(c *gin.Context) map[string]interface{} {
	if existing := ExtractMeta(c); existing != nil {
		return existing
	}
	created := map[string]interface{}{}
	if c != nil {
		c.Set(responseMetaKey, created)
	}
	return created
}
