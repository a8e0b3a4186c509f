package ginutil

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// QueryInt extracts an integer from query parameters with default value
func QueryInt(c *gin.Context, key string, defaultValue int) int {
	value, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return defaultValue
	}
	return value
}

// QueryLimit reads a page size, falling back to def when missing or
// non-positive and clamping to max.
func QueryLimit(c *gin.Context, key string, def, max int) int {
	n := QueryInt(c, key, def)
	if n <= 0 {
		n = def
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}
