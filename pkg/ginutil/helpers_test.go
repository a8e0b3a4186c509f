package ginutil

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func ctxWithQuery(raw string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+raw, nil)
	return c
}

func TestQueryInt(t *testing.T) {
	assert.Equal(t, 7, QueryInt(ctxWithQuery("n=7"), "n", 1))
	assert.Equal(t, 1, QueryInt(ctxWithQuery("n=abc"), "n", 1))
	assert.Equal(t, 1, QueryInt(ctxWithQuery(""), "n", 1))
}

func TestQueryLimit(t *testing.T) {
	assert.Equal(t, 50, QueryLimit(ctxWithQuery(""), "limit", 50, 200))
	assert.Equal(t, 50, QueryLimit(ctxWithQuery("limit=-3"), "limit", 50, 200))
	assert.Equal(t, 200, QueryLimit(ctxWithQuery("limit=9999"), "limit", 50, 200))
	assert.Equal(t, 10, QueryLimit(ctxWithQuery("limit=10"), "limit", 50, 200))
}
