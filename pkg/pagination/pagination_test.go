package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	assert.Equal(t, Params{Page: 1, Limit: 20, Offset: 0}, New(0, 0))
	assert.Equal(t, Params{Page: 3, Limit: 10, Offset: 20}, New(3, 10))
	assert.Equal(t, Params{Page: 2, Limit: MaxLimit, Offset: MaxLimit}, New(2, 500))
}

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/invoices?page=2&limit=5", nil)

	assert.Equal(t, Params{Page: 2, Limit: 5, Offset: 5}, Parse(c))
}

func TestNewPage(t *testing.T) {
	p := NewPage[string](nil, 0, New(1, 20))
	assert.NotNil(t, p.Items)
	assert.Equal(t, 20, p.Limit)
}
