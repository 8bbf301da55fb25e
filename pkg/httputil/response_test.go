package httputil

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query        string
		wantPage     int
		wantPageSize int
	}{
		{"", 1, DefaultPageSize},
		{"?page=3&page_size=10", 3, 10},
		{"?page=-1&page_size=abc", 1, DefaultPageSize},
		{"?page_size=1000", 1, MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/patients"+tt.query, nil)
			page, size := ParsePagination(c)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPageSize, size)
		})
	}
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 2, 10, 21)
	assert.Equal(t, 3, p.Pagination.TotalPage)
	assert.Equal(t, 10, Offset(2, 10))
}
