package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagination_Normalize(t *testing.T) {
	assert.Equal(t, Pagination{Limit: 20}, Pagination{}.Normalize())
	assert.Equal(t, Pagination{Limit: 100, Offset: 0}, Pagination{Limit: 500, Offset: -3}.Normalize())
	assert.Equal(t, Pagination{Limit: 5, Offset: 10}, Pagination{Limit: 5, Offset: 10}.Normalize())
}

func TestWindow(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page := Window(items, Pagination{Limit: 2, Offset: 1})
	assert.Equal(t, []int{2, 3}, page.Items)
	assert.Equal(t, 5, page.Total)

	past := Window(items, Pagination{Limit: 2, Offset: 9})
	assert.Empty(t, past.Items)
	assert.Equal(t, 5, past.Total)
}
