package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		n, size, want int
	}{
		{0, 50, 0},
		{1, 50, 1},
		{50, 50, 1},
		{51, 50, 2},
		{120, 50, 3},
		{10, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.n, tt.size), "n=%d size=%d", tt.n, tt.size)
	}
}

func TestPaginateReconstructsCollection(t *testing.T) {
	for _, n := range []int{0, 1, 7, 49, 50, 51, 123} {
		items := seq(n)
		for _, size := range []int{1, 3, 50} {
			first := Paginate(items, size, 1)

			var rebuilt []int
			for p := 1; p <= first.TotalPages; p++ {
				rebuilt = append(rebuilt, Paginate(items, size, p).Items...)
			}

			if n == 0 {
				assert.Empty(t, rebuilt)
				assert.Equal(t, 0, first.TotalPages)
				continue
			}
			assert.Equal(t, items, rebuilt, "n=%d size=%d", n, size)
		}
	}
}

func TestPaginateOutOfRange(t *testing.T) {
	items := seq(10)

	beyond := Paginate(items, 4, 4)
	assert.NotNil(t, beyond.Items)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 3, beyond.TotalPages)
	assert.Equal(t, 10, beyond.TotalItems)

	zero := Paginate(items, 4, 0)
	assert.Empty(t, zero.Items)
}

func TestPaginateLastPageIsShort(t *testing.T) {
	page := Paginate(seq(10), 4, 3)
	assert.Equal(t, []int{8, 9}, page.Items)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 4, page.PageSize)
}

func TestPaginateDefaultSize(t *testing.T) {
	page := Paginate(seq(60), 0, 2)
	assert.Equal(t, DefaultPageSize, page.PageSize)
	assert.Len(t, page.Items, 10)
}

func TestPaginateCopiesItems(t *testing.T) {
	items := seq(3)
	page := Paginate(items, 3, 1)
	page.Items[0] = 99
	assert.Equal(t, 0, items[0])
}
