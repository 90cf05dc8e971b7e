package kpi

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func ints(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestPaginatorDefaults(t *testing.T) {
	p := NewPaginator()
	assert.Equal(t, PageState{CurrentPage: 1, PageSize: 10}, p.State("unseen"))
}

func TestPaginatorIndependentPerKPI(t *testing.T) {
	p := NewPaginator()
	p.SetPage("a", 3)
	p.SetPageSize("b", 5)

	assert.Equal(t, PageState{CurrentPage: 3, PageSize: 10}, p.State("a"))
	assert.Equal(t, PageState{CurrentPage: 1, PageSize: 5}, p.State("b"))
}

func TestSetPageSizeResetsPage(t *testing.T) {
	p := NewPaginator()
	p.SetPage("a", 4)
	p.SetPageSize("a", 20)
	assert.Equal(t, PageState{CurrentPage: 1, PageSize: 20}, p.State("a"))

	p.SetPageSize("a", 0)
	assert.Equal(t, 20, p.State("a").PageSize)
}

func TestNextPrevStayInBounds(t *testing.T) {
	p := NewPaginator()
	p.Prev("a")
	assert.Equal(t, 1, p.State("a").CurrentPage)

	for i := 0; i < 10; i++ {
		p.Next("a", 25)
	}
	assert.Equal(t, 3, p.State("a").CurrentPage)
}

func TestCyclePageSize(t *testing.T) {
	p := NewPaginator()
	var seen []int
	for range PageSizes {
		p.CyclePageSize("a")
		seen = append(seen, p.State("a").PageSize)
	}
	assert.Equal(t, []int{20, 50, 5, 10}, seen)
}

func TestPaginateSlices(t *testing.T) {
	rows := ints(25)
	assert.Equal(t, ints(10), Paginate(rows, PageState{CurrentPage: 1, PageSize: 10}))
	assert.Equal(t, []int{20, 21, 22, 23, 24}, Paginate(rows, PageState{CurrentPage: 3, PageSize: 10}))
	assert.Empty(t, Paginate(rows, PageState{CurrentPage: 4, PageSize: 10}))
	assert.Empty(t, Paginate(rows, PageState{CurrentPage: 0, PageSize: 10}))
}

func TestRange(t *testing.T) {
	first, last := PageState{CurrentPage: 2, PageSize: 10}.Range(42)
	assert.Equal(t, 11, first)
	assert.Equal(t, 20, last)

	first, last = PageState{CurrentPage: 5, PageSize: 10}.Range(42)
	assert.Equal(t, 41, first)
	assert.Equal(t, 42, last)

	first, last = PageState{CurrentPage: 1, PageSize: 10}.Range(0)
	assert.Equal(t, 0, first)
	assert.Equal(t, 0, last)
}

func TestPageWindow(t *testing.T) {
	assert.Nil(t, PageWindow(1, 0))
	assert.Equal(t, []int{1, 2, 3}, PageWindow(2, 3))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, PageWindow(1, 9))
	assert.Equal(t, []int{4, 5, 6, 7, 8}, PageWindow(6, 9))
	assert.Equal(t, []int{7, 8, 9}, PageWindow(9, 9))
}

func TestProperty_Pagination(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("a page never exceeds the page size", prop.ForAll(
		func(n, page, size int) bool {
			got := Paginate(ints(n), PageState{CurrentPage: page, PageSize: size})
			return len(got) <= size
		},
		gen.IntRange(0, 500),
		gen.IntRange(1, 60),
		gen.IntRange(1, 50),
	))

	properties.Property("total pages is the ceiling of n over size", prop.ForAll(
		func(n, size int) bool {
			total := TotalPages(n, size)
			if n == 0 {
				return total == 0
			}
			return (total-1)*size < n && n <= total*size
		},
		gen.IntRange(0, 500),
		gen.IntRange(1, 50),
	))

	properties.Property("pages partition the rows in order", prop.ForAll(
		func(n, size int) bool {
			rows := ints(n)
			var joined []int
			for page := 1; page <= TotalPages(n, size); page++ {
				joined = append(joined, Paginate(rows, PageState{CurrentPage: page, PageSize: size})...)
			}
			if len(joined) != n {
				return false
			}
			for i, v := range joined {
				if v != i {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 300),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
