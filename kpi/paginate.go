package kpi

// PageState is the pagination position of one KPI table.
type PageState struct {
	CurrentPage int
	PageSize    int
}

// DefaultPageState applies to a KPI until its state is changed.
var DefaultPageState = PageState{CurrentPage: 1, PageSize: 10}

// PageSizes are the sizes offered in the page-size selector.
var PageSizes = []int{5, 10, 20, 50}

// Paginator tracks independent pagination per KPI name.
// It is owned by a single view and is not safe for concurrent use.
type Paginator struct {
	states map[string]PageState
}

func NewPaginator() *Paginator {
	return &Paginator{states: make(map[string]PageState)}
}

// State returns the state for name, or the default.
func (p *Paginator) State(name string) PageState {
	if st, ok := p.states[name]; ok {
		return st
	}
	return DefaultPageState
}

// SetPageSize changes the page size and returns to page 1.
func (p *Paginator) SetPageSize(name string, size int) {
	if size < 1 {
		return
	}
	p.states[name] = PageState{CurrentPage: 1, PageSize: size}
}

// SetPage moves to page (1-based). Pages below 1 are ignored.
func (p *Paginator) SetPage(name string, page int) {
	if page < 1 {
		return
	}
	st := p.State(name)
	st.CurrentPage = page
	p.states[name] = st
}

// Next advances one page if another page exists for n rows.
func (p *Paginator) Next(name string, n int) {
	st := p.State(name)
	if st.CurrentPage < TotalPages(n, st.PageSize) {
		p.SetPage(name, st.CurrentPage+1)
	}
}

// Prev goes back one page.
func (p *Paginator) Prev(name string) {
	p.SetPage(name, p.State(name).CurrentPage-1)
}

// CyclePageSize steps through PageSizes.
func (p *Paginator) CyclePageSize(name string) {
	cur := p.State(name).PageSize
	next := PageSizes[0]
	for i, s := range PageSizes {
		if s == cur {
			next = PageSizes[(i+1)%len(PageSizes)]
			break
		}
	}
	p.SetPageSize(name, next)
}

// Page returns the rows of name's current page.
func (p *Paginator) Page(name string, rows []Item) []Item {
	return Paginate(rows, p.State(name))
}

// Paginate returns rows[(page-1)*size : page*size], clipped to the slice.
func Paginate[T any](rows []T, st PageState) []T {
	if st.PageSize < 1 || st.CurrentPage < 1 {
		return nil
	}
	start := (st.CurrentPage - 1) * st.PageSize
	if start >= len(rows) {
		return rows[len(rows):]
	}
	end := start + st.PageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// TotalPages is ceil(n / size).
func TotalPages(n, size int) int {
	if size < 1 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Range returns the 1-based first and last row numbers shown for n rows,
// as in "Showing 11 to 20 of 42".
func (st PageState) Range(n int) (first, last int) {
	first = (st.CurrentPage-1)*st.PageSize + 1
	last = st.CurrentPage * st.PageSize
	if last > n {
		last = n
	}
	if first > last {
		return 0, 0
	}
	return first, last
}

// PageWindow returns at most five page numbers centred on current.
func PageWindow(current, total int) []int {
	if total <= 0 {
		return nil
	}
	if total <= 5 {
		pages := make([]int, total)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}
	start := current - 2
	if start < 1 {
		start = 1
	}
	end := start + 4
	if end > total {
		end = total
	}
	var pages []int
	for n := start; n <= end; n++ {
		pages = append(pages, n)
	}
	return pages
}
