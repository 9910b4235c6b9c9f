// Package pagination drives the verification grid against the upstream's
// cursor-paginated list endpoint. The grid speaks in (page, pageSize)
// events; the upstream speaks in opaque after/before cursors and reports no
// total row count. The controller translates between the two by remembering
// a cursor bookmark for every page it has loaded, and guards against
// out-of-order fetch completion with a generation counter
// (last-started-wins).
package pagination

import (
	"sync"

	"github.com/dexavision/admin-console/model"
)

// RowCountUnknown is reported to the grid so it never assumes a fixed total.
const RowCountUnknown = -1

// DefaultPageSize matches the grid's initial page size.
const DefaultPageSize = 10

// CursorParams selects the slice to fetch. At most one of After/Before is
// set; both empty means the first page.
type CursorParams struct {
	After  string
	Before string
}

// Bookmark is the cursor pair recorded after a page loads.
type Bookmark struct {
	AfterCursor  string
	BeforeCursor string
}

// Model is the pure pagination state. Methods return updated copies so the
// transition rules stay testable without any HTTP or locking around them.
type Model struct {
	Page        int
	PageSize    int
	Cursor      CursorParams
	Bookmarks   map[int]Bookmark
	HasNextPage bool
}

// NewModel returns a first-page model with no recorded cursors.
func NewModel(pageSize int) Model {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Model{PageSize: pageSize, Bookmarks: map[int]Bookmark{}}
}

// Reset discards every remembered cursor and returns to page 0. Used when
// the page size, status filter or search value changes: a cursor is only
// valid under the filter and page size it was issued for.
func (m Model) Reset(pageSize int) Model {
	return NewModel(pageSize)
}

// ApplyPageChange handles a grid-requested (nextPage, nextPageSize)
// transition. The second return value reports whether the request was
// honored; a forward or backward request without a recorded cursor is
// ignored because it cannot be translated yet.
func (m Model) ApplyPageChange(nextPage, nextPageSize int) (Model, bool) {
	if nextPageSize != m.PageSize {
		return m.Reset(nextPageSize), true
	}

	if nextPage == m.Page {
		return m, false
	}

	if nextPage > m.Page {
		after := m.Bookmarks[m.Page].AfterCursor
		if after == "" {
			return m, false
		}
		next := m.clone()
		next.Page = nextPage
		next.Cursor = CursorParams{After: after}
		return next, true
	}

	// Page 0 never needs a cursor; the jump always succeeds.
	if nextPage == 0 {
		next := m.clone()
		next.Page = 0
		next.Cursor = CursorParams{}
		return next, true
	}

	before := m.Bookmarks[m.Page].BeforeCursor
	if before == "" {
		return m, false
	}
	next := m.clone()
	next.Page = nextPage
	next.Cursor = CursorParams{Before: before}
	return next, true
}

// RecordPage stores the cursor bookmark returned for a freshly loaded page
// and derives the next-page affordance from the after cursor.
func (m Model) RecordPage(page int, afterCursor, beforeCursor string) Model {
	next := m.clone()
	next.Bookmarks[page] = Bookmark{AfterCursor: afterCursor, BeforeCursor: beforeCursor}
	next.HasNextPage = afterCursor != ""
	return next
}

// ClearMeta drops the next-page affordance after a failed fetch.
func (m Model) ClearMeta() Model {
	next := m.clone()
	next.HasNextPage = false
	return next
}

func (m Model) clone() Model {
	bookmarks := make(map[int]Bookmark, len(m.Bookmarks))
	for k, v := range m.Bookmarks {
		bookmarks[k] = v
	}
	m.Bookmarks = bookmarks
	return m
}

// Controller wraps a Model with the filter state, the fetched rows and the
// staleness guard. It is safe for concurrent use by parallel requests from
// the same session (two tabs paging the same grid).
type Controller struct {
	mu         sync.Mutex
	model      Model
	status     string
	keyword    string
	rows       []model.Doctor
	counts     *model.Counts
	generation uint64
}

// NewController starts at page 0 with the "all" status filter.
func NewController(pageSize int) *Controller {
	return &Controller{
		model:  NewModel(pageSize),
		status: "all",
		rows:   []model.Doctor{},
	}
}

// Query is the upstream request derived from one accepted grid event.
type Query struct {
	Status string
	Limit  int
	After  string
	Before string
}

// Prepare applies a grid event (filters plus pagination model) and begins a
// fetch generation. The returned query reflects the post-transition state;
// ignored page requests simply re-describe the current page. The generation
// must be handed back to Commit or Fail.
func (c *Controller) Prepare(status, keyword string, nextPage, nextPageSize int) (Query, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if status == "" {
		status = "all"
	}
	if nextPageSize <= 0 {
		nextPageSize = c.model.PageSize
	}

	// A filter or search change invalidates every remembered cursor.
	if status != c.status || keyword != c.keyword {
		c.status = status
		c.keyword = keyword
		c.model = c.model.Reset(nextPageSize)
	} else {
		c.model, _ = c.model.ApplyPageChange(nextPage, nextPageSize)
	}

	c.generation++
	return Query{
		Status: c.status,
		Limit:  c.model.PageSize,
		After:  c.model.Cursor.After,
		Before: c.model.Cursor.Before,
	}, c.generation
}

// Commit installs a successful fetch result: wholesale row replacement, the
// page's cursor bookmark, and the counts snapshot when present. A stale
// generation is discarded so a slow response never overwrites a newer one.
func (c *Controller) Commit(gen uint64, page *model.DoctorPage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return false
	}

	c.rows = page.Doctors
	after, before := "", ""
	if page.Pagination != nil {
		after = page.Pagination.AfterCursor
		before = page.Pagination.BeforeCursor
	}
	c.model = c.model.RecordPage(c.model.Page, after, before)
	if page.Counts != nil {
		counts := *page.Counts
		c.counts = &counts
	}
	return true
}

// Fail degrades to an empty, first-page-like view after a fetch error:
// rows cleared, next-page affordance dropped, counts left untouched.
func (c *Controller) Fail(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return false
	}
	c.rows = []model.Doctor{}
	c.model = c.model.ClearMeta()
	return true
}

// Snapshot is the render state handed to the grid.
type Snapshot struct {
	Page        int           `json:"page"`
	PageSize    int           `json:"pageSize"`
	RowCount    int           `json:"rowCount"`
	HasNextPage bool          `json:"hasNextPage"`
	Status      string        `json:"status"`
	Keyword     string        `json:"keyword"`
	Rows        []model.Doctor `json:"rows"`
	Counts      *model.Counts  `json:"counts,omitempty"`
}

// Snapshot returns the current render state. RowCount is always unknown:
// the upstream never reports a total.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := make([]model.Doctor, len(c.rows))
	copy(rows, c.rows)
	return Snapshot{
		Page:        c.model.Page,
		PageSize:    c.model.PageSize,
		RowCount:    RowCountUnknown,
		HasNextPage: c.model.HasNextPage,
		Status:      c.status,
		Keyword:     c.keyword,
		Rows:        rows,
		Counts:      c.counts,
	}
}

// Bookmarks exposes a copy of the recorded cursor map for inspection.
func (c *Controller) Bookmarks() map[int]Bookmark {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[int]Bookmark, len(c.model.Bookmarks))
	for k, v := range c.model.Bookmarks {
		out[k] = v
	}
	return out
}
