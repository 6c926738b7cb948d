package feed

// Cursor is the client-side pagination state for the feed: an offset, a
// page size, the active tag filter, and whether the last page looked
// final. It is a plain serializable value so it can be persisted and
// restored between sessions instead of living in page-level globals.
type Cursor struct {
	Offset int      `json:"offset"`
	Limit  int      `json:"limit"`
	Tags   []string `json:"tags"`
	Done   bool     `json:"done"`
}

func NewCursor(limit int) Cursor {
	if limit < 1 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	return Cursor{Limit: limit}
}

// AddTag adds a tag to the filter set and rewinds to the first page.
// Adding a tag already present is a no-op and returns false. Insertion
// order is kept for display; matching is set-based. There is no
// single-tag removal, only ClearAll.
func (c *Cursor) AddTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return false
		}
	}
	c.Tags = append(c.Tags, tag)
	c.Offset = 0
	c.Done = false
	return true
}

// ClearAll drops the filter and rewinds to the unfiltered first page.
func (c *Cursor) ClearAll() {
	c.Tags = nil
	c.Offset = 0
	c.Done = false
}

// Advance records a fetched page. A page shorter than the limit is taken
// to be the last one; a page exactly matching the limit may still be the
// last, costing one harmless extra fetch that returns empty.
func (c *Cursor) Advance(pageLen int) {
	c.Offset += pageLen
	if pageLen < c.Limit {
		c.Done = true
	}
}

// NoPosts reports the terminal empty state on a fresh cursor, so callers
// can show "no posts" instead of "no more posts".
func (c *Cursor) NoPosts() bool {
	return c.Done && c.Offset == 0
}
