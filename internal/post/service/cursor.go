package service

import (
	"context"

	"blogcore/internal/backend"
	"blogcore/internal/post/model"
)

// Cursor iterates over listed posts, fetching one page per round trip. It is
// used like *sql.Rows:
//
//	cur, err := svc.ListPosts(ctx)
//	if err != nil { ... }
//	defer cur.Close()
//	for cur.Next() {
//		p := cur.Post()
//	}
//	if err := cur.Err(); err != nil { ... }
//
// A cursor is not safe for concurrent use and cannot be rewound.
type Cursor struct {
	ctx      context.Context
	docs     backend.Documents
	filters  []backend.Query
	pageSize int
	remain   int // -1 when the caller set no limit

	buf    []backend.Document
	after  string
	total  int
	last   bool
	cur    *model.Post
	err    error
	closed bool
}

func newCursor(ctx context.Context, docs backend.Documents, page backend.Page, pageSize int) *Cursor {
	c := &Cursor{
		ctx:      ctx,
		docs:     docs,
		filters:  page.Filters,
		pageSize: pageSize,
		remain:   -1,
		after:    page.CursorAfter,
	}
	if page.Limit > 0 {
		c.remain = page.Limit
		c.pageSize = min(pageSize, page.Limit)
	}
	return c
}

// Next advances to the next post, fetching another page when the current one
// is exhausted. It returns false at the end or on error.
func (c *Cursor) Next() bool {
	c.cur = nil
	if c.closed || c.err != nil || c.remain == 0 {
		return false
	}
	if len(c.buf) == 0 {
		if c.last || !c.fetch() {
			return false
		}
	}

	doc := c.buf[0]
	c.buf = c.buf[1:]
	c.after = doc.ID
	c.cur = model.FromDocument(&doc)
	if c.remain > 0 {
		c.remain--
	}
	return true
}

func (c *Cursor) fetch() bool {
	if err := c.ctx.Err(); err != nil {
		c.err = backend.Wrap(backend.KindNetwork, "posts.list", err)
		return false
	}

	queries := make([]backend.Query, 0, len(c.filters)+2)
	queries = append(queries, c.filters...)
	queries = append(queries, backend.Limit(c.pageSize))
	if c.after != "" {
		queries = append(queries, backend.CursorAfter(c.after))
	}

	list, err := c.docs.List(c.ctx, queries)
	if err != nil {
		c.err = err
		return false
	}
	c.total = list.Total
	c.buf = list.Documents
	c.last = len(list.Documents) < c.pageSize
	return len(c.buf) > 0
}

// Post returns the post at the current position.
func (c *Cursor) Post() *model.Post {
	return c.cur
}

// Total is the number of matching posts reported by the most recent fetch.
func (c *Cursor) Total() int {
	return c.total
}

func (c *Cursor) Err() error {
	return c.err
}

// Close releases buffered posts. Next returns false afterwards.
func (c *Cursor) Close() error {
	c.closed = true
	c.buf = nil
	c.cur = nil
	return nil
}

// All drains the cursor and closes it.
func (c *Cursor) All() ([]*model.Post, error) {
	defer c.Close()
	var posts []*model.Post
	for c.Next() {
		posts = append(posts, c.Post())
	}
	return posts, c.Err()
}
