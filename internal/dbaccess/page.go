package dbaccess

import (
	"context"
	"io"
	"strings"
)

// Page is one LIMIT/OFFSET slice of a result set.
type Page struct {
	Offset int
	Size   int
	Rows   []Row
}

// pageFetcher runs one self-contained query and returns all its rows.
type pageFetcher func(ctx context.Context, query string, args []any) ([]Row, error)

// PageSource yields pages of a query using LIMIT ? OFFSET ?.
//
// Each page is its own query on its own handle, so no connection is held
// between pages and any page can be fetched again with Fetch. Nothing
// isolates pages from writes that happen in between.
type PageSource struct {
	query  string
	args   []any
	size   int
	offset int
	done   bool
	fetch  pageFetcher
}

// newPageSource validates the arguments and builds a PageSource starting at offset 0.
func newPageSource(query string, size int, args []any, fetch pageFetcher) (*PageSource, error) {
	query = strings.TrimRight(strings.TrimSpace(query), ";")
	if query == "" {
		return nil, invalid("empty page query")
	}
	if size <= 0 {
		return nil, invalid("page size must be positive, got %d", size)
	}

	return &PageSource{
		query: query + " LIMIT ? OFFSET ?",
		args:  append([]any(nil), args...),
		size:  size,
		fetch: fetch,
	}, nil
}

// Size returns the page size.
func (p *PageSource) Size() int {
	return p.size
}

// Offset returns the offset Next will fetch from.
func (p *PageSource) Offset() int {
	return p.offset
}

// Fetch retrieves the page starting at offset without moving the source.
// Past the end of the data it returns a page with no rows.
func (p *PageSource) Fetch(ctx context.Context, offset int) (Page, error) {
	if offset < 0 {
		return Page{}, invalid("page offset must not be negative, got %d", offset)
	}

	args := make([]any, 0, len(p.args)+2)
	args = append(args, p.args...)
	args = append(args, p.size, offset)

	rows, err := p.fetch(ctx, p.query, args)
	if err != nil {
		return Page{}, err
	}
	return Page{Offset: offset, Size: p.size, Rows: rows}, nil
}

// Next returns the page at the current offset and advances by the page
// size. It returns io.EOF at the first empty page.
func (p *PageSource) Next(ctx context.Context) (Page, error) {
	if p.done {
		return Page{}, io.EOF
	}

	page, err := p.Fetch(ctx, p.offset)
	if err != nil {
		return Page{}, err
	}
	if len(page.Rows) == 0 {
		p.done = true
		return Page{}, io.EOF
	}

	p.offset += p.size
	return page, nil
}

// Close ends the sequence. PageSource holds no connection between pages.
func (p *PageSource) Close() error {
	p.done = true
	return nil
}
