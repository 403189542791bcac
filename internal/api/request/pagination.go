package request

import (
	"errors"
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Pagination is a page request. Cursor is the next_cursor of the previous
// page and is opaque to clients.
type Pagination struct {
	Limit  int
	Cursor string
}

// ParsePagination reads limit and cursor from the query string. A missing
// limit is DefaultLimit and a larger one is capped at MaxLimit.
func ParsePagination(r *http.Request) (Pagination, error) {
	q := r.URL.Query()
	p := Pagination{Limit: DefaultLimit, Cursor: q.Get("cursor")}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			return Pagination{}, errors.New("limit must be a positive integer")
		}
		p.Limit = min(limit, MaxLimit)
	}
	return p, nil
}

// VersionCursor checks that the cursor of a version-ordered list is a
// deployment version. An empty cursor is valid.
func (p Pagination) VersionCursor() error {
	if p.Cursor == "" {
		return nil
	}
	if v, err := strconv.Atoi(p.Cursor); err != nil || v < 1 {
		return errors.New("cursor must be a deployment version")
	}
	return nil
}

// NextCursor returns the cursor of the page after items, or "" when items is
// the last page.
func NextCursor[T any](items []T, hasMore bool, key func(T) string) string {
	if !hasMore || len(items) == 0 {
		return ""
	}
	return key(items[len(items)-1])
}
