package datasource

import (
	"fmt"
	"strings"
)

// Page requests one page of a result set.
type Page struct {
	Size   int
	Offset int
}

// Cursor points at the page following the one returned.
type Cursor struct {
	Offset   int `json:"offset"`
	PageSize int `json:"pageSize"`
}

// paginator rewrites sql into a page bounded variant. applied is false when
// the statement was left untouched.
type paginator func(sql string, pageSize, offset int) (rewritten string, applied bool)

// noPagination is the default for connectors without a dialect override.
func noPagination(sql string, _, _ int) (string, bool) {
	return sql, false
}

// limitOffset is used by SQLite and Postgres.
func limitOffset(sql string, pageSize, offset int) (string, bool) {
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", sql, pageSize, offset), true
}

// mysqlLimit is used by the MySQL family.
func mysqlLimit(sql string, pageSize, offset int) (string, bool) {
	return fmt.Sprintf("%s LIMIT %d,%d", sql, offset, pageSize), true
}

// prestoOffsetLimit is used by Presto and Trino, which expect OFFSET before LIMIT.
func prestoOffsetLimit(sql string, pageSize, offset int) (string, bool) {
	if offset > 0 {
		return fmt.Sprintf("%s OFFSET %d LIMIT %d", sql, offset, pageSize), true
	}
	return fmt.Sprintf("%s LIMIT %d", sql, pageSize), true
}

// applyPage rewrites st for page when pagination is requested and allowed.
func applyPage(p paginator, st Statement, page *Page) (string, bool) {
	if page == nil || page.Size <= 0 || page.Offset < 0 || isIntrospection(st.Canonical) {
		return st.SQL, false
	}
	base := strings.TrimRight(st.SQL, "; \t\r\n")
	if rewritten, ok := p(base, page.Size, page.Offset); ok {
		return rewritten, true
	}
	return st.SQL, false
}

// nextCursor reports the following page when a full page came back. It is a
// hint, not a guarantee that more rows exist.
func nextCursor(page *Page, rowCount int) *Cursor {
	if rowCount != page.Size {
		return nil
	}
	return &Cursor{Offset: page.Offset + page.Size, PageSize: page.Size}
}
