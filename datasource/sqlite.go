package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteConnector reads a SQLite database file.
type SQLiteConnector struct {
	baseConnector
	path string
}

func newSQLiteConnector(p Profile, opts []Option) *SQLiteConnector {
	path := p.Database
	if path == "" {
		path = p.Params.String("path")
	}
	c := &SQLiteConnector{
		baseConnector: newBase("sqlite", sqliteDialect, limitOffset, opts),
		path:          path,
	}
	c.providers = []provider{{name: "modernc.org/sqlite", driver: "sqlite", dsn: c.dsn}}
	c.readOnly = []string{"PRAGMA query_only = ON"}
	return c
}

// dsn opens the file through a URI so that mode=ro reaches SQLite. A plain
// path is percent-escaped; a "file:" URI is taken as written.
func (c *SQLiteConnector) dsn() (string, error) {
	if c.path == "" {
		return "", configErrorf("sqlite requires database path")
	}
	switch {
	case c.path == ":memory:":
		return c.path, nil
	case strings.HasPrefix(c.path, "file:"):
		if strings.Contains(c.path, "mode=") {
			return c.path, nil
		}
		if strings.Contains(c.path, "?") {
			return c.path + "&mode=ro", nil
		}
		return c.path + "?mode=ro", nil
	default:
		u := url.URL{Scheme: "file", Path: c.path, OmitHost: true, RawQuery: "mode=ro"}
		return u.String(), nil
	}
}

func (c *SQLiteConnector) ListTables(ctx context.Context) ([]string, error) {
	tables, err := c.queryStrings(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, queryError("failed to list tables", err)
	}
	return tables, nil
}

// ListTablesInfo reports names only; SQLite keeps no table comments or timestamps.
func (c *SQLiteConnector) ListTablesInfo(ctx context.Context) ([]TableInfo, error) {
	tables, err := c.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]TableInfo, 0, len(tables))
	for _, t := range tables {
		infos = append(infos, TableInfo{TableName: t, DatabaseName: c.path})
	}
	return infos, nil
}

func (c *SQLiteConnector) GetTableSchema(ctx context.Context, table string) ([]ColumnInfo, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	// PRAGMA table_info cannot take placeholders, so the name is quoted inline.
	query := fmt.Sprintf("PRAGMA table_info('%s')", strings.ReplaceAll(table, "'", "''"))
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, queryError("failed to read schema", err)
	}
	defer rows.Close()

	cols := []ColumnInfo{}
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, colType    string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, queryError("failed to scan column info", err)
		}
		cols = append(cols, ColumnInfo{
			Order:   len(cols) + 1,
			Name:    name,
			Type:    colType,
			NotNull: notNull != 0,
			Default: nullableString(dflt),
			Primary: pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("error reading schema", err)
	}
	return cols, nil
}

func (c *SQLiteConnector) GetTableInfo(ctx context.Context, table string) (TableInfo, error) {
	if err := c.Connect(ctx); err != nil {
		return TableInfo{}, err
	}
	return TableInfo{TableName: table, DatabaseName: c.path}, nil
}
