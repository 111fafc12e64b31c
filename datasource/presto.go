package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/prestodb/presto-go-client/presto"
	_ "github.com/trinodb/trino-go-client/trino"
	"go.uber.org/zap"
)

const (
	defaultPrestoCatalog = "hive"
	defaultPrestoSchema  = "default"
)

// PrestoConnector serves Presto and Trino. Both speak the same HTTP protocol
// with different header prefixes, so the client library matching the type
// tag is tried first.
type PrestoConnector struct {
	baseConnector
	profile Profile
	catalog string
	schema  string
}

func newPrestoConnector(p Profile, opts []Option) *PrestoConnector {
	c := &PrestoConnector{
		baseConnector: newBase("presto", prestoDialect, prestoOffsetLimit, opts),
		profile:       p,
	}
	c.prepare = c.resolveTarget
	c.fallbackOnFailure = true
	trino := provider{name: "trino-go-client", driver: "trino", dsn: c.dsn}
	presto := provider{name: "presto-go-client", driver: "presto", dsn: c.dsn}

	prefer := strings.ToLower(p.Params.String("driver"))
	if prefer == "" {
		prefer = string(p.normalizedType())
	}
	if prefer == string(TypeTrino) {
		c.providers = []provider{trino, presto}
	} else {
		c.providers = []provider{presto, trino}
	}
	return c
}

// resolveTarget picks catalog and schema. A database of the form
// "catalog.schema" wins, a bare database is the schema, then params, then
// hive.default.
func (c *PrestoConnector) resolveTarget() error {
	catalog := c.profile.Params.String("catalog")
	schema := c.profile.Params.String("schema")

	if db := strings.TrimSpace(c.profile.Database); db != "" {
		if cat, sch, ok := strings.Cut(db, "."); ok {
			catalog, schema = cat, sch
		} else {
			schema = db
		}
	}
	if catalog == "" {
		catalog = defaultPrestoCatalog
	}
	if schema == "" {
		schema = defaultPrestoSchema
	}
	c.catalog, c.schema = catalog, schema
	return nil
}

// Catalog returns the resolved catalog, or "" before Connect.
func (c *PrestoConnector) Catalog() string { return c.catalog }

// Schema returns the resolved schema, or "" before Connect.
func (c *PrestoConnector) Schema() string { return c.schema }

// dsn builds http[s]://user[:password]@host:port?catalog=..&schema=..,
// the form accepted by both client libraries.
func (c *PrestoConnector) dsn() (string, error) {
	scheme := strings.ToLower(c.profile.Params.String("http_scheme"))
	if scheme == "" {
		scheme = "http"
	}
	if scheme != "http" && scheme != "https" {
		return "", configErrorf("http_scheme must be http or https, got %q", scheme)
	}
	host := c.profile.Host
	if host == "" {
		host = "localhost"
	}
	user := c.profile.Username
	if user == "" {
		user = "anonymous"
	}

	q := url.Values{}
	q.Set("catalog", c.catalog)
	q.Set("schema", c.schema)
	if source := c.profile.Params.String("source"); source != "" {
		q.Set("source", source)
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     net.JoinHostPort(host, strconv.Itoa(c.profile.portOr(8080))),
		RawQuery: q.Encode(),
	}
	if c.profile.Password != "" {
		u.User = url.UserPassword(user, c.profile.Password)
	} else {
		u.User = url.User(user)
	}
	return u.String(), nil
}

func (c *PrestoConnector) databaseName(schema string) string {
	return c.catalog + "." + schema
}

// TestConnection runs a probe query because the clients only contact the
// server on first use. On failure the connection is closed so that a retry
// starts clean.
func (c *PrestoConnector) TestConnection(ctx context.Context) (bool, error) {
	if err := c.Connect(ctx); err != nil {
		return false, err
	}
	var one any
	if err := c.conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		c.Close()
		return false, fmt.Errorf("%w: presto/trino: %w", ErrConnection, err)
	}
	return true, nil
}

func (c *PrestoConnector) ListTables(ctx context.Context) ([]string, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	tables, err := c.queryStrings(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		ORDER BY table_name`, c.schema)
	if err != nil {
		return nil, queryError("failed to list tables", err)
	}
	return tables, nil
}

// ListTablesInfo reads comments from information_schema when the server
// exposes table_comment and from SHOW CREATE TABLE otherwise. Timestamps
// always come from the DDL.
func (c *PrestoConnector) ListTablesInfo(ctx context.Context) ([]TableInfo, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	infos, err := c.tablesWithComments(ctx)
	if err != nil {
		c.log.Debug("table_comment unavailable, falling back to DDL", zap.Error(err))
		tables, err := c.ListTables(ctx)
		if err != nil {
			return nil, err
		}
		infos = make([]TableInfo, 0, len(tables))
		for _, t := range tables {
			md := c.ddlMetadata(ctx, c.schema, t)
			infos = append(infos, TableInfo{
				TableName:    t,
				DatabaseName: c.databaseName(c.schema),
				Comment:      md.Comment,
				CreateTime:   md.CreateTime,
				UpdateTime:   md.UpdateTime,
			})
		}
		return infos, nil
	}

	for i := range infos {
		md := c.ddlMetadata(ctx, c.schema, infos[i].TableName)
		infos[i].CreateTime, infos[i].UpdateTime = md.CreateTime, md.UpdateTime
	}
	return infos, nil
}

const prestoTablesQuery = `
	SELECT table_name, table_schema, COALESCE(table_comment, '')
	FROM information_schema.tables
	WHERE table_schema = ?`

func (c *PrestoConnector) tablesWithComments(ctx context.Context) ([]TableInfo, error) {
	rows, err := c.conn.QueryContext(ctx, prestoTablesQuery+" ORDER BY table_name", c.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	infos := []TableInfo{}
	for rows.Next() {
		var name, schema, comment string
		if err := rows.Scan(&name, &schema, &comment); err != nil {
			return nil, err
		}
		infos = append(infos, TableInfo{TableName: name, DatabaseName: c.databaseName(schema), Comment: comment})
	}
	return infos, rows.Err()
}

func (c *PrestoConnector) GetDatabases(ctx context.Context) ([]string, error) {
	schemas, err := c.queryStrings(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		ORDER BY schema_name`)
	if err != nil {
		return nil, queryError("failed to list schemas", err)
	}
	return schemas, nil
}

func (c *PrestoConnector) GetTableSchema(ctx context.Context, table string) ([]ColumnInfo, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	rows, err := c.conn.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, c.schema, table)
	if err != nil {
		return nil, queryError("failed to read schema", err)
	}
	defer rows.Close()

	cols := []ColumnInfo{}
	for rows.Next() {
		var (
			name, dataType, isNullable string
			ordinal                    int
		)
		if err := rows.Scan(&name, &dataType, &isNullable, &ordinal); err != nil {
			return nil, queryError("failed to scan column info", err)
		}
		cols = append(cols, ColumnInfo{
			Order:   ordinal,
			Name:    name,
			Type:    dataType,
			NotNull: strings.EqualFold(isNullable, "NO"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("error reading schema", err)
	}
	return cols, nil
}

func (c *PrestoConnector) GetTableInfo(ctx context.Context, table string) (TableInfo, error) {
	if err := c.Connect(ctx); err != nil {
		return TableInfo{}, err
	}
	info := TableInfo{TableName: table, DatabaseName: c.databaseName(c.schema)}

	var name, schema, comment string
	err := c.conn.QueryRowContext(ctx, prestoTablesQuery+" AND table_name = ?", c.schema, table).
		Scan(&name, &schema, &comment)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return info, nil
	case err != nil:
		c.log.Debug("table_comment unavailable, falling back to DDL", zap.String("table", table), zap.Error(err))
		md := c.ddlMetadata(ctx, c.schema, table)
		info.Comment, info.CreateTime, info.UpdateTime = md.Comment, md.CreateTime, md.UpdateTime
		return info, nil
	}

	md := c.ddlMetadata(ctx, schema, name)
	return TableInfo{
		TableName:    name,
		DatabaseName: c.databaseName(schema),
		Comment:      comment,
		CreateTime:   md.CreateTime,
		UpdateTime:   md.UpdateTime,
	}, nil
}

// ddlMetadata never fails; any error degrades to empty fields.
func (c *PrestoConnector) ddlMetadata(ctx context.Context, schema, table string) DDLMetadata {
	ddl, err := c.showCreateTable(ctx, schema, table)
	if err != nil {
		c.log.Debug("SHOW CREATE TABLE failed", zap.String("table", table), zap.Error(err))
		return DDLMetadata{}
	}
	return ParseDDLMetadata(ddl)
}

func (c *PrestoConnector) showCreateTable(ctx context.Context, schema, table string) (string, error) {
	rows, err := c.conn.QueryContext(ctx, "SHOW CREATE TABLE "+quoteIdent(schema)+"."+quoteIdent(table))
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
