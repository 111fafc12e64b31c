package datasource

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/url"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// PostgresConnector reads one PostgreSQL database. Other databases on the
// same server need a profile of their own.
type PostgresConnector struct {
	baseConnector
	profile Profile
}

func newPostgresConnector(p Profile, opts []Option) *PostgresConnector {
	c := &PostgresConnector{
		baseConnector: newBase("postgres", postgresDialect, limitOffset, opts),
		profile:       p,
	}
	c.providers = []provider{
		{name: "pgx", driver: "pgx", dsn: c.dsn},
		{name: "lib/pq", driver: "postgres", dsn: c.dsn},
	}
	c.readOnly = []string{"SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY"}
	return c
}

// dsn builds a URL understood by both pgx and lib/pq.
func (c *PostgresConnector) dsn() (string, error) {
	host := c.profile.Host
	if host == "" {
		host = "localhost"
	}
	sslmode := c.profile.Params.String("sslmode")
	if sslmode == "" {
		sslmode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(c.profile.portOr(5432))),
		Path:     "/" + c.profile.Database,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	if c.profile.Username != "" {
		u.User = url.UserPassword(c.profile.Username, c.profile.Password)
	}
	return u.String(), nil
}

func (c *PostgresConnector) ListTables(ctx context.Context) ([]string, error) {
	tables, err := c.queryStrings(ctx, `
		SELECT tablename FROM pg_catalog.pg_tables
		WHERE schemaname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY tablename`)
	if err != nil {
		return nil, queryError("failed to list tables", err)
	}
	return tables, nil
}

const postgresTablesQuery = `
	SELECT c.relname, current_database(), obj_description(c.oid, 'pg_class')
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE c.relkind IN ('r', 'p') AND n.nspname NOT IN ('pg_catalog', 'information_schema')`

func (c *PostgresConnector) ListTablesInfo(ctx context.Context) ([]TableInfo, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	rows, err := c.conn.QueryContext(ctx, postgresTablesQuery+" ORDER BY c.relname")
	if err != nil {
		return nil, queryError("failed to list tables", err)
	}
	defer rows.Close()

	infos := []TableInfo{}
	for rows.Next() {
		info, err := scanPostgresTable(rows)
		if err != nil {
			return nil, queryError("failed to scan table info", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("error iterating tables", err)
	}
	return infos, nil
}

func scanPostgresTable(r rowScanner) (TableInfo, error) {
	var (
		name, db string
		comment  sql.NullString
	)
	if err := r.Scan(&name, &db, &comment); err != nil {
		return TableInfo{}, err
	}
	return TableInfo{TableName: name, DatabaseName: db, Comment: comment.String}, nil
}

// GetDatabases returns only the connected database.
func (c *PostgresConnector) GetDatabases(ctx context.Context) ([]string, error) {
	dbs, err := c.queryStrings(ctx, "SELECT current_database()")
	if err != nil {
		return nil, queryError("failed to list databases", err)
	}
	return dbs, nil
}

// GetTableSchema marks a column primary when it is the first key column of
// the table's primary index.
func (c *PostgresConnector) GetTableSchema(ctx context.Context, table string) ([]ColumnInfo, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	rows, err := c.conn.QueryContext(ctx, `
		SELECT a.attname,
		       t.typname,
		       a.attnotnull,
		       pg_get_expr(d.adbin, d.adrelid),
		       a.attnum IN (
		           SELECT i.indkey[0] FROM pg_index i WHERE i.indrelid = a.attrelid AND i.indisprimary
		       ),
		       col_description(c.oid, a.attnum)
		FROM pg_attribute a
		JOIN pg_class c ON a.attrelid = c.oid
		JOIN pg_type t ON a.atttypid = t.oid
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE c.relname = $1 AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum`, table)
	if err != nil {
		return nil, queryError("failed to read schema", err)
	}
	defer rows.Close()

	cols := []ColumnInfo{}
	for rows.Next() {
		var (
			name, typ        string
			notNull, primary bool
			dflt, comment    sql.NullString
		)
		if err := rows.Scan(&name, &typ, &notNull, &dflt, &primary, &comment); err != nil {
			return nil, queryError("failed to scan column info", err)
		}
		cols = append(cols, ColumnInfo{
			Order:   len(cols) + 1,
			Name:    name,
			Type:    typ,
			NotNull: notNull,
			Default: nullableString(dflt),
			Primary: primary,
			Comment: comment.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("error reading schema", err)
	}
	return cols, nil
}

func (c *PostgresConnector) GetTableInfo(ctx context.Context, table string) (TableInfo, error) {
	if err := c.Connect(ctx); err != nil {
		return TableInfo{}, err
	}
	row := c.conn.QueryRowContext(ctx, postgresTablesQuery+" AND c.relname = $1", table)
	info, err := scanPostgresTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TableInfo{TableName: table, DatabaseName: c.profile.Database}, nil
	}
	if err != nil {
		return TableInfo{}, queryError("failed to read table info", err)
	}
	return info, nil
}
