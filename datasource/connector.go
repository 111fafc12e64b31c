package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// QueryResult is one materialized page of a query.
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	// Next is set only when pagination was applied and a full page came back.
	Next *Cursor `json:"next"`
}

// ColumnInfo describes one table column.
type ColumnInfo struct {
	Order   int     `json:"order"`
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	NotNull bool    `json:"notnull"`
	Default *string `json:"default"`
	Primary bool    `json:"primary"`
	Comment string  `json:"comment"`
}

// TableInfo describes one table. Fields an engine cannot report are "".
type TableInfo struct {
	TableName    string `json:"tableName"`
	DatabaseName string `json:"databaseName"`
	Comment      string `json:"comment"`
	CreateTime   string `json:"createTime"`
	UpdateTime   string `json:"updateTime"`
}

// Connector owns at most one native connection to a datasource.
//
// A Connector starts idle. Connect opens the connection (a second call is a
// no-op) and every other operation connects implicitly. Close releases the
// connection and returns the Connector to idle. A Connector must not be used
// by two goroutines at once.
type Connector interface {
	Connect(ctx context.Context) error
	// Close is idempotent. Driver errors during teardown are dropped so they
	// never mask the error of the operation that preceded it.
	Close()
	// Driver names the client library chosen by Connect, or "" when idle.
	Driver() string

	TestConnection(ctx context.Context) (bool, error)
	ExecuteQuery(ctx context.Context, sql string, args []any, page *Page) (*QueryResult, error)
	ListTables(ctx context.Context) ([]string, error)
	ListTablesInfo(ctx context.Context) ([]TableInfo, error)
	GetTableSchema(ctx context.Context, table string) ([]ColumnInfo, error)
	// GetTableInfo returns a record with empty metadata for an unknown table.
	GetTableInfo(ctx context.Context, table string) (TableInfo, error)
	// GetDatabases returns nil when the engine has no database concept.
	GetDatabases(ctx context.Context) ([]string, error)
}

// Option configures connectors created by New and Facade.
type Option func(*options)

type options struct {
	logger         *zap.Logger
	strict         bool
	connectTimeout time.Duration
}

func defaultOptions() options {
	return options{logger: zap.NewNop()}
}

// WithLogger sets the logger used for debug output. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStrictSQL enables the lexer based checks on top of the prefix allow-list.
func WithStrictSQL(on bool) Option {
	return func(o *options) { o.strict = on }
}

// WithConnectTimeout bounds connection setup. Zero means no bound beyond ctx.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// provider is one way of reaching an engine: a database/sql driver plus the
// DSN it understands. Connectors try their providers in order.
type provider struct {
	name   string
	driver string
	dsn    func() (string, error)
}

// baseConnector carries the behaviour shared by every engine. Engine types
// embed it and add their catalog queries.
type baseConnector struct {
	engine    string
	opts      options
	log       *zap.Logger
	dialect   *dialect
	paginate  paginator
	providers []provider
	// readOnly statements are run once after connecting.
	readOnly []string
	// prepare runs before the first provider is tried.
	prepare func() error
	// fallbackOnFailure moves on to the next provider even when the server
	// could not be reached through the current one.
	fallbackOnFailure bool

	db     *sql.DB
	conn   *sql.Conn
	driver string
}

func newBase(engine string, d *dialect, p paginator, opts []Option) baseConnector {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if p == nil {
		p = noPagination
	}
	return baseConnector{
		engine:   engine,
		opts:     o,
		log:      o.logger.With(zap.String("engine", engine)),
		dialect:  d,
		paginate: p,
	}
}

func (c *baseConnector) Driver() string { return c.driver }

// Connect tries each provider in order and keeps the first that answers.
// A provider is skipped when its driver is not registered or rejects the DSN.
// A failure to reach the server stops the search unless fallbackOnFailure is
// set, so bad credentials are sent only once.
func (c *baseConnector) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	if c.prepare != nil {
		if err := c.prepare(); err != nil {
			return err
		}
	}
	if c.opts.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.connectTimeout)
		defer cancel()
	}

	registered := sql.Drivers()
	var errs []error
	missing := 0
	for _, p := range c.providers {
		if !slices.Contains(registered, p.driver) {
			missing++
			errs = append(errs, fmt.Errorf("%s: driver %q is not registered", p.name, p.driver))
			continue
		}
		dsn, err := p.dsn()
		if err != nil {
			return err
		}
		db, err := sql.Open(p.driver, dsn)
		if err != nil {
			c.log.Debug("provider rejected dsn", zap.String("provider", p.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
			continue
		}
		conn, err := pin(ctx, db)
		if err != nil {
			c.log.Debug("provider failed", zap.String("provider", p.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
			if !c.fallbackOnFailure {
				break
			}
			continue
		}
		c.db, c.conn, c.driver = db, conn, p.name
		c.log.Debug("connected", zap.String("provider", p.name))
		c.enforceReadOnly(ctx)
		return nil
	}

	if missing == len(c.providers) {
		return fmt.Errorf("%w: %s: %w", ErrDriverUnavailable, c.engine, errors.Join(errs...))
	}
	return fmt.Errorf("%w: %s: %w", ErrConnection, c.engine, errors.Join(errs...))
}

// pin takes the single connection of db and checks that the server answers.
// db is closed on failure.
func pin(ctx context.Context, db *sql.DB) (*sql.Conn, error) {
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, err
	}
	return conn, nil
}

func (c *baseConnector) enforceReadOnly(ctx context.Context) {
	for _, stmt := range c.readOnly {
		if _, err := c.conn.ExecContext(ctx, stmt); err != nil {
			c.log.Warn("could not set read-only mode", zap.String("statement", stmt), zap.Error(err))
		}
	}
}

func (c *baseConnector) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.log.Debug("close connection", zap.Error(err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.log.Debug("close database", zap.Error(err))
		}
	}
	c.conn, c.db, c.driver = nil, nil, ""
}

func (c *baseConnector) TestConnection(ctx context.Context) (bool, error) {
	if err := c.Connect(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// GetDatabases is the default for engines without a database list.
func (c *baseConnector) GetDatabases(context.Context) ([]string, error) {
	return nil, nil
}

func (c *baseConnector) ExecuteQuery(ctx context.Context, sqlText string, args []any, page *Page) (*QueryResult, error) {
	st, err := Guard{Strict: c.opts.strict, dialect: c.dialect}.Check(sqlText)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	query, paginated := applyPage(c.paginate, st, page)

	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	columns, data, err := collect(rows)
	if err != nil {
		return nil, err
	}
	result := &QueryResult{Columns: columns, Rows: data}
	if paginated && len(columns) > 0 {
		result.Next = nextCursor(page, len(data))
	}
	return result, nil
}

// collect reads every row, normalizing each cell by its column type.
func collect(rows *sql.Rows) ([]string, [][]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, queryError("failed to get columns", err)
	}
	if columns == nil {
		columns = []string{}
	}

	kinds := make([]cellKind, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			kinds[i] = classifyColumn(ct.DatabaseTypeName())
		}
	}

	data := [][]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row %d: %w", len(data)+1, classify(err))
		}
		for i, v := range values {
			values[i] = formatCell(v, kinds[i])
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, queryError("row iteration error", err)
	}
	return columns, data, nil
}

// queryStrings runs a single column query and returns its values in order.
func (c *baseConnector) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// timeString formats a metadata timestamp, or "" when absent.
func timeString(v any) string {
	if v == nil {
		return ""
	}
	switch f := formatCell(v, kindTimestamp).(type) {
	case string:
		return f
	case nil:
		return ""
	default:
		return fmt.Sprint(f)
	}
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
