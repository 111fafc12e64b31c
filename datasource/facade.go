package datasource

import "context"

// Facade runs each operation on a fresh connector and always closes it.
// It holds no connections, so one Facade may serve concurrent callers.
type Facade struct {
	opts []Option
}

// NewFacade returns a Facade whose connectors are built with opts.
func NewFacade(opts ...Option) *Facade {
	return &Facade{opts: opts}
}

// run passes op the connector first so that method expressions such as
// Connector.ListTables fit directly.
func run[T any](ctx context.Context, f *Facade, p Profile, op func(Connector, context.Context) (T, error)) (T, error) {
	c, err := New(p, f.opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	defer c.Close()
	return op(c, ctx)
}

func (f *Facade) ExecuteQuery(ctx context.Context, p Profile, sql string, args []any, page *Page) (*QueryResult, error) {
	return run(ctx, f, p, func(c Connector, ctx context.Context) (*QueryResult, error) {
		return c.ExecuteQuery(ctx, sql, args, page)
	})
}

func (f *Facade) ListTables(ctx context.Context, p Profile) ([]string, error) {
	return run(ctx, f, p, Connector.ListTables)
}

func (f *Facade) ListTablesInfo(ctx context.Context, p Profile) ([]TableInfo, error) {
	return run(ctx, f, p, Connector.ListTablesInfo)
}

func (f *Facade) GetTableSchema(ctx context.Context, p Profile, table string) ([]ColumnInfo, error) {
	return run(ctx, f, p, func(c Connector, ctx context.Context) ([]ColumnInfo, error) {
		return c.GetTableSchema(ctx, table)
	})
}

func (f *Facade) GetTableInfo(ctx context.Context, p Profile, table string) (TableInfo, error) {
	return run(ctx, f, p, func(c Connector, ctx context.Context) (TableInfo, error) {
		return c.GetTableInfo(ctx, table)
	})
}

func (f *Facade) TestConnection(ctx context.Context, p Profile) (bool, error) {
	return run(ctx, f, p, Connector.TestConnection)
}

func (f *Facade) GetDatabases(ctx context.Context, p Profile) ([]string, error) {
	return run(ctx, f, p, Connector.GetDatabases)
}
