package datasource

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mockSeq atomic.Int64

// useSQLMock points every provider of c at a fresh sqlmock connection.
func useSQLMock(t *testing.T, c *baseConnector) sqlmock.Sqlmock {
	t.Helper()
	dsn := fmt.Sprintf("datasource_mock_%d", mockSeq.Add(1))
	db, mock, err := sqlmock.NewWithDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c.providers = []provider{{
		name:   "sqlmock",
		driver: "sqlmock",
		dsn:    func() (string, error) { return dsn, nil },
	}}
	t.Cleanup(c.Close)
	return mock
}

// resultRows builds rows that carry column metadata, which ExecuteQuery
// reads through ColumnTypes.
func resultRows(columns ...string) *sqlmock.Rows {
	defs := make([]*sqlmock.Column, len(columns))
	for i, name := range columns {
		defs[i] = sqlmock.NewColumn(name)
	}
	return sqlmock.NewRowsWithColumnDefinition(defs...)
}

func TestBaseConnector_CollectNormalizesByColumnType(t *testing.T) {
	c := newMySQLConnector(Profile{Type: TypeMySQL}, nil)
	mock := useSQLMock(t, &c.baseConnector)

	created := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	mock.ExpectExec("SET SESSION TRANSACTION READ ONLY").WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("price").OfType("DECIMAL", []byte{}),
		sqlmock.NewColumn("born").OfType("DATE", time.Time{}),
		sqlmock.NewColumn("created").OfType("DATETIME", time.Time{}),
		sqlmock.NewColumn("name").OfType("VARCHAR", ""),
	).AddRow([]byte("12.50"), created, created, []byte("ann"))
	mock.ExpectQuery("SELECT price").WillReturnRows(rows)

	res, err := c.ExecuteQuery(context.Background(), "SELECT price, born, created, name FROM p", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{12.5, "2024-05-06", "2024-05-06 07:08:09", "ann"}}, res.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseConnector_EmptyResultSet(t *testing.T) {
	c := newPostgresConnector(Profile{Type: TypePostgres}, nil)
	mock := useSQLMock(t, &c.baseConnector)

	mock.ExpectExec("SET SESSION CHARACTERISTICS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM t").WillReturnRows(resultRows("id"))

	res, err := c.ExecuteQuery(context.Background(), "SELECT id FROM t", nil, &Page{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, res.Columns)
	assert.Equal(t, [][]any{}, res.Rows)
	assert.Nil(t, res.Next)
}

func TestBaseConnector_QueryError(t *testing.T) {
	c := newPostgresConnector(Profile{Type: TypePostgres}, nil)
	mock := useSQLMock(t, &c.baseConnector)

	mock.ExpectExec("SET SESSION CHARACTERISTICS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT nope").WillReturnError(fmt.Errorf("column \"nope\" does not exist"))

	_, err := c.ExecuteQuery(context.Background(), "SELECT nope FROM t", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
	assert.ErrorIs(t, err, ErrQuery)
	assert.NotErrorIs(t, err, ErrInvalidQuery)
	assert.NotErrorIs(t, err, ErrConnection)
}

func TestBaseConnector_ErrorsOnOpenConnectionAreCategorized(t *testing.T) {
	reset := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}
	ctx := context.Background()

	t.Run("execute query", func(t *testing.T) {
		c, mock := newMockMySQL(t)
		mock.ExpectQuery("SELECT id FROM t").WillReturnError(reset)

		_, err := c.ExecuteQuery(ctx, "SELECT id FROM t", nil, nil)
		assert.ErrorIs(t, err, ErrConnection)
		assert.NotErrorIs(t, err, ErrQuery)
	})

	t.Run("list tables", func(t *testing.T) {
		c, mock := newMockMySQL(t)
		mock.ExpectQuery("SHOW TABLES").WillReturnError(reset)

		_, err := c.ListTables(ctx)
		assert.ErrorIs(t, err, ErrConnection)
		assert.ErrorContains(t, err, "failed to list tables")
	})

	t.Run("bad connection during schema read", func(t *testing.T) {
		c, mock := newMockMySQL(t)
		mock.ExpectQuery("FROM information_schema.COLUMNS").WillReturnError(driver.ErrBadConn)

		_, err := c.GetTableSchema(ctx, "users")
		assert.ErrorIs(t, err, ErrConnection)
	})

	t.Run("row iteration cut short", func(t *testing.T) {
		c, mock := newMockMySQL(t)
		mock.ExpectQuery("SELECT id FROM t").
			WillReturnRows(resultRows("id").AddRow(int64(1)).AddRow(int64(2)).RowError(1, io.ErrUnexpectedEOF))

		_, err := c.ExecuteQuery(ctx, "SELECT id FROM t", nil, nil)
		assert.ErrorIs(t, err, ErrConnection)
	})

	t.Run("engine error", func(t *testing.T) {
		c, mock := newMockMySQL(t)
		mock.ExpectQuery("FROM information_schema.TABLES").
			WillReturnError(&mysql.MySQLError{Number: 1142, Message: "SELECT command denied"})

		_, err := c.ListTablesInfo(ctx)
		assert.ErrorIs(t, err, ErrQuery)
		assert.NotErrorIs(t, err, ErrConnection)
	})
}

func TestBaseConnector_ProviderFallback(t *testing.T) {
	ctx := context.Background()
	path := createSQLiteDB(t, "CREATE TABLE t (id INTEGER)")
	working := provider{name: "working", driver: "sqlite", dsn: func() (string, error) { return "file:" + path + "?mode=ro", nil }}
	unreachable := provider{name: "unreachable", driver: "sqlite", dsn: func() (string, error) {
		return "file:" + filepath.Join(t.TempDir(), "absent.db") + "?mode=ro", nil
	}}

	t.Run("skips a driver that rejects the dsn", func(t *testing.T) {
		c := newTestSQLite(t, path)
		c.providers = []provider{
			{name: "picky", driver: "mysql", dsn: func() (string, error) { return "not a mysql dsn", nil }},
			working,
		}
		require.NoError(t, c.Connect(ctx))
		assert.Equal(t, "working", c.Driver())
	})

	t.Run("skips an unregistered driver", func(t *testing.T) {
		c := newTestSQLite(t, path)
		c.providers = []provider{{name: "ghost", driver: "ghost-driver", dsn: c.dsn}, working}
		require.NoError(t, c.Connect(ctx))
		assert.Equal(t, "working", c.Driver())
	})

	t.Run("stops at an unreachable server", func(t *testing.T) {
		c := newTestSQLite(t, path)
		c.providers = []provider{unreachable, working}
		err := c.Connect(ctx)
		assert.ErrorIs(t, err, ErrConnection)
		assert.ErrorContains(t, err, "unreachable")
		assert.NotContains(t, err.Error(), "working")
		assert.Empty(t, c.Driver())
	})

	t.Run("moves on when fallback on failure is set", func(t *testing.T) {
		c := newTestSQLite(t, path)
		c.providers = []provider{unreachable, working}
		c.fallbackOnFailure = true
		require.NoError(t, c.Connect(ctx))
		assert.Equal(t, "working", c.Driver())
	})
}

func TestPresto_FallsBackOnFailure(t *testing.T) {
	assert.True(t, newPrestoConnector(Profile{Type: TypePresto}, nil).fallbackOnFailure)
	assert.False(t, newMySQLConnector(Profile{Type: TypeMySQL}, nil).fallbackOnFailure)
	assert.False(t, newPostgresConnector(Profile{Type: TypePostgres}, nil).fallbackOnFailure)
}

func TestTimeString(t *testing.T) {
	assert.Equal(t, "", timeString(nil))
	assert.Equal(t, "2020-01-02 03:04:05", timeString(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Equal(t, "2020-01-02 03:04:05", timeString([]byte("2020-01-02 03:04:05")))
}
