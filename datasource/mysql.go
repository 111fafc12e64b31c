package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/ziutek/mymysql/godrv"
)

var mysqlSystemDatabases = []string{"information_schema", "mysql", "performance_schema", "sys"}

// MySQLConnector serves MySQL, MariaDB and StarRocks.
type MySQLConnector struct {
	baseConnector
	profile Profile
}

func newMySQLConnector(p Profile, opts []Option) *MySQLConnector {
	c := &MySQLConnector{
		baseConnector: newBase("mysql", mysqlDialect, mysqlLimit, opts),
		profile:       p,
	}
	c.providers = []provider{
		{name: "go-sql-driver/mysql", driver: "mysql", dsn: c.nativeDSN},
		{name: "mymysql", driver: "mymysql", dsn: c.mymysqlDSN},
	}
	c.readOnly = []string{"SET SESSION TRANSACTION READ ONLY"}
	return c
}

func (c *MySQLConnector) addr() string {
	host := c.profile.Host
	if host == "" {
		host = "localhost"
	}
	return net.JoinHostPort(host, strconv.Itoa(c.profile.portOr(3306)))
}

func (c *MySQLConnector) nativeDSN() (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = c.profile.Username
	cfg.Passwd = c.profile.Password
	cfg.Net = "tcp"
	cfg.Addr = c.addr()
	cfg.DBName = c.profile.Database
	cfg.ParseTime = true
	cfg.Loc = time.Local
	return cfg.FormatDSN(), nil
}

// mymysqlDSN uses the godrv format: tcp:ADDR*DBNAME/USER/PASSWD.
func (c *MySQLConnector) mymysqlDSN() (string, error) {
	return fmt.Sprintf("tcp:%s*%s/%s/%s", c.addr(), c.profile.Database, c.profile.Username, c.profile.Password), nil
}

func (c *MySQLConnector) ListTables(ctx context.Context) ([]string, error) {
	tables, err := c.queryStrings(ctx, "SHOW TABLES")
	if err != nil {
		return nil, queryError("failed to list tables", err)
	}
	return tables, nil
}

const mysqlTablesQuery = `
	SELECT TABLE_NAME, TABLE_SCHEMA, TABLE_COMMENT, CREATE_TIME, UPDATE_TIME
	FROM information_schema.TABLES
	WHERE TABLE_SCHEMA = DATABASE()`

func (c *MySQLConnector) ListTablesInfo(ctx context.Context) ([]TableInfo, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	rows, err := c.conn.QueryContext(ctx, mysqlTablesQuery+" ORDER BY TABLE_NAME")
	if err != nil {
		return nil, queryError("failed to list tables", err)
	}
	defer rows.Close()

	infos := []TableInfo{}
	for rows.Next() {
		info, err := scanMySQLTable(rows)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMySQLTable(r rowScanner) (TableInfo, error) {
	var (
		name, schema string
		comment      sql.NullString
		created      any
		updated      any
	)
	if err := r.Scan(&name, &schema, &comment, &created, &updated); err != nil {
		return TableInfo{}, err
	}
	return TableInfo{
		TableName:    name,
		DatabaseName: schema,
		Comment:      comment.String,
		CreateTime:   timeString(created),
		UpdateTime:   timeString(updated),
	}, nil
}

func (c *MySQLConnector) GetDatabases(ctx context.Context) ([]string, error) {
	all, err := c.queryStrings(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, queryError("failed to list databases", err)
	}
	return slices.DeleteFunc(all, func(db string) bool {
		return slices.Contains(mysqlSystemDatabases, db)
	}), nil
}

func (c *MySQLConnector) GetTableSchema(ctx context.Context, table string) ([]ColumnInfo, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	rows, err := c.conn.QueryContext(ctx, `
		SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, COLUMN_KEY, COLUMN_COMMENT
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return nil, queryError("failed to read schema", err)
	}
	defer rows.Close()

	cols := []ColumnInfo{}
	for rows.Next() {
		var (
			name, colType, isNullable string
			dflt, key, comment        sql.NullString
		)
		if err := rows.Scan(&name, &colType, &isNullable, &dflt, &key, &comment); err != nil {
			return nil, queryError("failed to scan column info", err)
		}
		cols = append(cols, ColumnInfo{
			Order:   len(cols) + 1,
			Name:    name,
			Type:    colType,
			NotNull: isNullable == "NO",
			Default: nullableString(dflt),
			Primary: key.String == "PRI",
			Comment: comment.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("error reading schema", err)
	}
	return cols, nil
}

func (c *MySQLConnector) GetTableInfo(ctx context.Context, table string) (TableInfo, error) {
	if err := c.Connect(ctx); err != nil {
		return TableInfo{}, err
	}
	row := c.conn.QueryRowContext(ctx, mysqlTablesQuery+" AND TABLE_NAME = ?", table)
	info, err := scanMySQLTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TableInfo{TableName: table, DatabaseName: c.profile.Database}, nil
	}
	if err != nil {
		return TableInfo{}, queryError("failed to read table info", err)
	}
	return info, nil
}
