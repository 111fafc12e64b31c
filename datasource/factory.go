package datasource

// New returns an idle connector for p, chosen by its lower-cased type tag.
// mariadb and starrocks share the MySQL connector, postgresql the Postgres
// one and trino the Presto one.
func New(p Profile, opts ...Option) (Connector, error) {
	switch p.normalizedType() {
	case TypeSQLite:
		return newSQLiteConnector(p, opts), nil
	case TypeMySQL, TypeMariaDB, TypeStarRocks:
		return newMySQLConnector(p, opts), nil
	case TypePostgres, TypePostgreSQL:
		return newPostgresConnector(p, opts), nil
	case TypePresto, TypeTrino:
		return newPrestoConnector(p, opts), nil
	default:
		return nil, &UnsupportedDatasourceError{Type: string(p.Type)}
	}
}

var (
	_ Connector = (*SQLiteConnector)(nil)
	_ Connector = (*MySQLConnector)(nil)
	_ Connector = (*PostgresConnector)(nil)
	_ Connector = (*PrestoConnector)(nil)
)
