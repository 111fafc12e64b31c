package datasource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SelectsConnectorByType(t *testing.T) {
	tests := []struct {
		typ      Type
		expected Connector
	}{
		{"sqlite", &SQLiteConnector{}},
		{"mysql", &MySQLConnector{}},
		{"mariadb", &MySQLConnector{}},
		{"starrocks", &MySQLConnector{}},
		{"MySQL", &MySQLConnector{}},
		{"postgres", &PostgresConnector{}},
		{"postgresql", &PostgresConnector{}},
		{"presto", &PrestoConnector{}},
		{" Trino ", &PrestoConnector{}},
	}

	for _, tc := range tests {
		t.Run(string(tc.typ), func(t *testing.T) {
			c, err := New(Profile{Type: tc.typ, Database: "db"})
			require.NoError(t, err)
			assert.IsType(t, tc.expected, c)
			assert.Empty(t, c.Driver(), "new connectors start idle")
		})
	}
}

func TestNew_UnsupportedType(t *testing.T) {
	for _, typ := range []Type{"oracle", ""} {
		c, err := New(Profile{Type: typ})
		assert.Nil(t, c)

		var unsupported *UnsupportedDatasourceError
		require.True(t, errors.As(err, &unsupported), "type %q", typ)
		assert.Equal(t, string(typ), unsupported.Type)
	}
}

func TestNew_MySQLFamilySharesPagination(t *testing.T) {
	st, err := Guard{}.Check("SELECT * FROM t")
	require.NoError(t, err)

	for _, typ := range []Type{TypeMySQL, TypeMariaDB, TypeStarRocks} {
		c, err := New(Profile{Type: typ})
		require.NoError(t, err)
		sql, _ := applyPage(c.(*MySQLConnector).paginate, st, &Page{Size: 10, Offset: 20})
		assert.Equal(t, "SELECT * FROM t LIMIT 20,10", sql)
	}
}
