package datasource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDDLMetadata(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)

	tests := []struct {
		name     string
		ddl      string
		expected DDLMetadata
	}{
		{
			name: "trino table comment after column comments",
			ddl: "CREATE TABLE hive.sales.orders (\n" +
				"   id bigint COMMENT 'identifier',\n" +
				"   amount decimal(10,2)\n" +
				")\n" +
				"COMMENT 'daily orders'\n" +
				"WITH (\n" +
				"   format = 'ORC'\n" +
				")",
			expected: DDLMetadata{Comment: "daily orders"},
		},
		{
			name:     "assignment form wins",
			ddl:      "CREATE TABLE t (id int COMMENT 'col') ENGINE=OLAP COMMENT='orders table'",
			expected: DDLMetadata{Comment: "orders table"},
		},
		{
			name:     "escaped quote in comment",
			ddl:      "CREATE TABLE t (\n id int\n)\nCOMMENT 'it''s here'",
			expected: DDLMetadata{Comment: "it's here"},
		},
		{
			name: "hive properties",
			ddl: "CREATE TABLE t (id int)\nTBLPROPERTIES (\n" +
				"  'created_at'='1700000000',\n" +
				"  'transient_lastDdlTime'='1700003600')",
			expected: DDLMetadata{
				CreateTime: "2023-11-15 06:13:20",
				UpdateTime: "2023-11-15 07:13:20",
			},
		},
		{
			name:     "properties without equals sign",
			ddl:      "CREATE TABLE t (id int) 'transient_lastDdlTime' '1700003600'",
			expected: DDLMetadata{UpdateTime: "2023-11-15 07:13:20"},
		},
		{
			name:     "out of range epoch degrades",
			ddl:      "'transient_lastDdlTime'='99999999999999999999999'",
			expected: DDLMetadata{},
		},
		{
			name:     "garbage",
			ddl:      "not a ddl at all",
			expected: DDLMetadata{},
		},
		{
			name:     "empty",
			ddl:      "",
			expected: DDLMetadata{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseDDLMetadataIn(tc.ddl, loc))
		})
	}
}

func TestParseDDLMetadata_UsesLocalTime(t *testing.T) {
	md := ParseDDLMetadata("'created_at'='0'")
	assert.Equal(t, time.Unix(0, 0).Local().Format(timestampLayout), md.CreateTime)
}
