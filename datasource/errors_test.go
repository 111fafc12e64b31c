package datasource

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	reset := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}

	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"net error", reset, ErrConnection},
		{"wrapped net error", errors.Join(errors.New("driver"), reset), ErrConnection},
		{"bad conn", driver.ErrBadConn, ErrConnection},
		{"conn done", sql.ErrConnDone, ErrConnection},
		{"mysql invalid conn", mysql.ErrInvalidConn, ErrConnection},
		{"eof", io.EOF, ErrConnection},
		{"unexpected eof", io.ErrUnexpectedEOF, ErrConnection},
		{"deadline", context.DeadlineExceeded, ErrConnection},
		{"canceled", context.Canceled, ErrConnection},
		{"engine error", &mysql.MySQLError{Number: 1146, Message: "Table 'app.nope' doesn't exist"}, ErrQuery},
		{"plain error", errors.New("syntax error at or near \"FORM\""), ErrQuery},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			assert.ErrorIs(t, got, tc.expected)
			assert.ErrorIs(t, got, tc.err, "the driver error must stay reachable")
		})
	}
}

func TestClassify_KeepsExistingCategory(t *testing.T) {
	assert.NoError(t, classify(nil))

	cfg := configErrorf("sqlite requires database path")
	assert.Same(t, cfg, classify(cfg))

	conn := queryError("failed to list tables", driver.ErrBadConn)
	again := classify(conn)
	assert.Same(t, conn, again)
	assert.NotErrorIs(t, again, ErrQuery)

	unsupported := &UnsupportedDatasourceError{Type: "oracle"}
	assert.Same(t, error(unsupported), classify(unsupported))
}

func TestQueryError(t *testing.T) {
	err := queryError("failed to read schema", errors.New("permission denied for table t"))
	assert.ErrorIs(t, err, ErrQuery)
	assert.EqualError(t, err, "failed to read schema: query failed: permission denied for table t")
}
