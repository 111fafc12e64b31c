package datasource

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_UnmarshalParams(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		var p Profile
		err := json.Unmarshal([]byte(`{"type":"postgres","port":5433,"params":{"sslmode":"require"}}`), &p)
		require.NoError(t, err)
		assert.Equal(t, TypePostgres, p.Type)
		assert.Equal(t, 5433, p.Port)
		assert.Equal(t, "require", p.Params.String("sslmode"))
	})

	t.Run("json string", func(t *testing.T) {
		var p Profile
		err := json.Unmarshal([]byte(`{"type":"presto","params":"{\"catalog\":\"hive\",\"http_scheme\":\"https\"}"}`), &p)
		require.NoError(t, err)
		assert.Equal(t, "hive", p.Params.String("catalog"))
		assert.Equal(t, "https", p.Params.String("http_scheme"))
	})

	t.Run("empty string and null", func(t *testing.T) {
		for _, raw := range []string{`{"params":""}`, `{"params":null}`, `{}`} {
			var p Profile
			require.NoError(t, json.Unmarshal([]byte(raw), &p), raw)
			assert.Nil(t, p.Params, raw)
		}
	})

	t.Run("malformed string", func(t *testing.T) {
		var p Profile
		err := json.Unmarshal([]byte(`{"params":"{not json"}`), &p)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("wrong kind", func(t *testing.T) {
		var p Profile
		err := json.Unmarshal([]byte(`{"params":[1,2]}`), &p)
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestParseParams(t *testing.T) {
	p, err := ParseParams(`{"port": 8443, "verify": true, "source": "cli"}`)
	require.NoError(t, err)
	assert.Equal(t, "8443", p.String("port"))
	assert.Equal(t, "true", p.String("verify"))
	assert.Equal(t, "cli", p.String("source"))
	assert.Equal(t, "", p.String("missing"))

	p, err = ParseParams("   ")
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = ParseParams(`"just a string"`)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestParams_StringOnNil(t *testing.T) {
	var p Params
	assert.Equal(t, "", p.String("catalog"))
}
