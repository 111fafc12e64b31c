package datasource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Type is the datasource type tag of a profile.
type Type string

const (
	TypeSQLite     Type = "sqlite"
	TypeMySQL      Type = "mysql"
	TypeMariaDB    Type = "mariadb"
	TypeStarRocks  Type = "starrocks"
	TypePostgres   Type = "postgres"
	TypePostgreSQL Type = "postgresql"
	TypePresto     Type = "presto"
	TypeTrino      Type = "trino"
)

// Profile describes how to reach one datasource. It is supplied by the
// caller and never persisted here.
type Profile struct {
	Type     Type   `json:"type" mapstructure:"type"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	Params   Params `json:"params" mapstructure:"params"`
}

// Params holds engine specific options. In JSON it may be given either as an
// object or as a string containing a JSON object.
type Params map[string]any

// ParseParams decodes a JSON object string. An empty string yields nil.
func ParseParams(raw string) (Params, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var p Params
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, configErrorf("params must be a valid JSON object: %v", err)
	}
	return p, nil
}

func (p *Params) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return configErrorf("params: %v", err)
		}
		parsed, err := ParseParams(s)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return configErrorf("params: %v", err)
	}
	*p = m
	return nil
}

// String returns the value for key formatted as a string, or "".
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func (p Profile) normalizedType() Type {
	return Type(strings.ToLower(strings.TrimSpace(string(p.Type))))
}

func (p Profile) portOr(def int) int {
	if p.Port > 0 {
		return p.Port
	}
	return def
}
