package datasource

import (
	"strconv"
	"strings"
	"time"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"
	timeLayout      = "15:04:05"
)

type cellKind int

const (
	kindOther cellKind = iota
	kindTimestamp
	kindDate
	kindTime
	kindDecimal
)

// classifyColumn maps a driver reported database type name to a cell kind.
// Names differ per engine ("DATETIME", "timestamp(3) with time zone",
// "decimal(10,2)", "NUMERIC"), so only the leading type word matters.
func classifyColumn(databaseType string) cellKind {
	t := strings.ToLower(strings.TrimSpace(databaseType))
	if i := strings.IndexAny(t, "( "); i >= 0 {
		t = t[:i]
	}
	switch t {
	case "datetime", "timestamp", "timestamptz", "datetime2", "smalldatetime":
		return kindTimestamp
	case "date":
		return kindDate
	case "time", "timetz":
		return kindTime
	case "decimal", "numeric", "newdecimal":
		return kindDecimal
	}
	return kindOther
}

// FormatValue normalizes a cell of unknown column type.
func FormatValue(v any) any {
	return formatCell(v, kindOther)
}

// formatCell normalizes a native driver value. Rules, first match wins:
// timestamps become "YYYY-MM-DD HH:MM:SS", dates "YYYY-MM-DD", times
// "HH:MM:SS", decimals float64; anything else is returned unchanged except
// that raw bytes become a string.
func formatCell(v any, kind cellKind) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		// A time.Time always carries both parts; only the column type says
		// whether one of them is meaningless.
		switch kind {
		case kindDate:
			return t.Format(dateLayout)
		case kindTime:
			return t.Format(timeLayout)
		default:
			return t.Format(timestampLayout)
		}
	case *time.Time:
		if t == nil {
			return nil
		}
		return formatCell(*t, kind)
	case []byte:
		return formatCell(string(t), kind)
	case string:
		switch kind {
		case kindDecimal:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f
			}
		case kindTimestamp, kindDate, kindTime:
			if parsed, ok := parseTemporal(t, kind); ok {
				return formatCell(parsed, kind)
			}
		}
		return t
	}
	return v
}

// Text layouts drivers use for temporal columns. Fractional seconds after
// the seconds field are accepted by time.Parse without being named.
var textLayouts = map[cellKind][]string{
	kindTimestamp: {
		timestampLayout,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05Z07",
		time.RFC3339,
	},
	kindDate: {dateLayout},
	kindTime: {timeLayout, "15:04:05Z07:00", "15:04:05Z07"},
}

// parseTemporal reads a temporal value a driver returned as text, such as a
// MySQL TIME or a Postgres time scanned as a string. Values outside the
// layouts (MySQL zero dates, TIME beyond 24h) are reported as unparsed.
func parseTemporal(s string, kind cellKind) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range textLayouts[kind] {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
