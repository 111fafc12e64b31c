package datasource

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DDLMetadata is table metadata scraped from SHOW CREATE TABLE output.
// Fields that cannot be recovered are "".
type DDLMetadata struct {
	Comment    string
	CreateTime string
	UpdateTime string
}

var (
	// Table option form: COMMENT='...'.
	ddlCommentAssign = regexp.MustCompile(`(?i)COMMENT\s*=\s*'((?:[^']|'')*)'`)
	// Trino prints the table comment on its own line after the column list;
	// column comments share a line with their column.
	ddlCommentLine = regexp.MustCompile(`(?im)^\s*COMMENT\s+'((?:[^']|'')*)'`)
	ddlCommentAny  = regexp.MustCompile(`(?i)COMMENT\s+'((?:[^']|'')*)'`)

	ddlLastDDLTime = regexp.MustCompile(`(?i)'?transient_lastDdlTime'?\s*=?\s*'([0-9]+)'`)
	ddlCreatedAt   = regexp.MustCompile(`(?i)'?created_at'?\s*=\s*'([0-9]+)'`)
)

// ParseDDLMetadata recovers the table comment and the created/last DDL times
// (epoch seconds in table properties, rendered in local time) from ddl.
func ParseDDLMetadata(ddl string) DDLMetadata {
	return parseDDLMetadataIn(ddl, time.Local)
}

func parseDDLMetadataIn(ddl string, loc *time.Location) DDLMetadata {
	var md DDLMetadata
	for _, re := range []*regexp.Regexp{ddlCommentAssign, ddlCommentLine, ddlCommentAny} {
		if m := re.FindStringSubmatch(ddl); m != nil {
			md.Comment = strings.ReplaceAll(m[1], "''", "'")
			break
		}
	}
	md.UpdateTime = epochProperty(ddlLastDDLTime, ddl, loc)
	md.CreateTime = epochProperty(ddlCreatedAt, ddl, loc)
	return md
}

func epochProperty(re *regexp.Regexp, ddl string, loc *time.Location) string {
	m := re.FindStringSubmatch(ddl)
	if m == nil {
		return ""
	}
	ts, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return ""
	}
	return time.Unix(ts, 0).In(loc).Format(timestampLayout)
}
