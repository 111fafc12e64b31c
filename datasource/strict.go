package datasource

import (
	"regexp"
	"strings"
)

type rule struct {
	re   *regexp.Regexp
	desc string
}

func keyword(word string) rule {
	return rule{
		re:   regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])` + word + `(?:[^a-zA-Z_]|$)`),
		desc: "forbidden keyword: " + word,
	}
}

func function(name string) rule {
	return rule{
		re:   regexp.MustCompile(`(?i)\b` + name + `\s*\(`),
		desc: "forbidden function: " + name + "()",
	}
}

// statement matches word only where a statement begins, so a function of the
// same name (REPLACE(s, a, b)) stays allowed.
func statement(word string) rule {
	return rule{
		re:   regexp.MustCompile(`(?i)(?:^|;)\s*` + word + `\b`),
		desc: "forbidden statement: " + word,
	}
}

func pattern(expr, desc string) rule {
	return rule{re: regexp.MustCompile(expr), desc: "forbidden pattern: " + desc}
}

var (
	commonRules = []rule{
		keyword("INSERT"), keyword("UPDATE"), keyword("DELETE"), keyword("MERGE"),
		keyword("DROP"), keyword("CREATE"), keyword("ALTER"), keyword("TRUNCATE"),
		keyword("GRANT"), keyword("REVOKE"),
	}
	setStatement = regexp.MustCompile(`(?i)(?:^|;)\s*SET\b`)
	// showCreate prints DDL without running it.
	showCreate = regexp.MustCompile(`(?i)^\s*SHOW\s+CREATE\b`)
)

// dialect describes how an engine quotes strings and comments, and which
// engine specific constructs strict mode rejects.
type dialect struct {
	name             string
	hashComments     bool
	backslashEscapes bool
	dollarQuotes     bool
	bracketIdents    bool
	// doubleQuoteStrings treats "..." as a string literal rather than an identifier.
	doubleQuoteStrings bool
	rules              []rule
}

var (
	standardDialect = &dialect{name: "standard"}

	sqliteDialect = &dialect{
		name:          "sqlite",
		bracketIdents: true,
		rules: []rule{
			function("load_extension"), function("writefile"), function("edit"), function("fts3_tokenizer"),
			statement("REPLACE"), keyword("ATTACH"), keyword("DETACH"), keyword("REINDEX"), keyword("VACUUM"),
			pattern(`(?i)\bPRAGMA\s+\w+\s*=`, "PRAGMA write"),
		},
	}

	mysqlDialect = &dialect{
		name:               "mysql",
		hashComments:       true,
		backslashEscapes:   true,
		doubleQuoteStrings: true,
		rules: []rule{
			pattern(`(?i)\bINTO\s+OUTFILE\b`, "INTO OUTFILE"),
			pattern(`(?i)\bINTO\s+DUMPFILE\b`, "INTO DUMPFILE"),
			pattern(`(?i)\bINTO\s+@`, "INTO @variable"),
			function("LOAD_FILE"), function("SLEEP"), function("BENCHMARK"),
			function("GET_LOCK"), function("RELEASE_LOCK"), function("IS_FREE_LOCK"), function("IS_USED_LOCK"),
			function("WAIT_FOR_EXECUTED_GTID_SET"), function("MASTER_POS_WAIT"), function("SOURCE_POS_WAIT"),
			keyword("CALL"), keyword("EXEC"), keyword("EXECUTE"), statement("REPLACE"),
			keyword("LOAD"), keyword("HANDLER"), keyword("RENAME"),
		},
	}

	postgresDialect = &dialect{
		name:         "postgres",
		dollarQuotes: true,
		rules: []rule{
			pattern(`(?i)\bSELECT\b[^;]*\bINTO\b`, "SELECT ... INTO"),
			function("pg_read_file"), function("pg_read_binary_file"), function("pg_ls_dir"),
			function("lo_import"), function("lo_export"),
			function("pg_sleep"), function("pg_sleep_for"), function("pg_sleep_until"),
			function("pg_advisory_lock"), function("pg_advisory_xact_lock"), function("pg_try_advisory_lock"),
			keyword("CALL"), keyword("EXECUTE"), keyword("COPY"), keyword("LISTEN"), keyword("NOTIFY"),
			keyword("PREPARE"), keyword("DEALLOCATE"), keyword("VACUUM"), keyword("REINDEX"), keyword("CLUSTER"),
		},
	}

	prestoDialect = &dialect{
		name: "presto",
		rules: []rule{
			keyword("CALL"), keyword("EXECUTE"), keyword("PREPARE"), keyword("DEALLOCATE"),
		},
	}
)

func (d *dialect) checkStrict(sql string) error {
	cleaned := d.stripStringsAndComments(sql)

	if i := strings.IndexByte(cleaned, ';'); i >= 0 && strings.TrimSpace(cleaned[i+1:]) != "" {
		return invalidQueryf("multiple statements are not allowed")
	}
	cleaned = showCreate.ReplaceAllString(cleaned, "SHOW ")
	for _, r := range commonRules {
		if r.re.MatchString(cleaned) {
			return invalidQueryf("query contains %s", r.desc)
		}
	}
	if setStatement.MatchString(cleaned) {
		return invalidQueryf("SET statements are not allowed")
	}
	for _, r := range d.rules {
		if r.re.MatchString(cleaned) {
			return invalidQueryf("query contains %s", r.desc)
		}
	}
	return nil
}

// stripStringsAndComments replaces string literals with empty literals and
// comments with a single space, so keyword scans only see SQL structure.
// Quoted identifiers are kept verbatim.
func (d *dialect) stripStringsAndComments(sql string) string {
	var result strings.Builder
	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]

		if c == '-' && i+1 < n && sql[i+1] == '-' || c == '#' && d.hashComments {
			for i < n && sql[i] != '\n' {
				i++
			}
			result.WriteByte(' ')
			continue
		}

		if c == '/' && i+1 < n && sql[i+1] == '*' {
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i += 2
			result.WriteByte(' ')
			continue
		}

		if c == '$' && d.dollarQuotes {
			if end := strings.IndexByte(sql[i+1:], '$'); end >= 0 {
				tag := sql[i : i+end+2]
				if closeIdx := strings.Index(sql[i+len(tag):], tag); closeIdx >= 0 {
					i += len(tag) + closeIdx + len(tag)
					result.WriteString("''")
					continue
				}
			}
		}

		if c == '\'' || c == '"' && d.doubleQuoteStrings {
			i = d.skipQuoted(sql, i, c)
			result.WriteByte(c)
			result.WriteByte(c)
			continue
		}

		if c == '"' || c == '`' || c == '[' && d.bracketIdents {
			closing := c
			if c == '[' {
				closing = ']'
			}
			result.WriteByte(c)
			i++
			for i < n && sql[i] != closing {
				result.WriteByte(sql[i])
				i++
			}
			if i < n {
				result.WriteByte(closing)
				i++
			}
			continue
		}

		result.WriteByte(c)
		i++
	}

	return result.String()
}

// skipQuoted returns the index just past the literal opened at sql[start].
func (d *dialect) skipQuoted(sql string, start int, quote byte) int {
	i := start + 1
	n := len(sql)
	for i < n {
		switch {
		case sql[i] == quote && i+1 < n && sql[i+1] == quote:
			i += 2
		case sql[i] == quote:
			return i + 1
		case sql[i] == '\\' && d.backslashEscapes && i+1 < n:
			i += 2
		default:
			i++
		}
	}
	return n
}
