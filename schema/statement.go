package schema

import (
	"fmt"
	"strings"
)

// paramMarker is where a parameter goes in statement text. It contains NUL
// bytes so that no identifier, type or expression can produce it.
const paramMarker = "\x00?\x00"

// Statement is a SQL text with parameters bound at paramMarker positions. The
// same type carries partial fragments such as "ALTER COLUMN ..." clauses.
type Statement struct {
	SQL    string
	Params []any
}

// expand fills {name} placeholders of a template. Unknown placeholders are left
// untouched so a template can omit parts it does not use.
func expand(template string, kv ...string) string {
	if template == "" {
		return ""
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// interpolate substitutes every parameter with its literal rendering.
func interpolate(stmt Statement, quote func(any) (string, error)) (string, error) {
	if len(stmt.Params) == 0 {
		return stmt.SQL, nil
	}

	var b strings.Builder
	rest := stmt.SQL
	for i, param := range stmt.Params {
		idx := strings.Index(rest, paramMarker)
		if idx < 0 {
			return "", fmt.Errorf("statement has %d parameters but only %d markers: %s", len(stmt.Params), i, stmt.SQL)
		}
		literal, err := quote(param)
		if err != nil {
			return "", err
		}
		b.WriteString(rest[:idx])
		b.WriteString(literal)
		rest = rest[idx+len(paramMarker):]
	}
	b.WriteString(rest)
	return b.String(), nil
}

// driverSQL rewrites parameter markers into the driver placeholder.
func driverSQL(stmt Statement) (string, []any) {
	if len(stmt.Params) == 0 {
		return stmt.SQL, nil
	}
	return strings.Replace(stmt.SQL, paramMarker, "?", len(stmt.Params)), stmt.Params
}

func joinStatements(stmts []Statement, sep string) Statement {
	var sqls []string
	var params []any
	for _, stmt := range stmts {
		sqls = append(sqls, stmt.SQL)
		params = append(params, stmt.Params...)
	}
	return Statement{SQL: strings.Join(sqls, sep), Params: params}
}
