package schema

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

const timestampLayout = "2006-01-02 15:04:05.999999-07:00"

// StringConstant returns a single-quoted SQL string literal.
func StringConstant(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ansiQuoteName double-quotes an identifier unless it already is quoted.
func ansiQuoteName(name string) string {
	if strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) && len(name) > 1 {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// literalStyle holds the per-dialect pieces of value rendering.
type literalStyle struct {
	trueLiteral  string
	falseLiteral string
	quoteString  func(string) string
	quoteBytes   func([]byte) string
	// compactUUID renders UUIDs as 32 hex digits for char(32) columns.
	compactUUID  bool
}

var defaultLiteralStyle = literalStyle{
	trueLiteral:  "TRUE",
	falseLiteral: "FALSE",
	quoteString:  StringConstant,
	quoteBytes: func(b []byte) string {
		return "X'" + hex.EncodeToString(b) + "'"
	},
}

// quoteValue renders a Go value as a SQL literal. It is only used where a
// parameter cannot be bound, such as DDL defaults and collected output.
func (s literalStyle) quoteValue(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case string:
		return s.quoteString(v), nil
	case bool:
		if v {
			return s.trueLiteral, nil
		}
		return s.falseLiteral, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case decimal.Decimal:
		return v.String(), nil
	case uuid.UUID:
		if s.compactUUID {
			return s.quoteString(hex.EncodeToString(v[:])), nil
		}
		return s.quoteString(v.String()), nil
	case time.Time:
		return s.quoteString(v.Format(timestampLayout)), nil
	case []byte:
		return s.quoteBytes(v), nil
	}

	str, err := cast.ToStringE(value)
	if err != nil {
		return "", fmt.Errorf("cannot quote %T as a SQL literal: %w", value, ErrUnsupported)
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Float32:
		return str, nil
	}
	return s.quoteString(str), nil
}
