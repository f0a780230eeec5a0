package plan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

var defaultFuncs = map[string]func() any{
	"now":   func() any { return time.Now().UTC() },
	"today": func() any { return time.Now().UTC().Format(time.DateOnly) },
	"uuid4": func() any { return uuid.New() },
}

// convertDefault turns a loosely typed YAML scalar into the value the field
// type expects, so that it is rendered as the right kind of literal.
func convertDefault(fieldType string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch fieldType {
	case "BooleanField":
		return cast.ToBoolE(value)
	case "AutoField", "BigAutoField", "SmallAutoField",
		"IntegerField", "BigIntegerField", "SmallIntegerField",
		"PositiveIntegerField", "PositiveBigIntegerField", "PositiveSmallIntegerField":
		return cast.ToInt64E(value)
	case "FloatField":
		return cast.ToFloat64E(value)
	case "DecimalField":
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, err
		}
		return decimal.NewFromString(s)
	case "UUIDField":
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, err
		}
		return uuid.Parse(s)
	case "DateTimeField":
		return cast.ToTimeE(value)
	case "DateField":
		t, err := cast.ToTimeE(value)
		if err != nil {
			return nil, err
		}
		return t.Format(time.DateOnly), nil
	case "BinaryField":
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	case "JSONField":
		if _, ok := value.(string); !ok {
			return nil, fmt.Errorf("JSONField default must be a JSON string, got %T", value)
		}
		return value, nil
	default:
		return cast.ToStringE(value)
	}
}
