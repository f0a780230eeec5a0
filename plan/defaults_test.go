package plan

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertDefault(t *testing.T) {
	tests := []struct {
		fieldType string
		value     any
		expected  any
	}{
		{fieldType: "BooleanField", value: "true", expected: true},
		{fieldType: "BooleanField", value: 0, expected: false},
		{fieldType: "IntegerField", value: "42", expected: int64(42)},
		{fieldType: "BigAutoField", value: 7, expected: int64(7)},
		{fieldType: "FloatField", value: 2, expected: float64(2)},
		{fieldType: "DecimalField", value: 9.5, expected: decimal.RequireFromString("9.5")},
		{fieldType: "UUIDField", value: "6ba7b810-9dad-11d1-80b4-00c04fd430c8", expected: uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")},
		{fieldType: "DateTimeField", value: "2024-05-01T12:30:00Z", expected: time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)},
		{fieldType: "DateField", value: "2024-05-01", expected: "2024-05-01"},
		{fieldType: "BinaryField", value: "ab", expected: []byte("ab")},
		{fieldType: "CharField", value: 12, expected: "12"},
		{fieldType: "JSONField", value: `{"a": 1}`, expected: `{"a": 1}`},
		{fieldType: "CharField", value: nil, expected: nil},
	}
	for _, tt := range tests {
		t.Run(tt.fieldType, func(t *testing.T) {
			actual, err := convertDefault(tt.fieldType, tt.value)
			require.NoError(t, err)
			if d, ok := tt.expected.(decimal.Decimal); ok {
				assert.True(t, d.Equal(actual.(decimal.Decimal)))
				return
			}
			if ts, ok := tt.expected.(time.Time); ok {
				assert.True(t, ts.Equal(actual.(time.Time)))
				return
			}
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestConvertDefaultErrors(t *testing.T) {
	for fieldType, value := range map[string]any{
		"IntegerField": "many",
		"DecimalField": "1,5",
		"UUIDField":    "not-a-uuid",
		"JSONField":    3,
	} {
		t.Run(fieldType, func(t *testing.T) {
			_, err := convertDefault(fieldType, value)
			assert.Error(t, err)
		})
	}
}

func TestDefaultFuncs(t *testing.T) {
	first, second := defaultFuncs["uuid4"](), defaultFuncs["uuid4"]()
	assert.IsType(t, uuid.UUID{}, first)
	assert.NotEqual(t, first, second)

	assert.IsType(t, time.Time{}, defaultFuncs["now"]())
	_, err := time.Parse(time.DateOnly, defaultFuncs["today"]().(string))
	assert.NoError(t, err)
}
