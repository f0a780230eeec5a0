package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamesDigest(t *testing.T) {
	digest := NamesDigest([]string{"author", "name"}, 8)
	assert.Len(t, digest, 8)
	assert.Equal(t, digest, NamesDigest([]string{"author", "name"}, 8))
	assert.Equal(t, digest, NamesDigest([]string{"authorname"}, 8))
	assert.NotEqual(t, digest, NamesDigest([]string{"author", "title"}, 8))
	assert.Len(t, NamesDigest([]string{"x"}, 100), 32)
}

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "short", TruncateName("short", 63))
	assert.Equal(t, strings.Repeat("a", 200), TruncateName(strings.Repeat("a", 200), 0))

	long := strings.Repeat("a", 70)
	truncated := TruncateName(long, 63)
	assert.Len(t, truncated, 63)
	assert.True(t, strings.HasPrefix(truncated, strings.Repeat("a", 59)))
	assert.NotEqual(t, truncated, TruncateName(long+"b", 63))

	assert.Len(t, TruncateName(long, 3), 3)
}

func TestCreateIndexName(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		columns   []string
		suffix    string
		maxLength int
		prefix    string
	}{
		{name: "single column index", table: "author", columns: []string{"name"}, maxLength: 63, prefix: "author_"},
		{name: "unique", table: "author", columns: []string{"name"}, suffix: "_uniq", maxLength: 63, prefix: "author_name_"},
		{name: "multiple columns", table: "book", columns: []string{"author_id", "title"}, suffix: "_idx", maxLength: 64, prefix: "book_author_id_"},
		{name: "schema qualified", table: `"public"."book"`, columns: []string{"title"}, suffix: "_like", maxLength: 63, prefix: "public_book_title_"},
		{name: "leading underscore", table: "_hidden", columns: []string{"x"}, suffix: "_check", maxLength: 63, prefix: "hidden_x_"},
		{name: "leading digit", table: "2fa", columns: []string{"code"}, suffix: "_uniq", maxLength: 63, prefix: "D2fa_code_"},
		{name: "unbounded", table: strings.Repeat("t", 100), columns: []string{"c"}, suffix: "_uniq", prefix: strings.Repeat("t", 100) + "_c_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := CreateIndexName(tt.table, tt.columns, tt.suffix, tt.maxLength)
			assert.True(t, strings.HasPrefix(name, tt.prefix), name)
			assert.True(t, strings.HasSuffix(name, tt.suffix), name)
			if tt.maxLength > 0 {
				assert.LessOrEqual(t, len(name), tt.maxLength)
			}
			assert.Equal(t, name, CreateIndexName(tt.table, tt.columns, tt.suffix, tt.maxLength))
		})
	}
}

func TestCreateIndexNameLongTable(t *testing.T) {
	table := strings.Repeat("very_long_table_name_", 5)
	name := CreateIndexName(table, []string{"owner_id"}, "_fk_account_id", 63)
	assert.Len(t, name, 63)
	assert.True(t, strings.HasSuffix(name, "_owner_id_"+columnsDigest(table, []string{"owner_id"})+"_fk_account_id"))

	other := CreateIndexName(table+"x", []string{"owner_id"}, "_fk_account_id", 63)
	assert.NotEqual(t, name, other)
}

func TestCreateIndexNameDistinguishesColumnOrder(t *testing.T) {
	ab := CreateIndexName("item", []string{"a", "b"}, "_uniq", 63)
	ba := CreateIndexName("item", []string{"b", "a"}, "_uniq", 63)
	assert.NotEqual(t, ab, ba)
}

func TestCreateIndexNameDistinguishesColumnBoundaries(t *testing.T) {
	split := CreateIndexName("t", []string{"a", "b", "c"}, "_uniq", 63)
	joined := CreateIndexName("t", []string{"a", "bc"}, "_uniq", 63)
	assert.NotEqual(t, split, joined)
	assert.NotEqual(t, CreateIndexName("ta", []string{"b", "c"}, "_idx", 63), CreateIndexName("t", []string{"ab", "c"}, "_idx", 63))
}

func TestGroupDifference(t *testing.T) {
	a := [][]string{{"a", "b"}, {"c"}, {"d", "e"}}
	b := [][]string{{"c"}, {"e", "d"}}
	assert.Equal(t, [][]string{{"a", "b"}, {"d", "e"}}, GroupDifference(a, b))
	assert.Nil(t, GroupDifference(nil, b))
	assert.Equal(t, a, GroupDifference(a, nil))
}

func TestCanonicalMapIter(t *testing.T) {
	var keys []string
	for k := range CanonicalMapIter(map[string]int{"b": 2, "c": 3, "a": 1}) {
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}
