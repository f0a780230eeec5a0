package util

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	truncateHashLength = 4
	digestLength       = 8
)

// NamesDigest returns the first length hex characters of the md5 sum of args.
func NamesDigest(args []string, length int) string {
	h := md5.New()
	for _, arg := range args {
		h.Write([]byte(arg))
	}
	sum := hex.EncodeToString(h.Sum(nil))
	if length > len(sum) {
		length = len(sum)
	}
	return sum[:length]
}

// TruncateName shortens name to at most length characters, replacing the
// tail with a short hash of the full name so distinct long names stay distinct.
// A length of 0 or less means unbounded.
func TruncateName(name string, length int) string {
	if length <= 0 || len(name) <= length {
		return name
	}
	if length <= truncateHashLength {
		return NamesDigest([]string{name}, length)
	}
	return name[:length-truncateHashLength] + NamesDigest([]string{name}, truncateHashLength)
}

// CreateIndexName derives a deterministic index or constraint name for columns of table.
// The result never exceeds maxLength (0 = unbounded) and never starts with an
// underscore or a digit.
func CreateIndexName(table string, columns []string, suffix string, maxLength int) string {
	tableName := strings.ReplaceAll(strings.ReplaceAll(table, `"`, ""), ".", "_")

	if len(columns) == 1 && suffix == "" {
		name := TruncateName(fmt.Sprintf("%s_%s", tableName, NamesDigest(columns, digestLength)), maxLength)
		return sanitizeIdentifier(name, maxLength)
	}

	firstColumn := ""
	if len(columns) > 0 {
		firstColumn = strings.ReplaceAll(strings.ReplaceAll(columns[0], `"`, ""), ".", "_")
	}
	unique := "_" + columnsDigest(tableName, columns)
	tail := fmt.Sprintf("_%s%s%s", firstColumn, unique, suffix)

	name := tableName + tail
	if maxLength > 0 && len(name) > maxLength {
		keep := max(maxLength-len(tail), 0)
		name = tableName[:min(keep, len(tableName))] + tail
	}
	name = strings.TrimLeft(name, "_")
	if maxLength > 0 && len(name) > maxLength {
		name = NamesDigest([]string{name}, maxLength)
	}
	return sanitizeIdentifier(name, maxLength)
}

// columnsDigest hashes a table and its column list. The dot never occurs in a
// sanitized table name and the comma keeps column boundaries apart.
func columnsDigest(tableName string, columns []string) string {
	return NamesDigest([]string{tableName, ".", strings.Join(columns, ",")}, digestLength)
}

func sanitizeIdentifier(name string, maxLength int) string {
	name = strings.TrimLeft(name, "_")
	if name == "" {
		name = "D"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "D" + name
		if maxLength > 0 && len(name) > maxLength {
			name = name[:maxLength]
		}
	}
	return name
}
