package database

import (
	"slices"

	"github.com/k0kubun/schemaedit/util"
)

// ConstraintFilter narrows constraints by kind. A nil flag does not filter.
type ConstraintFilter struct {
	Unique     *bool
	PrimaryKey *bool
	Index      *bool
	Check      *bool
	ForeignKey *bool
}

func (f ConstraintFilter) Match(c Constraint) bool {
	if f.Unique != nil && c.Unique != *f.Unique {
		return false
	}
	if f.PrimaryKey != nil && c.PrimaryKey != *f.PrimaryKey {
		return false
	}
	if f.Index != nil && c.Index != *f.Index {
		return false
	}
	if f.Check != nil && c.Check != *f.Check {
		return false
	}
	if f.ForeignKey != nil && (c.ForeignKey != nil) != *f.ForeignKey {
		return false
	}
	return true
}

// MatchConstraints returns the names of constraints whose column list equals
// columns exactly (order-sensitive) and which pass filter. A nil columns slice
// matches every column list. Names come back sorted.
func MatchConstraints(constraints map[string]Constraint, columns []string, filter ConstraintFilter) []string {
	var names []string
	for name, c := range util.CanonicalMapIter(constraints) {
		if columns != nil && !slices.Equal(columns, c.Columns) {
			continue
		}
		if !filter.Match(c) {
			continue
		}
		names = append(names, name)
	}
	return names
}
