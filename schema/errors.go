package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSessionClosed           = errors.New("schema editor session is not open")
	ErrSessionOpen             = errors.New("schema editor session is already open")
	ErrIncompatibleFields      = errors.New("cannot alter between a column field and a column-less field")
	ErrUnknownType             = errors.New("no column type mapping for field")
	ErrInconsistentConstraints = errors.New("introspected constraints disagree with the expected schema")
	ErrUnsupported             = errors.New("not supported by this dialect")
)

// ConstraintCountError reports that strict mode found a number of matching
// constraints other than exactly one.
type ConstraintCountError struct {
	Table   string
	Columns []string
	Kind    string
	Found   int
}

func (e *ConstraintCountError) Error() string {
	return fmt.Sprintf("found wrong number (%d) of %s constraints for %s(%s)", e.Found, e.Kind, e.Table, strings.Join(e.Columns, ", "))
}

func (e *ConstraintCountError) Unwrap() error {
	return ErrInconsistentConstraints
}
