package database

import (
	"fmt"
	"io"
	"os"
)

// Logger receives the statements shown to the user, separate from slog diagnostics.
type Logger interface {
	Print(v ...any)
	Printf(format string, v ...any)
	Println(v ...any)
}

// WriterLogger prints to an arbitrary writer, e.g. a buffer in tests.
type WriterLogger struct {
	W io.Writer
}

func (l WriterLogger) Print(v ...any) {
	fmt.Fprint(l.W, v...)
}

func (l WriterLogger) Printf(format string, v ...any) {
	fmt.Fprintf(l.W, format, v...)
}

func (l WriterLogger) Println(v ...any) {
	fmt.Fprintln(l.W, v...)
}

type StdoutLogger struct{}

func (s StdoutLogger) Print(v ...any) {
	WriterLogger{W: os.Stdout}.Print(v...)
}

func (s StdoutLogger) Printf(format string, v ...any) {
	WriterLogger{W: os.Stdout}.Printf(format, v...)
}

func (s StdoutLogger) Println(v ...any) {
	WriterLogger{W: os.Stdout}.Println(v...)
}

type NullLogger struct{}

func (n NullLogger) Print(v ...any)                 {}
func (n NullLogger) Printf(format string, v ...any) {}
func (n NullLogger) Println(v ...any)               {}
