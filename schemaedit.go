package schemaedit

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/k0kubun/pp/v3"
	"github.com/k0kubun/schemaedit/database"
	"github.com/k0kubun/schemaedit/plan"
	"github.com/k0kubun/schemaedit/schema"
)

type Options struct {
	PlanFile string
	DryRun   bool
	Export   bool
	// ExportTables overrides Config.TargetTables and the tables of the
	// plan's models for Export.
	ExportTables    []string
	DumpConcurrency int
	Debug           bool
	Config          database.GeneratorConfig
	// Output receives the statements. Defaults to stdout.
	Output io.Writer
}

// Main function shared by all commands
func Run(ctx context.Context, mode schema.GeneratorMode, db database.Database, options *Options) error {
	out := options.Output
	if out == nil {
		out = os.Stdout
	}

	var p *plan.Plan
	if options.PlanFile != "" {
		buf, err := ReadFile(options.PlanFile)
		if err != nil {
			return fmt.Errorf("failed to read '%s': %w", options.PlanFile, err)
		}
		p, err = plan.Parse([]byte(buf))
		if err != nil {
			return err
		}
		if options.Debug {
			pp.Fprintln(os.Stderr, p.Operations)
		}
	}

	if options.Export {
		return export(ctx, db, p, options, out)
	}
	if p == nil {
		return fmt.Errorf("no plan file is given")
	}

	// Without a connection statements can only be collected.
	collect := db.DB() == nil
	header := "-- Apply --"
	if options.DryRun || collect {
		header = "-- dry run --"
	}
	if options.DryRun && !collect {
		dryRun, err := database.NewDryRunDatabase(db)
		if err != nil {
			return err
		}
		// The wrapped database belongs to the caller.
		defer dryRun.DB().Close()
		db = dryRun
	}

	logger := &headerLogger{header: header, logger: database.WriterLogger{W: out}}
	ed, err := schema.NewEditor(mode, db, schema.Options{
		Collect: collect,
		Config:  options.Config,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	if err := ed.Run(ctx, func(ed *schema.Editor) error {
		return p.Apply(ctx, ed)
	}); err != nil {
		return err
	}

	for _, stmt := range ed.Collected() {
		logger.Println(stmt)
	}
	if !logger.printed {
		fmt.Fprintln(out, "-- Nothing is modified --")
	}
	return nil
}

func export(ctx context.Context, db database.Database, p *plan.Plan, options *Options, out io.Writer) error {
	tables := options.ExportTables
	if len(tables) == 0 {
		tables = options.Config.TargetTables
	}
	if len(tables) == 0 && p != nil {
		for _, m := range p.Models {
			tables = append(tables, m.Table)
		}
		sort.Strings(tables)
	}
	if len(tables) == 0 {
		fmt.Fprintln(out, "-- No table is given --")
		return nil
	}

	snapshot, err := database.ExportConstraints(ctx, db, tables, options.DumpConcurrency)
	if err != nil {
		return err
	}
	buf, err := database.MarshalSnapshot(snapshot)
	if err != nil {
		return err
	}
	fmt.Fprint(out, buf)
	return nil
}

func ReadFile(filepath string) (string, error) {
	var err error
	var buf []byte

	if filepath == "-" {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			return "", fmt.Errorf("stdin is not piped")
		}

		buf, err = io.ReadAll(os.Stdin)
	} else {
		buf, err = os.ReadFile(filepath)
	}

	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// headerLogger prints a header before the first statement.
type headerLogger struct {
	header  string
	logger  database.Logger
	printed bool
}

func (l *headerLogger) printHeader() {
	if !l.printed {
		l.logger.Println(l.header)
		l.printed = true
	}
}

func (l *headerLogger) Print(v ...any) {
	l.printHeader()
	l.logger.Print(v...)
}

func (l *headerLogger) Printf(format string, v ...any) {
	l.printHeader()
	l.logger.Printf(format, v...)
}

func (l *headerLogger) Println(v ...any) {
	l.printHeader()
	l.logger.Println(v...)
}
