package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/k0kubun/schemaedit"
	"github.com/k0kubun/schemaedit/database"
	"github.com/k0kubun/schemaedit/database/file"
	"github.com/k0kubun/schemaedit/database/sqlite3"
	"github.com/k0kubun/schemaedit/schema"
	"github.com/k0kubun/schemaedit/util"
)

// version and revision are set via -ldflags
var version = "dev"
var revision = "HEAD"

type cliOptions struct {
	Spatialite   bool
	SnapshotFile string
}

// Return parsed options and the target database file
func parseOptions(args []string) (database.Config, cliOptions, *schemaedit.Options) {
	var opts struct {
		File         string   `short:"f" long:"file" description:"Read the operation plan from the file, rather than stdin" value-name:"plan_file" default:"-"`
		Spatialite   bool     `long:"spatialite" description:"Load mod_spatialite and manage geometry columns (requires -tags cgo_sqlite)"`
		DryRun       bool     `long:"dry-run" description:"Don't run DDLs but just show them"`
		Export       bool     `long:"export" description:"Just dump the current constraints of the plan's tables to stdout"`
		ExportTables []string `long:"export-table" description:"Table to export instead of the plan's tables (can be specified multiple times)" value-name:"table"`
		Config       string   `long:"config" description:"YAML file to specify: create_index_concurrently, disable_ddl_transaction, max_index_name_length, strict" value-name:"config_file"`
		Debug        bool     `long:"debug" description:"Dump the parsed plan to stderr"`
		Help         bool     `long:"help" description:"Show this help"`
		Version      bool     `long:"version" description:"Show this version"`
	}

	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[OPTIONS] [db_file|snapshot.yml] < plan.yml"
	args, err := parser.ParseArgs(args)
	if err != nil {
		log.Fatal(err)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}

	if opts.Version {
		fmt.Printf("%s (%s, %s driver)\n", version, revision, sqlite3.DriverType())
		os.Exit(0)
	}

	config, err := database.ParseGeneratorConfig(opts.Config)
	if err != nil {
		log.Fatal(err)
	}

	options := schemaedit.Options{
		PlanFile:     opts.File,
		DryRun:       opts.DryRun,
		Export:       opts.Export,
		ExportTables: opts.ExportTables,
		Debug:        opts.Debug,
		Config:       config,
	}
	if opts.Export && len(opts.ExportTables) > 0 {
		options.PlanFile = ""
	}

	if len(args) == 0 {
		fmt.Print("No database is specified!\n\n")
		parser.WriteHelp(os.Stdout)
		os.Exit(1)
	} else if len(args) > 1 {
		fmt.Printf("Multiple databases are given: %v\n\n", args)
		parser.WriteHelp(os.Stdout)
		os.Exit(1)
	}

	cli := cliOptions{Spatialite: opts.Spatialite}
	var dbConfig database.Config
	if strings.HasSuffix(args[0], ".yml") || strings.HasSuffix(args[0], ".yaml") {
		cli.SnapshotFile = args[0]
	} else {
		dbConfig.DbName = args[0]
	}
	return dbConfig, cli, &options
}

func main() {
	util.InitSlog()
	config, cli, options := parseOptions(os.Args[1:])

	mode := schema.GeneratorModeSQLite3
	if cli.Spatialite {
		mode = schema.GeneratorModeSpatialite
	}

	var db database.Database
	var err error
	switch {
	case cli.SnapshotFile != "":
		db, err = file.NewDatabase(cli.SnapshotFile, sqlite3.DefaultFeatures)
	case cli.Spatialite:
		db, err = sqlite3.NewSpatialiteDatabase(config)
	default:
		db, err = sqlite3.NewDatabase(config)
	}
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := schemaedit.Run(context.Background(), mode, db, options); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
