package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/k0kubun/schemaedit"
	"github.com/k0kubun/schemaedit/database"
	"github.com/k0kubun/schemaedit/database/file"
	"github.com/k0kubun/schemaedit/database/mysql"
	"github.com/k0kubun/schemaedit/schema"
	"github.com/k0kubun/schemaedit/util"
	"golang.org/x/term"
)

// version and revision are set via -ldflags
var version = "dev"
var revision = "HEAD"

// Return parsed options and the snapshot file, if the target is one
func parseOptions(args []string) (database.Config, string, *schemaedit.Options) {
	var opts struct {
		User                  string   `short:"u" long:"user" description:"MySQL user name" value-name:"user_name" default:"root"`
		Password              string   `short:"p" long:"password" description:"MySQL user password, overridden by $MYSQL_PWD" value-name:"password"`
		Host                  string   `short:"h" long:"host" description:"Host to connect to the MySQL server" value-name:"host_name" default:"127.0.0.1"`
		Port                  uint     `short:"P" long:"port" description:"Port used for the connection" value-name:"port_num" default:"3306"`
		Socket                string   `short:"S" long:"socket" description:"The socket file to use for connection" value-name:"socket"`
		SslMode               string   `long:"ssl-mode" description:"SSL connection mode(PREFERRED,REQUIRED,DISABLED)." value-name:"ssl_mode" default:"PREFERRED"`
		SslCa                 string   `long:"ssl-ca" description:"File that contains list of trusted SSL Certificate Authorities" value-name:"ssl_ca"`
		Prompt                bool     `long:"password-prompt" description:"Force MySQL user password prompt"`
		EnableCleartextPlugin bool     `long:"enable-cleartext-plugin" description:"Enable/disable the clear text authentication plugin"`
		File                  string   `short:"f" long:"file" description:"Read the operation plan from the file, rather than stdin" value-name:"plan_file" default:"-"`
		DryRun                bool     `long:"dry-run" description:"Don't run DDLs but just show them"`
		Export                bool     `long:"export" description:"Just dump the current constraints of the plan's tables to stdout"`
		ExportTables          []string `long:"export-table" description:"Table to export instead of the plan's tables (can be specified multiple times)" value-name:"table"`
		DumpConcurrency       int      `long:"dump-concurrency" description:"Number of tables introspected in parallel by --export" value-name:"num" default:"4"`
		Config                string   `long:"config" description:"YAML file to specify: create_index_concurrently, disable_ddl_transaction, max_index_name_length, strict" value-name:"config_file"`
		Debug                 bool     `long:"debug" description:"Dump the parsed plan to stderr"`
		Help                  bool     `long:"help" description:"Show this help"`
		Version               bool     `long:"version" description:"Show this version"`
	}

	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[OPTIONS] [db_name|snapshot.yml] < plan.yml"
	args, err := parser.ParseArgs(args)
	if err != nil {
		log.Fatal(err)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}

	if opts.Version {
		fmt.Printf("%s (%s)\n", version, revision)
		os.Exit(0)
	}

	config, err := database.ParseGeneratorConfig(opts.Config)
	if err != nil {
		log.Fatal(err)
	}

	options := schemaedit.Options{
		PlanFile:        opts.File,
		DryRun:          opts.DryRun,
		Export:          opts.Export,
		ExportTables:    opts.ExportTables,
		DumpConcurrency: opts.DumpConcurrency,
		Debug:           opts.Debug,
		Config:          config,
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
	var databaseName, snapshotFile string
	if strings.HasSuffix(args[0], ".yml") || strings.HasSuffix(args[0], ".yaml") {
		snapshotFile = args[0]
	} else {
		databaseName = args[0]
	}

	switch strings.ToLower(opts.SslMode) {
	case "disabled":
		opts.SslMode = "false"
	case "preferred":
		opts.SslMode = "preferred"
	case "required":
		opts.SslMode = "true"
	case "custom":
		opts.SslMode = "custom"
	default:
		fmt.Printf("Wrong value for ssl-mode is given: %v\n\n", opts.SslMode)
		parser.WriteHelp(os.Stdout)
		os.Exit(1)
	}

	password, ok := os.LookupEnv("MYSQL_PWD")
	if !ok {
		password = opts.Password
	}

	if opts.Prompt {
		fmt.Printf("Enter Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println()
		password = string(pass)
	}

	dbConfig := database.Config{
		DbName:                     databaseName,
		User:                       opts.User,
		Password:                   password,
		Host:                       opts.Host,
		Port:                       int(opts.Port),
		Socket:                     opts.Socket,
		MySQLEnableCleartextPlugin: opts.EnableCleartextPlugin,
		SslMode:                    opts.SslMode,
		SslCa:                      opts.SslCa,
	}
	return dbConfig, snapshotFile, &options
}

func main() {
	util.InitSlog()
	config, snapshotFile, options := parseOptions(os.Args[1:])

	var db database.Database
	if snapshotFile != "" {
		var err error
		db, err = file.NewDatabase(snapshotFile, mysql.DefaultFeatures)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		var err error
		db, err = mysql.NewDatabase(config)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
	}

	if err := schemaedit.Run(context.Background(), schema.GeneratorModeMysql, db, options); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
