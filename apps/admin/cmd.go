package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/core/classroom"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf *core.Config
	db   *sql.DB // nil with the in-memory engine
	svc  *classroom.Service
	out  io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  sync -center CODE -grade GRADE [-year YEAR] - load a classroom roster from the registry")
	fmt.Fprintln(cli.out, "  token -actor ID -role ROLE [-center CODE] [-name NAME] - issue a bearer token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	syncCmd := flag.NewFlagSet("sync", flag.ContinueOnError)
	syncCmd.SetOutput(cli.out)
	syncCenter := syncCmd.String("center", "", "The school's center code.")
	syncGrade := syncCmd.String("grade", "", "The classroom's grade.")
	syncYear := syncCmd.Int("year", cli.conf.CollectionYear, "The school year.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenCmd.SetOutput(cli.out)
	tokenActor := tokenCmd.String("actor", "", "The actor's id (token subject).")
	tokenRole := tokenCmd.String("role", "", "TEACHER, CENTER_MANAGER or ADMIN.")
	tokenCenter := tokenCmd.String("center", "", "The actor's center code (ignored for ADMIN).")
	tokenName := tokenCmd.String("name", "", "The actor's display name.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "sync":
		if err := syncCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *syncCenter == "" || *syncGrade == "" {
			syncCmd.Usage()
			return errHelp
		}
		return cli.sync(*syncCenter, *syncGrade, *syncYear)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenActor == "" || *tokenRole == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenActor, *tokenName, *tokenRole, *tokenCenter)
	default:
		cli.printUsage()
		return errHelp
	}
}
