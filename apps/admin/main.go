package main

import (
	"database/sql"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/core/classroom"
	logsvc "github.com/trezcool/uniforme/services/logger"
	"github.com/trezcool/uniforme/services/registry/fixture"
	"github.com/trezcool/uniforme/services/registry/httpregistry"
	"github.com/trezcool/uniforme/storage/database"
	inmemdb "github.com/trezcool/uniforme/storage/database/inmem"
	sqlxrepos "github.com/trezcool/uniforme/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		panic(err)
	}
	rbLogger := logsvc.NewRollbarLogger(os.Stderr, "admin", conf)
	rbLogger.Enable(!conf.Debug)
	logger = rbLogger

	cli := &commandLine{conf: conf, out: os.Stdout}
	closeDB := func() {}
	if len(os.Args) > 1 && os.Args[1] != "token" { // token only needs the config
		closeDB = setUp(cli)
	}
	defer closeDB()

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		closeDB()
		os.Exit(1)
	}
}

// setUp wires the store & classroom service into cli and returns the store's closer.
func setUp(cli *commandLine) func() {
	conf := cli.conf
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	classroom.InitValidators(validate, translator)

	registry, err := newRegistry(conf)
	errAndDie(err)

	var (
		db    *sql.DB
		repo  classroom.Repository
		audit core.AuditSink
	)
	closeDB := func() {}
	if conf.Database.Engine == "memory" {
		mem, err := inmemdb.Open()
		errAndDie(err)
		repo, audit = inmemdb.NewClassroomRepository(mem), inmemdb.NewAuditRepository(mem)
	} else {
		sqlxDB, err := database.Open(conf)
		errAndDie(err)
		db = sqlxDB.DB
		repo, audit = sqlxrepos.NewClassroomRepository(sqlxDB), sqlxrepos.NewAuditRepository(sqlxDB)
		closeDB = func() { _ = sqlxDB.Close() }
	}

	cli.db = db
	cli.svc = classroom.NewService(repo, registry, audit, logger, validate, conf)
	return closeDB
}

func newRegistry(conf *core.Config) (classroom.Registry, error) {
	if conf.Registry.FixturePath != "" {
		return fixture.Open(conf.Registry.FixturePath)
	}
	if conf.Registry.BaseURL == "" {
		return nil, errors.New("registry base URL or fixture path is required")
	}
	return httpregistry.New(conf), nil
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal("setting up", err)
	}
}
