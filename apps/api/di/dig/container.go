package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/uniforme/apps/api/echo"
	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/core/classroom"
	"github.com/trezcool/uniforme/services/export"
	logsvc "github.com/trezcool/uniforme/services/logger"
	"github.com/trezcool/uniforme/services/registry/fixture"
	"github.com/trezcool/uniforme/services/registry/httpregistry"
	"github.com/trezcool/uniforme/storage/database"
	inmemdb "github.com/trezcool/uniforme/storage/database/inmem"
	sqlxrepos "github.com/trezcool/uniforme/storage/database/sqlx"
)

// EngineMemory selects the in-memory store instead of Postgres.
const EngineMemory = "memory"

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type Stores struct {
	dig.Out
	Repo  classroom.Repository
	Audit core.AuditSink
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, "api", conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, "db", conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newDB returns nil when the in-memory engine is configured.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	if conf.Database.Engine == EngineMemory {
		return nil
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newStores(db *sqlx.DB) (Stores, error) {
	if db == nil {
		mem, err := inmemdb.Open()
		if err != nil {
			return Stores{}, err
		}
		return Stores{Repo: inmemdb.NewClassroomRepository(mem), Audit: inmemdb.NewAuditRepository(mem)}, nil
	}
	return Stores{Repo: sqlxrepos.NewClassroomRepository(db), Audit: sqlxrepos.NewAuditRepository(db)}, nil
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

func newExportService(svc *classroom.Service, audit core.AuditSink, logger core.Logger, conf *core.Config) *export.Service {
	return export.NewService(svc, audit, logger, conf)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newStores))
	must(c.Provide(newRegistry))
	must(c.Provide(validator.New))
	must(c.Provide(func() ut.Translator { return core.NewTranslator() }))
	must(c.Provide(classroom.NewService))
	must(c.Provide(newExportService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
