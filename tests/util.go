package testutil

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/core/classroom"
	logsvc "github.com/trezcool/uniforme/services/logger"
	"github.com/trezcool/uniforme/services/registry/fixture"
	"github.com/trezcool/uniforme/storage/database/inmem"
)

type Env struct {
	Conf     *core.Config
	Validate *validator.Validate
	DB       *inmemdb.DB
	Repo     classroom.Repository
	Audit    *inmemdb.AuditLog
	Registry *fixture.Registry
	Logger   core.Logger
	Svc      *classroom.Service
}

func Config() *core.Config {
	conf := &core.Config{
		Env:            "TEST",
		TestMode:       true,
		AppName:        "Uniforme",
		SecretKey:      "test-secret",
		CollectionYear: 2026,
	}
	conf.Server.JWTIssuer = "uniforme-test"
	conf.Server.JWTExpirationDelta = time.Hour
	return conf
}

func NewValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	classroom.InitValidators(validate, translator)
	return validate
}

func NewLogger() core.Logger {
	logger := logsvc.NewRollbarLogger(io.Discard, "test", Config())
	logger.Enable(false)
	return logger
}

// NewEnv wires a classroom.Service over the in-memory store and an empty fixture registry.
func NewEnv(t *testing.T) *Env {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("NewEnv() failed: %v", err)
	}
	reg, err := fixture.Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("NewEnv() failed: %v", err)
	}

	env := &Env{
		Conf:     Config(),
		Validate: NewValidator(),
		DB:       db,
		Repo:     inmemdb.NewClassroomRepository(db),
		Audit:    inmemdb.NewAuditRepository(db),
		Registry: reg,
		Logger:   NewLogger(),
	}
	env.Svc = classroom.NewService(env.Repo, env.Registry, env.Audit, env.Logger, env.Validate, env.Conf)
	return env
}

func Teacher(id, centerCode string) core.Actor {
	return core.Actor{ID: id, Name: id, Role: core.RoleTeacher, CenterCode: centerCode}
}

func Manager(id, centerCode string) core.Actor {
	return core.Actor{ID: id, Name: id, Role: core.RoleCenterManager, CenterCode: centerCode}
}

func Admin(id string) core.Actor {
	return core.Actor{ID: id, Name: id, Role: core.RoleAdmin}
}

func Student(minedID, name string, gender classroom.Gender) classroom.RosterRecord {
	return classroom.RosterRecord{MinedStudentID: minedID, Name: name, Gender: gender}
}

// LoadClassroom registers the school & roster in the fixture registry and loads it as ADMIN.
func (env *Env) LoadClassroom(t *testing.T, centerCode, grade string, records ...classroom.RosterRecord) classroom.Roster {
	env.Registry.SetSchool(classroom.School{CenterCode: centerCode, Name: "Escuela " + centerCode})
	env.Registry.SetRoster(classroom.ClassroomKey{CenterCode: centerCode, Grade: grade, Year: env.Conf.CollectionYear}, records)

	roster, err := env.Svc.LoadClassroom(context.Background(), Admin("admin"), classroom.LoadClassroom{
		CenterCode: centerCode,
		Grade:      grade,
		Year:       env.Conf.CollectionYear,
	})
	if err != nil {
		t.Fatalf("LoadClassroom() failed: %v", err)
	}
	return roster
}

// RecordEntry saves sizes for studentID as ADMIN.
func (env *Env) RecordEntry(t *testing.T, studentID, shirt, bottom, shoes string) classroom.UniformEntry {
	entry, err := env.Svc.RecordEntry(context.Background(), Admin("admin"), classroom.RecordEntry{
		StudentID:  studentID,
		ShirtSize:  shirt,
		BottomSize: bottom,
		ShoeSize:   shoes,
	})
	if err != nil {
		t.Fatalf("RecordEntry() failed: %v", err)
	}
	return entry
}
