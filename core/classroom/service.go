package classroom

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/uniforme/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrClassroomNotFound = errors.Wrap(core.ErrNotFound, "classroom not found")
	ErrStudentNotFound   = errors.Wrap(core.ErrNotFound, "student not found")
	ErrSchoolNotFound    = errors.Wrap(core.ErrNotFound, "school not found")
	ErrFinalized         = errors.Wrap(core.ErrStateConflict, "classroom is finalized")
	ErrAlreadyFinalized  = errors.Wrap(core.ErrStateConflict, "classroom is already finalized")
	ErrStudentMoved      = errors.Wrap(core.ErrStateConflict, "student changed classroom")

	errCenterRequired = errors.New("center code is required")
	errInvalidRecord  = errors.New("invalid roster record")
)

type (
	// Registry is the external authority on schools and their rosters.
	// Implementations must be idempotent and safe to retry; failures are reported
	// as core.ErrUpstreamUnavailable.
	Registry interface {
		// FetchSchool returns ok=false if the center is unknown.
		FetchSchool(ctx context.Context, centerCode string) (school School, ok bool, err error)
		FetchRoster(ctx context.Context, centerCode, grade string, year int) ([]RosterRecord, error)
	}

	// Repository is the persistent store. Every method is atomic on its own.
	Repository interface {
		UpsertSchool(ctx context.Context, school School) (School, error)
		GetSchool(ctx context.Context, centerCode string) (School, error)
		QuerySchools(ctx context.Context) ([]School, error) // ordered by name

		// GetOrCreateClassroom returns the Classroom for key, creating it as DRAFT if absent.
		// An existing Classroom is returned untouched.
		GetOrCreateClassroom(ctx context.Context, key ClassroomKey) (Classroom, error)
		GetClassroom(ctx context.Context, id string) (Classroom, error)
		QueryClassrooms(ctx context.Context, filter ClassroomFilter) ([]Classroom, error)
		// FinalizeClassroom moves a DRAFT Classroom to FINALIZED.
		// Fails with ErrClassroomNotFound or ErrAlreadyFinalized.
		FinalizeClassroom(ctx context.Context, id string, at time.Time) (Classroom, error)

		// UpsertStudentByMinedID creates the Student identified by rec.MinedStudentID in classroomID,
		// or updates its details and moves it to classroomID. Its UniformEntry is left untouched.
		UpsertStudentByMinedID(ctx context.Context, classroomID string, rec RosterRecord) (Student, error)
		CreateStudent(ctx context.Context, classroomID string, rec RosterRecord) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		// QueryStudents returns the Students of the given Classrooms, with their entries, ordered by name.
		QueryStudents(ctx context.Context, classroomIDs ...string) ([]Student, error)

		// SaveUniformEntry creates or fully replaces the student's entry. The student's Classroom is checked
		// in the same atomic step: it must still be classroomID (else ErrStudentMoved) and be DRAFT
		// (else ErrFinalized).
		SaveUniformEntry(ctx context.Context, classroomID string, entry UniformEntry) (UniformEntry, error)
	}

	Service struct {
		repo        Repository
		registry    Registry
		audit       core.AuditSink
		logger      core.Logger
		validate    *validator.Validate
		defaultYear int
	}
)

func NewService(
	repo Repository,
	registry Registry,
	audit core.AuditSink,
	logger core.Logger,
	validate *validator.Validate,
	conf *core.Config,
) *Service {
	return &Service{
		repo:        repo,
		registry:    registry,
		audit:       audit,
		logger:      logger,
		validate:    validate,
		defaultYear: conf.CollectionYear,
	}
}

func (svc *Service) emit(ctx context.Context, actor core.Actor, action string, payload map[string]interface{}) {
	core.EmitAudit(ctx, svc.audit, svc.logger, actor, action, payload)
}

// ListSchools returns every known School. ADMIN only.
func (svc *Service) ListSchools(ctx context.Context, actor core.Actor) ([]School, error) {
	if !actor.IsAdmin() {
		return nil, errors.Wrap(core.ErrPermissionDenied, "listing schools")
	}
	schools, err := svc.repo.QuerySchools(ctx)
	return schools, errors.Wrap(err, "querying schools")
}

// GetSchool returns the locally known School for centerCode.
func (svc *Service) GetSchool(ctx context.Context, actor core.Actor, centerCode string) (School, error) {
	if err := actor.Authorize(centerCode); err != nil {
		return School{}, err
	}
	return svc.repo.GetSchool(ctx, centerCode)
}
