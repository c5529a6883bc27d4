package classroom

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/uniforme/core"
)

// GetClassroom returns a Classroom along with its Students.
func (svc *Service) GetClassroom(ctx context.Context, actor core.Actor, id string) (ClassroomRoster, error) {
	classroom, err := svc.repo.GetClassroom(ctx, core.CleanString(id))
	if err != nil {
		return ClassroomRoster{}, err
	}
	if err = actor.Authorize(classroom.CenterCode); err != nil {
		return ClassroomRoster{}, err
	}
	students, err := svc.repo.QueryStudents(ctx, classroom.ID)
	if err != nil {
		return ClassroomRoster{}, errors.Wrap(err, "querying students")
	}
	return ClassroomRoster{Classroom: classroom, Students: students}, nil
}

// Finalize locks a DRAFT Classroom. There is no way back: finalizing an already FINALIZED
// Classroom fails with ErrAlreadyFinalized rather than succeeding silently.
func (svc *Service) Finalize(ctx context.Context, actor core.Actor, id string) (Classroom, error) {
	id = core.CleanString(id)
	if id == "" {
		return Classroom{}, core.NewValidationError(nil, core.FieldError{Field: "classroom_id", Error: "this field is required"})
	}

	classroom, err := svc.repo.GetClassroom(ctx, id)
	if err != nil {
		return Classroom{}, err
	}
	if err = actor.Authorize(classroom.CenterCode); err != nil {
		return Classroom{}, err
	}
	if classroom.IsFinalized() {
		return Classroom{}, ErrAlreadyFinalized
	}

	// the store re-checks the status: a concurrent finalizer may have won in between
	classroom, err = svc.repo.FinalizeClassroom(ctx, id, NowFunc().UTC())
	if err != nil {
		return Classroom{}, err
	}

	svc.emit(ctx, actor, core.AuditFinalize, map[string]interface{}{
		"classroom_id": classroom.ID,
		"center_code":  classroom.CenterCode,
	})
	return classroom, nil
}
