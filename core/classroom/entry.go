package classroom

import (
	"context"

	"github.com/trezcool/uniforme/core"
)

// RecordEntry creates or replaces the UniformEntry of a Student.
//
// All three sizes are written every time. Concurrent saves for the same student are last-write-wins.
// The store repeats the checks atomically with the write: an entry is never persisted once the
// classroom has been finalized, nor after the student was moved to a classroom the actor was not
// authorized against.
func (svc *Service) RecordEntry(ctx context.Context, actor core.Actor, re RecordEntry) (UniformEntry, error) {
	if err := re.Validate(svc.validate); err != nil {
		return UniformEntry{}, err
	}

	student, err := svc.repo.GetStudent(ctx, re.StudentID)
	if err != nil {
		return UniformEntry{}, err
	}
	classroom, err := svc.repo.GetClassroom(ctx, student.ClassroomID)
	if err != nil {
		return UniformEntry{}, err
	}
	if err = actor.Authorize(classroom.CenterCode); err != nil {
		return UniformEntry{}, err
	}
	if classroom.IsFinalized() {
		return UniformEntry{}, ErrFinalized
	}

	entry, err := svc.repo.SaveUniformEntry(ctx, classroom.ID, UniformEntry{
		StudentID:  student.ID,
		ShirtSize:  re.ShirtSize,
		BottomSize: re.BottomSize,
		ShoeSize:   re.ShoeSize,
		UpdatedAt:  NowFunc().UTC(),
	})
	if err != nil {
		return UniformEntry{}, err
	}

	svc.emit(ctx, actor, core.AuditSave, map[string]interface{}{
		"student_id":   student.ID,
		"classroom_id": classroom.ID,
	})
	return entry, nil
}

// CompletionRatio is the share of students whose entry is complete; 0 for no students.
func CompletionRatio(students []Student) float64 {
	if len(students) == 0 {
		return 0
	}
	var complete int
	for _, s := range students {
		if s.IsComplete() {
			complete++
		}
	}
	return float64(complete) / float64(len(students))
}
