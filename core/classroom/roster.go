package classroom

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/uniforme/core"
)

// LoadClassroom synchronizes the roster of the classroom identified by `lc` with the Registry
// and returns its current content.
//
// The registry is queried before anything is written, so an unreachable registry leaves the
// store untouched. Once writing starts, each write is an independent idempotent upsert: a failure
// midway leaves the already applied records in place and the whole load can be re-run.
func (svc *Service) LoadClassroom(ctx context.Context, actor core.Actor, lc LoadClassroom) (Roster, error) {
	if err := lc.Validate(svc.validate, actor); err != nil {
		return Roster{}, err
	}
	if err := actor.Authorize(lc.CenterCode); err != nil {
		return Roster{}, err
	}

	school, ok, err := svc.registry.FetchSchool(ctx, lc.CenterCode)
	if err != nil {
		return Roster{}, errors.Wrapf(err, "fetching school %s", lc.CenterCode)
	}
	if !ok {
		return Roster{}, errors.Wrap(ErrSchoolNotFound, lc.CenterCode)
	}
	records, err := svc.registry.FetchRoster(ctx, lc.CenterCode, lc.Grade, lc.Year)
	if err != nil {
		return Roster{}, errors.Wrapf(err, "fetching roster %+v", lc.Key())
	}

	if school, err = svc.repo.UpsertSchool(ctx, school); err != nil {
		return Roster{}, errors.Wrap(err, "upserting school")
	}
	cr, err := svc.Reconcile(ctx, lc.Key(), records)
	if err != nil {
		return Roster{}, err
	}
	return Roster{School: school, Classroom: cr.Classroom, Students: cr.Students}, nil
}

// Reconcile merges `records` into the classroom identified by `key`:
//   - the classroom is created as DRAFT if absent, otherwise left as is (whatever its status);
//   - records with an external id upsert the Student holding that id, moving it to this classroom
//     if needed; its UniformEntry is never touched;
//   - records without an external id always create a new Student, so re-applying them duplicates
//     those students. There is no reliable key to match them on.
//
// It returns every Student of the classroom, ordered by name.
func (svc *Service) Reconcile(ctx context.Context, key ClassroomKey, records []RosterRecord) (ClassroomRoster, error) {
	cleaned := make([]RosterRecord, 0, len(records))
	for i, rec := range records {
		rec = cleanRecord(rec)
		if err := svc.validate.Struct(rec); err != nil {
			return ClassroomRoster{}, core.NewValidationError(
				errors.Wrapf(err, "roster record %d", i),
				core.FieldError{Field: fmt.Sprintf("roster[%d]", i), Error: errInvalidRecord.Error()},
			)
		}
		cleaned = append(cleaned, rec)
	}

	classroom, err := svc.repo.GetOrCreateClassroom(ctx, key)
	if err != nil {
		return ClassroomRoster{}, errors.Wrapf(err, "getting or creating classroom %+v", key)
	}

	var created, updated int
	for _, rec := range cleaned {
		if rec.MinedStudentID != "" {
			if _, err = svc.repo.UpsertStudentByMinedID(ctx, classroom.ID, rec); err != nil {
				return ClassroomRoster{}, errors.Wrapf(err, "upserting student %s", rec.MinedStudentID)
			}
			updated++
		} else {
			if _, err = svc.repo.CreateStudent(ctx, classroom.ID, rec); err != nil {
				return ClassroomRoster{}, errors.Wrapf(err, "creating student %q", rec.Name)
			}
			created++
		}
	}
	if svc.logger != nil {
		svc.logger.Debug("roster reconciled", map[string]interface{}{
			"classroom_id": classroom.ID,
			"matched":      updated,
			"unmatched":    created,
		})
	}

	students, err := svc.repo.QueryStudents(ctx, classroom.ID)
	if err != nil {
		return ClassroomRoster{}, errors.Wrap(err, "querying students")
	}
	return ClassroomRoster{Classroom: classroom, Students: students}, nil
}

func cleanRecord(rec RosterRecord) RosterRecord {
	rec.MinedStudentID = core.CleanString(rec.MinedStudentID)
	rec.Name = core.CleanString(rec.Name)
	if g, ok := ParseGender(string(rec.Gender)); ok {
		rec.Gender = g
	}
	return rec
}
