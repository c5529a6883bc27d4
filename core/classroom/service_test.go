package classroom_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/core/classroom"
	"github.com/trezcool/uniforme/tests"
)

var ctx = context.Background()

func byName(t *testing.T, students []classroom.Student, name string) classroom.Student {
	for _, s := range students {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("student %q not found", name)
	return classroom.Student{}
}

func TestService_LoadClassroom(t *testing.T) {
	env := testutil.NewEnv(t)
	roster := env.LoadClassroom(t, "001", "3",
		testutil.Student("M2", "Zoe", classroom.GenderFemale),
		testutil.Student("M1", " Ana ", "femenino"),
		testutil.Student("", "Luis", classroom.GenderMale),
	)

	assert.Equal(t, "Escuela 001", roster.School.Name)
	assert.Equal(t, classroom.StatusDraft, roster.Classroom.Status)
	assert.Equal(t, classroom.ClassroomKey{CenterCode: "001", Grade: "3", Year: 2026}, roster.Classroom.Key())
	require.Len(t, roster.Students, 3)
	assert.Equal(t, []string{"Ana", "Luis", "Zoe"}, []string{roster.Students[0].Name, roster.Students[1].Name, roster.Students[2].Name})
	assert.Equal(t, classroom.GenderFemale, roster.Students[0].Gender)
	assert.Nil(t, roster.Students[1].MinedStudentID)
}

func TestService_LoadClassroom_Validation(t *testing.T) {
	env := testutil.NewEnv(t)

	tests := []struct {
		name  string
		actor core.Actor
		lc    classroom.LoadClassroom
	}{
		{"missing grade", testutil.Admin("a"), classroom.LoadClassroom{CenterCode: "001", Year: 2026}},
		{"missing year", testutil.Admin("a"), classroom.LoadClassroom{CenterCode: "001", Grade: "3"}},
		{"admin without center", testutil.Admin("a"), classroom.LoadClassroom{Grade: "3", Year: 2026}},
		{"teacher without center", testutil.Teacher("t", ""), classroom.LoadClassroom{CenterCode: "001", Grade: "3", Year: 2026}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Svc.LoadClassroom(ctx, tc.actor, tc.lc)
			require.Error(t, err)
			assert.True(t, core.IsValidation(err) || isValidatorErr(err), "got %v", err)
		})
	}
}

func isValidatorErr(err error) bool {
	_, ok := errors.Cause(err).(validator.ValidationErrors)
	return ok
}

func TestService_LoadClassroom_InvalidRecord(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Registry.SetSchool(classroom.School{CenterCode: "001"})
	env.Registry.SetRoster(classroom.ClassroomKey{CenterCode: "001", Grade: "3", Year: 2026}, []classroom.RosterRecord{
		testutil.Student("M1", "Ana", classroom.GenderFemale),
		testutil.Student("M2", "Beto", "X"),
	})

	_, err := env.Svc.LoadClassroom(ctx, testutil.Admin("a"), classroom.LoadClassroom{CenterCode: "001", Grade: "3", Year: 2026})
	require.True(t, core.IsValidation(err), "got %v", err)

	rosters, err := env.Svc.QueryRosters(ctx, testutil.Admin("a"), classroom.ClassroomFilter{})
	require.NoError(t, err)
	assert.Empty(t, rosters, "nothing is written")
}

func TestService_LoadClassroom_CenterResolution(t *testing.T) {
	env := testutil.NewEnv(t)
	env.LoadClassroom(t, "001", "3", testutil.Student("M1", "Ana", classroom.GenderFemale))
	env.LoadClassroom(t, "002", "3", testutil.Student("M9", "Nico", classroom.GenderMale))

	// the supplied center is ignored for non-ADMIN actors
	roster, err := env.Svc.LoadClassroom(ctx, testutil.Teacher("t", "001"), classroom.LoadClassroom{
		CenterCode: "002",
		Grade:      "3",
		Year:       2026,
	})
	require.NoError(t, err)
	assert.Equal(t, "001", roster.Classroom.CenterCode)
}

func TestService_LoadClassroom_UnknownSchool(t *testing.T) {
	env := testutil.NewEnv(t)
	_, err := env.Svc.LoadClassroom(ctx, testutil.Admin("a"), classroom.LoadClassroom{CenterCode: "404", Grade: "1", Year: 2026})
	assert.Equal(t, core.ErrNotFound, errors.Cause(err))
}

func TestService_LoadClassroom_Upstream(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Registry.SetSchool(classroom.School{CenterCode: "001"})
	env.Registry.FailNext()

	_, err := env.Svc.LoadClassroom(ctx, testutil.Admin("a"), classroom.LoadClassroom{CenterCode: "001", Grade: "1", Year: 2026})
	assert.Equal(t, core.ErrUpstreamUnavailable, errors.Cause(err))

	rosters, err := env.Svc.QueryRosters(ctx, testutil.Admin("a"), classroom.ClassroomFilter{})
	require.NoError(t, err)
	assert.Empty(t, rosters, "no partial classroom")
}

func TestService_Reconcile_Idempotent(t *testing.T) {
	env := testutil.NewEnv(t)
	first := env.LoadClassroom(t, "001", "3",
		testutil.Student("M1", "Ana", classroom.GenderFemale),
		testutil.Student("M2", "Beto", classroom.GenderMale),
	)
	ana := byName(t, first.Students, "Ana")
	env.RecordEntry(t, ana.ID, "10", "12", "32")

	// re-load with a renamed student
	second := env.LoadClassroom(t, "001", "3",
		testutil.Student("M1", "Ana María", classroom.GenderFemale),
		testutil.Student("M2", "Beto", classroom.GenderMale),
	)

	assert.Equal(t, first.Classroom.ID, second.Classroom.ID)
	require.Len(t, second.Students, 2)
	renamed := byName(t, second.Students, "Ana María")
	assert.Equal(t, ana.ID, renamed.ID)
	require.NotNil(t, renamed.UniformEntry, "entry survives reconciliation")
	assert.Equal(t, "12", renamed.UniformEntry.BottomSize)
}

func TestService_Reconcile_UnmatchedDuplicates(t *testing.T) {
	env := testutil.NewEnv(t)
	records := []classroom.RosterRecord{testutil.Student("", "Luis", classroom.GenderMale)}

	env.LoadClassroom(t, "001", "3", records...)
	roster := env.LoadClassroom(t, "001", "3", records...)

	assert.Len(t, roster.Students, 2, "records without external id are not matched")
}

func TestService_Reconcile_Reassign(t *testing.T) {
	env := testutil.NewEnv(t)
	third := env.LoadClassroom(t, "001", "3", testutil.Student("M1", "Ana", classroom.GenderFemale))
	ana := third.Students[0]
	env.RecordEntry(t, ana.ID, "10", "10", "30")

	fourth := env.LoadClassroom(t, "001", "4", testutil.Student("M1", "Ana", classroom.GenderFemale))
	require.Len(t, fourth.Students, 1)
	assert.Equal(t, ana.ID, fourth.Students[0].ID)
	assert.Equal(t, fourth.Classroom.ID, fourth.Students[0].ClassroomID)
	assert.NotNil(t, fourth.Students[0].UniformEntry)

	cr, err := env.Svc.GetClassroom(ctx, testutil.Admin("a"), third.Classroom.ID)
	require.NoError(t, err)
	assert.Empty(t, cr.Students)
}

func TestService_Reconcile_KeepsFinalized(t *testing.T) {
	env := testutil.NewEnv(t)
	roster := env.LoadClassroom(t, "001", "3", testutil.Student("M1", "Ana", classroom.GenderFemale))
	_, err := env.Svc.Finalize(ctx, testutil.Admin("a"), roster.Classroom.ID)
	require.NoError(t, err)

	roster = env.LoadClassroom(t, "001", "3", testutil.Student("M1", "Ana", classroom.GenderFemale))
	assert.Equal(t, classroom.StatusFinalized, roster.Classroom.Status)
}

func TestService_Finalize(t *testing.T) {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	classroom.NowFunc = func() time.Time { return now }
	defer func() { classroom.NowFunc = time.Now }()

	env := testutil.NewEnv(t)
	roster := env.LoadClassroom(t, "001", "3", testutil.Student("M1", "Ana", classroom.GenderFemale))
	ana := roster.Students[0]
	before := env.RecordEntry(t, ana.ID, "10", "12", "32")

	_, err := env.Svc.Finalize(ctx, testutil.Teacher("t2", "002"), roster.Classroom.ID)
	assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))

	_, err = env.Svc.Finalize(ctx, testutil.Teacher("t1", "001"), "nope")
	assert.Equal(t, core.ErrNotFound, errors.Cause(err))

	c, err := env.Svc.Finalize(ctx, testutil.Manager("m1", "001"), roster.Classroom.ID)
	require.NoError(t, err)
	assert.Equal(t, classroom.StatusFinalized, c.Status)
	require.NotNil(t, c.FinalizedAt)
	assert.Equal(t, now, *c.FinalizedAt)

	events := env.Audit.Events(core.AuditFinalize)
	require.Len(t, events, 1)
	assert.Equal(t, "m1", events[0].ActorID)
	assert.Equal(t, map[string]interface{}{"classroom_id": c.ID, "center_code": "001"}, events[0].Payload)

	// one-way
	_, err = env.Svc.Finalize(ctx, testutil.Admin("a"), roster.Classroom.ID)
	assert.Equal(t, core.ErrStateConflict, errors.Cause(err))

	// entries are frozen
	now = now.Add(time.Hour)
	_, err = env.Svc.RecordEntry(ctx, testutil.Admin("a"), classroom.RecordEntry{
		StudentID: ana.ID, ShirtSize: "14", BottomSize: "14", ShoeSize: "34",
	})
	assert.Equal(t, core.ErrStateConflict, errors.Cause(err))

	cr, err := env.Svc.GetClassroom(ctx, testutil.Admin("a"), roster.Classroom.ID)
	require.NoError(t, err)
	require.Len(t, cr.Students, 1)
	assert.Equal(t, &before, cr.Students[0].UniformEntry)
}

func TestService_RecordEntry(t *testing.T) {
	env := testutil.NewEnv(t)
	roster := env.LoadClassroom(t, "001", "3", testutil.Student("M1", "Ana", classroom.GenderFemale))
	ana := roster.Students[0]

	t.Run("other center is denied", func(t *testing.T) {
		_, err := env.Svc.RecordEntry(ctx, testutil.Teacher("t2", "002"), classroom.RecordEntry{StudentID: ana.ID, ShirtSize: "10"})
		assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := env.Svc.RecordEntry(ctx, testutil.Admin("a"), classroom.RecordEntry{StudentID: "ghost"})
		assert.Equal(t, core.ErrNotFound, errors.Cause(err))
	})

	t.Run("full replace", func(t *testing.T) {
		actor := testutil.Teacher("t1", "001")
		_, err := env.Svc.RecordEntry(ctx, actor, classroom.RecordEntry{StudentID: ana.ID, ShirtSize: " 10 ", BottomSize: "12", ShoeSize: "32"})
		require.NoError(t, err)

		entry, err := env.Svc.RecordEntry(ctx, actor, classroom.RecordEntry{StudentID: ana.ID, ShirtSize: "12"})
		require.NoError(t, err)
		assert.Equal(t, "12", entry.ShirtSize)
		assert.Empty(t, entry.BottomSize)
		assert.Empty(t, entry.ShoeSize)

		events := env.Audit.Events(core.AuditSave)
		require.Len(t, events, 2)
		assert.Equal(t, map[string]interface{}{"student_id": ana.ID, "classroom_id": roster.Classroom.ID}, events[1].Payload)
	})
}

// movingRepository reassigns a student to another classroom right before its entry is written,
// the way a concurrent roster load would.
type movingRepository struct {
	classroom.Repository
	to  string
	rec classroom.RosterRecord
}

func (repo movingRepository) SaveUniformEntry(ctx context.Context, classroomID string, entry classroom.UniformEntry) (classroom.UniformEntry, error) {
	if _, err := repo.UpsertStudentByMinedID(ctx, repo.to, repo.rec); err != nil {
		return classroom.UniformEntry{}, err
	}
	return repo.Repository.SaveUniformEntry(ctx, classroomID, entry)
}

func TestService_RecordEntry_StudentMoved(t *testing.T) {
	env := testutil.NewEnv(t)
	anaRec := testutil.Student("M1", "Ana", classroom.GenderFemale)
	r1 := env.LoadClassroom(t, "001", "3", anaRec)
	r2 := env.LoadClassroom(t, "002", "3", testutil.Student("M2", "Beto", classroom.GenderMale))
	ana := r1.Students[0]

	repo := movingRepository{Repository: env.Repo, to: r2.Classroom.ID, rec: anaRec}
	svc := classroom.NewService(repo, env.Registry, env.Audit, env.Logger, env.Validate, env.Conf)

	_, err := svc.RecordEntry(ctx, testutil.Teacher("t1", "001"), classroom.RecordEntry{
		StudentID: ana.ID, ShirtSize: "10", BottomSize: "12", ShoeSize: "32",
	})
	assert.Equal(t, classroom.ErrStudentMoved, err)
	assert.Equal(t, core.ErrStateConflict, errors.Cause(err))

	moved, err := env.Repo.GetStudent(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, r2.Classroom.ID, moved.ClassroomID)
	assert.Nil(t, moved.UniformEntry)
	assert.Empty(t, env.Audit.Events(core.AuditSave))

	// the actor of the new center can write it
	_, err = env.Svc.RecordEntry(ctx, testutil.Teacher("t2", "002"), classroom.RecordEntry{StudentID: ana.ID, ShirtSize: "10"})
	require.NoError(t, err)
}

func TestService_RecordEntry_FinalizeRace(t *testing.T) {
	env := testutil.NewEnv(t)
	roster := env.LoadClassroom(t, "001", "3",
		testutil.Student("M1", "Ana", classroom.GenderFemale),
		testutil.Student("M2", "Beto", classroom.GenderMale),
		testutil.Student("M3", "Caro", classroom.GenderFemale),
	)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		saved    []classroom.UniformEntry
		finalErr error
		final    classroom.Classroom
	)
	for i := 0; i < 30; i++ {
		s := roster.Students[i%len(roster.Students)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := env.Svc.RecordEntry(ctx, testutil.Teacher("t", "001"), classroom.RecordEntry{
				StudentID: s.ID, ShirtSize: "10", BottomSize: "10", ShoeSize: "30",
			})
			if err == nil {
				mu.Lock()
				saved = append(saved, entry)
				mu.Unlock()
			} else {
				assert.Equal(t, core.ErrStateConflict, errors.Cause(err))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		final, finalErr = env.Svc.Finalize(ctx, testutil.Admin("a"), roster.Classroom.ID)
	}()
	wg.Wait()

	require.NoError(t, finalErr)
	assert.Equal(t, classroom.StatusFinalized, final.Status)

	// only acknowledged saves are persisted
	savedIDs := make(map[string]bool)
	for _, e := range saved {
		savedIDs[e.StudentID] = true
	}
	cr, err := env.Svc.GetClassroom(ctx, testutil.Admin("a"), roster.Classroom.ID)
	require.NoError(t, err)
	for _, s := range cr.Students {
		assert.Equal(t, savedIDs[s.ID], s.HasEntry(), s.Name)
	}

	// nothing can be written afterwards
	_, err = env.Svc.RecordEntry(ctx, testutil.Admin("a"), classroom.RecordEntry{StudentID: roster.Students[0].ID})
	assert.Equal(t, core.ErrStateConflict, errors.Cause(err))
}

func TestService_Report(t *testing.T) {
	env := testutil.NewEnv(t)
	r1 := env.LoadClassroom(t, "001", "3",
		testutil.Student("M1", "Ana", classroom.GenderFemale),
		testutil.Student("M2", "Beto", classroom.GenderMale),
		testutil.Student("M3", "Caro", classroom.GenderFemale),
	)
	r2 := env.LoadClassroom(t, "002", "1", testutil.Student("M9", "Nico", classroom.GenderMale))

	env.RecordEntry(t, byName(t, r1.Students, "Ana").ID, "10", "12", "32")
	env.RecordEntry(t, byName(t, r1.Students, "Beto").ID, "10", "", "30")
	env.RecordEntry(t, r2.Students[0].ID, "6", "6", "28")

	t.Run("admin sees every center", func(t *testing.T) {
		report, err := env.Svc.Report(ctx, testutil.Admin("a"), classroom.ClassroomFilter{})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"10": 2, "6": 1}, report.Summary.Shirt)
		assert.Equal(t, map[string]int{"12": 1, "": 1, "6": 1}, report.Summary.Bottom)
		require.Len(t, report.Progress, 2)
		assert.Equal(t, classroom.ClassroomProgress{
			ClassroomID: r1.Classroom.ID, Grade: "3", CenterCode: "001", Completed: 1, WithEntry: 2, Total: 3,
		}, report.Progress[0])
	})

	t.Run("teacher is scoped to own center", func(t *testing.T) {
		report, err := env.Svc.Report(ctx, testutil.Teacher("t", "002"), classroom.ClassroomFilter{CenterCode: "001"})
		require.NoError(t, err)
		require.Len(t, report.Progress, 1)
		assert.Equal(t, "002", report.Progress[0].CenterCode)
	})

	t.Run("teacher without center", func(t *testing.T) {
		_, err := env.Svc.Report(ctx, testutil.Teacher("t", ""), classroom.ClassroomFilter{})
		assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))
	})

	t.Run("other year", func(t *testing.T) {
		report, err := env.Svc.Report(ctx, testutil.Admin("a"), classroom.ClassroomFilter{Year: 2025})
		require.NoError(t, err)
		assert.Empty(t, report.Progress)
		assert.Empty(t, report.Summary.Shirt)
	})
}

func TestService_Schools(t *testing.T) {
	env := testutil.NewEnv(t)
	env.LoadClassroom(t, "002", "1")
	env.LoadClassroom(t, "001", "1")

	_, err := env.Svc.ListSchools(ctx, testutil.Manager("m", "001"))
	assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))

	schools, err := env.Svc.ListSchools(ctx, testutil.Admin("a"))
	require.NoError(t, err)
	require.Len(t, schools, 2)
	assert.Equal(t, "001", schools[0].CenterCode)

	school, err := env.Svc.GetSchool(ctx, testutil.Manager("m", "001"), "001")
	require.NoError(t, err)
	assert.Equal(t, "Escuela 001", school.Name)

	_, err = env.Svc.GetSchool(ctx, testutil.Manager("m", "001"), "002")
	assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))
}
