package classroom

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/uniforme/core"
)

type (
	// SizeSummary maps, for each garment slot, every recorded size to its number of students.
	SizeSummary struct {
		Shirt  map[string]int `json:"shirt"`
		Bottom map[string]int `json:"bottom"`
		Shoes  map[string]int `json:"shoes"`
	}

	ClassroomProgress struct {
		ClassroomID string `json:"classroom_id"`
		Grade       string `json:"grade"`
		CenterCode  string `json:"center_code"`
		Completed   int    `json:"completed"`  // students with a complete entry
		WithEntry   int    `json:"with_entry"` // students with any entry
		Total       int    `json:"total"`
	}

	Report struct {
		Summary  SizeSummary         `json:"summary"`
		Progress []ClassroomProgress `json:"progress"`
	}
)

func newSizeSummary() SizeSummary {
	return SizeSummary{
		Shirt:  make(map[string]int),
		Bottom: make(map[string]int),
		Shoes:  make(map[string]int),
	}
}

// Summarize counts sizes over students that have an entry.
// Field values are counted as is, empty strings included: completeness is an entry-level notion
// and is not applied here.
func Summarize(students []Student) SizeSummary {
	summary := newSizeSummary()
	summary.add(students)
	return summary
}

func (s SizeSummary) add(students []Student) {
	for _, student := range students {
		e := student.UniformEntry
		if e == nil {
			continue
		}
		s.Shirt[e.ShirtSize]++
		s.Bottom[e.BottomSize]++
		s.Shoes[e.ShoeSize]++
	}
}

func ProgressOf(classroom Classroom, students []Student) ClassroomProgress {
	p := ClassroomProgress{
		ClassroomID: classroom.ID,
		Grade:       classroom.Grade,
		CenterCode:  classroom.CenterCode,
		Total:       len(students),
	}
	for _, s := range students {
		if s.HasEntry() {
			p.WithEntry++
		}
		if s.IsComplete() {
			p.Completed++
		}
	}
	return p
}

// resolveFilter applies defaults and scopes non-ADMIN actors to their own center.
func (svc *Service) resolveFilter(actor core.Actor, filter ClassroomFilter) (ClassroomFilter, error) {
	filter.Clean()
	if filter.Year == 0 {
		filter.Year = svc.defaultYear
	}
	if !actor.IsAdmin() {
		if actor.CenterCode == "" {
			return ClassroomFilter{}, errors.Wrap(core.ErrPermissionDenied, "actor has no center")
		}
		filter.CenterCode = actor.CenterCode
	}
	return filter, nil
}

// QueryRosters returns the filtered Classrooms with their Students, ordered by center & grade.
// A zero filter.Year means the current collection year.
func (svc *Service) QueryRosters(ctx context.Context, actor core.Actor, filter ClassroomFilter) ([]ClassroomRoster, error) {
	filter, err := svc.resolveFilter(actor, filter)
	if err != nil {
		return nil, err
	}

	classrooms, err := svc.repo.QueryClassrooms(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	if len(classrooms) == 0 {
		return []ClassroomRoster{}, nil
	}
	sort.SliceStable(classrooms, func(i, j int) bool {
		a, b := classrooms[i], classrooms[j]
		if a.CenterCode != b.CenterCode {
			return a.CenterCode < b.CenterCode
		}
		return a.Grade < b.Grade
	})

	ids := make([]string, 0, len(classrooms))
	for _, c := range classrooms {
		ids = append(ids, c.ID)
	}
	students, err := svc.repo.QueryStudents(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	byClassroom := make(map[string][]Student, len(classrooms))
	for _, s := range students {
		byClassroom[s.ClassroomID] = append(byClassroom[s.ClassroomID], s)
	}

	rosters := make([]ClassroomRoster, 0, len(classrooms))
	for _, c := range classrooms {
		rosters = append(rosters, ClassroomRoster{Classroom: c, Students: byClassroom[c.ID]})
	}
	return rosters, nil
}

// Report computes the size distribution and per-classroom progress from the current state.
func (svc *Service) Report(ctx context.Context, actor core.Actor, filter ClassroomFilter) (Report, error) {
	rosters, err := svc.QueryRosters(ctx, actor, filter)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Summary:  newSizeSummary(),
		Progress: make([]ClassroomProgress, 0, len(rosters)),
	}
	for _, r := range rosters {
		report.Summary.add(r.Students)
		report.Progress = append(report.Progress, ProgressOf(r.Classroom, r.Students))
	}
	return report, nil
}
