package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/uniforme/core/classroom"
)

type classroomRepository struct {
	db *DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *DB) *classroomRepository {
	return &classroomRepository{db: db}
}

func (repo *classroomRepository) UpsertSchool(_ context.Context, school classroom.School) (classroom.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig, ok := repo.db.schools[school.CenterCode]; ok {
		if school.Name != "" {
			orig.Name = school.Name
		}
		return *orig, nil
	}
	repo.db.schools[school.CenterCode] = &school
	return school, nil
}

func (repo *classroomRepository) GetSchool(_ context.Context, centerCode string) (classroom.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if school, ok := repo.db.schools[centerCode]; ok {
		return *school, nil
	}
	return classroom.School{}, classroom.ErrSchoolNotFound
}

func (repo *classroomRepository) QuerySchools(_ context.Context) ([]classroom.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	schools := make([]classroom.School, 0, len(repo.db.schools))
	for _, s := range repo.db.schools {
		schools = append(schools, *s)
	}
	sort.Slice(schools, func(i, j int) bool {
		if schools[i].Name != schools[j].Name {
			return schools[i].Name < schools[j].Name
		}
		return schools[i].CenterCode < schools[j].CenterCode
	})
	return schools, nil
}

func (repo *classroomRepository) GetOrCreateClassroom(_ context.Context, key classroom.ClassroomKey) (classroom.Classroom, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if id, ok := repo.db.classroomKeys[key]; ok {
		return *repo.db.classrooms[id], nil
	}

	now := classroom.NowFunc().UTC()
	c := &classroom.Classroom{
		ID:         uuid.New().String(),
		CenterCode: key.CenterCode,
		Grade:      key.Grade,
		Year:       key.Year,
		Status:     classroom.StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	repo.db.classrooms[c.ID] = c
	repo.db.classroomKeys[key] = c.ID
	return *c, nil
}

func (repo *classroomRepository) GetClassroom(_ context.Context, id string) (classroom.Classroom, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.classrooms[id]; ok {
		return *c, nil
	}
	return classroom.Classroom{}, classroom.ErrClassroomNotFound
}

func (repo *classroomRepository) QueryClassrooms(_ context.Context, filter classroom.ClassroomFilter) ([]classroom.Classroom, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classrooms := make([]classroom.Classroom, 0)
	for _, c := range repo.db.classrooms {
		if filter.Matches(*c) {
			classrooms = append(classrooms, *c)
		}
	}
	sort.Slice(classrooms, func(i, j int) bool { return classrooms[i].ID < classrooms[j].ID })
	return classrooms, nil
}

func (repo *classroomRepository) FinalizeClassroom(_ context.Context, id string, at time.Time) (classroom.Classroom, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c, ok := repo.db.classrooms[id]
	if !ok {
		return classroom.Classroom{}, classroom.ErrClassroomNotFound
	}
	if c.IsFinalized() {
		return classroom.Classroom{}, classroom.ErrAlreadyFinalized
	}
	at = at.UTC()
	c.Status = classroom.StatusFinalized
	c.FinalizedAt = &at
	c.UpdatedAt = at
	return *c, nil
}

func (repo *classroomRepository) UpsertStudentByMinedID(
	_ context.Context,
	classroomID string,
	rec classroom.RosterRecord,
) (classroom.Student, error) {
	if rec.MinedStudentID == "" {
		return classroom.Student{}, errors.New("mined student id is required")
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.classrooms[classroomID]; !ok {
		return classroom.Student{}, classroom.ErrClassroomNotFound
	}
	if id, ok := repo.db.minedIDs[rec.MinedStudentID]; ok {
		s := repo.db.students[id]
		s.ClassroomID = classroomID
		s.Name = rec.Name
		s.Gender = rec.Gender
		s.Age = copyInt(rec.Age)
		s.BirthDate = copyTime(rec.BirthDate)
		return repo.student(s), nil
	}

	s := repo.newStudent(classroomID, rec)
	repo.db.minedIDs[rec.MinedStudentID] = s.ID
	return repo.student(s), nil
}

func (repo *classroomRepository) CreateStudent(
	_ context.Context,
	classroomID string,
	rec classroom.RosterRecord,
) (classroom.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.classrooms[classroomID]; !ok {
		return classroom.Student{}, classroom.ErrClassroomNotFound
	}
	rec.MinedStudentID = ""
	return repo.student(repo.newStudent(classroomID, rec)), nil
}

// newStudent must be called with the write lock held.
func (repo *classroomRepository) newStudent(classroomID string, rec classroom.RosterRecord) *classroom.Student {
	s := &classroom.Student{
		ID:          uuid.New().String(),
		ClassroomID: classroomID,
		Name:        rec.Name,
		Gender:      rec.Gender,
		Age:         copyInt(rec.Age),
		BirthDate:   copyTime(rec.BirthDate),
	}
	if rec.MinedStudentID != "" {
		minedID := rec.MinedStudentID
		s.MinedStudentID = &minedID
	}
	repo.db.students[s.ID] = s
	return s
}

// student returns a detached copy of s, with its entry. Lock must be held.
func (repo *classroomRepository) student(s *classroom.Student) classroom.Student {
	cp := *s
	cp.Age = copyInt(s.Age)
	cp.BirthDate = copyTime(s.BirthDate)
	if s.MinedStudentID != nil {
		minedID := *s.MinedStudentID
		cp.MinedStudentID = &minedID
	}
	cp.UniformEntry = nil
	if e, ok := repo.db.entries[s.ID]; ok {
		entry := *e
		cp.UniformEntry = &entry
	}
	return cp
}

func (repo *classroomRepository) GetStudent(_ context.Context, id string) (classroom.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return repo.student(s), nil
	}
	return classroom.Student{}, classroom.ErrStudentNotFound
}

func (repo *classroomRepository) QueryStudents(_ context.Context, classroomIDs ...string) ([]classroom.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make(map[string]struct{}, len(classroomIDs))
	for _, id := range classroomIDs {
		ids[id] = struct{}{}
	}

	students := make([]classroom.Student, 0)
	for _, s := range repo.db.students {
		if _, ok := ids[s.ClassroomID]; ok {
			students = append(students, repo.student(s))
		}
	}
	sort.Slice(students, func(i, j int) bool { return classroom.LessByName(students[i], students[j]) })
	return students, nil
}

func (repo *classroomRepository) SaveUniformEntry(_ context.Context, classroomID string, entry classroom.UniformEntry) (classroom.UniformEntry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.db.students[entry.StudentID]
	if !ok {
		return classroom.UniformEntry{}, classroom.ErrStudentNotFound
	}
	if s.ClassroomID != classroomID {
		return classroom.UniformEntry{}, classroom.ErrStudentMoved
	}
	c, ok := repo.db.classrooms[s.ClassroomID]
	if !ok {
		return classroom.UniformEntry{}, classroom.ErrClassroomNotFound
	}
	if c.IsFinalized() {
		return classroom.UniformEntry{}, classroom.ErrFinalized
	}

	entry.UpdatedAt = entry.UpdatedAt.UTC()
	repo.db.entries[entry.StudentID] = &entry
	return entry, nil
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
