package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/core/classroom"
)

const (
	classroomColumns = `id, center_code, grade, year, status, finalized_at, created_at, updated_at`

	studentSelect = `
SELECT s.id, s.classroom_id, s.mined_student_id, s.name, s.gender, s.age, s.birth_date,
       e.student_id AS entry_student_id, e.shirt_size, e.bottom_size, e.shoe_size,
       e.updated_at AS entry_updated_at
FROM students s
LEFT JOIN uniform_entries e ON e.student_id = s.id`
)

var studentOrdering = []core.DBOrdering{
	{Field: "s.name", Ascending: true},
	{Field: "s.id", Ascending: true},
}

type classroomRepository struct {
	db *sqlx.DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *sqlx.DB) *classroomRepository {
	return &classroomRepository{db: db}
}

func orderBy(ordering []core.DBOrdering) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func (repo *classroomRepository) UpsertSchool(ctx context.Context, school classroom.School) (classroom.School, error) {
	var row schoolRow
	err := repo.db.GetContext(ctx, &row, `
INSERT INTO schools (center_code, name) VALUES ($1, $2)
ON CONFLICT (center_code) DO UPDATE SET name = COALESCE(NULLIF(EXCLUDED.name, ''), schools.name)
RETURNING center_code, name`, school.CenterCode, school.Name)
	if err != nil {
		return classroom.School{}, errors.Wrap(err, "upserting school")
	}
	return row.unmarshal(), nil
}

func (repo *classroomRepository) GetSchool(ctx context.Context, centerCode string) (classroom.School, error) {
	var row schoolRow
	err := repo.db.GetContext(ctx, &row, `SELECT center_code, name FROM schools WHERE center_code = $1`, centerCode)
	if err == sql.ErrNoRows {
		return classroom.School{}, classroom.ErrSchoolNotFound
	}
	if err != nil {
		return classroom.School{}, errors.Wrap(err, "getting school")
	}
	return row.unmarshal(), nil
}

func (repo *classroomRepository) QuerySchools(ctx context.Context) ([]classroom.School, error) {
	var rows []schoolRow
	q := `SELECT center_code, name FROM schools` + orderBy([]core.DBOrdering{
		{Field: "name", Ascending: true},
		{Field: "center_code", Ascending: true},
	})
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]classroom.School, 0, len(rows))
	for _, r := range rows {
		schools = append(schools, r.unmarshal())
	}
	return schools, nil
}

// GetOrCreateClassroom relies on the (center_code, grade, year) unique constraint: the no-op
// DO UPDATE makes RETURNING yield the existing row, so concurrent loads converge on one classroom.
func (repo *classroomRepository) GetOrCreateClassroom(ctx context.Context, key classroom.ClassroomKey) (classroom.Classroom, error) {
	now := classroom.NowFunc().UTC()
	var row classroomRow
	err := repo.db.GetContext(ctx, &row, `
INSERT INTO classrooms (id, center_code, grade, year, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (center_code, grade, year) DO UPDATE SET center_code = EXCLUDED.center_code
RETURNING `+classroomColumns,
		uuid.New().String(), key.CenterCode, key.Grade, key.Year, string(classroom.StatusDraft), now,
	)
	if err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "upserting classroom")
	}
	return row.unmarshal(), nil
}

func (repo *classroomRepository) GetClassroom(ctx context.Context, id string) (classroom.Classroom, error) {
	if _, err := uuid.Parse(id); err != nil {
		return classroom.Classroom{}, classroom.ErrClassroomNotFound
	}
	var row classroomRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+classroomColumns+` FROM classrooms WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return classroom.Classroom{}, classroom.ErrClassroomNotFound
	}
	if err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "getting classroom")
	}
	return row.unmarshal(), nil
}

func (repo *classroomRepository) QueryClassrooms(ctx context.Context, filter classroom.ClassroomFilter) ([]classroom.Classroom, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if filter.Year != 0 {
		add("year = ?", filter.Year)
	}
	if filter.Grade != "" {
		add("grade = ?", filter.Grade)
	}
	if filter.CenterCode != "" {
		add("center_code = ?", filter.CenterCode)
	}

	q := `SELECT ` + classroomColumns + ` FROM classrooms`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderBy([]core.DBOrdering{{Field: "center_code", Ascending: true}, {Field: "grade", Ascending: true}})

	var rows []classroomRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	return unmarshalClassrooms(rows), nil
}

// FinalizeClassroom is a conditional update: only a DRAFT row transitions, so two concurrent
// finalizations cannot both succeed.
func (repo *classroomRepository) FinalizeClassroom(ctx context.Context, id string, at time.Time) (classroom.Classroom, error) {
	if _, err := uuid.Parse(id); err != nil {
		return classroom.Classroom{}, classroom.ErrClassroomNotFound
	}
	at = at.UTC()
	var row classroomRow
	err := repo.db.GetContext(ctx, &row, `
UPDATE classrooms SET status = $2, finalized_at = $3, updated_at = $3
WHERE id = $1 AND status = $4
RETURNING `+classroomColumns,
		id, string(classroom.StatusFinalized), at, string(classroom.StatusDraft),
	)
	if err == sql.ErrNoRows {
		if _, err = repo.GetClassroom(ctx, id); err != nil {
			return classroom.Classroom{}, err
		}
		return classroom.Classroom{}, classroom.ErrAlreadyFinalized
	}
	if err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "finalizing classroom")
	}
	return row.unmarshal(), nil
}

func (repo *classroomRepository) UpsertStudentByMinedID(
	ctx context.Context,
	classroomID string,
	rec classroom.RosterRecord,
) (classroom.Student, error) {
	if rec.MinedStudentID == "" {
		return classroom.Student{}, errors.New("mined student id is required")
	}
	var id string
	err := repo.db.GetContext(ctx, &id, `
INSERT INTO students (id, classroom_id, mined_student_id, name, gender, age, birth_date)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (mined_student_id) DO UPDATE SET
    classroom_id = EXCLUDED.classroom_id,
    name = EXCLUDED.name,
    gender = EXCLUDED.gender,
    age = EXCLUDED.age,
    birth_date = EXCLUDED.birth_date
RETURNING id`,
		uuid.New().String(), classroomID, rec.MinedStudentID, rec.Name, string(rec.Gender),
		nullAge(rec.Age), null.TimeFromPtr(rec.BirthDate),
	)
	if err != nil {
		return classroom.Student{}, errors.Wrap(err, "upserting student")
	}
	return repo.GetStudent(ctx, id)
}

func (repo *classroomRepository) CreateStudent(
	ctx context.Context,
	classroomID string,
	rec classroom.RosterRecord,
) (classroom.Student, error) {
	id := uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
INSERT INTO students (id, classroom_id, mined_student_id, name, gender, age, birth_date)
VALUES ($1, $2, NULL, $3, $4, $5, $6)`,
		id, classroomID, rec.Name, string(rec.Gender), nullAge(rec.Age), null.TimeFromPtr(rec.BirthDate),
	)
	if err != nil {
		return classroom.Student{}, errors.Wrap(err, "creating student")
	}
	return classroom.Student{
		ID:          id,
		ClassroomID: classroomID,
		Name:        rec.Name,
		Gender:      rec.Gender,
		Age:         rec.Age,
		BirthDate:   rec.BirthDate,
	}, nil
}

func (repo *classroomRepository) GetStudent(ctx context.Context, id string) (classroom.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return classroom.Student{}, classroom.ErrStudentNotFound
	}
	var row studentRow
	err := repo.db.GetContext(ctx, &row, studentSelect+` WHERE s.id = $1`, id)
	if err == sql.ErrNoRows {
		return classroom.Student{}, classroom.ErrStudentNotFound
	}
	if err != nil {
		return classroom.Student{}, errors.Wrap(err, "getting student")
	}
	return row.unmarshal(), nil
}

func (repo *classroomRepository) QueryStudents(ctx context.Context, classroomIDs ...string) ([]classroom.Student, error) {
	if len(classroomIDs) == 0 {
		return []classroom.Student{}, nil
	}
	q, args, err := sqlx.In(studentSelect+` WHERE s.classroom_id IN (?)`+orderBy(studentOrdering), classroomIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building students query")
	}
	var rows []studentRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return unmarshalStudents(rows), nil
}

// SaveUniformEntry locks the student and its classroom rows for the duration of the write, so a
// concurrent FinalizeClassroom or reassignment either happens before (and the save fails) or waits for it.
func (repo *classroomRepository) SaveUniformEntry(ctx context.Context, classroomID string, entry classroom.UniformEntry) (classroom.UniformEntry, error) {
	if _, err := uuid.Parse(entry.StudentID); err != nil {
		return classroom.UniformEntry{}, classroom.ErrStudentNotFound
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return classroom.UniformEntry{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var current struct {
		ClassroomID string `db:"classroom_id"`
		Status      string `db:"status"`
	}
	err = tx.GetContext(ctx, &current, `
SELECT s.classroom_id, c.status FROM students s
JOIN classrooms c ON c.id = s.classroom_id
WHERE s.id = $1
FOR UPDATE OF s, c`, entry.StudentID)
	if err == sql.ErrNoRows {
		return classroom.UniformEntry{}, classroom.ErrStudentNotFound
	}
	if err != nil {
		return classroom.UniformEntry{}, errors.Wrap(err, "locking classroom")
	}
	if current.ClassroomID != classroomID {
		return classroom.UniformEntry{}, classroom.ErrStudentMoved
	}
	if classroom.Status(current.Status) == classroom.StatusFinalized {
		return classroom.UniformEntry{}, classroom.ErrFinalized
	}

	var row entryRow
	err = tx.GetContext(ctx, &row, `
INSERT INTO uniform_entries (student_id, shirt_size, bottom_size, shoe_size, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (student_id) DO UPDATE SET
    shirt_size = EXCLUDED.shirt_size,
    bottom_size = EXCLUDED.bottom_size,
    shoe_size = EXCLUDED.shoe_size,
    updated_at = EXCLUDED.updated_at
RETURNING student_id, shirt_size, bottom_size, shoe_size, updated_at`,
		entry.StudentID, entry.ShirtSize, entry.BottomSize, entry.ShoeSize, entry.UpdatedAt.UTC(),
	)
	if err != nil {
		return classroom.UniformEntry{}, errors.Wrap(err, "saving uniform entry")
	}
	if err = tx.Commit(); err != nil {
		return classroom.UniformEntry{}, errors.Wrap(err, "committing uniform entry")
	}
	return row.unmarshal(), nil
}
