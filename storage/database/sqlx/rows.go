package sqlxrepos

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/uniforme/core/classroom"
)

type (
	schoolRow struct {
		CenterCode string `db:"center_code"`
		Name       string `db:"name"`
	}

	classroomRow struct {
		ID          string    `db:"id"`
		CenterCode  string    `db:"center_code"`
		Grade       string    `db:"grade"`
		Year        int       `db:"year"`
		Status      string    `db:"status"`
		FinalizedAt null.Time `db:"finalized_at"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	// studentRow is a student LEFT JOINed with its entry.
	studentRow struct {
		ID             string      `db:"id"`
		ClassroomID    string      `db:"classroom_id"`
		MinedStudentID null.String `db:"mined_student_id"`
		Name           string      `db:"name"`
		Gender         string      `db:"gender"`
		Age            null.Int    `db:"age"`
		BirthDate      null.Time   `db:"birth_date"`

		EntryStudentID null.String `db:"entry_student_id"`
		ShirtSize      null.String `db:"shirt_size"`
		BottomSize     null.String `db:"bottom_size"`
		ShoeSize       null.String `db:"shoe_size"`
		EntryUpdatedAt null.Time   `db:"entry_updated_at"`
	}

	entryRow struct {
		StudentID  string    `db:"student_id"`
		ShirtSize  string    `db:"shirt_size"`
		BottomSize string    `db:"bottom_size"`
		ShoeSize   string    `db:"shoe_size"`
		UpdatedAt  time.Time `db:"updated_at"`
	}
)

func (r schoolRow) unmarshal() classroom.School {
	return classroom.School{CenterCode: r.CenterCode, Name: r.Name}
}

func (r classroomRow) unmarshal() classroom.Classroom {
	c := classroom.Classroom{
		ID:         r.ID,
		CenterCode: r.CenterCode,
		Grade:      r.Grade,
		Year:       r.Year,
		Status:     classroom.Status(r.Status),
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.FinalizedAt.Valid {
		at := r.FinalizedAt.Time.UTC()
		c.FinalizedAt = &at
	}
	return c
}

func unmarshalClassrooms(rows []classroomRow) []classroom.Classroom {
	classrooms := make([]classroom.Classroom, 0, len(rows))
	for _, r := range rows {
		classrooms = append(classrooms, r.unmarshal())
	}
	return classrooms
}

func (r studentRow) unmarshal() classroom.Student {
	s := classroom.Student{
		ID:             r.ID,
		ClassroomID:    r.ClassroomID,
		MinedStudentID: r.MinedStudentID.Ptr(),
		Name:           r.Name,
		Gender:         classroom.Gender(r.Gender),
	}
	if r.Age.Valid {
		age := r.Age.Int
		s.Age = &age
	}
	if r.BirthDate.Valid {
		bd := r.BirthDate.Time.UTC()
		s.BirthDate = &bd
	}
	if r.EntryStudentID.Valid {
		s.UniformEntry = &classroom.UniformEntry{
			StudentID:  r.EntryStudentID.String,
			ShirtSize:  r.ShirtSize.String,
			BottomSize: r.BottomSize.String,
			ShoeSize:   r.ShoeSize.String,
			UpdatedAt:  r.EntryUpdatedAt.Time.UTC(),
		}
	}
	return s
}

func unmarshalStudents(rows []studentRow) []classroom.Student {
	students := make([]classroom.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.unmarshal())
	}
	return students
}

func (r entryRow) unmarshal() classroom.UniformEntry {
	return classroom.UniformEntry{
		StudentID:  r.StudentID,
		ShirtSize:  r.ShirtSize,
		BottomSize: r.BottomSize,
		ShoeSize:   r.ShoeSize,
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

func nullAge(age *int) null.Int {
	if age == nil {
		return null.Int{}
	}
	return null.IntFrom(*age)
}
