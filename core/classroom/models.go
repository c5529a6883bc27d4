package classroom

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/uniforme/core"
)

// Status is a Classroom's lifecycle state: DRAFT -> FINALIZED, never back.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusFinalized Status = "FINALIZED"
)

type Gender string

const (
	GenderMale   Gender = "MASCULINO"
	GenderFemale Gender = "FEMENINO"
)

// ParseGender normalizes s; ok is false for anything but MASCULINO|FEMENINO.
func ParseGender(s string) (Gender, bool) {
	g := Gender(core.CleanString(s, true /* upper */))
	return g, g == GenderMale || g == GenderFemale
}

type School struct {
	CenterCode string `json:"center_code"`
	Name       string `json:"name"`
}

// ClassroomKey is the natural key of a Classroom.
type ClassroomKey struct {
	CenterCode string `json:"center_code"`
	Grade      string `json:"grade"`
	Year       int    `json:"year"`
}

type Classroom struct {
	ID          string     `json:"id"`
	CenterCode  string     `json:"center_code"`
	Grade       string     `json:"grade"`
	Year        int        `json:"year"`
	Status      Status     `json:"status"`
	FinalizedAt *time.Time `json:"finalized_at"` // UTC
	CreatedAt   time.Time  `json:"created_at"`   // UTC
	UpdatedAt   time.Time  `json:"updated_at"`   // UTC
}

func (c Classroom) Key() ClassroomKey {
	return ClassroomKey{CenterCode: c.CenterCode, Grade: c.Grade, Year: c.Year}
}

func (c Classroom) IsFinalized() bool {
	return c.Status == StatusFinalized
}

type Student struct {
	ID             string        `json:"id"`
	ClassroomID    string        `json:"classroom_id"`
	MinedStudentID *string       `json:"mined_student_id"`
	Name           string        `json:"name"`
	Gender         Gender        `json:"gender"`
	Age            *int          `json:"age"`
	BirthDate      *time.Time    `json:"birth_date"`
	UniformEntry   *UniformEntry `json:"uniform_entry"`
}

// CurrentAge returns the stored age, or derives it from the birth date at `now`.
func (s Student) CurrentAge(now time.Time) *int {
	if s.Age != nil {
		return s.Age
	}
	if s.BirthDate == nil {
		return nil
	}
	age := AgeAt(*s.BirthDate, now)
	return &age
}

// AgeAt returns the age in full years of someone born on `birth` at date `now`.
func AgeAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// HasEntry reports whether the student has a stored UniformEntry, complete or not.
func (s Student) HasEntry() bool {
	return s.UniformEntry != nil
}

// IsComplete reports whether the student has a complete UniformEntry.
func (s Student) IsComplete() bool {
	return s.UniformEntry != nil && s.UniformEntry.Complete()
}

// UniformEntry holds the garment sizes recorded for one Student.
// BottomSize is pants or skirt depending on the Student's gender.
type UniformEntry struct {
	StudentID  string    `json:"student_id"`
	ShirtSize  string    `json:"shirt_size"`
	BottomSize string    `json:"bottom_size"`
	ShoeSize   string    `json:"shoe_size"`
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

func (e UniformEntry) Complete() bool {
	return e.ShirtSize != "" && e.BottomSize != "" && e.ShoeSize != ""
}

// RosterRecord is one student as listed by the external registry.
// An empty MinedStudentID means the registry did not identify the student.
type RosterRecord struct {
	MinedStudentID string     `json:"mined_student_id" yaml:"mined_student_id"`
	Name           string     `json:"name" yaml:"name" validate:"notblank"`
	Gender         Gender     `json:"gender" yaml:"gender" validate:"gender"`
	Age            *int       `json:"age" yaml:"age"`
	BirthDate      *time.Time `json:"birth_date" yaml:"birth_date"`
}

// Roster is the reconciled content of a Classroom.
type Roster struct {
	School    School    `json:"school"`
	Classroom Classroom `json:"classroom"`
	Students  []Student `json:"students"`
}

// ClassroomRoster is a Classroom along with its Students (and their entries).
type ClassroomRoster struct {
	Classroom Classroom `json:"classroom"`
	Students  []Student `json:"students"`
}

// LoadClassroom contains information needed to synchronize a Classroom's roster.
type LoadClassroom struct {
	CenterCode string `json:"center_code"`
	Grade      string `json:"grade" validate:"notblank,max=32"`
	Year       int    `json:"year" validate:"required,gt=0"`
}

// Validate cleans the input, resolves the target center for actor and validates it.
func (lc *LoadClassroom) Validate(validate *validator.Validate, actor core.Actor) error {
	lc.Grade = core.CleanString(lc.Grade)
	lc.CenterCode = actor.ResolveCenter(lc.CenterCode)

	if err := validate.Struct(lc); err != nil {
		return err
	}
	if lc.CenterCode == "" {
		return core.NewValidationError(errCenterRequired, core.FieldError{Field: "center_code", Error: errCenterRequired.Error()})
	}
	return nil
}

func (lc LoadClassroom) Key() ClassroomKey {
	return ClassroomKey{CenterCode: lc.CenterCode, Grade: lc.Grade, Year: lc.Year}
}

// RecordEntry contains the sizes to record for a Student.
type RecordEntry struct {
	StudentID  string `json:"student_id" validate:"notblank"`
	ShirtSize  string `json:"shirt_size" validate:"max=32"`
	BottomSize string `json:"bottom_size" validate:"max=32"`
	ShoeSize   string `json:"shoe_size" validate:"max=32"`
}

func (re *RecordEntry) Validate(validate *validator.Validate) error {
	re.StudentID = core.CleanString(re.StudentID)
	re.ShirtSize = core.CleanString(re.ShirtSize)
	re.BottomSize = core.CleanString(re.BottomSize)
	re.ShoeSize = core.CleanString(re.ShoeSize)
	return validate.Struct(re)
}

// ClassroomFilter applies AND on its non-zero fields.
type ClassroomFilter struct {
	Year       int    `query:"year"`
	Grade      string `query:"grade"`
	CenterCode string `query:"center_code"`
}

func (f *ClassroomFilter) Clean() {
	f.Grade = core.CleanString(f.Grade)
	f.CenterCode = core.CleanString(f.CenterCode)
}

// Matches reports whether c satisfies every set field of the filter.
func (f ClassroomFilter) Matches(c Classroom) bool {
	if f.Year != 0 && c.Year != f.Year {
		return false
	}
	if f.Grade != "" && c.Grade != f.Grade {
		return false
	}
	if f.CenterCode != "" && c.CenterCode != f.CenterCode {
		return false
	}
	return true
}

// LessByName orders Students by name, then ID for equal names.
func LessByName(a, b Student) bool {
	if a.Name != b.Name {
		return strings.Compare(a.Name, b.Name) < 0
	}
	return a.ID < b.ID
}
