// Package fixture serves schools and rosters from a YAML file, for local development and demos.
package fixture

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/core/classroom"
)

type (
	file struct {
		Schools []schoolDoc `yaml:"schools"`
	}

	schoolDoc struct {
		CenterCode string         `yaml:"center_code"`
		Name       string         `yaml:"name"`
		Classrooms []classroomDoc `yaml:"classrooms"`
	}

	classroomDoc struct {
		Grade    string       `yaml:"grade"`
		Year     int          `yaml:"year"`
		Students []studentDoc `yaml:"students"`
	}

	studentDoc struct {
		MinedStudentID string `yaml:"mined_student_id"`
		Name           string `yaml:"name"`
		Gender         string `yaml:"gender"`
		Age            *int   `yaml:"age"`
		BirthDate      string `yaml:"birth_date"`
	}
)

type Registry struct {
	mu       sync.RWMutex
	schools  map[string]classroom.School
	rosters  map[classroom.ClassroomKey][]classroom.RosterRecord
	failNext error // test hook
}

var _ classroom.Registry = (*Registry)(nil)

// Open loads the fixture at path.
func Open(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening registry fixture")
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

func Load(r io.Reader) (*Registry, error) {
	var doc file
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decoding registry fixture")
	}

	reg := &Registry{
		schools: make(map[string]classroom.School, len(doc.Schools)),
		rosters: make(map[classroom.ClassroomKey][]classroom.RosterRecord),
	}
	for _, s := range doc.Schools {
		reg.schools[s.CenterCode] = classroom.School{CenterCode: s.CenterCode, Name: s.Name}
		for _, c := range s.Classrooms {
			key := classroom.ClassroomKey{CenterCode: s.CenterCode, Grade: c.Grade, Year: c.Year}
			records := make([]classroom.RosterRecord, 0, len(c.Students))
			for _, st := range c.Students {
				rec := classroom.RosterRecord{
					MinedStudentID: st.MinedStudentID,
					Name:           st.Name,
					Gender:         classroom.Gender(st.Gender),
					Age:            st.Age,
				}
				if st.BirthDate != "" {
					bd, err := time.Parse("2006-01-02", st.BirthDate)
					if err != nil {
						return nil, errors.Wrapf(err, "student %q birth_date", st.Name)
					}
					rec.BirthDate = &bd
				}
				records = append(records, rec)
			}
			reg.rosters[key] = records
		}
	}
	return reg, nil
}

// FailNext makes the next fetch fail with core.ErrUpstreamUnavailable.
func (reg *Registry) FailNext() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.failNext = errors.Wrap(core.ErrUpstreamUnavailable, "registry fixture")
}

func (reg *Registry) takeFailure() error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	err := reg.failNext
	reg.failNext = nil
	return err
}

// SetSchool adds or replaces a school.
func (reg *Registry) SetSchool(school classroom.School) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.schools[school.CenterCode] = school
}

// SetRoster replaces the roster of a classroom.
func (reg *Registry) SetRoster(key classroom.ClassroomKey, records []classroom.RosterRecord) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.rosters[key] = append([]classroom.RosterRecord(nil), records...)
}

func (reg *Registry) FetchSchool(ctx context.Context, centerCode string) (classroom.School, bool, error) {
	if err := ctx.Err(); err != nil {
		return classroom.School{}, false, errors.Wrap(core.ErrUpstreamUnavailable, err.Error())
	}
	if err := reg.takeFailure(); err != nil {
		return classroom.School{}, false, err
	}
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	school, ok := reg.schools[centerCode]
	return school, ok, nil
}

func (reg *Registry) FetchRoster(ctx context.Context, centerCode, grade string, year int) ([]classroom.RosterRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(core.ErrUpstreamUnavailable, err.Error())
	}
	if err := reg.takeFailure(); err != nil {
		return nil, err
	}
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	key := classroom.ClassroomKey{CenterCode: centerCode, Grade: grade, Year: year}
	return append([]classroom.RosterRecord{}, reg.rosters[key]...), nil
}
