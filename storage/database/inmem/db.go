package inmemdb

import (
	"sync"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/core/classroom"
)

type (
	// DB is a process-local store. A single lock guards every table so that
	// operations spanning tables (entry save vs finalize) are atomic.
	DB struct {
		mutex sync.RWMutex

		schools    map[string]*classroom.School
		classrooms map[string]*classroom.Classroom
		students   map[string]*classroom.Student // UniformEntry is kept in entries
		entries    map[string]*classroom.UniformEntry
		audit      []core.AuditEvent

		// unique indexes
		classroomKeys map[classroom.ClassroomKey]string
		minedIDs      map[string]string
	}
)

func Open() (*DB, error) {
	db := &DB{
		schools:       make(map[string]*classroom.School),
		classrooms:    make(map[string]*classroom.Classroom),
		students:      make(map[string]*classroom.Student),
		entries:       make(map[string]*classroom.UniformEntry),
		classroomKeys: make(map[classroom.ClassroomKey]string),
		minedIDs:      make(map[string]string),
	}
	return db, nil
}

func (db *DB) Close() error { return nil }
