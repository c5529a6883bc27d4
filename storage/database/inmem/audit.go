package inmemdb

import (
	"context"

	"github.com/trezcool/uniforme/core"
)

// AuditLog keeps audit events in memory.
type AuditLog struct {
	db *DB
}

var _ core.AuditSink = (*AuditLog)(nil)

func NewAuditRepository(db *DB) *AuditLog {
	return &AuditLog{db: db}
}

func (repo *AuditLog) Record(_ context.Context, event core.AuditEvent) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.audit = append(repo.db.audit, event)
	return nil
}

// Events returns the recorded events, oldest first.
func (repo *AuditLog) Events(action ...string) []core.AuditEvent {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	events := make([]core.AuditEvent, 0, len(repo.db.audit))
	for _, e := range repo.db.audit {
		if len(action) == 0 || e.Action == action[0] {
			events = append(events, e)
		}
	}
	return events
}
