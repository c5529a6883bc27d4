package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/uniforme/core"
)

type auditRepository struct {
	db *sqlx.DB
}

var _ core.AuditSink = (*auditRepository)(nil)

func NewAuditRepository(db *sqlx.DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) Record(ctx context.Context, event core.AuditEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return errors.Wrap(err, "marshalling audit payload")
	}
	_, err = repo.db.ExecContext(ctx,
		`INSERT INTO audit_events (actor_id, action, payload, created_at) VALUES ($1, $2, $3, $4)`,
		event.ActorID, event.Action, string(payload), event.CreatedAt.UTC(),
	)
	return errors.Wrap(err, "recording audit event")
}
