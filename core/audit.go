package core

import (
	"context"
	"time"
)

var NowFunc = time.Now // mockable

// Audit action tags
const (
	AuditFinalize    = "FINALIZE"
	AuditSave        = "SAVE"
	AuditExportExcel = "EXPORT_EXCEL"
)

type AuditEvent struct {
	ActorID   string                 `json:"actor_id"`
	Action    string                 `json:"action"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// AuditSink is any append-only store of AuditEvents.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// EmitAudit records an event without letting a sink failure affect the caller.
// Failures are reported to logger.
func EmitAudit(ctx context.Context, sink AuditSink, logger Logger, actor Actor, action string, payload map[string]interface{}) {
	if sink == nil {
		return
	}
	event := AuditEvent{
		ActorID:   actor.ID,
		Action:    action,
		Payload:   payload,
		CreatedAt: NowFunc().UTC(),
	}
	if err := sink.Record(ctx, event); err != nil && logger != nil {
		logger.Error("recording audit event", err, map[string]interface{}{"action": action}, actor)
	}
}
