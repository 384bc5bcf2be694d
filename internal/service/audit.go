package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pawpay/internal/domain"
)

// AuditLogger appends audit entries for every state transition. A failed
// write is logged and swallowed: the audit trail must never fail or roll
// back a financial operation.
type AuditLogger struct {
	store AuditStore
	log   *zap.Logger
}

func NewAuditLogger(store AuditStore, log *zap.Logger) *AuditLogger {
	return &AuditLogger{store: store, log: log}
}

// Record writes one audit entry. oldValue/newValue are serialized to JSON;
// unserializable values degrade to their Go string form.
//
// Entries go to the pool connection, never the caller's transaction: a
// failed audit INSERT inside a transaction would abort the whole commit,
// which is exactly what the swallow contract forbids. The tradeoff is that
// an entry can outlive an operation that later rolls back.
func (a *AuditLogger) Record(ctx context.Context, actor domain.Actor, entityType, entityID, action string, oldValue, newValue any) {
	if a == nil || a.store == nil {
		return
	}

	entry := &domain.AuditLogEntry{
		ID:         uuid.NewString(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		OldValue:   marshalValue(oldValue),
		NewValue:   marshalValue(newValue),
		ActorType:  actor.Type,
		ActorID:    actor.ID,
		CreatedAt:  time.Now().UTC(),
	}

	if err := a.store.Append(ctx, nil, entry); err != nil {
		a.log.Warn("audit write failed",
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func marshalValue(v any) *string {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		s := "unserializable"
		return &s
	}
	s := string(data)
	return &s
}
