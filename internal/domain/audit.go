package domain

import "time"

type ActorType string

const (
	ActorSystem ActorType = "system"
	ActorAdmin  ActorType = "admin"
	ActorClinic ActorType = "clinic"
	ActorOwner  ActorType = "owner"
)

// AuditLogEntry is one immutable row of the audit trail. Writes never fail
// the caller: a failed append is logged, not propagated.
type AuditLogEntry struct {
	ID         string
	EntityType string
	EntityID   string
	Action     string
	OldValue   *string
	NewValue   *string
	ActorType  ActorType
	ActorID    string

	CreatedAt time.Time
}

// Actor is the resolved authorization context handed to every entry point.
// The core trusts it and does not re-derive identity.
type Actor struct {
	ID   string
	Type ActorType
	Role string
}

var SystemActor = Actor{ID: "system", Type: ActorSystem, Role: "system"}
