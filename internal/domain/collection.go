package domain

import "time"

type CollectionStage string

const (
	StageDay1Reminder CollectionStage = "day_1_reminder"
	StageDay7Followup CollectionStage = "day_7_followup"
	StageDay14Final   CollectionStage = "day_14_final"
	StageCompleted    CollectionStage = "completed"
	StageCancelled    CollectionStage = "cancelled"
)

// SoftCollection tracks the reminder escalation of one delinquent plan.
// At most one active record per plan.
type SoftCollection struct {
	ID     string
	PlanID string
	Stage  CollectionStage

	StartedAt        time.Time
	LastEscalatedAt  *time.Time
	NextEscalationAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActiveStage reports whether the collection is still escalating.
func (c *SoftCollection) ActiveStage() bool {
	return c.Stage == StageDay1Reminder || c.Stage == StageDay7Followup || c.Stage == StageDay14Final
}
