package domain

import "time"

type RiskPoolEntryType string

const (
	RiskPoolContribution RiskPoolEntryType = "contribution"
	RiskPoolClaim        RiskPoolEntryType = "claim"
	RiskPoolRecovery     RiskPoolEntryType = "recovery"
)

// RiskPoolEntry is one append-only ledger row. Balance is always derived:
// sum(contribution) + sum(recovery) - sum(claim).
type RiskPoolEntry struct {
	ID          string
	PlanID      string
	Type        RiskPoolEntryType
	AmountCents int64

	CreatedAt time.Time
}

// RiskPoolHealth is the derived solvency view of the pool.
type RiskPoolHealth struct {
	BalanceCents  int64
	ExposureCents int64
	CoverageRatio float64 // 0 when there is no exposure
}
