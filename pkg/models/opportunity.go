package models

import "time"

// Stage is one bucket in the fixed ordered set of sales-pipeline phases.
// The values must match persisted rows exactly.
type Stage string

const (
	StageNew           Stage = "new"
	StageQualification Stage = "qualification"
	StageVisit         Stage = "visit"
	StageProposal      Stage = "proposal"
	StageNegotiation   Stage = "negotiation"
	StageClosedWon     Stage = "closed_won"
	StageClosedLost    Stage = "closed_lost"
)

// Stages lists every pipeline stage in board order.
var Stages = []Stage{
	StageNew,
	StageQualification,
	StageVisit,
	StageProposal,
	StageNegotiation,
	StageClosedWon,
	StageClosedLost,
}

// ValidStage reports whether s is one of the fixed stage values.
func ValidStage(s Stage) bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// Opportunity is a movable unit of work on the pipeline board. Its stage
// changes only through a completed move, never partially.
type Opportunity struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	ClientID   string    `json:"client_id,omitempty" db:"client_id"`
	OwnerID    string    `json:"owner_id,omitempty" db:"owner_id"`
	Title      string    `json:"title" db:"title"`
	Stage      Stage     `json:"stage" db:"stage"`
	ValueCents int64     `json:"value_cents" db:"value_cents"`
	Currency   string    `json:"currency,omitempty" db:"currency"`
	Notes      string    `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
