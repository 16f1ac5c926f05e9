package types

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline stages tracked by gates.
const (
	StageStoryOutline = "STORY_OUTLINE"
	StageScript       = "SCRIPT"
)

// Stage gate statuses.
const (
	GateNotStarted    = "NOT_STARTED"
	GateGenerating    = "GENERATING"
	GatePendingReview = "PENDING_REVIEW"
	GateApproved      = "APPROVED"
	GateRejected      = "REJECTED"
)

// StageGate records where an output sits in the review pipeline, one row
// per (output, stage), upserted as stages run.
type StageGate struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OutputID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stage_gate_output_stage" json:"output_id"`
	Output   *Output   `gorm:"constraint:OnDelete:CASCADE;foreignKey:OutputID;references:ID" json:"output,omitempty"`

	Stage  string `gorm:"column:stage;not null;uniqueIndex:idx_stage_gate_output_stage" json:"stage"`
	Status string `gorm:"column:status;not null;default:'NOT_STARTED'" json:"status"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (StageGate) TableName() string { return "stage_gate" }
