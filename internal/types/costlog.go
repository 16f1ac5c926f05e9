package types

import (
	"time"

	"github.com/google/uuid"
)

// CostLog is one generation call's token accounting. Rows are written
// best-effort after the fact; pricing math happens elsewhere.
type CostLog struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OutputID *uuid.UUID `gorm:"type:uuid;index" json:"output_id,omitempty"`

	// Resource is the pipeline component that spent the tokens
	// ("story-architect", "writer", "script-validator", ...).
	Resource string `gorm:"column:resource;not null" json:"resource"`
	// Action distinguishes calls within a resource ("generate", "validate",
	// "retry").
	Action string `gorm:"column:action;not null" json:"action"`

	Provider string `gorm:"column:provider" json:"provider"`
	Model    string `gorm:"column:model" json:"model"`

	InputTokens  int `gorm:"column:input_tokens;not null;default:0" json:"input_tokens"`
	OutputTokens int `gorm:"column:output_tokens;not null;default:0" json:"output_tokens"`
	TotalTokens  int `gorm:"column:total_tokens;not null;default:0" json:"total_tokens"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (CostLog) TableName() string { return "cost_log" }
