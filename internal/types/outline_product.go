package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StoryOutlineProduct persists the approved narrative blueprint for an
// output. Payload is the full outline JSON; downstream stages read it back
// rather than regenerating.
type StoryOutlineProduct struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OutputID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"output_id"`
	Output   *Output   `gorm:"constraint:OnDelete:CASCADE;foreignKey:OutputID;references:ID" json:"output,omitempty"`

	Payload datatypes.JSON `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	Version int            `gorm:"column:version;not null;default:1" json:"version"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (StoryOutlineProduct) TableName() string { return "story_outline_product" }

// MonetizationProduct persists the monetization-facing slice of the outline
// (hook variants, CTA approach, resolution level) for planner tooling.
type MonetizationProduct struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OutputID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"output_id"`
	Output   *Output   `gorm:"constraint:OnDelete:CASCADE;foreignKey:OutputID;references:ID" json:"output,omitempty"`

	Payload datatypes.JSON `gorm:"column:payload;type:jsonb;not null" json:"payload"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (MonetizationProduct) TableName() string { return "monetization_product" }
