package types

import (
	"time"

	"github.com/google/uuid"
)

// Scene is one ordered slot of an output's script, carrying the narration
// and the visual direction the filmmaker agents produced for it. Scenes are
// replaced wholesale on every (re)generation, never patched.
type Scene struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OutputID uuid.UUID `gorm:"type:uuid;not null;index" json:"output_id"`
	Output   *Output   `gorm:"constraint:OnDelete:CASCADE;foreignKey:OutputID;references:ID" json:"output,omitempty"`

	// Order is dense and zero-based within the output.
	Order     int     `gorm:"column:scene_order;not null" json:"order"`
	Narration string  `gorm:"column:narration;type:text;not null" json:"narration"`
	Duration  float64 `gorm:"column:duration;not null;default:0" json:"duration"`

	VisualDescription string `gorm:"column:visual_description;type:text" json:"visual_description"`
	SceneEnvironment  string `gorm:"column:scene_environment" json:"scene_environment"`
	CameraMotion      string `gorm:"column:camera_motion;type:text" json:"camera_motion"`

	// EndFrame and BlendWeight stay null while end-frame generation is
	// switched off; the columns exist so enabling it is not a migration.
	EndFrame    *string  `gorm:"column:end_frame;type:text" json:"end_frame,omitempty"`
	BlendWeight *float64 `gorm:"column:blend_weight" json:"blend_weight,omitempty"`

	// ReferenceImageURL points at a user-supplied image pinned to this slot.
	ReferenceImageURL string `gorm:"column:reference_image_url" json:"reference_image_url"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Scene) TableName() string { return "scene" }

// SceneReference is a user-pinned reference image for a scene slot,
// resolved by order before generation runs.
type SceneReference struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OutputID uuid.UUID `gorm:"type:uuid;not null;index" json:"output_id"`
	Output   *Output   `gorm:"constraint:OnDelete:CASCADE;foreignKey:OutputID;references:ID" json:"output,omitempty"`

	SceneOrder  int    `gorm:"column:scene_order;not null" json:"scene_order"`
	ImageURL    string `gorm:"column:image_url;not null" json:"image_url"`
	Description string `gorm:"column:description;type:text" json:"description"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SceneReference) TableName() string { return "scene_reference" }
