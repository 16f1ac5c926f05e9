package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Output formats.
const (
	FormatTeaser    = "teaser"
	FormatFullVideo = "fullVideo"
)

// Output lifecycle statuses.
const (
	OutputStatusDraft      = "DRAFT"
	OutputStatusGenerating = "GENERATING"
	OutputStatusReady      = "READY"
	OutputStatusFailed     = "FAILED"
)

// Output is one video deliverable: a teaser or a full episode. The script
// prose, its scenes, and the stage gates hang off this row.
type Output struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID *uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`

	Title  string `gorm:"column:title" json:"title"`
	Format string `gorm:"column:format;not null" json:"format"`

	// NarrativeRole is the teaser's tonal role; empty for outputs that have
	// none (full videos, hook-only teasers without a role).
	NarrativeRole     string `gorm:"column:narrative_role" json:"narrative_role"`
	HookOnly          bool   `gorm:"column:hook_only;not null;default:false" json:"hook_only"`
	SelectedHookLevel string `gorm:"column:selected_hook_level" json:"selected_hook_level"`
	EpisodeNumber     int    `gorm:"column:episode_number;not null;default:0" json:"episode_number"`

	// TargetDuration in seconds; scene count derives from it at 5s a slot.
	TargetDuration int `gorm:"column:target_duration;not null;default:0" json:"target_duration"`

	VoiceID        string `gorm:"column:voice_id" json:"voice_id"`
	WordsPerMinute int    `gorm:"column:words_per_minute;not null;default:0" json:"words_per_minute"`

	UserNotes          string `gorm:"column:user_notes;type:text" json:"user_notes"`
	EditorialObjective string `gorm:"column:editorial_objective;type:text" json:"editorial_objective"`
	ScriptStyle        string `gorm:"column:script_style;type:text" json:"script_style"`

	// ScriptText is the writer's long-form prose the screenwriter segments.
	ScriptText string `gorm:"column:script_text;type:text" json:"script_text"`

	Status         string `gorm:"column:status;not null;default:'DRAFT'" json:"status"`
	ScriptApproved bool   `gorm:"column:script_approved;not null;default:false" json:"script_approved"`
	ImagesApproved bool   `gorm:"column:images_approved;not null;default:false" json:"images_approved"`

	// MonetizationMeta carries the planner's strategic payload: role,
	// format type, strategic notes, style and editorial overrides, avoid
	// patterns.
	MonetizationMeta datatypes.JSON `gorm:"column:monetization_meta;type:jsonb" json:"monetization_meta"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Output) TableName() string { return "output" }
