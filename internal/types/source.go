package types

import (
	"time"

	"github.com/google/uuid"
)

// Source document kinds. Brief kinds are curated collaborator products;
// dossier kinds are raw research material that must never reach a teaser
// prompt.
const (
	SourceKindDossier      = "dossier"
	SourceKindBrief        = "brief"
	SourceKindEpisodeBrief = "episode-brief"
	SourceKindMicroBrief   = "micro-brief"
)

// SourceDoc is one piece of context attached to an output's project:
// research dossiers, curated briefs, or per-episode briefs.
type SourceDoc struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID *uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`
	OutputID  *uuid.UUID `gorm:"type:uuid;index" json:"output_id,omitempty"`

	Kind    string `gorm:"column:kind;not null;index" json:"kind"`
	Title   string `gorm:"column:title" json:"title"`
	Content string `gorm:"column:content;type:text;not null" json:"content"`

	// EpisodeNumber scopes episode briefs; zero for everything else.
	EpisodeNumber int `gorm:"column:episode_number;not null;default:0" json:"episode_number"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (SourceDoc) TableName() string { return "source_doc" }

// IsBriefKind reports whether a source kind is a curated brief product as
// opposed to raw dossier material.
func IsBriefKind(kind string) bool {
	switch kind {
	case SourceKindBrief, SourceKindEpisodeBrief, SourceKindMicroBrief:
		return true
	}
	return false
}
