package narrative

import (
	"strings"

	apperrors "github.com/nightreel/narrative-backend/internal/errors"
	"github.com/nightreel/narrative-backend/internal/types"
)

// ResolveBrief picks the curated brief an output's generation must run
// from, in priority order: curated prose brief, then the episode brief
// matching the output's episode, then a micro-brief (teasers). Raw dossier
// material is never an acceptable substitute; an output with only dossiers
// fails closed.
func ResolveBrief(output *types.Output, docs []*types.SourceDoc) (string, error) {
	byKind := map[string][]*types.SourceDoc{}
	for _, d := range docs {
		byKind[d.Kind] = append(byKind[d.Kind], d)
	}

	if briefs := byKind[types.SourceKindBrief]; len(briefs) > 0 {
		return joinDocs(briefs), nil
	}
	for _, d := range byKind[types.SourceKindEpisodeBrief] {
		if output.EpisodeNumber == 0 || d.EpisodeNumber == output.EpisodeNumber {
			return d.Content, nil
		}
	}
	if micros := byKind[types.SourceKindMicroBrief]; len(micros) > 0 {
		return joinDocs(micros), nil
	}
	return "", apperrors.NewStageError(apperrors.CategoryBriefMissing,
		"no curated brief for output %s; raw dossier material is not accepted", output.ID)
}

// FilterSources applies the visibility boundary before prompts are built.
// Teasers get zero dossier context so nothing from the research pile can
// leak into a spoiler; full videos see curated brief material only, with
// the matching episode brief injected first.
func FilterSources(output *types.Output, docs []*types.SourceDoc) []*types.SourceDoc {
	switch output.Format {
	case types.FormatTeaser:
		var kept []*types.SourceDoc
		for _, d := range docs {
			if d.Kind == types.SourceKindDossier {
				continue
			}
			kept = append(kept, d)
		}
		return kept
	case types.FormatFullVideo:
		var episodeBriefs, otherBriefs []*types.SourceDoc
		for _, d := range docs {
			if !types.IsBriefKind(d.Kind) {
				continue
			}
			if d.Kind == types.SourceKindEpisodeBrief &&
				(output.EpisodeNumber == 0 || d.EpisodeNumber == output.EpisodeNumber) {
				episodeBriefs = append(episodeBriefs, d)
				continue
			}
			otherBriefs = append(otherBriefs, d)
		}
		return append(episodeBriefs, otherBriefs...)
	default:
		return docs
	}
}

func joinDocs(docs []*types.SourceDoc) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n\n")
}
