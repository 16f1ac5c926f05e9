package narrative

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	apperrors "github.com/nightreel/narrative-backend/internal/errors"
	"github.com/nightreel/narrative-backend/internal/types"
)

func doc(kind, content string, episode int) *types.SourceDoc {
	return &types.SourceDoc{ID: uuid.New(), Kind: kind, Content: content, EpisodeNumber: episode}
}

func TestResolveBriefPrefersCuratedBrief(t *testing.T) {
	out := &types.Output{ID: uuid.New(), EpisodeNumber: 3}
	docs := []*types.SourceDoc{
		doc(types.SourceKindDossier, "raw pile", 0),
		doc(types.SourceKindEpisodeBrief, "episode brief", 3),
		doc(types.SourceKindBrief, "curated A", 0),
		doc(types.SourceKindBrief, "curated B", 0),
	}
	got, err := ResolveBrief(out, docs)
	if err != nil {
		t.Fatalf("ResolveBrief: %v", err)
	}
	if got != "curated A\n\ncurated B" {
		t.Fatalf("brief = %q", got)
	}
}

func TestResolveBriefFallsBackToMatchingEpisodeBrief(t *testing.T) {
	out := &types.Output{ID: uuid.New(), EpisodeNumber: 2}
	docs := []*types.SourceDoc{
		doc(types.SourceKindEpisodeBrief, "wrong episode", 1),
		doc(types.SourceKindEpisodeBrief, "right episode", 2),
	}
	got, err := ResolveBrief(out, docs)
	if err != nil {
		t.Fatalf("ResolveBrief: %v", err)
	}
	if got != "right episode" {
		t.Fatalf("brief = %q", got)
	}
}

func TestResolveBriefMicroBriefForTeasers(t *testing.T) {
	out := &types.Output{ID: uuid.New(), Format: types.FormatTeaser}
	docs := []*types.SourceDoc{doc(types.SourceKindMicroBrief, "micro", 0)}
	got, err := ResolveBrief(out, docs)
	if err != nil {
		t.Fatalf("ResolveBrief: %v", err)
	}
	if got != "micro" {
		t.Fatalf("brief = %q", got)
	}
}

func TestResolveBriefFailsClosedOnDossierOnly(t *testing.T) {
	out := &types.Output{ID: uuid.New()}
	docs := []*types.SourceDoc{
		doc(types.SourceKindDossier, "raw research", 0),
		doc(types.SourceKindDossier, "more raw research", 0),
	}
	_, err := ResolveBrief(out, docs)
	if err == nil {
		t.Fatal("expected fail-closed error")
	}
	if !errors.Is(err, apperrors.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if cat, ok := apperrors.StageCategory(err); !ok || cat != apperrors.CategoryBriefMissing {
		t.Fatalf("category = %q (ok=%v)", cat, ok)
	}
}

func TestFilterSourcesTeaserDropsDossiers(t *testing.T) {
	out := &types.Output{Format: types.FormatTeaser}
	docs := []*types.SourceDoc{
		doc(types.SourceKindDossier, "raw", 0),
		doc(types.SourceKindMicroBrief, "micro", 0),
		doc(types.SourceKindBrief, "brief", 0),
	}
	kept := FilterSources(out, docs)
	if len(kept) != 2 {
		t.Fatalf("kept = %d docs", len(kept))
	}
	for _, d := range kept {
		if d.Kind == types.SourceKindDossier {
			t.Fatal("dossier leaked into teaser sources")
		}
	}
}

func TestFilterSourcesFullVideoBriefsOnlyEpisodeFirst(t *testing.T) {
	out := &types.Output{Format: types.FormatFullVideo, EpisodeNumber: 4}
	docs := []*types.SourceDoc{
		doc(types.SourceKindBrief, "series brief", 0),
		doc(types.SourceKindDossier, "raw", 0),
		doc(types.SourceKindEpisodeBrief, "other episode", 2),
		doc(types.SourceKindEpisodeBrief, "this episode", 4),
	}
	kept := FilterSources(out, docs)
	if len(kept) != 3 {
		t.Fatalf("kept = %d docs", len(kept))
	}
	if kept[0].Content != "this episode" {
		t.Fatalf("matching episode brief should come first, got %q", kept[0].Content)
	}
	for _, d := range kept {
		if d.Kind == types.SourceKindDossier {
			t.Fatal("dossier kept for full video")
		}
	}
}

func TestFilterSourcesUnknownFormatPassesThrough(t *testing.T) {
	out := &types.Output{Format: "shortform"}
	docs := []*types.SourceDoc{doc(types.SourceKindDossier, "raw", 0)}
	if kept := FilterSources(out, docs); len(kept) != 1 {
		t.Fatalf("kept = %d docs", len(kept))
	}
}
