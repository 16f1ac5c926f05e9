package filmmaker

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/logger"
)

func TestExtractTemporalHints(t *testing.T) {
	cases := []struct {
		text string
		want []string
	}{
		{"In 1987 the plant closed.", []string{"1987"}},
		{"By the 1950s the town had emptied.", []string{"1950s"}},
		{"Back in the '60s, nobody asked.", []string{"1960s"}},
		{"The '20s changed everything.", []string{"2020s"}},
		{"It sat there from 1987 until 1987.", []string{"1987"}},
		{"In 1799 or 2031 nothing matches.", nil},
		{"From 1962 through the 1970s and into the '80s.", []string{"1962", "1970s", "1980s"}},
	}
	for _, c := range cases {
		if got := ExtractTemporalHints(c.text); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("ExtractTemporalHints(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestSegmentForIndex(t *testing.T) {
	shares := SegmentShares{Hook: 0.10, Context: 0.15, Rising: 0.40, Climax: 0.20, Resolution: 0.10, CTA: 0.05}
	cases := map[int]string{
		0:  "hook",
		2:  "context",
		5:  "rising",
		13: "climax",
		17: "resolution",
		19: "cta",
	}
	for idx, want := range cases {
		if got := segmentForIndex(idx, 20, shares); got != want {
			t.Fatalf("segmentForIndex(%d) = %q, want %q", idx, got, want)
		}
	}
	if got := segmentForIndex(0, 0, shares); got != "rising" {
		t.Fatalf("empty list should default to rising, got %q", got)
	}
}

func TestTensionForIndex(t *testing.T) {
	curve := []string{"low", "medium", "high", "peak"}
	if got := tensionForIndex(0, 8, curve); got != "low" {
		t.Fatalf("first scene tension = %q", got)
	}
	if got := tensionForIndex(7, 8, curve); got != "peak" {
		t.Fatalf("last scene tension = %q", got)
	}
	if got := tensionForIndex(4, 8, curve); got != "high" {
		t.Fatalf("mid scene tension = %q", got)
	}
	if got := tensionForIndex(0, 8, nil); got != "medium" {
		t.Fatalf("missing curve should default to medium, got %q", got)
	}
}

func TestComposerRefines(t *testing.T) {
	fake := &fakeClient{structuredByTask: map[string]string{
		llm.TaskComposer: `{"scenes":[
			{"order":0,"visualDescription":"A rusted sedan under a tarp in a police impound lot, flat morning light","sceneEnvironment":"impound lot"},
			{"order":1,"visualDescription":"A yellowed claim ticket pinned to a corkboard","sceneEnvironment":"records office"}]}`,
	}}
	c := NewComposer(logger.NewNop(), fake)

	scenes := []SceneInput{
		{Order: 0, Narration: "Nobody came for the car.", Duration: 5},
		{Order: 1, Narration: "The ticket was never pulled.", Duration: 4},
	}
	got, call := c.Refine(context.Background(), scenes, ProductionContext{Title: "The Unclaimed Car"})

	if got[0].VisualDescription == "" || got[0].SceneEnvironment != "impound lot" {
		t.Fatalf("scene 0 = %+v", got[0])
	}
	if call.Model != "gpt-5.2" || call.Usage.TotalTokens != 280 {
		t.Fatalf("call usage = %+v", call)
	}
	if got[1].SceneEnvironment != "records office" {
		t.Fatalf("scene 1 = %+v", got[1])
	}
	// untouched fields survive the pass
	if got[0].Narration != "Nobody came for the car." || got[0].Duration != 5 {
		t.Fatalf("scene fields lost: %+v", got[0])
	}
}

func TestComposerKeepsScenesOnError(t *testing.T) {
	fake := &fakeClient{err: errors.New("provider down")}
	c := NewComposer(logger.NewNop(), fake)

	scenes := []SceneInput{{Order: 0, Narration: "a", VisualDescription: "existing"}}
	got, call := c.Refine(context.Background(), scenes, ProductionContext{})
	if !reflect.DeepEqual(got, scenes) {
		t.Fatalf("error must degrade to input: %+v", got)
	}
	if call.Model != "" {
		t.Fatalf("failed call should report zero usage: %+v", call)
	}
}

func TestComposerKeepsScenesOnCountMismatch(t *testing.T) {
	fake := &fakeClient{structuredByTask: map[string]string{
		llm.TaskComposer: `{"scenes":[{"order":0,"visualDescription":"only one","sceneEnvironment":"x"}]}`,
	}}
	c := NewComposer(logger.NewNop(), fake)

	scenes := []SceneInput{
		{Order: 0, Narration: "a"},
		{Order: 1, Narration: "b"},
	}
	got, _ := c.Refine(context.Background(), scenes, ProductionContext{})
	if !reflect.DeepEqual(got, scenes) {
		t.Fatalf("count mismatch must degrade to input: %+v", got)
	}
}

func TestComposerStripsBaseStyleTags(t *testing.T) {
	fake := &fakeClient{structuredByTask: map[string]string{
		llm.TaskComposer: `{"scenes":[{"order":0,"visualDescription":"cinematic, a dark pier at dusk, 35mm film grain","sceneEnvironment":"pier"}]}`,
	}}
	c := NewComposer(logger.NewNop(), fake)

	scenes := []SceneInput{{Order: 0, Narration: "a"}}
	got, _ := c.Refine(context.Background(), scenes, ProductionContext{
		BaseStylePrompt: "cinematic, 35mm film grain",
	})
	if got[0].VisualDescription != "a dark pier at dusk" {
		t.Fatalf("style tags not stripped: %q", got[0].VisualDescription)
	}
}

func TestComposerPromptAnnotations(t *testing.T) {
	fake := &fakeClient{structuredByTask: map[string]string{
		llm.TaskComposer: `{"scenes":[
			{"order":0,"visualDescription":"d0","sceneEnvironment":"lot"},
			{"order":1,"visualDescription":"d1","sceneEnvironment":"lot"}]}`,
	}}
	c := NewComposer(logger.NewNop(), fake)

	scenes := []SceneInput{
		{Order: 0, Narration: "In 1987 the lot was full.", SceneEnvironment: "impound lot", ReferenceImageURL: "https://img/1.png"},
		{Order: 1, Narration: "Then it wasn't.", SceneEnvironment: "impound lot"},
	}
	c.Refine(context.Background(), scenes, ProductionContext{
		Title: "t",
		Shape: NarrativeShape{
			Segments:     SegmentShares{Hook: 0.5, Context: 0.5},
			TensionCurve: []string{"low", "peak"},
		},
	})

	prompt := fake.prompts[0]
	for _, want := range []string{
		"Temporal setting referenced in narration: 1987",
		"impound lot (scenes 0, 1)",
		"(hook segment, low tension, has pinned reference image)",
		"(context segment, peak tension)",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestStripStyleTags(t *testing.T) {
	got := stripStyleTags("cinematic, a door, photorealistic", "cinematic, photorealistic")
	if got != "a door" {
		t.Fatalf("got %q", got)
	}
	if got := stripStyleTags("a door", ""); got != "a door" {
		t.Fatalf("empty style must be a no-op, got %q", got)
	}
}
