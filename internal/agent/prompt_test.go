package agent

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestEstimateTokens(t *testing.T) {
	if got := estimateTokens(strings.Repeat("x", 400)); got != 100 {
		t.Errorf("estimateTokens(400 bytes) = %d, want 100", got)
	}
	if got := estimateTokens(""); got != 0 {
		t.Errorf("estimateTokens(\"\") = %d, want 0", got)
	}
}

func TestAdmitContentShortestFirstUnderCap(t *testing.T) {
	long := strings.Repeat("a", 400)   // 100 tokens
	medium := strings.Repeat("b", 200) // 50 tokens
	short := strings.Repeat("c", 40)   // 10 tokens

	got := admitContent([]string{long, "", medium, short, "   "}, 60)

	want := []string{short, medium}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("admitContent lengths = %v, want short then medium", lengths(got))
	}
}

func TestAdmitContentEmpty(t *testing.T) {
	if got := admitContent(nil, 100); len(got) != 0 {
		t.Errorf("admitContent(nil) = %v", got)
	}
}

func lengths(ss []string) []int {
	out := make([]int, len(ss))
	for i, s := range ss {
		out[i] = len(s)
	}
	return out
}

func TestTruncateAtSentence(t *testing.T) {
	text := strings.Repeat("This is a sentence. ", 100) // 2000 bytes

	got := truncateAtSentence(text, 100) // 400 byte cap
	if !strings.HasSuffix(got, "[truncated]") {
		t.Errorf("missing truncation marker: %q", got[len(got)-30:])
	}
	body := strings.TrimSuffix(got, " [truncated]")
	if !strings.HasSuffix(body, ".") {
		t.Errorf("clip did not end at a sentence boundary: %q", body[len(body)-20:])
	}
	if len(body) > 400 {
		t.Errorf("clip length %d exceeds cap", len(body))
	}

	if got := truncateAtSentence("short", 100); got != "short" {
		t.Errorf("short text modified: %q", got)
	}
}

func TestBuildStepPromptSections(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	got := buildStepPrompt(now, "What is quicksort?",
		[]string{"page one", "page two"}, "09:00:00 started",
		[]string{"https://a.example"}, 1000)

	for _, want := range []string{
		"August 25, 2026",
		"What is quicksort?",
		"page one",
		"page two",
		"09:00:00 started",
		"- https://a.example",
		`"answer"`,
		"searchQuery",
		"questionsToAnswer",
		"references",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestParseQueryLines(t *testing.T) {
	reply := `1. quicksort algorithm
- quicksort pivot selection

* quicksort worst case
quicksort history
quicksort vs mergesort`

	got := parseQueryLines(reply, 4)
	want := []string{
		"quicksort algorithm",
		"quicksort pivot selection",
		"quicksort worst case",
		"quicksort history",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseQueryLines() = %v, want %v", got, want)
	}
}

func TestAppendSources(t *testing.T) {
	got := appendSources("The answer.\n", []string{"https://a.example", "https://b.example"})
	want := "The answer.\n\nSources:\nhttps://a.example\nhttps://b.example"
	if got != want {
		t.Errorf("appendSources() = %q, want %q", got, want)
	}

	if got := appendSources("The answer.", nil); got != "The answer." {
		t.Errorf("appendSources with no sources = %q", got)
	}
}

func TestBuildBeastModePrompt(t *testing.T) {
	got := buildBeastModePrompt("What is quicksort?", "09:00:00 searched")
	if !strings.Contains(got, "Beast Mode Activated") {
		t.Error("missing activation phrase")
	}
	if !strings.Contains(got, "09:00:00 searched") {
		t.Error("missing diary content")
	}
	if !strings.Contains(got, "What is quicksort?") {
		t.Error("missing question")
	}
}
