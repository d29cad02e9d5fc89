package decision

import (
	"errors"
	"strings"
	"testing"
)

func TestParseStrict_WellFormed(t *testing.T) {
	raw := `{
		"action": "search",
		"thoughts": "need more data",
		"searchQuery": "quicksort partition scheme"
	}`

	resp, err := Parse(raw, ModeStrict)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if resp.Action != ActionSearch {
		t.Errorf("Action = %q, want %q", resp.Action, ActionSearch)
	}
	if resp.SearchQuery != "quicksort partition scheme" {
		t.Errorf("SearchQuery = %q", resp.SearchQuery)
	}
}

func TestParseStrict_ActionCaseInsensitive(t *testing.T) {
	tests := []struct {
		raw  string
		want Action
	}{
		{`{"action": "ANSWER", "answer": "x"}`, ActionAnswer},
		{`{"action": "Search", "searchQuery": "q"}`, ActionSearch},
		{`{"action": "rEfLeCt"}`, ActionReflect},
		{`{"action": "summarize"}`, ActionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			resp, err := Parse(tt.raw, ModeStrict)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if resp.Action != tt.want {
				t.Errorf("Action = %q, want %q", resp.Action, tt.want)
			}
		})
	}
}

func TestParseStrict_References(t *testing.T) {
	raw := `{"action":"answer","answer":"done","references":[{"exactQuote":"a quote","url":"https://example.com"}]}`

	resp, err := Parse(raw, ModeStrict)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.References) != 1 {
		t.Fatalf("got %d references, want 1", len(resp.References))
	}
	if resp.References[0].URL != "https://example.com" {
		t.Errorf("reference URL = %q", resp.References[0].URL)
	}
}

func TestParseStrict_RepairsTemplateTokens(t *testing.T) {
	raw := "<|im_start|>assistant\nHere is my decision:\n" +
		`{"action": "answer", "answer": "repaired"}` + "\n<|im_end|>"

	resp, err := Parse(raw, ModeStrict)
	if err != nil {
		t.Fatalf("Parse() should repair template tokens: %v", err)
	}
	if resp.Action != ActionAnswer || resp.Answer != "repaired" {
		t.Errorf("got %+v", resp)
	}
}

func TestParseStrict_RepairsClipping(t *testing.T) {
	raw := "Sure! Here's the JSON you asked for:\n" +
		`{"action": "reflect", "questionsToAnswer": ["a?", "b?"]}` +
		"\nLet me know if you need anything else."

	resp, err := Parse(raw, ModeStrict)
	if err != nil {
		t.Fatalf("Parse() should clip surrounding prose: %v", err)
	}
	if resp.Action != ActionReflect || len(resp.QuestionsToAnswer) != 2 {
		t.Errorf("got %+v", resp)
	}
}

func TestParseStrict_RepairsMissingComma(t *testing.T) {
	raw := "{\"action\": \"answer\"\n\"answer\": \"fixed\"}"

	resp, err := Parse(raw, ModeStrict)
	if err != nil {
		t.Fatalf("Parse() should insert missing commas: %v", err)
	}
	if resp.Answer != "fixed" {
		t.Errorf("Answer = %q", resp.Answer)
	}
}

func TestParseStrict_FinalAnswerMarker(t *testing.T) {
	raw := "I could not produce JSON.\nFINAL ANSWER: the answer is 42"

	resp, err := Parse(raw, ModeStrict)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if resp.Action != ActionAnswer {
		t.Errorf("Action = %q", resp.Action)
	}
	if resp.Answer != "the answer is 42" {
		t.Errorf("Answer = %q", resp.Answer)
	}
}

func TestParseStrict_Unparsable(t *testing.T) {
	_, err := Parse("complete nonsense with no structure", ModeStrict)
	if !errors.Is(err, ErrUnparsable) {
		t.Errorf("Parse() = %v, want %v", err, ErrUnparsable)
	}
}

func TestParseLenient_ValidJSONPassesThrough(t *testing.T) {
	raw := `{"action": "search", "searchQuery": "pivot selection"}`

	resp, err := Parse(raw, ModeLenient)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if resp.Action != ActionSearch {
		t.Errorf("Action = %q, want search", resp.Action)
	}
}

func TestParseLenient_NeverFails(t *testing.T) {
	inputs := []string{
		"",
		"plain prose answer",
		"{broken json",
		"```json\n{\"not\": \"closed\"\n```",
		"### Heading\nbody text",
		strings.Repeat("x", 10000),
	}

	for _, raw := range inputs {
		resp, err := Parse(raw, ModeLenient)
		if err != nil {
			t.Errorf("Parse(%.20q) lenient mode returned error: %v", raw, err)
		}
		if resp.Action != ActionAnswer {
			t.Errorf("Parse(%.20q) Action = %q, want answer", raw, resp.Action)
		}
	}
}

func TestParseLenient_StripsFencesAndHeadings(t *testing.T) {
	raw := "### Summary\n```\nsome fenced detail\n```\ntrailing prose"

	resp, _ := Parse(raw, ModeLenient)
	if strings.Contains(resp.Answer, "```") {
		t.Errorf("fences not stripped: %q", resp.Answer)
	}
	if !strings.Contains(resp.Answer, "Summary:") {
		t.Errorf("heading not normalized: %q", resp.Answer)
	}
	if !strings.Contains(resp.Answer, "some fenced detail") {
		t.Errorf("fenced content lost: %q", resp.Answer)
	}
}

func TestNormalizeAction(t *testing.T) {
	tests := []struct {
		input string
		want  Action
	}{
		{"answer", ActionAnswer},
		{" ANSWER ", ActionAnswer},
		{"search", ActionSearch},
		{"reflect", ActionReflect},
		{"", ActionUnknown},
		{"banana", ActionUnknown},
	}

	for _, tt := range tests {
		if got := normalizeAction(tt.input); got != tt.want {
			t.Errorf("normalizeAction(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
