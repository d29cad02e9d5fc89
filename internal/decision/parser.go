package decision

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrUnparsable is returned by the strict parser when no decoding
// strategy produced a response.
var ErrUnparsable = errors.New("decision: unparsable llm response")

// Mode selects how tolerant the parser is.
type Mode string

const (
	// ModeStrict decodes JSON with repair fallbacks and may fail.
	ModeStrict Mode = "strict"
	// ModeLenient never fails; unparsable payloads become answers.
	ModeLenient Mode = "lenient"
)

// finalAnswerMarker lets models escape the JSON contract explicitly.
const finalAnswerMarker = "FINAL ANSWER:"

// chatTemplateTokens are artifacts some chat templates leak into output.
var chatTemplateTokens = []string{
	"<|im_start|>", "<|im_end|>", "<|endoftext|>",
	"<|assistant|>", "<|user|>", "<|system|>",
	"<s>", "</s>",
}

var (
	// "...\n "..." needs a separating comma.
	missingCommaPattern = regexp.MustCompile(`"(\s*\n\s*)"`)
	// ":\n "..." needs the value on the same line.
	danglingColonPattern = regexp.MustCompile(`:\s*\n\s*"`)
	codeFencePattern     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	headingPattern       = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
)

// wireResponse mirrors the JSON contract the LLM is instructed to follow.
type wireResponse struct {
	Action            string      `json:"action"`
	Thoughts          string      `json:"thoughts"`
	SearchQuery       string      `json:"searchQuery"`
	QuestionsToAnswer []string    `json:"questionsToAnswer"`
	Answer            string      `json:"answer"`
	References        []Reference `json:"references"`
}

// Parse decodes an LLM reply under the given mode.
func Parse(raw string, mode Mode) (Response, error) {
	if mode == ModeLenient {
		return parseLenient(raw), nil
	}
	return parseStrict(raw)
}

// parseStrict tries raw decode, then repaired decode, then the final
// answer marker. It is allowed to fail.
func parseStrict(raw string) (Response, error) {
	if resp, ok := decodeWire(raw); ok {
		return resp, nil
	}

	if resp, ok := decodeWire(repair(raw)); ok {
		return resp, nil
	}

	if idx := strings.Index(raw, finalAnswerMarker); idx >= 0 {
		answer := strings.TrimSpace(raw[idx+len(finalAnswerMarker):])
		if answer != "" {
			return Response{Action: ActionAnswer, Answer: answer}, nil
		}
	}

	return Response{}, ErrUnparsable
}

func decodeWire(raw string) (Response, bool) {
	var wire wireResponse
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return Response{}, false
	}
	return Response{
		Action:            normalizeAction(wire.Action),
		Thoughts:          wire.Thoughts,
		SearchQuery:       wire.SearchQuery,
		QuestionsToAnswer: wire.QuestionsToAnswer,
		Answer:            wire.Answer,
		References:        wire.References,
	}, true
}

// repair applies the mechanical fixes that recover most malformed
// model JSON: leaked template tokens, prose around the object, and
// missing commas after line breaks.
func repair(raw string) string {
	s := raw
	for _, token := range chatTemplateTokens {
		s = strings.ReplaceAll(s, token, "")
	}
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}

	s = missingCommaPattern.ReplaceAllString(s, "\",$1\"")
	s = danglingColonPattern.ReplaceAllString(s, ": \"")
	return s
}

// parseLenient treats the whole payload as prose and returns it as an
// answer. It never rejects.
func parseLenient(raw string) Response {
	if resp, ok := decodeWire(raw); ok && resp.Action != ActionUnknown {
		return resp
	}

	s := raw
	for _, token := range chatTemplateTokens {
		s = strings.ReplaceAll(s, token, "")
	}

	// Unwrap fenced blocks, keeping their contents.
	s = codeFencePattern.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, "```", "")

	// Markdown headings become plain paragraph leads.
	s = headingPattern.ReplaceAllString(s, "$1:")

	// A stray object wrapper is a JSON artefact, not content.
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}"))
	}

	return Response{Action: ActionAnswer, Answer: s}
}
