// Package decision models the agent's interpretation of LLM replies.
package decision

import "strings"

// Action is the normalized directive an LLM reply carries.
type Action string

const (
	ActionAnswer  Action = "answer"
	ActionSearch  Action = "search"
	ActionReflect Action = "reflect"
	ActionUnknown Action = "unknown"
)

// Reference cites a source URL, optionally with the quoted passage.
type Reference struct {
	ExactQuote string `json:"exactQuote,omitempty"`
	URL        string `json:"url"`
}

// Response is one decoded LLM decision.
type Response struct {
	Action            Action
	Thoughts          string
	SearchQuery       string
	QuestionsToAnswer []string
	Answer            string
	References        []Reference
}

// normalizeAction maps the free-form action string onto a variant.
// Matching is case-insensitive; anything unrecognized is unknown.
func normalizeAction(raw string) Action {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "answer":
		return ActionAnswer
	case "search":
		return ActionSearch
	case "reflect":
		return ActionReflect
	default:
		return ActionUnknown
	}
}
