package agent

import "strings"

// hedgingPhrases disqualify an answer outright.
var hedgingPhrases = []string{
	"i don't know",
	"unsure",
	"not available",
	"insufficient information",
}

// sectionKeywords are the structural sections a full report answer
// must mention.
var sectionKeywords = []string{"summary", "background", "analysis", "conclusion"}

// discourseMarkers signal connected reasoning. Case-sensitive.
var discourseMarkers = []string{"First", "Additionally", "Furthermore", "In conclusion"}

// isDefinitive decides whether an answer is done. The strict variant
// requires report structure and enough references; the simple variant
// (short-answer profiles) only requires length over 30.
func (a *Agent) isDefinitive(answer string, refCount int) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range hedgingPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}

	if a.cfg.SimpleDefinitive {
		return len(answer) > 30
	}

	if len(answer) < a.cfg.MinAnswerLength {
		return false
	}
	for _, kw := range sectionKeywords {
		if !strings.Contains(lower, kw) {
			return false
		}
	}
	if !strings.Contains(answer, "\n\n") {
		return false
	}
	marker := false
	for _, m := range discourseMarkers {
		if strings.Contains(answer, m) {
			marker = true
			break
		}
	}
	if !marker {
		return false
	}
	return refCount >= a.cfg.MinSources
}
