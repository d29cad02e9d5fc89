package agent

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const systemPrompt = `You are an autonomous research agent. You search the web, read
sources, and answer questions with citations. At every step you decide
on exactly one action and reply strictly in the JSON schema you are
given. Never invent sources.`

const responseSchema = `{
  "action": "answer" | "search" | "reflect",
  "thoughts": "your reasoning",
  "searchQuery": "next query if action is search, else null",
  "questionsToAnswer": ["sub-questions if action is reflect"] | null,
  "answer": "the full answer if action is answer, else null",
  "references": [{"exactQuote": "...", "url": "..."}] | null
}`

// estimateTokens approximates token count at four bytes per token.
// A real tokenizer can replace this behind the same accounting.
func estimateTokens(s string) int {
	return len(s) / 4
}

// admitContent selects extracted page texts under the aggregate token
// cap, shortest first. Short pages from many hosts beat one long page.
func admitContent(contents []string, tokenCap int) []string {
	kept := make([]string, 0, len(contents))
	for _, c := range contents {
		if strings.TrimSpace(c) != "" {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return len(kept[i]) < len(kept[j]) })

	var admitted []string
	total := 0
	for _, c := range kept {
		t := estimateTokens(c)
		if total+t > tokenCap {
			break
		}
		total += t
		admitted = append(admitted, c)
	}
	return admitted
}

// truncateAtSentence clips text to roughly maxTokens, backing up to a
// sentence boundary when one exists in the second half of the clip.
func truncateAtSentence(text string, maxTokens int) string {
	maxBytes := maxTokens * 4
	if len(text) <= maxBytes {
		return text
	}
	clipped := text[:maxBytes]
	if idx := strings.LastIndex(clipped, ". "); idx > maxBytes/2 {
		clipped = clipped[:idx+1]
	}
	return clipped + " [truncated]"
}

// buildStepPrompt assembles the per-iteration prompt: date, question,
// gathered evidence, the diary, and visited references.
func buildStepPrompt(now time.Time, question string, contents []string, diaryLog string, visited []string, contentTokenCap int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Current date: %s\n\n", now.Format("January 2, 2006"))
	fmt.Fprintf(&sb, "Research question:\n%s\n\n", question)

	if len(contents) > 0 {
		sb.WriteString("Gathered evidence:\n")
		joined := strings.Join(contents, "\n\n---\n\n")
		sb.WriteString(truncateAtSentence(joined, contentTokenCap))
		sb.WriteString("\n\n")
	}

	if diaryLog != "" {
		sb.WriteString("Research diary so far:\n")
		sb.WriteString(diaryLog)
		sb.WriteString("\n\n")
	}

	if len(visited) > 0 {
		sb.WriteString("Visited references:\n")
		for _, u := range visited {
			sb.WriteString("- " + u + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Decide your next step. Pick exactly one action: " +
		"\"answer\" when the evidence supports a definitive, well-structured " +
		"answer with summary, background, analysis and conclusion sections; " +
		"\"search\" with a searchQuery when you need more evidence; " +
		"\"reflect\" with questionsToAnswer when the question should be " +
		"broken into sub-questions.\n\n")
	sb.WriteString("Respond strictly with JSON in this schema:\n")
	sb.WriteString(responseSchema)

	return sb.String()
}

// buildExpandQueriesPrompt asks for initial query variations.
func buildExpandQueriesPrompt(question string, max int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate up to %d distinct web search queries that together "+
		"cover this research question from different angles. One query per "+
		"line, no numbering, no commentary.\n\nQuestion: %s\n", max, question)
	return sb.String()
}

// parseQueryLines splits an expansion reply into clean queries.
func parseQueryLines(reply string, max int) []string {
	var queries []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. \t"))
		if line == "" {
			continue
		}
		queries = append(queries, line)
		if len(queries) >= max {
			break
		}
	}
	return queries
}

// buildReflectionPrompt asks the LLM to expand an overly short answer
// using the diary.
func buildReflectionPrompt(question, answer, diaryLog string) string {
	var sb strings.Builder
	sb.WriteString("Your previous answer was too short to be useful.\n\n")
	fmt.Fprintf(&sb, "Question: %s\n", question)
	fmt.Fprintf(&sb, "Previous answer: %s\n\n", answer)
	if diaryLog != "" {
		sb.WriteString("Research diary:\n")
		sb.WriteString(diaryLog)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Rewrite the answer in full detail, using everything learned " +
		"so far. Reply with the expanded answer text only.")
	return sb.String()
}

// buildBeastModePrompt is the last-resort prompt: answer now, with
// whatever the diary holds.
func buildBeastModePrompt(question, diaryLog string) string {
	var sb strings.Builder
	sb.WriteString("Beast Mode Activated.\n\n")
	sb.WriteString("All budgets are exhausted. You must now produce your " +
		"best-effort final answer to the question below, using the research " +
		"diary as your only evidence. Do not refuse. Do not say you are " +
		"unsure. Give the most complete answer the diary supports.\n\n")
	fmt.Fprintf(&sb, "Question: %s\n\n", question)
	if diaryLog != "" {
		sb.WriteString("Research diary:\n")
		sb.WriteString(diaryLog)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Reply with the final answer text only.")
	return sb.String()
}

// appendSources attaches the visited-URL appendix to an answer.
func appendSources(answer string, visited []string) string {
	if len(visited) == 0 {
		return answer
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(answer, "\n"))
	sb.WriteString("\n\nSources:\n")
	for _, u := range visited {
		sb.WriteString(u + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
