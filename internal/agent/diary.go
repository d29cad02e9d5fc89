package agent

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// diaryEntry is one timestamped event in the run log.
type diaryEntry struct {
	At      time.Time
	Message string
}

// diary is the agent's append-only event log. It is snapshot into
// prompts to give the LLM continuity across iterations. Extraction
// workers log concurrently, so appends are serialized.
type diary struct {
	mu      sync.Mutex
	entries []diaryEntry
	now     func() time.Time
}

func newDiary(now func() time.Time) *diary {
	if now == nil {
		now = time.Now
	}
	return &diary{now: now}
}

// Log appends a formatted entry.
func (d *diary) Log(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, diaryEntry{
		At:      d.now(),
		Message: fmt.Sprintf(format, args...),
	})
}

// Len returns the number of entries.
func (d *diary) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// String renders the log one line per entry, local time.
func (d *diary) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var sb strings.Builder
	for _, e := range d.entries {
		sb.WriteString(e.At.Format("15:04:05"))
		sb.WriteString(" ")
		sb.WriteString(e.Message)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
