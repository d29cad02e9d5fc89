package agent

import (
	"errors"
	"fmt"
)

// Fatal research errors surfaced from GetResponse.
var (
	ErrNoSearchResults    = errors.New("agent: no search results")
	ErrInvalidLLMResponse = errors.New("agent: invalid llm response")
)

// TokenBudgetError reports that prompt accounting crossed the run's
// token budget.
type TokenBudgetError struct {
	Used   int
	Budget int
}

func (e *TokenBudgetError) Error() string {
	return fmt.Sprintf("agent: token budget exceeded (%d > %d)", e.Used, e.Budget)
}
