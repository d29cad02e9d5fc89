// Package agent drives the research loop: it expands a question into
// search gaps, gathers and extracts web content, asks an LLM to decide
// the next step, and accumulates candidate answers until it can return
// a definitive one.
package agent

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/delver/internal/decision"
	"github.com/jmylchreest/delver/internal/extract"
	"github.com/jmylchreest/delver/internal/llm"
	"github.com/jmylchreest/delver/internal/logger"
	"github.com/jmylchreest/delver/internal/search"
)

// extractConcurrency caps simultaneous page fetches in one batch.
const extractConcurrency = 4

// reflectionThreshold is the answer length below which the agent asks
// the LLM to expand its answer before judging it.
const reflectionThreshold = 40

// candidateThreshold admits a non-definitive answer as a candidate
// anyway when it is at least this long.
const candidateThreshold = 50

// Agent owns the research loop. It is safe to reuse across runs; all
// per-run state lives in a runState.
type Agent struct {
	cfg        Config
	provider   llm.Provider
	searcher   search.Service
	extractors *extract.Factory

	// test seams
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds an agent after validating its configuration.
func New(cfg Config, provider llm.Provider, searcher search.Service, extractors *extract.Factory) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("agent: nil llm provider")
	}
	if searcher == nil {
		return nil, fmt.Errorf("agent: nil search service")
	}
	if extractors == nil {
		return nil, fmt.Errorf("agent: nil extractor factory")
	}
	return &Agent{
		cfg:        cfg,
		provider:   provider,
		searcher:   searcher,
		extractors: extractors,
		now:        time.Now,
		sleep:      sleepCtx,
	}, nil
}

// Result is the outcome of one research run.
type Result struct {
	// Answer is the final answer text including the Sources appendix.
	Answer string
	// Sources lists every URL whose extraction was attempted, in
	// visit order.
	Sources []string
	// TokensUsed is the estimated token total of all step prompts.
	TokensUsed int
	// Iterations counts loop turns taken.
	Iterations int
	// Elapsed is the wall-clock run duration.
	Elapsed time.Duration
	// Diary is the rendered run log.
	Diary string
}

// runState is the per-run mutable state. The loop is the only writer;
// extraction workers only touch the diary, which locks internally.
type runState struct {
	question   string
	gaps       *gapQueue
	visited    *visitedSet
	diary      *diary
	asked      map[string]bool
	tokensUsed int
	candidates []string
	badTries   int
	iterations int
}

// GetResponse runs the research loop and returns the final answer with
// its Sources appendix.
func (a *Agent) GetResponse(ctx context.Context, question string) (string, error) {
	res, err := a.Research(ctx, question)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

// GetResponseWithAttempts overrides the bad-attempt cap for one run.
func (a *Agent) GetResponseWithAttempts(ctx context.Context, question string, maxBadAttempts int) (string, error) {
	clone := *a
	clone.cfg.MaxBadAttempts = maxBadAttempts
	return clone.GetResponse(ctx, question)
}

// Research runs the full loop and returns the structured result.
func (a *Agent) Research(ctx context.Context, question string) (*Result, error) {
	start := a.now()

	st := &runState{
		question: question,
		gaps:     newGapQueue(question),
		visited:  newVisitedSet(),
		diary:    newDiary(a.now),
		asked:    map[string]bool{question: true},
	}
	st.diary.Log("research started: %s", question)

	a.expandQueries(ctx, st)

	for {
		if err := a.sleep(ctx, a.cfg.StepSleep); err != nil {
			return nil, err
		}
		st.iterations++

		current, ok := st.gaps.PopFront()
		if !ok {
			current = st.question
		}
		st.diary.Log("iteration %d: researching %q", st.iterations, current)

		contents, retry, err := a.gather(ctx, st, current)
		if err != nil {
			return nil, err
		}
		if retry {
			st.gaps.PushBack(current)
			st.badTries++
			if done, res, err := a.finishIfDone(ctx, st, start); done {
				return res, err
			}
			continue
		}

		resp, err := a.decide(ctx, st, contents)
		if err != nil {
			return nil, err
		}
		if err := a.dispatch(ctx, st, current, resp); err != nil {
			return nil, err
		}

		if done, res, err := a.finishIfDone(ctx, st, start); done {
			return res, err
		}
	}
}

// expandQueries asks the LLM for initial query variations and prepends
// them so the original question stays at the tail. Expansion failures
// are logged and ignored; the original question alone still works.
func (a *Agent) expandQueries(ctx context.Context, st *runState) {
	prompt := buildExpandQueriesPrompt(st.question, a.cfg.MaxSearchQueries)
	reply, err := llm.ProcessText(ctx, a.provider, systemPrompt, prompt, false)
	if err != nil {
		logger.Warn("query expansion failed", "error", err)
		st.diary.Log("query expansion failed: %v", err)
		return
	}

	queries := parseQueryLines(reply, a.cfg.MaxSearchQueries)
	for i := len(queries) - 1; i >= 0; i-- {
		q := queries[i]
		if st.asked[q] {
			continue
		}
		st.asked[q] = true
		st.gaps.PushFront(q)
	}
	st.diary.Log("expanded question into %d queries", len(queries))
}

// gather searches for the gap and extracts content from unvisited
// results. retry=true means everything was already visited (or the
// search failed recoverably) and the gap should be re-enqueued.
func (a *Agent) gather(ctx context.Context, st *runState, gap string) (contents []string, retry bool, err error) {
	results, err := a.searcher.Search(ctx, gap)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		st.diary.Log("search failed for %q: %v", gap, err)
		if st.gaps.Len() == 0 {
			return nil, false, fmt.Errorf("%w: %v", ErrNoSearchResults, err)
		}
		return nil, true, nil
	}

	var fresh []string
	for _, r := range results {
		_, resolved := a.extractors.For(r.URL)
		if st.visited.Add(resolved) {
			fresh = append(fresh, resolved)
		}
	}
	if len(fresh) == 0 {
		st.diary.Log("all %d results for %q already visited", len(results), gap)
		return nil, true, nil
	}
	st.diary.Log("found %d new sources for %q", len(fresh), gap)

	extracted := make([]string, len(fresh))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(extractConcurrency)
	for i, u := range fresh {
		g.Go(func() error {
			e, resolved := a.extractors.For(u)
			content, err := e.Extract(gctx, resolved)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				st.diary.Log("extraction failed for %s: %v", resolved, err)
				return nil
			}
			extracted[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	return admitContent(extracted, a.cfg.ContentTokenCap), false, nil
}

// decide builds the step prompt, enforces the token budget, calls the
// LLM, and parses its reply.
func (a *Agent) decide(ctx context.Context, st *runState, contents []string) (decision.Response, error) {
	prompt := buildStepPrompt(a.now(), st.question, contents, st.diary.String(), st.visited.URLs(), a.cfg.PromptTokenCap)

	// Only prompt tokens count toward the budget; replies and side
	// calls are free.
	st.tokensUsed += estimateTokens(prompt)
	if st.tokensUsed > a.cfg.TokenBudget {
		return decision.Response{}, &TokenBudgetError{Used: st.tokensUsed, Budget: a.cfg.TokenBudget}
	}

	reply, err := llm.ProcessText(ctx, a.provider, systemPrompt, prompt, a.cfg.Streaming)
	if err != nil {
		return decision.Response{}, fmt.Errorf("llm step call: %w", err)
	}

	resp, err := decision.Parse(reply, a.cfg.ParserMode)
	if err != nil {
		return decision.Response{}, fmt.Errorf("%w: %v", ErrInvalidLLMResponse, err)
	}
	return resp, nil
}

// dispatch applies one parsed decision to the run state.
func (a *Agent) dispatch(ctx context.Context, st *runState, current string, resp decision.Response) error {
	switch resp.Action {
	case decision.ActionAnswer:
		if resp.Answer == "" {
			st.diary.Log("empty answer rejected")
			st.badTries++
			return nil
		}
		answer := resp.Answer
		if len(answer) < reflectionThreshold {
			expanded, err := a.expandAnswer(ctx, st, answer)
			if err != nil {
				return err
			}
			answer = expanded
		}
		if a.isDefinitive(answer, len(resp.References)) || len(answer) > candidateThreshold {
			st.candidates = append(st.candidates, answer)
			st.diary.Log("candidate answer recorded (%d chars, %d refs)", len(answer), len(resp.References))
		} else {
			st.diary.Log("answer not definitive, discarded")
			st.badTries++
		}

	case decision.ActionSearch:
		if resp.SearchQuery != "" && !st.asked[resp.SearchQuery] {
			st.asked[resp.SearchQuery] = true
			st.gaps.PushFront(resp.SearchQuery)
			st.diary.Log("new search directive: %q", resp.SearchQuery)
		} else {
			st.gaps.PushBack(current)
		}
		st.badTries++

	case decision.ActionReflect:
		added := 0
		for _, q := range resp.QuestionsToAnswer {
			if q == "" || st.asked[q] {
				continue
			}
			st.asked[q] = true
			st.gaps.PushBack(q)
			added++
		}
		if added == 0 {
			st.gaps.PushBack(current)
		}
		st.diary.Log("reflection added %d sub-questions", added)
		st.badTries++

	default:
		st.diary.Log("unrecognized action %q", resp.Action)
		st.badTries++
	}
	return nil
}

// expandAnswer re-prompts the LLM to flesh out a too-short answer.
func (a *Agent) expandAnswer(ctx context.Context, st *runState, answer string) (string, error) {
	prompt := buildReflectionPrompt(st.question, answer, st.diary.String())
	expanded, err := llm.ProcessText(ctx, a.provider, systemPrompt, prompt, a.cfg.Streaming)
	if err != nil {
		return "", fmt.Errorf("reflection call: %w", err)
	}
	st.diary.Log("expanded short answer from %d to %d chars", len(answer), len(expanded))
	return expanded, nil
}

// finishIfDone checks the termination conditions and, when met,
// produces the final result (from candidates or beast mode).
func (a *Agent) finishIfDone(ctx context.Context, st *runState, start time.Time) (bool, *Result, error) {
	if st.gaps.Len() > 0 && st.badTries < a.cfg.MaxBadAttempts {
		return false, nil, nil
	}

	var answer string
	if len(st.candidates) > 0 {
		answer = st.candidates[len(st.candidates)-1]
		st.diary.Log("returning most recent of %d candidate answers", len(st.candidates))
	} else {
		var err error
		answer, err = a.beastMode(ctx, st)
		if err != nil {
			return true, nil, err
		}
	}

	final := appendSources(answer, st.visited.URLs())
	st.diary.Log("research finished after %d iterations", st.iterations)

	return true, &Result{
		Answer:     final,
		Sources:    st.visited.URLs(),
		TokensUsed: st.tokensUsed,
		Iterations: st.iterations,
		Elapsed:    a.now().Sub(start),
		Diary:      st.diary.String(),
	}, nil
}

// beastMode forces a best-effort answer from the diary alone.
func (a *Agent) beastMode(ctx context.Context, st *runState) (string, error) {
	st.diary.Log("beast mode activated")
	prompt := buildBeastModePrompt(st.question, st.diary.String())
	answer, err := llm.ProcessText(ctx, a.provider, systemPrompt, prompt, a.cfg.Streaming)
	if err != nil {
		return "", fmt.Errorf("beast mode call: %w", err)
	}
	return answer, nil
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
