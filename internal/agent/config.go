package agent

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/delver/internal/decision"
)

// Config holds the agent's knobs. All values are immutable for a run.
type Config struct {
	// StepSleep is the pause before each loop iteration.
	StepSleep time.Duration `validate:"gt=0"`
	// MaxBadAttempts ends the run once this many unproductive LLM
	// decisions accumulate.
	MaxBadAttempts int `validate:"gt=0"`
	// TokenBudget caps cumulative prompt+reply size for a run,
	// estimated at four bytes per token.
	TokenBudget int `validate:"gt=0"`
	// MinAnswerLength gates the structural definitiveness test.
	MinAnswerLength int `validate:"gt=0"`
	// MaxSearchQueries bounds initial query expansion.
	MaxSearchQueries int `validate:"gt=0"`
	// MinSources is the reference count a definitive answer needs.
	MinSources int `validate:"gt=0,ltefield=MaxSearchQueries"`
	// ContentTokenCap bounds aggregate extracted content per iteration.
	ContentTokenCap int `validate:"gt=0"`
	// PromptTokenCap bounds the content section of a single prompt.
	PromptTokenCap int `validate:"gt=0"`
	// ParserMode selects the strict or lenient reply parser.
	ParserMode decision.Mode `validate:"oneof=strict lenient"`
	// SimpleDefinitive switches to the short-answer profile: length
	// over 30 and no hedging phrase.
	SimpleDefinitive bool
	// Streaming asks providers to stream replies internally.
	Streaming bool
}

// DefaultConfig returns the safe defaults.
func DefaultConfig() Config {
	return Config{
		StepSleep:        500 * time.Millisecond,
		MaxBadAttempts:   3,
		TokenBudget:      1_000_000,
		MinAnswerLength:  300,
		MaxSearchQueries: 5,
		MinSources:       2,
		ContentTokenCap:  900_000,
		PromptTokenCap:   32_000,
		ParserMode:       decision.ModeStrict,
		Streaming:        true,
	}
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("agent config: %w", err)
	}
	return nil
}

// profile is the YAML shape of a research profile file.
type profile struct {
	StepSleep        string `yaml:"step_sleep"`
	MaxBadAttempts   int    `yaml:"max_bad_attempts"`
	TokenBudget      int    `yaml:"token_budget"`
	MinAnswerLength  int    `yaml:"min_answer_length"`
	MaxSearchQueries int    `yaml:"max_search_queries"`
	MinSources       int    `yaml:"min_sources"`
	ContentTokenCap  int    `yaml:"content_token_cap"`
	PromptTokenCap   int    `yaml:"prompt_token_cap"`
	ParserMode       string `yaml:"parser_mode"`
	SimpleDefinitive bool   `yaml:"simple_definitive"`
	Streaming        *bool  `yaml:"streaming"`
}

// LoadProfile overlays a YAML profile file onto the defaults.
func LoadProfile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read profile: %w", err)
	}

	var p profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return cfg, fmt.Errorf("parse profile: %w", err)
	}

	if p.StepSleep != "" {
		d, err := time.ParseDuration(p.StepSleep)
		if err != nil {
			return cfg, fmt.Errorf("parse profile step_sleep: %w", err)
		}
		cfg.StepSleep = d
	}
	if p.MaxBadAttempts > 0 {
		cfg.MaxBadAttempts = p.MaxBadAttempts
	}
	if p.TokenBudget > 0 {
		cfg.TokenBudget = p.TokenBudget
	}
	if p.MinAnswerLength > 0 {
		cfg.MinAnswerLength = p.MinAnswerLength
	}
	if p.MaxSearchQueries > 0 {
		cfg.MaxSearchQueries = p.MaxSearchQueries
	}
	if p.MinSources > 0 {
		cfg.MinSources = p.MinSources
	}
	if p.ContentTokenCap > 0 {
		cfg.ContentTokenCap = p.ContentTokenCap
	}
	if p.PromptTokenCap > 0 {
		cfg.PromptTokenCap = p.PromptTokenCap
	}
	if p.ParserMode != "" {
		cfg.ParserMode = decision.Mode(p.ParserMode)
	}
	cfg.SimpleDefinitive = p.SimpleDefinitive
	if p.Streaming != nil {
		cfg.Streaming = *p.Streaming
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
