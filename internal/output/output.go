// Package output renders research reports in the supported formats.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jmylchreest/delver/internal/agent"
)

// Format represents report format types.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Report is the serializable outcome of a research run.
type Report struct {
	Question   string   `json:"question" yaml:"question"`
	Answer     string   `json:"answer" yaml:"answer"`
	Sources    []string `json:"sources" yaml:"sources"`
	TokensUsed int      `json:"tokensUsed" yaml:"tokens_used"`
	Iterations int      `json:"iterations" yaml:"iterations"`
	Elapsed    string   `json:"elapsed" yaml:"elapsed"`
	Diary      string   `json:"diary,omitempty" yaml:"diary,omitempty"`
}

// FromResult builds a report from an agent run.
func FromResult(question string, res *agent.Result, includeDiary bool) Report {
	r := Report{
		Question:   question,
		Answer:     res.Answer,
		Sources:    res.Sources,
		TokensUsed: res.TokensUsed,
		Iterations: res.Iterations,
		Elapsed:    res.Elapsed.Round(time.Millisecond).String(),
	}
	if includeDiary {
		r.Diary = res.Diary
	}
	return r
}

// Renderer writes a report to a stream.
type Renderer interface {
	Render(w io.Writer, r Report) error
}

// RendererOption configures a renderer.
type RendererOption func(*rendererConfig)

type rendererConfig struct {
	pretty bool
	indent string
}

// WithPretty enables pretty-printing where the format supports it.
func WithPretty(enabled bool) RendererOption {
	return func(c *rendererConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the indentation string.
func WithIndent(indent string) RendererOption {
	return func(c *rendererConfig) {
		c.indent = indent
	}
}

// NewRenderer creates a renderer for the specified format.
func NewRenderer(format Format, opts ...RendererOption) (Renderer, error) {
	cfg := &rendererConfig{
		pretty: true,
		indent: "  ",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatText:
		return &TextRenderer{}, nil
	case FormatJSON:
		return &JSONRenderer{pretty: cfg.pretty, indent: cfg.indent}, nil
	case FormatYAML:
		return &YAMLRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
