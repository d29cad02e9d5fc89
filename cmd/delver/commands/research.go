package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/delver/internal/agent"
	"github.com/jmylchreest/delver/internal/decision"
	"github.com/jmylchreest/delver/internal/extract"
	"github.com/jmylchreest/delver/internal/llm"
	"github.com/jmylchreest/delver/internal/logger"
	"github.com/jmylchreest/delver/internal/output"
	"github.com/jmylchreest/delver/internal/search"
)

var researchCmd = &cobra.Command{
	Use:   "research <question>",
	Short: "Research a question and return a sourced answer",
	Long: `Research runs the full agent loop: the question is expanded into
search queries, results are fetched and read, and an LLM decides at
each step whether to answer, search further, or break the question
into sub-questions.

Examples:
  # Plain research with auto-detected provider
  delver research "Why did Concorde stop flying?"

  # Longer leash and a YAML report written to a file
  delver research "state of RISC-V laptops" \
      --max-bad-attempts 5 --format yaml -o report.yaml

  # Short-answer profile against a local SearxNG
  delver research "capital of Kiribati" \
      --simple-definitive --searx-url http://localhost:8888`,
	Args: cobra.ExactArgs(1),
	RunE: runResearch,
}

func init() {
	rootCmd.AddCommand(researchCmd)

	flags := researchCmd.Flags()

	// LLM settings
	flags.StringP("provider", "p", "", "LLM provider: anthropic, openai, openrouter, ollama (auto-detects from env vars)")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use env var)")
	flags.String("base-url", "", "custom API base URL")
	flags.Bool("no-stream", false, "disable streaming LLM replies")

	// Search settings
	flags.StringSlice("engines", []string{"duckduckgo"}, "search engines: duckduckgo, searxng")
	flags.String("searx-url", "", "SearxNG instance URL (implies the searxng engine)")

	// Extraction settings
	flags.StringSlice("dynamic-hosts", nil, "hosts rendered with a headless browser before extraction")
	flags.Duration("timeout", 30*time.Second, "request timeout")

	// Agent budgets
	flags.String("profile", "", "path to a research profile YAML file")
	flags.String("parser-mode", "", "LLM reply parser: strict, lenient")
	flags.Int("token-budget", 0, "max estimated prompt tokens per run")
	flags.Int("max-bad-attempts", 0, "unproductive decisions before beast mode")
	flags.Int("min-answer-length", 0, "length gate for the definitiveness test")
	flags.Int("max-search-queries", 0, "query variations generated up front")
	flags.Int("min-sources", 0, "references a definitive answer needs")
	flags.Duration("step-sleep", 0, "pause before each loop iteration")
	flags.Bool("simple-definitive", false, "accept any non-hedging answer over 30 chars")
	flags.Bool("include-diary", false, "include the research diary in the report")

	// Output settings
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "text", "output format: text, json, yaml")

	// Bind to viper
	_ = viper.BindPFlag("provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("base_url", flags.Lookup("base-url"))
	_ = viper.BindPFlag("searx_url", flags.Lookup("searx-url"))
}

func runResearch(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	question := strings.TrimSpace(args[0])
	if question == "" {
		return fmt.Errorf("question must not be empty")
	}
	logger.Debug("research command starting", "question", question)

	cfg, err := buildAgentConfig(cmd)
	if err != nil {
		logError("invalid configuration: %v", err)
		return err
	}

	provider, err := buildProvider()
	if err != nil {
		logError("%v", err)
		return err
	}
	logger.Debug("llm provider ready", "provider", provider.Name())

	searcher, err := buildSearcher(cmd)
	if err != nil {
		logError("%v", err)
		return err
	}

	factory, closeFns, err := buildExtractors(cmd)
	if err != nil {
		logError("%v", err)
		return err
	}
	defer func() {
		for _, fn := range closeFns {
			_ = fn()
		}
	}()

	a, err := agent.New(cfg, provider, searcher, factory)
	if err != nil {
		logError("%v", err)
		return err
	}

	logInfo("researching: %s", question)
	start := time.Now()

	res, err := a.Research(ctx, question)
	if err != nil {
		logError("research failed: %v", err)
		return err
	}

	logInfo("done in %s (~%s tokens, %d sources)",
		time.Since(start).Round(time.Millisecond),
		humanize.Comma(int64(res.TokensUsed)),
		len(res.Sources))

	return writeReport(cmd, question, res)
}

// buildAgentConfig layers profile file and flag overrides over the
// defaults.
func buildAgentConfig(cmd *cobra.Command) (agent.Config, error) {
	cfg := agent.DefaultConfig()

	if path, _ := cmd.Flags().GetString("profile"); path != "" {
		var err error
		cfg, err = agent.LoadProfile(path)
		if err != nil {
			return cfg, err
		}
		logger.Debug("loaded research profile", "path", path)
	}

	if v, _ := cmd.Flags().GetString("parser-mode"); v != "" {
		cfg.ParserMode = decision.Mode(v)
	}
	if v, _ := cmd.Flags().GetInt("token-budget"); v > 0 {
		cfg.TokenBudget = v
	}
	if v, _ := cmd.Flags().GetInt("max-bad-attempts"); v > 0 {
		cfg.MaxBadAttempts = v
	}
	if v, _ := cmd.Flags().GetInt("min-answer-length"); v > 0 {
		cfg.MinAnswerLength = v
	}
	if v, _ := cmd.Flags().GetInt("max-search-queries"); v > 0 {
		cfg.MaxSearchQueries = v
	}
	if v, _ := cmd.Flags().GetInt("min-sources"); v > 0 {
		cfg.MinSources = v
	}
	if v, _ := cmd.Flags().GetDuration("step-sleep"); v > 0 {
		cfg.StepSleep = v
	}
	if v, _ := cmd.Flags().GetBool("simple-definitive"); v {
		cfg.SimpleDefinitive = true
	}
	if v, _ := cmd.Flags().GetBool("no-stream"); v {
		cfg.Streaming = false
	}

	return cfg, cfg.Validate()
}

// buildProvider resolves the LLM provider from flags, config, and the
// environment.
func buildProvider() (llm.Provider, error) {
	name := viper.GetString("provider")
	apiKey := viper.GetString("api_key")

	if name == "" {
		detected, detectedKey := llm.DetectProvider()
		name = detected
		if apiKey == "" {
			apiKey = detectedKey
		}
		logger.Debug("auto-detected provider", "provider", name)
	}

	model := viper.GetString("model")
	if model == "" {
		model = llm.GetDefaultModel(name)
	}

	cfg := llm.DefaultProviderConfig()
	cfg.APIKey = apiKey
	cfg.BaseURL = viper.GetString("base_url")
	cfg.Model = model

	p, err := llm.NewProvider(name, cfg)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", name, err)
	}
	return p, nil
}

// buildSearcher wires the selected engines into one service.
func buildSearcher(cmd *cobra.Command) (search.Service, error) {
	engines, _ := cmd.Flags().GetStringSlice("engines")
	searxURL := viper.GetString("searx_url")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	wantSearx := searxURL != ""
	wantDDG := false
	for _, e := range engines {
		switch strings.ToLower(strings.TrimSpace(e)) {
		case "duckduckgo", "ddg":
			wantDDG = true
		case "searxng", "searx":
			wantSearx = true
		default:
			return nil, fmt.Errorf("unknown search engine: %s", e)
		}
	}
	if wantSearx && searxURL == "" {
		return nil, fmt.Errorf("searxng engine selected but --searx-url not set")
	}

	var services []search.Service
	if wantDDG {
		ddgCfg := search.DefaultDuckDuckGoConfig()
		ddgCfg.Timeout = timeout
		services = append(services, search.NewDuckDuckGo(ddgCfg))
	}
	if wantSearx {
		sxCfg := search.DefaultSearxNGConfig()
		sxCfg.BaseURL = searxURL
		sxCfg.Timeout = timeout
		services = append(services, search.NewSearxNG(sxCfg))
	}

	switch len(services) {
	case 0:
		return nil, fmt.Errorf("no search engines selected")
	case 1:
		return services[0], nil
	default:
		logger.Debug("using composite search", "engines", len(services))
		return search.NewComposite(services...), nil
	}
}

// buildExtractors assembles the extractor dispatch table.
func buildExtractors(cmd *cobra.Command) (*extract.Factory, []func() error, error) {
	timeout, _ := cmd.Flags().GetDuration("timeout")

	webCfg := extract.DefaultWebConfig()
	webCfg.Timeout = timeout

	redditCfg := extract.DefaultRedditConfig()
	redditCfg.Timeout = timeout

	fcfg := extract.FactoryConfig{
		Generic: extract.NewWeb(webCfg),
		Reddit:  extract.NewReddit(redditCfg),
	}

	var closeFns []func() error
	if hosts, _ := cmd.Flags().GetStringSlice("dynamic-hosts"); len(hosts) > 0 {
		dyn, err := extract.NewDynamic(webCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create dynamic extractor: %w", err)
		}
		closeFns = append(closeFns, dyn.Close)
		fcfg.Dynamic = dyn
		fcfg.DynamicHosts = hosts
		logger.Debug("dynamic extraction enabled", "hosts", hosts)
	}

	return extract.NewFactory(fcfg), closeFns, nil
}

// writeReport renders the result in the requested format.
func writeReport(cmd *cobra.Command, question string, res *agent.Result) error {
	formatStr, _ := cmd.Flags().GetString("format")
	renderer, err := output.NewRenderer(output.Format(formatStr))
	if err != nil {
		logError("%v", err)
		return err
	}

	out := os.Stdout
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logError("create output file: %v", err)
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	includeDiary, _ := cmd.Flags().GetBool("include-diary")
	report := output.FromResult(question, res, includeDiary)
	return renderer.Render(out, report)
}
