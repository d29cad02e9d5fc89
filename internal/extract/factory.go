package extract

import (
	"net/url"
	"strings"
)

// Factory picks the extractor for a URL by its resolved host,
// transparently unwrapping search-engine redirector URLs first.
type Factory struct {
	generic Extractor
	byHost  map[string]Extractor // host suffix -> extractor
	dynamic Extractor            // optional, for hosts in dynamicHosts
	dynHost map[string]bool
}

// FactoryConfig wires the concrete extractors.
type FactoryConfig struct {
	Generic      Extractor
	Reddit       Extractor
	Dynamic      Extractor // optional
	DynamicHosts []string  // hosts routed to the dynamic extractor
}

// NewFactory creates the dispatch table.
func NewFactory(cfg FactoryConfig) *Factory {
	f := &Factory{
		generic: cfg.Generic,
		byHost:  make(map[string]Extractor),
		dynamic: cfg.Dynamic,
		dynHost: make(map[string]bool),
	}
	if cfg.Reddit != nil {
		f.Register("reddit.com", cfg.Reddit)
		f.Register("redd.it", cfg.Reddit)
	}
	for _, h := range cfg.DynamicHosts {
		f.dynHost[strings.ToLower(h)] = true
	}
	return f
}

// Register routes URLs whose host matches or ends with the suffix to
// the given extractor.
func (f *Factory) Register(hostSuffix string, e Extractor) {
	f.byHost[strings.ToLower(hostSuffix)] = e
}

// Resolve unwraps redirector URLs. DuckDuckGo result links carry the
// target in a uddg query parameter. Idempotent.
func Resolve(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if !strings.HasSuffix(strings.ToLower(u.Hostname()), "duckduckgo.com") {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return raw
}

// For returns the extractor for a URL and the resolved URL it should
// be applied to.
func (f *Factory) For(raw string) (Extractor, string) {
	resolved := Resolve(raw)

	host := ""
	if u, err := url.Parse(resolved); err == nil {
		host = strings.ToLower(u.Hostname())
	}

	for suffix, e := range f.byHost {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return e, resolved
		}
	}
	if f.dynamic != nil && f.dynHost[host] {
		return f.dynamic, resolved
	}
	return f.generic, resolved
}
