// Package config loads the declarative transformation rules: one global
// document plus one document per source. Everything is validated and every
// regex is compiled at load time; a malformed document rejects startup rather
// than silently skipping rules at runtime.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Siacelp-NTT/Crawler-database/internal/model"
)

// Config is the fully-loaded, process-lifetime-immutable configuration.
type Config struct {
	Global  GlobalConfig
	Sources map[string]*SourceConfig // keyed by source name
}

// GlobalConfig enumerates sources and reference tables shared by all of them.
type GlobalConfig struct {
	BatchSize     int
	CycleInterval time.Duration
	Sources       []SourceEntry // declaration order preserved for priority ties
	Currencies    map[string]int64
	Levels        map[string]int64
	AI            AIConfig
}

// SourceEntry is one row of the global source table.
type SourceEntry struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	ID          int64  `yaml:"id"`
	Enabled     bool   `yaml:"enabled"`
	Priority    int    `yaml:"priority"` // lower runs first
}

// AIConfig controls the optional AI fallback layer.
type AIConfig struct {
	Enabled     bool
	BaseURL     string        // defaults to https://api.openai.com/v1
	Model       string        // e.g. "gpt-4o-mini"
	APIKey      string        // expanded from env var by Load
	Timeout     time.Duration // per-call timeout
	DailyBudget int           // max AI calls per day, process-wide
}

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultBatchSize     = 100
	defaultDailyBudget   = 200
)

// rawGlobal is used for YAML unmarshaling (snake_case, durations as strings).
type rawGlobal struct {
	BatchSize     int             `yaml:"batch_size"`
	CycleInterval string          `yaml:"cycle_interval"`
	Sources       []SourceEntry   `yaml:"sources"`
	Currencies    []refEntry      `yaml:"currencies"`
	Levels        []refEntry      `yaml:"experience_levels"`
	AI            rawAI           `yaml:"ai"`
}

type refEntry struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
	ID   int64  `yaml:"id"`
}

type rawAI struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	APIKey      string `yaml:"api_key"`
	Timeout     string `yaml:"timeout"`
	DailyBudget int    `yaml:"daily_call_budget"`
}

// Load reads global.yaml plus sources/<name>.yaml for every declared source
// under dir, expands environment variables, compiles all patterns, and
// validates the whole set. Any failure is returned as an error; callers must
// treat it as fatal.
func Load(dir string) (*Config, error) {
	global, err := loadGlobal(filepath.Join(dir, "global.yaml"))
	if err != nil {
		return nil, err
	}

	sources := make(map[string]*SourceConfig, len(global.Sources))
	for _, entry := range global.Sources {
		path := filepath.Join(dir, "sources", entry.Name+".yaml")
		sc, err := loadSource(path, entry, global)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", entry.Name, err)
		}
		sources[entry.Name] = sc
	}

	return &Config{Global: *global, Sources: sources}, nil
}

func loadGlobal(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read global config: %w", err)
	}

	var raw rawGlobal
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &raw); err != nil {
		return nil, fmt.Errorf("parse global config: %w", err)
	}

	g := &GlobalConfig{
		BatchSize:     raw.BatchSize,
		CycleInterval: 6 * time.Hour,
		Sources:       raw.Sources,
		Currencies:    make(map[string]int64),
		Levels:        make(map[string]int64),
	}
	if g.BatchSize == 0 {
		g.BatchSize = defaultBatchSize
	}
	if g.BatchSize < 0 {
		return nil, fmt.Errorf("batch_size must be positive, got %d", g.BatchSize)
	}
	if raw.CycleInterval != "" {
		g.CycleInterval, err = time.ParseDuration(raw.CycleInterval)
		if err != nil {
			return nil, fmt.Errorf("parse cycle_interval %q: %w", raw.CycleInterval, err)
		}
		if g.CycleInterval <= 0 {
			return nil, fmt.Errorf("cycle_interval must be positive, got %v", g.CycleInterval)
		}
	}

	for _, c := range raw.Currencies {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if code == "" || c.ID == 0 {
			return nil, fmt.Errorf("currencies entries need code and id, got %+v", c)
		}
		g.Currencies[code] = c.ID
	}

	// Experience levels default to the fixed canonical six; the table may
	// remap their store ids but not invent new level names.
	for _, l := range model.CanonicalLevels {
		g.Levels[l] = model.LevelID(l)
	}
	for _, l := range raw.Levels {
		if !model.IsCanonicalLevel(l.Name) {
			return nil, fmt.Errorf("experience_levels: %q is not a canonical level", l.Name)
		}
		if l.ID == 0 {
			return nil, fmt.Errorf("experience_levels: %q needs a non-zero id", l.Name)
		}
		g.Levels[l.Name] = l.ID
	}

	aiTimeout := 30 * time.Second
	if raw.AI.Timeout != "" {
		aiTimeout, err = time.ParseDuration(raw.AI.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse ai.timeout %q: %w", raw.AI.Timeout, err)
		}
	}
	baseURL := raw.AI.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	budget := raw.AI.DailyBudget
	if budget == 0 {
		budget = defaultDailyBudget
	}
	g.AI = AIConfig{
		Enabled:     raw.AI.Enabled,
		BaseURL:     baseURL,
		Model:       raw.AI.Model,
		APIKey:      raw.AI.APIKey,
		Timeout:     aiTimeout,
		DailyBudget: budget,
	}

	if err := validateGlobal(g); err != nil {
		return nil, err
	}
	return g, nil
}

func validateGlobal(g *GlobalConfig) error {
	if len(g.Sources) == 0 {
		return fmt.Errorf("at least one source must be declared")
	}
	seen := make(map[string]bool)
	enabled := 0
	for _, s := range g.Sources {
		if s.Name == "" || s.ID == 0 {
			return fmt.Errorf("sources entries need name and id, got %+v", s)
		}
		if seen[s.Name] {
			return fmt.Errorf("source %q declared twice", s.Name)
		}
		seen[s.Name] = true
		if s.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}
	if len(g.Currencies) == 0 {
		return fmt.Errorf("currencies reference table must not be empty")
	}
	if g.AI.Enabled {
		if g.AI.APIKey == "" {
			return fmt.Errorf("ai.api_key is required when ai.enabled is true")
		}
		if g.AI.Model == "" {
			return fmt.Errorf("ai.model is required when ai.enabled is true")
		}
		if g.AI.DailyBudget < 0 {
			return fmt.Errorf("ai.daily_call_budget must not be negative, got %d", g.AI.DailyBudget)
		}
	}
	return nil
}

// EnabledByPriority returns the enabled source configs ordered by ascending
// priority; ties keep declaration order.
func (c *Config) EnabledByPriority() []*SourceConfig {
	var entries []SourceEntry
	for _, e := range c.Global.Sources {
		if e.Enabled {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Priority < entries[j].Priority
	})

	out := make([]*SourceConfig, 0, len(entries))
	for _, e := range entries {
		out = append(out, c.Sources[e.Name])
	}
	return out
}

// CurrencyID resolves a canonical currency code to its store id.
func (g *GlobalConfig) CurrencyID(code string) (int64, bool) {
	id, ok := g.Currencies[strings.ToUpper(strings.TrimSpace(code))]
	return id, ok
}

// LevelStoreID resolves a canonical experience-level name to its store id,
// falling back to the fixed Entry id for unknown names.
func (g *GlobalConfig) LevelStoreID(name string) int64 {
	if id, ok := g.Levels[name]; ok {
		return id
	}
	return g.Levels[model.LevelEntry]
}
