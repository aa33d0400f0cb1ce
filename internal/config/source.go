package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Siacelp-NTT/Crawler-database/internal/model"
)

// SourceConfig is the compiled rule set for one source. Rule lists keep their
// declaration order; order is a deliberate priority for pattern matching.
type SourceConfig struct {
	Name        string
	DisplayName string
	ID          int64
	Priority    int

	Salary      SalaryRules
	Experience  ExperienceRules
	Location    LocationRules
	Date        DateRules
	Description DescriptionRules
	Quality     QualityRules
}

// SalaryRules drives salary extraction.
type SalaryRules struct {
	DefaultCurrency string
	Patterns        []SalaryPattern
	AIFallback      AIFallback
}

// SalaryPattern is one compiled extraction rule.
type SalaryPattern struct {
	Regexp          *regexp.Regexp
	Kind            model.SalaryKind
	MinGroup        int // range: lower bound capture group
	MaxGroup        int // range: upper bound capture group
	ValueGroup      int // min/max/exact: the single bound
	CurrencyGroup   int // optional currency capture group
	Multiplier      float64
	DefaultCurrency string // overrides SalaryRules.DefaultCurrency when set
}

// ExperienceRules drives experience-level mapping.
type ExperienceRules struct {
	Mappings   []ExperienceMapping
	Default    string // canonical level; "Entry" when empty
	AIFallback AIFallback
}

// ExperienceMapping maps a raw phrase to a canonical level. Matching is exact
// first, then case-insensitive bidirectional substring in declaration order.
type ExperienceMapping struct {
	Match string `yaml:"match"`
	Level string `yaml:"level"`
}

// LocationRules drives city/country normalization.
type LocationRules struct {
	RemoteKeywords  []string
	HybridKeywords  []string
	CityMappings    []CityMapping
	CountryPatterns []CountryPattern
	DefaultCountry  string
	AIFallback      AIFallback
}

// CityMapping replaces a city name when the raw text contains Match.
type CityMapping struct {
	Match string `yaml:"match"`
	City  string `yaml:"city"`
}

// CountryPattern maps a compiled regex to an ISO country code.
type CountryPattern struct {
	Regexp *regexp.Regexp
	Code   string
}

// DateRules drives posted-date parsing.
type DateRules struct {
	RelativePatterns []RelativePattern
	AbsoluteFormats  []string // Go reference layouts, tried in order
	AIFallback       AIFallback
}

// RelativePattern subtracts a captured magnitude of Unit from the processing
// date, e.g. "(\d+) days ago" with unit days.
type RelativePattern struct {
	Regexp *regexp.Regexp
	Unit   string // days, weeks or months
}

// DescriptionRules selects the description cleanup method.
type DescriptionRules struct {
	Method    string // "manual" or "ai"
	MaxLength int
	Prompt    string // AI prompt template, required for method "ai"
}

// QualityRules are the per-source validation checks applied after transform.
type QualityRules struct {
	RequiredFields []string
	MaxTitleLength int
}

// AIFallback enables the AI path for one field. The prompt template carries a
// {text} placeholder for the raw input; date prompts may also use {date}.
type AIFallback struct {
	Enabled bool   `yaml:"enabled"`
	Prompt  string `yaml:"prompt"`
}

// --- raw YAML shapes ---

type rawSource struct {
	Source      string            `yaml:"source"`
	Salary      rawSalary         `yaml:"salary"`
	Experience  rawExperience     `yaml:"experience"`
	Location    rawLocation       `yaml:"location"`
	Date        rawDate           `yaml:"date"`
	Description rawDescription    `yaml:"description"`
	Quality     rawQuality        `yaml:"quality"`
}

type rawSalary struct {
	DefaultCurrency string             `yaml:"default_currency"`
	Patterns        []rawSalaryPattern `yaml:"patterns"`
	AIFallback      AIFallback         `yaml:"ai_fallback"`
}

type rawSalaryPattern struct {
	Regex           string  `yaml:"regex"`
	Type            string  `yaml:"type"`
	MinGroup        int     `yaml:"min_group"`
	MaxGroup        int     `yaml:"max_group"`
	ValueGroup      int     `yaml:"value_group"`
	CurrencyGroup   int     `yaml:"currency_group"`
	Multiplier      float64 `yaml:"multiplier"`
	DefaultCurrency string  `yaml:"default_currency"`
}

type rawExperience struct {
	Mappings   []ExperienceMapping `yaml:"mappings"`
	Default    string              `yaml:"default"`
	AIFallback AIFallback          `yaml:"ai_fallback"`
}

type rawLocation struct {
	RemoteKeywords  []string            `yaml:"remote_keywords"`
	HybridKeywords  []string            `yaml:"hybrid_keywords"`
	CityMappings    []CityMapping       `yaml:"city_mappings"`
	CountryPatterns []rawCountryPattern `yaml:"country_patterns"`
	DefaultCountry  string              `yaml:"default_country"`
	AIFallback      AIFallback          `yaml:"ai_fallback"`
}

type rawCountryPattern struct {
	Regex string `yaml:"regex"`
	Code  string `yaml:"code"`
}

type rawDate struct {
	RelativePatterns []rawRelativePattern `yaml:"relative_patterns"`
	AbsoluteFormats  []string             `yaml:"absolute_formats"`
	AIFallback       AIFallback           `yaml:"ai_fallback"`
}

type rawRelativePattern struct {
	Regex string `yaml:"regex"`
	Unit  string `yaml:"unit"`
}

type rawDescription struct {
	Method    string `yaml:"method"`
	MaxLength int    `yaml:"max_length"`
	Prompt    string `yaml:"prompt"`
}

type rawQuality struct {
	RequiredFields []string `yaml:"required_fields"`
	MaxTitleLength int      `yaml:"max_title_length"`
}

var salaryKinds = map[string]model.SalaryKind{
	"range":      model.SalaryRange,
	"min":        model.SalaryMin,
	"max":        model.SalaryMax,
	"exact":      model.SalaryExact,
	"negotiable": model.SalaryNegotiable,
}

var relativeUnits = map[string]bool{"days": true, "weeks": true, "months": true}

// requiredFieldNames are the field names the processor can check; anything
// else in quality.required_fields is a configuration error.
var requiredFieldNames = map[string]bool{
	"title":       true,
	"description": true,
	"company":     true,
	"url":         true,
	"salary":      true,
	"city":        true,
}

func loadSource(path string, entry SourceEntry, global *GlobalConfig) (*SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source config: %w", err)
	}

	var raw rawSource
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &raw); err != nil {
		return nil, fmt.Errorf("parse source config: %w", err)
	}
	if raw.Source != "" && raw.Source != entry.Name {
		return nil, fmt.Errorf("document declares source %q but file belongs to %q", raw.Source, entry.Name)
	}

	sc := &SourceConfig{
		Name:        entry.Name,
		DisplayName: entry.DisplayName,
		ID:          entry.ID,
		Priority:    entry.Priority,
	}

	if sc.Salary, err = compileSalary(raw.Salary, global); err != nil {
		return nil, err
	}
	if sc.Experience, err = compileExperience(raw.Experience); err != nil {
		return nil, err
	}
	if sc.Location, err = compileLocation(raw.Location); err != nil {
		return nil, err
	}
	if sc.Date, err = compileDate(raw.Date); err != nil {
		return nil, err
	}
	if sc.Description, err = compileDescription(raw.Description); err != nil {
		return nil, err
	}
	sc.Quality = QualityRules(raw.Quality)
	for i, f := range sc.Quality.RequiredFields {
		if !requiredFieldNames[f] {
			return nil, fmt.Errorf("quality.required_fields[%d]: unknown field %q", i, f)
		}
	}
	if sc.Quality.MaxTitleLength == 0 {
		sc.Quality.MaxTitleLength = 255
	}

	return sc, nil
}

func compileSalary(raw rawSalary, global *GlobalConfig) (SalaryRules, error) {
	rules := SalaryRules{
		DefaultCurrency: strings.ToUpper(strings.TrimSpace(raw.DefaultCurrency)),
		AIFallback:      raw.AIFallback,
	}
	if rules.DefaultCurrency != "" {
		if _, ok := global.CurrencyID(rules.DefaultCurrency); !ok {
			return rules, fmt.Errorf("salary.default_currency %q not in currencies table", rules.DefaultCurrency)
		}
	}
	for i, p := range raw.Patterns {
		kind, ok := salaryKinds[p.Type]
		if !ok {
			return rules, fmt.Errorf("salary.patterns[%d]: unknown type %q", i, p.Type)
		}
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return rules, fmt.Errorf("salary.patterns[%d]: compile %q: %w", i, p.Regex, err)
		}
		switch kind {
		case model.SalaryRange:
			if p.MinGroup <= 0 || p.MaxGroup <= 0 {
				return rules, fmt.Errorf("salary.patterns[%d]: range needs min_group and max_group", i)
			}
		case model.SalaryMin, model.SalaryMax, model.SalaryExact:
			if p.ValueGroup <= 0 {
				return rules, fmt.Errorf("salary.patterns[%d]: %s needs value_group", i, p.Type)
			}
		}
		mult := p.Multiplier
		if mult == 0 {
			mult = 1
		}
		rules.Patterns = append(rules.Patterns, SalaryPattern{
			Regexp:          re,
			Kind:            kind,
			MinGroup:        p.MinGroup,
			MaxGroup:        p.MaxGroup,
			ValueGroup:      p.ValueGroup,
			CurrencyGroup:   p.CurrencyGroup,
			Multiplier:      mult,
			DefaultCurrency: strings.ToUpper(strings.TrimSpace(p.DefaultCurrency)),
		})
	}
	if err := validateFallback(raw.AIFallback, "salary"); err != nil {
		return rules, err
	}
	return rules, nil
}

func compileExperience(raw rawExperience) (ExperienceRules, error) {
	rules := ExperienceRules{
		Mappings:   raw.Mappings,
		Default:    raw.Default,
		AIFallback: raw.AIFallback,
	}
	if rules.Default == "" {
		rules.Default = model.LevelEntry
	}
	if !model.IsCanonicalLevel(rules.Default) {
		return rules, fmt.Errorf("experience.default %q is not a canonical level", rules.Default)
	}
	for i, m := range raw.Mappings {
		if m.Match == "" {
			return rules, fmt.Errorf("experience.mappings[%d]: match must not be empty", i)
		}
		if !model.IsCanonicalLevel(m.Level) {
			return rules, fmt.Errorf("experience.mappings[%d]: %q is not a canonical level", i, m.Level)
		}
	}
	if err := validateFallback(raw.AIFallback, "experience"); err != nil {
		return rules, err
	}
	return rules, nil
}

func compileLocation(raw rawLocation) (LocationRules, error) {
	rules := LocationRules{
		RemoteKeywords: raw.RemoteKeywords,
		HybridKeywords: raw.HybridKeywords,
		CityMappings:   raw.CityMappings,
		DefaultCountry: strings.ToUpper(strings.TrimSpace(raw.DefaultCountry)),
		AIFallback:     raw.AIFallback,
	}
	for i, p := range raw.CountryPatterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return rules, fmt.Errorf("location.country_patterns[%d]: compile %q: %w", i, p.Regex, err)
		}
		code := strings.ToUpper(strings.TrimSpace(p.Code))
		if code == "" {
			return rules, fmt.Errorf("location.country_patterns[%d]: code must not be empty", i)
		}
		rules.CountryPatterns = append(rules.CountryPatterns, CountryPattern{Regexp: re, Code: code})
	}
	if err := validateFallback(raw.AIFallback, "location"); err != nil {
		return rules, err
	}
	return rules, nil
}

func compileDate(raw rawDate) (DateRules, error) {
	rules := DateRules{
		AbsoluteFormats: raw.AbsoluteFormats,
		AIFallback:      raw.AIFallback,
	}
	for i, p := range raw.RelativePatterns {
		if !relativeUnits[p.Unit] {
			return rules, fmt.Errorf("date.relative_patterns[%d]: unknown unit %q", i, p.Unit)
		}
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return rules, fmt.Errorf("date.relative_patterns[%d]: compile %q: %w", i, p.Regex, err)
		}
		if re.NumSubexp() < 1 {
			return rules, fmt.Errorf("date.relative_patterns[%d]: regex needs a magnitude capture group", i)
		}
		rules.RelativePatterns = append(rules.RelativePatterns, RelativePattern{Regexp: re, Unit: p.Unit})
	}
	if err := validateFallback(raw.AIFallback, "date"); err != nil {
		return rules, err
	}
	return rules, nil
}

func compileDescription(raw rawDescription) (DescriptionRules, error) {
	rules := DescriptionRules{
		Method:    raw.Method,
		MaxLength: raw.MaxLength,
		Prompt:    raw.Prompt,
	}
	if rules.Method == "" {
		rules.Method = "manual"
	}
	if rules.Method != "manual" && rules.Method != "ai" {
		return rules, fmt.Errorf("description.method must be \"manual\" or \"ai\", got %q", rules.Method)
	}
	if rules.Method == "ai" && rules.Prompt == "" {
		return rules, fmt.Errorf("description.prompt is required when method is \"ai\"")
	}
	if rules.MaxLength == 0 {
		rules.MaxLength = 10000
	}
	return rules, nil
}

func validateFallback(f AIFallback, field string) error {
	if f.Enabled && f.Prompt == "" {
		return fmt.Errorf("%s.ai_fallback.prompt is required when enabled", field)
	}
	return nil
}
