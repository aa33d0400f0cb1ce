package normalize

import (
	"context"
	"regexp"
	"testing"

	"github.com/Siacelp-NTT/Crawler-database/internal/config"
)

func locRules() config.LocationRules {
	return config.LocationRules{
		RemoteKeywords: []string{"remote", "work from home"},
		HybridKeywords: []string{"hybrid"},
		CityMappings: []config.CityMapping{
			{Match: "hcm", City: "Ho Chi Minh City"},
			{Match: "ha noi", City: "Hanoi"},
			{Match: "anywhere", City: "Anywhere"},
		},
		CountryPatterns: []config.CountryPattern{
			{Regexp: regexp.MustCompile(`(?i)viet\s*nam|hcm|ha\s*noi`), Code: "VN"},
			{Regexp: regexp.MustCompile(`(?i)singapore`), Code: "SG"},
		},
		DefaultCountry: "VN",
	}
}

func TestNormalize_RemoteOverridesCityMapping(t *testing.T) {
	n := NewLocationNormalizer(locRules(), nil, discardLogger())

	// "anywhere" also hits a city mapping; remote must win.
	got := n.Normalize(context.Background(), "Remote - anywhere")
	if !got.IsRemote {
		t.Error("expected IsRemote")
	}
	if got.City != "Remote" {
		t.Errorf("City = %q, want literal Remote", got.City)
	}
}

func TestNormalize_HybridDoesNotSuppressCity(t *testing.T) {
	n := NewLocationNormalizer(locRules(), nil, discardLogger())

	got := n.Normalize(context.Background(), "Hybrid, HCM office")
	if !got.IsHybrid {
		t.Error("expected IsHybrid")
	}
	if got.IsRemote {
		t.Error("hybrid must not imply remote")
	}
	if got.City != "Ho Chi Minh City" {
		t.Errorf("City = %q, want mapped Ho Chi Minh City", got.City)
	}
}

func TestNormalize_FirstCityMappingWins(t *testing.T) {
	n := NewLocationNormalizer(locRules(), nil, discardLogger())

	got := n.Normalize(context.Background(), "HCM / Ha Noi")
	if got.City != "Ho Chi Minh City" {
		t.Errorf("City = %q, want first mapping to win", got.City)
	}
}

func TestNormalize_UnmappedCityPassesThrough(t *testing.T) {
	n := NewLocationNormalizer(locRules(), nil, discardLogger())

	got := n.Normalize(context.Background(), "Da Nang")
	if got.City != "Da Nang" {
		t.Errorf("City = %q, want passthrough", got.City)
	}
}

func TestNormalize_CountryPatternThenDefault(t *testing.T) {
	n := NewLocationNormalizer(locRules(), nil, discardLogger())

	if got := n.Normalize(context.Background(), "Singapore CBD"); got.CountryCode != "SG" {
		t.Errorf("CountryCode = %q, want SG", got.CountryCode)
	}
	if got := n.Normalize(context.Background(), "Da Nang"); got.CountryCode != "VN" {
		t.Errorf("CountryCode = %q, want default VN", got.CountryCode)
	}
}

func TestNormalize_AIOnlyWhenNoManualRules(t *testing.T) {
	ai := &fakeCompleter{resp: `{"city": "Berlin", "countryCode": "de", "isRemote": false}`, ok: true}
	rules := config.LocationRules{
		DefaultCountry: "VN",
		AIFallback:     config.AIFallback{Enabled: true, Prompt: "where is {text}"},
	}
	n := NewLocationNormalizer(rules, ai, discardLogger())

	got := n.Normalize(context.Background(), "Berlin HQ")
	if !ai.called {
		t.Fatal("expected AI path with empty manual rules")
	}
	if got.City != "Berlin" || got.CountryCode != "DE" {
		t.Errorf("got %+v, want Berlin/DE", got)
	}

	// With manual rules present the AI must not be consulted.
	ai2 := &fakeCompleter{resp: `{"city": "X"}`, ok: true}
	rules2 := locRules()
	rules2.AIFallback = config.AIFallback{Enabled: true, Prompt: "where is {text}"}
	n2 := NewLocationNormalizer(rules2, ai2, discardLogger())
	n2.Normalize(context.Background(), "Da Nang")
	if ai2.called {
		t.Error("AI must not run when manual rules exist")
	}
}

func TestNormalize_AIMalformedFallsBackToManual(t *testing.T) {
	ai := &fakeCompleter{resp: `not json at all`, ok: true}
	rules := config.LocationRules{
		DefaultCountry: "VN",
		AIFallback:     config.AIFallback{Enabled: true, Prompt: "where is {text}"},
	}
	n := NewLocationNormalizer(rules, ai, discardLogger())

	got := n.Normalize(context.Background(), "Berlin HQ")
	if got.City != "Berlin HQ" || got.CountryCode != "VN" {
		t.Errorf("got %+v, want manual passthrough with default country", got)
	}
}
