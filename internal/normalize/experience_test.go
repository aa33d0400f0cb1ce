package normalize

import (
	"context"
	"testing"

	"github.com/Siacelp-NTT/Crawler-database/internal/config"
	"github.com/Siacelp-NTT/Crawler-database/internal/model"
)

func expRules() config.ExperienceRules {
	return config.ExperienceRules{
		Mappings: []config.ExperienceMapping{
			{Match: "Fresher", Level: model.LevelEntry},
			{Match: "Senior", Level: model.LevelSenior},
			{Match: "Trưởng nhóm", Level: model.LevelLead},
		},
		Default: model.LevelEntry,
	}
}

func TestMap_ExactMatch(t *testing.T) {
	m := NewExperienceMapper(expRules(), nil, discardLogger())

	if got := m.Map(context.Background(), "Fresher"); got != model.LevelEntry {
		t.Errorf("Map = %q, want Entry", got)
	}
}

func TestMap_SubstringTextContainsKey(t *testing.T) {
	m := NewExperienceMapper(expRules(), nil, discardLogger())

	if got := m.Map(context.Background(), "senior backend engineer"); got != model.LevelSenior {
		t.Errorf("Map = %q, want Senior", got)
	}
}

func TestMap_SubstringKeyContainsText(t *testing.T) {
	m := NewExperienceMapper(expRules(), nil, discardLogger())

	// "nhóm" is contained in the key "Trưởng nhóm".
	if got := m.Map(context.Background(), "nhóm"); got != model.LevelLead {
		t.Errorf("Map = %q, want Lead", got)
	}
}

func TestMap_FirstMappingWins(t *testing.T) {
	rules := config.ExperienceRules{
		Mappings: []config.ExperienceMapping{
			{Match: "lead", Level: model.LevelLead},
			{Match: "team lead", Level: model.LevelSenior},
		},
		Default: model.LevelEntry,
	}
	m := NewExperienceMapper(rules, nil, discardLogger())

	if got := m.Map(context.Background(), "Team Lead"); got != model.LevelLead {
		t.Errorf("Map = %q, want first entry (Lead)", got)
	}
}

func TestMap_DefaultWhenUnmatched(t *testing.T) {
	rules := expRules()
	rules.Default = model.LevelMid
	m := NewExperienceMapper(rules, nil, discardLogger())

	if got := m.Map(context.Background(), "battle-tested wizard"); got != model.LevelMid {
		t.Errorf("Map = %q, want configured default Mid", got)
	}
}

func TestMap_DefaultEntryAndID(t *testing.T) {
	m := NewExperienceMapper(expRules(), nil, discardLogger())

	got := m.Map(context.Background(), "battle-tested wizard")
	if got != model.LevelEntry {
		t.Errorf("Map = %q, want Entry", got)
	}
	if id := model.LevelID(got); id != 2 {
		t.Errorf("LevelID(%q) = %d, want 2", got, id)
	}
}

func TestMap_AIAcceptsOnlyCanonicalLevels(t *testing.T) {
	rules := expRules()
	rules.AIFallback = config.AIFallback{Enabled: true, Prompt: "level for {text}"}

	m := NewExperienceMapper(rules, &fakeCompleter{resp: "senior", ok: true}, discardLogger())
	if got := m.Map(context.Background(), "10+ years architecting"); got != model.LevelSenior {
		t.Errorf("Map = %q, want Senior from AI", got)
	}

	m = NewExperienceMapper(rules, &fakeCompleter{resp: "Rockstar", ok: true}, discardLogger())
	if got := m.Map(context.Background(), "10+ years architecting"); got != model.LevelEntry {
		t.Errorf("Map = %q, want default after non-canonical AI answer", got)
	}
}

func TestLevelID_Unknown(t *testing.T) {
	if id := model.LevelID("Wizard"); id != 2 {
		t.Errorf("LevelID(Wizard) = %d, want 2", id)
	}
	if id := model.LevelID(model.LevelExecutive); id != 6 {
		t.Errorf("LevelID(Executive) = %d, want 6", id)
	}
}
