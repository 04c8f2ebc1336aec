package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"goldenminutes/models"
	"goldenminutes/repositories/memory"
)

func TestEmbeddedCatalogue(t *testing.T) {
	catalogue, err := LoadCatalogue("")
	if err != nil {
		t.Fatalf("LoadCatalogue: %v", err)
	}

	if len(catalogue.Badges) != 13 {
		t.Errorf("badges = %d, want 13", len(catalogue.Badges))
	}
	if len(catalogue.Training) != 2 {
		t.Errorf("modules = %d, want 2", len(catalogue.Training))
	}
	if len(catalogue.Areas) != 5 {
		t.Errorf("areas = %d, want 5", len(catalogue.Areas))
	}

	languages := map[string]int{}
	for _, step := range catalogue.Guidance {
		if step.EmergencyType == models.EmergencyTypeMedical {
			languages[step.Language]++
		}
	}
	for _, lang := range models.SupportedLanguages {
		if languages[lang] != 4 {
			t.Errorf("medical guidance in %s = %d steps, want 4", lang, languages[lang])
		}
	}
}

func TestLoadCatalogueRejectsInvalidEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `
badges:
  - badge_id: first_response
    points_reward: 50
training_modules:
  - module_id: cpr-basics
    badge_id_reward: missing_badge
guidance:
  - emergency_type: volcano
    language: en
    step: 1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	if _, err := LoadCatalogue(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadCatalogueMissingFile(t *testing.T) {
	if _, err := LoadCatalogue(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRunSeeders(t *testing.T) {
	ctx := context.Background()
	store := memory.New().Repositories()
	now := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)

	catalogue := &Catalogue{
		Badges: []models.Badge{
			{BadgeID: "cpr_certified", Name: "CPR Certified", PointsReward: 100},
		},
		Training: []models.TrainingModule{
			{ModuleID: "cpr-basics", BadgeIDReward: "cpr_certified"},
		},
		Areas: []models.AreaSafetyScore{
			{AreaName: "Bandra, Mumbai", Latitude: 19.0596, Longitude: 72.8295, VolunteerCount: 20, AverageResponseTimeMinutes: 2.8},
		},
		Guidance: []models.BystanderGuidance{
			{EmergencyType: models.EmergencyTypeFire, Language: models.LanguageEnglish, StepNumber: 2, Title: "Call"},
			{EmergencyType: models.EmergencyTypeFire, Language: models.LanguageEnglish, StepNumber: 1, Title: "Alert"},
		},
	}

	if err := RunSeeders(ctx, store, catalogue, now); err != nil {
		t.Fatalf("RunSeeders: %v", err)
	}

	module, err := store.Training.GetModule(ctx, "cpr-basics")
	if err != nil {
		t.Fatalf("GetModule: %v", err)
	}
	if module.PointsReward != defaultModulePoints {
		t.Errorf("module points = %d, want %d", module.PointsReward, defaultModulePoints)
	}

	badge, err := store.Badges.GetBadge(ctx, "cpr_certified")
	if err != nil {
		t.Fatalf("GetBadge: %v", err)
	}
	if !badge.CreatedAt.Equal(now) {
		t.Errorf("badge createdAt = %v, want %v", badge.CreatedAt, now)
	}

	steps, err := store.Guidance.ListGuidance(ctx, models.EmergencyTypeFire, models.LanguageEnglish)
	if err != nil {
		t.Fatalf("ListGuidance: %v", err)
	}
	if len(steps) != 2 || steps[0].StepNumber != 1 {
		t.Fatalf("guidance = %+v", steps)
	}

	area, err := store.Areas.GetArea(ctx, "Bandra, Mumbai")
	if err != nil {
		t.Fatalf("GetArea: %v", err)
	}
	// density capped at 50, time 30-8.4, resolution 10
	if area.RadiusKm != models.DefaultAreaRadiusKm || area.SafetyScore != 81 || area.ScoreColor != models.ScoreColorGreen {
		t.Errorf("area = %+v", area)
	}
}

func TestRunSeedersKeepsExistingAreas(t *testing.T) {
	ctx := context.Background()
	store := memory.New().Repositories()
	now := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)

	existing := &models.AreaSafetyScore{AreaName: "Powai, Mumbai", RadiusKm: 3, TotalEmergencies: 40, ResolvedEmergencies: 38}
	if err := store.Areas.UpsertArea(ctx, existing); err != nil {
		t.Fatalf("UpsertArea: %v", err)
	}

	catalogue := &Catalogue{
		Areas: []models.AreaSafetyScore{{AreaName: "Powai, Mumbai", Latitude: 19.1176, Longitude: 72.9060}},
	}
	if err := RunSeeders(ctx, store, catalogue, now); err != nil {
		t.Fatalf("RunSeeders: %v", err)
	}

	area, err := store.Areas.GetArea(ctx, "Powai, Mumbai")
	if err != nil {
		t.Fatalf("GetArea: %v", err)
	}
	if area.TotalEmergencies != 40 || area.RadiusKm != 3 {
		t.Errorf("existing area was overwritten: %+v", area)
	}
}
