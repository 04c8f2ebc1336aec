package services

import (
	"context"
	"testing"
	"time"

	"goldenminutes/models"
)

func TestRecalculateAllWithRefresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	area, err := h.safety.UpsertArea(ctx, &models.AreaSafetyScore{
		AreaName:  "Bandra",
		Latitude:  19.0760,
		Longitude: 72.8777,
		RadiusKm:  2,
	})
	if err != nil {
		t.Fatalf("upsert area: %v", err)
	}
	// No history: time score 30 plus the neutral resolution score 10.
	if area.SafetyScore != 40 || area.ScoreColor != models.ScoreColorOrange {
		t.Fatalf("empty area score = %d %s, want 40 orange", area.SafetyScore, area.ScoreColor)
	}

	h.volunteer(t, "inside-1", true)
	h.locate(t, "inside-1", 19.0770, 72.8777)
	h.volunteer(t, "inside-2", true)
	h.locate(t, "inside-2", 19.0800, 72.8800)
	h.volunteer(t, "outside", true)
	h.locate(t, "outside", 19.2000, 72.8777)

	resolved := h.sos(t, "victim-1", models.EmergencyTypeMedical)
	h.clock.Advance(2 * time.Minute)
	if _, err := h.matching.AcceptEmergency(ctx, resolved.ID, "inside-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := h.emergency.ResolveEmergency(ctx, resolved.ID, volunteerViewer("inside-1"), models.ResolveEmergencyRequest{}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	h.sos(t, "victim-2", models.EmergencyTypeFire)

	updated, err := h.safety.RecalculateAll(ctx, true)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if updated != 1 {
		t.Fatalf("updated %d areas, want 1", updated)
	}

	areas, err := h.safety.ListAreas(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := areas[0]
	if got.VolunteerCount != 2 || got.TotalEmergencies != 2 || got.ResolvedEmergencies != 1 {
		t.Fatalf("metrics = %d volunteers, %d/%d emergencies", got.VolunteerCount, got.ResolvedEmergencies, got.TotalEmergencies)
	}
	if got.AverageResponseTimeMinutes != 2 {
		t.Errorf("average response = %v, want 2", got.AverageResponseTimeMinutes)
	}

	// density 2/(4pi)*50 = 7.96, time 30-6 = 24, resolution 50*0.2 = 10
	if got.SafetyScore != 41 || got.ScoreColor != models.ScoreColorOrange {
		t.Errorf("safety score = %d %s, want 41 orange", got.SafetyScore, got.ScoreColor)
	}
}
