package services

import (
	"context"
	"testing"
	"time"

	"goldenminutes/models"
	"goldenminutes/utils"
)

func TestAnalyticsSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)
	h.volunteer(t, "responder-2", true)
	h.volunteer(t, "pending-1", false)

	// An old emergency falls outside a 7 day window but counts everywhere else.
	old := h.sos(t, "victim-0", models.EmergencyTypeAccident)
	h.clock.Advance(10 * 24 * time.Hour)

	saved := h.sos(t, "victim-1", models.EmergencyTypeMedical)
	taken := h.sos(t, "victim-2", models.EmergencyTypeMedical)
	h.sos(t, "victim-3", models.EmergencyTypeFire)

	for _, pair := range [][2]string{{saved.ID, "responder-1"}, {taken.ID, "responder-2"}} {
		if _, err := h.matching.NotifyResponder(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	h.clock.Advance(2 * time.Minute)
	for _, pair := range [][2]string{{saved.ID, "responder-1"}, {taken.ID, "responder-2"}} {
		if _, err := h.matching.AcceptEmergency(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("accept: %v", err)
		}
	}
	if _, err := h.matching.UpdateResponseStatus(ctx, saved.ID, "responder-1",
		models.UpdateResponseStatusRequest{Status: models.ResponseStatusArrived}); err != nil {
		t.Fatalf("arrived: %v", err)
	}
	if _, err := h.emergency.ResolveEmergency(ctx, saved.ID, volunteerViewer("responder-1"),
		models.ResolveEmergencyRequest{LifeSaved: true}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	summary, err := h.analytics.Summary(ctx, 7)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if summary.TotalEmergencies != 4 || summary.TotalVolunteers != 3 || summary.TotalLivesSaved != 1 {
		t.Errorf("totals = %d emergencies, %d volunteers, %d lives",
			summary.TotalEmergencies, summary.TotalVolunteers, summary.TotalLivesSaved)
	}
	if summary.AverageResponseTime != 2 {
		t.Errorf("average response time = %v, want 2", summary.AverageResponseTime)
	}

	want := models.ResponseFunnel{Triggered: 4, Accepted: 2, Arrived: 1, Resolved: 1}
	if summary.Funnel != want {
		t.Errorf("funnel = %+v, want %+v", summary.Funnel, want)
	}

	if len(summary.ByType) != 3 || summary.ByType[0] != (models.TypeCount{Type: models.EmergencyTypeMedical, Count: 2}) {
		t.Errorf("by type = %+v", summary.ByType)
	}

	if len(summary.DailyTrend) != 1 || summary.DailyTrend[0].Count != 3 {
		t.Errorf("daily trend = %+v, want one day with 3", summary.DailyTrend)
	}
	if summary.PeakHours[old.TriggeredAt.Hour()] != 4 {
		t.Errorf("peak hours = %v", summary.PeakHours)
	}
	if len(summary.Heatmap) != 4 {
		t.Errorf("heatmap points = %d", len(summary.Heatmap))
	}
}

func TestAnalyticsSummaryWindow(t *testing.T) {
	h := newHarness(t)

	summary, err := h.analytics.Summary(context.Background(), 0)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.WindowDays != DefaultAnalyticsDays || summary.TotalEmergencies != 0 {
		t.Errorf("empty summary = %+v", summary)
	}
	if summary.AverageResponseTime != 0 || len(summary.ByType) != 0 {
		t.Errorf("empty summary = %+v", summary)
	}

	_, err = h.analytics.Summary(context.Background(), 400)
	assertCode(t, err, utils.ErrCodeValidation)
}
