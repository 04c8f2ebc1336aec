package services

import (
	"context"
	"sort"
	"time"

	"goldenminutes/models"
	"goldenminutes/repositories"
	"goldenminutes/utils"
)

const (
	DefaultAnalyticsDays = 30
	maxAnalyticsDays     = 365
)

// AnalyticsService aggregates system-wide figures for administrators.
type AnalyticsService struct {
	emergencyRepo repositories.EmergencyStore
	responderRepo repositories.ResponderStore
	now           Clock
}

func NewAnalyticsService(store *repositories.Store) *AnalyticsService {
	return &AnalyticsService{
		emergencyRepo: store.Emergencies,
		responderRepo: store.Responders,
		now:           systemClock,
	}
}

func (as *AnalyticsService) WithClock(clock Clock) *AnalyticsService {
	as.now = clock
	return as
}

// Summary builds the dashboard. The daily trend covers the last days days;
// every other figure is all-time.
func (as *AnalyticsService) Summary(ctx context.Context, days int) (*models.AnalyticsSummary, error) {
	if days <= 0 {
		days = DefaultAnalyticsDays
	}
	if days > maxAnalyticsDays {
		return nil, utils.NewValidationError("Analytics window cannot exceed 365 days", nil)
	}

	now := as.now()
	summary := &models.AnalyticsSummary{
		DailyTrend:  []models.DailyCount{},
		ByType:      []models.TypeCount{},
		Heatmap:     []models.HeatPoint{},
		WindowDays:  days,
		GeneratedAt: now.Format(time.RFC3339),
	}

	total, err := as.emergencyRepo.Count(ctx, repositories.EmergencyFilter{})
	if err != nil {
		return nil, storeError(err, "Emergency", "count emergencies")
	}
	resolved, err := as.emergencyRepo.Count(ctx, repositories.EmergencyFilter{
		Statuses: []string{models.EmergencyStatusResolved},
	})
	if err != nil {
		return nil, storeError(err, "Emergency", "count resolved emergencies")
	}
	summary.TotalEmergencies = total
	summary.Funnel.Triggered = total
	summary.Funnel.Resolved = resolved

	emergencies, err := as.emergencyRepo.List(ctx, repositories.EmergencyFilter{})
	if err != nil {
		return nil, storeError(err, "Emergency", "list emergencies")
	}
	as.aggregateEmergencies(summary, emergencies, now, days)

	volunteers, err := as.responderRepo.ListVolunteers(ctx, repositories.VolunteerFilter{})
	if err != nil {
		return nil, storeError(err, "Volunteer profile", "list volunteers")
	}
	summary.TotalVolunteers = len(volunteers)

	stats, err := as.responderRepo.ListStats(ctx)
	if err != nil {
		return nil, storeError(err, "Responder stats", "list stats")
	}
	aggregateStats(summary, stats)

	return summary, nil
}

func (as *AnalyticsService) aggregateEmergencies(summary *models.AnalyticsSummary, emergencies []models.Emergency, now time.Time, days int) {
	since := now.UTC().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
	daily := map[string]int{}
	byType := map[string]int{}

	for i := range emergencies {
		e := &emergencies[i]
		triggered := e.TriggeredAt.UTC()

		if e.ResponderAcceptedAt != nil {
			summary.Funnel.Accepted++
		}
		if e.ResponderArrivedAt != nil {
			summary.Funnel.Arrived++
		}
		byType[e.Type]++
		summary.PeakHours[triggered.Hour()]++
		if !triggered.Before(since) {
			daily[triggered.Format("2006-01-02")]++
		}
		summary.Heatmap = append(summary.Heatmap, models.HeatPoint{
			Latitude:  e.Latitude,
			Longitude: e.Longitude,
			Severity:  e.Severity,
		})
	}

	for date, count := range daily {
		summary.DailyTrend = append(summary.DailyTrend, models.DailyCount{Date: date, Count: count})
	}
	sort.Slice(summary.DailyTrend, func(i, j int) bool {
		return summary.DailyTrend[i].Date < summary.DailyTrend[j].Date
	})

	for emergencyType, count := range byType {
		summary.ByType = append(summary.ByType, models.TypeCount{Type: emergencyType, Count: count})
	}
	sort.Slice(summary.ByType, func(i, j int) bool {
		if summary.ByType[i].Count != summary.ByType[j].Count {
			return summary.ByType[i].Count > summary.ByType[j].Count
		}
		return summary.ByType[i].Type < summary.ByType[j].Type
	})
}

// aggregateStats sums lives saved and averages response time over responders
// that have at least one timed response.
func aggregateStats(summary *models.AnalyticsSummary, stats []models.ResponderStats) {
	var total float64
	var timed int
	for _, s := range stats {
		summary.TotalLivesSaved += s.LivesSaved
		if s.FastestResponse != nil {
			total += s.AverageResponseTime
			timed++
		}
	}
	if timed > 0 {
		summary.AverageResponseTime = utils.RoundToDecimalPlaces(total/float64(timed), 1)
	}
}
