package services

import (
	"context"
	"strings"

	"goldenminutes/models"
	"goldenminutes/repositories"
	"goldenminutes/utils"

	"github.com/sirupsen/logrus"
)

// SafetyService maintains the per-area community safety ratings.
type SafetyService struct {
	areaRepo      repositories.AreaStore
	emergencyRepo repositories.EmergencyStore
	responderRepo repositories.ResponderStore
	now           Clock
}

func NewSafetyService(store *repositories.Store) *SafetyService {
	return &SafetyService{
		areaRepo:      store.Areas,
		emergencyRepo: store.Emergencies,
		responderRepo: store.Responders,
		now:           systemClock,
	}
}

func (ss *SafetyService) WithClock(clock Clock) *SafetyService {
	ss.now = clock
	return ss
}

func (ss *SafetyService) ListAreas(ctx context.Context) ([]models.AreaSafetyScore, error) {
	areas, err := ss.areaRepo.ListAreas(ctx)
	if err != nil {
		return nil, storeError(err, "Area", "list areas")
	}
	return areas, nil
}

// UpsertArea stores an area definition and scores it from its current metrics.
func (ss *SafetyService) UpsertArea(ctx context.Context, area *models.AreaSafetyScore) (*models.AreaSafetyScore, error) {
	area.AreaName = strings.TrimSpace(area.AreaName)
	if area.AreaName == "" {
		return nil, utils.NewValidationError("Area name is required", nil)
	}
	if !utils.IsValidCoordinate(area.Latitude, area.Longitude) {
		return nil, utils.NewValidationError("Invalid area coordinates", nil)
	}
	if area.RadiusKm <= 0 {
		area.RadiusKm = models.DefaultAreaRadiusKm
	}

	area.CalculateSafetyScore()
	area.LastCalculated = ss.now()
	if err := ss.areaRepo.UpsertArea(ctx, area); err != nil {
		return nil, storeError(err, "Area", "upsert area")
	}
	return area, nil
}

// RefreshAreaMetrics recounts the area's volunteers and emergencies from the
// store. It does not rescore.
func (ss *SafetyService) RefreshAreaMetrics(ctx context.Context, area *models.AreaSafetyScore) error {
	radiusKm := area.RadiusKm
	if radiusKm <= 0 {
		radiusKm = models.DefaultAreaRadiusKm
	}

	volunteers, err := ss.responderRepo.ListVolunteers(ctx, repositories.VolunteerFilter{AvailableOnly: true})
	if err != nil {
		return storeError(err, "Volunteer profile", "list volunteers")
	}
	available := make(map[string]bool, len(volunteers))
	for _, v := range volunteers {
		if v.CanRespond() {
			available[v.UserID] = true
		}
	}

	locations, err := ss.responderRepo.ListLocations(ctx)
	if err != nil {
		return storeError(err, "Responder location", "list locations")
	}
	volunteerCount := 0
	for _, loc := range locations {
		if available[loc.ResponderID] &&
			utils.IsWithinRadiusKm(loc.Latitude, loc.Longitude, area.Latitude, area.Longitude, radiusKm) {
			volunteerCount++
		}
	}

	box := utils.CalculateBoundingBox(area.Latitude, area.Longitude, radiusKm*1000)
	emergencies, err := ss.emergencyRepo.List(ctx, repositories.EmergencyFilter{Bounds: &box})
	if err != nil {
		return storeError(err, "Emergency", "list emergencies")
	}

	var total, resolved, timed int
	var minutes float64
	for i := range emergencies {
		e := &emergencies[i]
		if !utils.IsWithinRadiusKm(e.Latitude, e.Longitude, area.Latitude, area.Longitude, radiusKm) {
			continue
		}
		total++
		if e.Status == models.EmergencyStatusResolved {
			resolved++
		}
		if m := e.ResponseTimeMinutes(); m >= 0 {
			minutes += m
			timed++
		}
	}

	area.VolunteerCount = volunteerCount
	area.TotalEmergencies = total
	area.ResolvedEmergencies = resolved
	area.AverageResponseTimeMinutes = 0
	if timed > 0 {
		area.AverageResponseTimeMinutes = utils.RoundToDecimalPlaces(minutes/float64(timed), 2)
	}
	return nil
}

// RecalculateAll rescores every area, refreshing metrics first when asked.
// It returns the number of areas written.
func (ss *SafetyService) RecalculateAll(ctx context.Context, refresh bool) (int, error) {
	areas, err := ss.ListAreas(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range areas {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		area := &areas[i]
		if refresh {
			if err := ss.RefreshAreaMetrics(ctx, area); err != nil {
				logrus.WithField("area", area.AreaName).Errorf("Failed to refresh area metrics: %v", err)
				continue
			}
		}
		area.CalculateSafetyScore()
		area.LastCalculated = ss.now()
		if err := ss.areaRepo.UpsertArea(ctx, area); err != nil {
			logrus.WithField("area", area.AreaName).Errorf("Failed to save area score: %v", err)
			continue
		}
		updated++
	}

	logrus.WithFields(logrus.Fields{
		"areas":   len(areas),
		"updated": updated,
		"refresh": refresh,
	}).Info("Area safety scores recalculated")

	return updated, nil
}
