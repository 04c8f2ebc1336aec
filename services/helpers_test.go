package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"goldenminutes/events"
	"goldenminutes/models"
	"goldenminutes/repositories"
	"goldenminutes/repositories/memory"
	"goldenminutes/utils"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	repos     *repositories.Store
	bus       *events.Bus
	clock     *fakeClock
	emergency *EmergencyService
	matching  *MatchingService
	scoring   *ScoringService
	responder *ResponderService
	safety    *SafetyService
	analytics *AnalyticsService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, memory.New().Repositories())
}

// newHarnessWithStore lets a test swap in a wrapped store.
func newHarnessWithStore(t *testing.T, repos *repositories.Store) *harness {
	t.Helper()

	bus := events.NewBus()
	clock := newFakeClock()
	locker := utils.NewKeyedMutex()

	scoring := NewScoringService(repos, locker).WithClock(clock.Now)
	bus.Subscribe("scoring", scoring.HandleEvent, ScoringEventTypes...)

	return &harness{
		repos:     repos,
		bus:       bus,
		clock:     clock,
		emergency: NewEmergencyService(repos.Emergencies, nil, bus).WithClock(clock.Now),
		matching:  NewMatchingService(repos.Emergencies, repos.Responders, bus, locker).WithClock(clock.Now),
		scoring:   scoring,
		responder: NewResponderService(repos, scoring).WithClock(clock.Now),
		safety:    NewSafetyService(repos).WithClock(clock.Now),
		analytics: NewAnalyticsService(repos).WithClock(clock.Now),
	}
}

func (h *harness) volunteer(t *testing.T, userID string, approve bool) *models.VolunteerProfile {
	t.Helper()
	ctx := context.Background()

	profile, err := h.responder.RegisterVolunteer(ctx, userID, models.RegisterVolunteerRequest{
		RoleLevel: models.RoleLevelFirstAid,
	})
	if err != nil {
		t.Fatalf("register %s: %v", userID, err)
	}
	if approve {
		profile, err = h.responder.ApproveVolunteer(ctx, userID, "admin-1")
		if err != nil {
			t.Fatalf("approve %s: %v", userID, err)
		}
	}
	return profile
}

func (h *harness) locate(t *testing.T, userID string, lat, lon float64) {
	t.Helper()
	_, err := h.responder.UpdateLocation(context.Background(), userID, models.UpdateLocationRequest{
		Latitude:  utils.Float64Ptr(lat),
		Longitude: utils.Float64Ptr(lon),
	})
	if err != nil {
		t.Fatalf("locate %s: %v", userID, err)
	}
}

func (h *harness) sos(t *testing.T, victimID, emergencyType string) *models.Emergency {
	t.Helper()
	emergency, err := h.emergency.CreateEmergency(context.Background(), victimID, models.CreateEmergencyRequest{
		Type:        emergencyType,
		Latitude:    utils.Float64Ptr(19.0760),
		Longitude:   utils.Float64Ptr(72.8777),
		Description: "help",
	})
	if err != nil {
		t.Fatalf("create emergency: %v", err)
	}
	return emergency
}

func citizen(id string) models.Viewer {
	return models.Viewer{UserID: id, Role: models.RoleCitizen}
}

func volunteerViewer(id string) models.Viewer {
	return models.Viewer{UserID: id, Role: models.RoleVolunteer}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if !utils.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func timelineTypes(t *testing.T, h *harness, emergencyID string) []string {
	t.Helper()
	entries, err := h.repos.Emergencies.GetTimeline(context.Background(), emergencyID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	types := make([]string, len(entries))
	for i, e := range entries {
		types[i] = e.EventType
	}
	return types
}

// failingTimelineStore rejects every timeline append.
type failingTimelineStore struct {
	repositories.EmergencyStore
}

func (failingTimelineStore) AppendTimeline(ctx context.Context, entry *models.EmergencyTimeline) error {
	return errors.New("timeline collection unavailable")
}
