package workers

import (
	"context"
	"testing"
	"time"

	"goldenminutes/events"
	"goldenminutes/models"
	"goldenminutes/repositories/memory"
	"goldenminutes/services"
	"goldenminutes/utils"
)

func TestSweepWorkerBystanderTimeout(t *testing.T) {
	ctx := context.Background()
	repos := memory.New().Repositories()
	bus := events.NewBus()

	var activated []string
	bus.Subscribe("test", func(ctx context.Context, e events.Event) error {
		activated = append(activated, e.EmergencyID)
		return nil
	}, events.EmergencyBystanderActivated)

	now := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	emergencySvc := services.NewEmergencyService(repos.Emergencies, nil, bus).WithClock(clock)
	scoringSvc := services.NewScoringService(repos, utils.NewKeyedMutex()).WithClock(clock)
	safetySvc := services.NewSafetyService(repos).WithClock(clock)

	lat, lon := 19.07, 72.87
	emergency, err := emergencySvc.CreateEmergency(ctx, "citizen-1", models.CreateEmergencyRequest{
		Type:      models.EmergencyTypeMedical,
		Latitude:  &lat,
		Longitude: &lon,
	})
	if err != nil {
		t.Fatalf("CreateEmergency: %v", err)
	}

	worker := NewSweepWorker(emergencySvc, scoringSvc, safetySvc, SweepWorkerConfig{
		BystanderTimeout: 5 * time.Minute,
	})

	result, err := worker.Run(ctx, JobBystander)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Changed != 0 {
		t.Errorf("fresh emergency should not time out, changed = %d", result.Changed)
	}

	now = now.Add(6 * time.Minute)

	result, err = worker.Run(ctx, JobBystander)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Changed != 1 {
		t.Errorf("changed = %d, want 1", result.Changed)
	}
	if len(activated) != 1 || activated[0] != emergency.ID {
		t.Errorf("activation events = %v", activated)
	}

	// A second pass finds nothing new.
	result, err = worker.Run(ctx, JobBystander)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Changed != 0 {
		t.Errorf("repeat sweep changed = %d, want 0", result.Changed)
	}

	stats := worker.Stats()
	if stats.Runs[JobBystander] != 3 || stats.Failures[JobBystander] != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSweepWorkerRunUnknownJob(t *testing.T) {
	repos := memory.New().Repositories()
	worker := NewSweepWorker(
		services.NewEmergencyService(repos.Emergencies, nil, nil),
		services.NewScoringService(repos, nil),
		services.NewSafetyService(repos),
		SweepWorkerConfig{},
	)

	_, err := worker.Run(context.Background(), "nightly")
	if !utils.HasCode(err, utils.ErrCodeValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
	if len(worker.tasks) != 0 {
		t.Errorf("zero intervals should schedule nothing, got %d tasks", len(worker.tasks))
	}
}

func TestSweepWorkerScheduledTasks(t *testing.T) {
	repos := memory.New().Repositories()
	worker := NewSweepWorker(
		services.NewEmergencyService(repos.Emergencies, nil, nil),
		services.NewScoringService(repos, nil),
		services.NewSafetyService(repos),
		SweepWorkerConfig{
			BadgeSweepInterval: time.Hour,
			AreaSweepInterval:  2 * time.Hour,
		},
	)
	if len(worker.tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(worker.tasks))
	}

	start := worker.tasks[0].NextRun
	worker.executeScheduledTasks(start)

	stats := worker.Stats()
	if stats.Runs[JobBadges] != 1 || stats.Runs[JobAreas] != 0 {
		t.Errorf("runs after first hour = %v", stats.Runs)
	}
	if next := worker.tasks[0].NextRun; !next.Equal(start.Add(time.Hour)) {
		t.Errorf("badge task next run = %v", next)
	}
}
