package workers

import (
	"context"
	"sync"
	"time"

	"goldenminutes/models"
	"goldenminutes/services"
	"goldenminutes/utils"

	"github.com/sirupsen/logrus"
)

// Sweep job names
const (
	JobBystander = "bystander"
	JobBadges    = "badges"
	JobAreas     = "areas"
)

// SweepWorker runs the periodic maintenance passes: bystander timeouts,
// badge awards and area safety scores.
type SweepWorker struct {
	emergencyService *services.EmergencyService
	scoringService   *services.ScoringService
	safetyService    *services.SafetyService

	config SweepWorkerConfig

	isRunning bool
	mutex     sync.Mutex

	// Serializes runs so a manual trigger never overlaps a scheduled one.
	runMutex sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	tasks []SweepTask

	stats      SweepWorkerStats
	statsMutex sync.RWMutex
}

type SweepWorkerConfig struct {
	BystanderTimeout       time.Duration
	BystanderSweepInterval time.Duration
	BadgeSweepInterval     time.Duration
	AreaSweepInterval      time.Duration
	// RefreshAreaMetrics recounts volunteers and emergencies before scoring.
	RefreshAreaMetrics bool
}

type SweepTask struct {
	Name     string
	Interval time.Duration
	NextRun  time.Time
	Function func(ctx context.Context) (models.SweepResult, error)
}

type SweepWorkerStats struct {
	Runs      map[string]int64              `json:"runs"`
	Failures  map[string]int64              `json:"failures"`
	LastRun   map[string]models.SweepResult `json:"lastRun"`
	StartTime time.Time                     `json:"startTime"`
}

func NewSweepWorker(
	emergencyService *services.EmergencyService,
	scoringService *services.ScoringService,
	safetyService *services.SafetyService,
	config SweepWorkerConfig,
) *SweepWorker {
	ctx, cancel := context.WithCancel(context.Background())

	if config.BystanderTimeout <= 0 {
		config.BystanderTimeout = 5 * time.Minute
	}

	worker := &SweepWorker{
		emergencyService: emergencyService,
		scoringService:   scoringService,
		safetyService:    safetyService,
		config:           config,
		ctx:              ctx,
		cancel:           cancel,
		stats: SweepWorkerStats{
			Runs:      make(map[string]int64),
			Failures:  make(map[string]int64),
			LastRun:   make(map[string]models.SweepResult),
			StartTime: time.Now(),
		},
	}
	worker.initializeTasks()

	return worker
}

func (sw *SweepWorker) initializeTasks() {
	candidates := []SweepTask{
		{Name: JobBystander, Interval: sw.config.BystanderSweepInterval, Function: sw.SweepBystander},
		{Name: JobBadges, Interval: sw.config.BadgeSweepInterval, Function: sw.SweepBadges},
		{Name: JobAreas, Interval: sw.config.AreaSweepInterval, Function: sw.SweepAreas},
	}

	now := time.Now()
	for _, task := range candidates {
		// A zero interval disables the scheduled run; manual runs still work.
		if task.Interval <= 0 {
			continue
		}
		task.NextRun = now.Add(task.Interval)
		sw.tasks = append(sw.tasks, task)
	}
}

func (sw *SweepWorker) Start() error {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	if sw.isRunning {
		return nil
	}
	sw.isRunning = true

	logrus.Info("Starting Sweep Worker...")

	sw.wg.Add(1)
	go sw.taskScheduler()

	logrus.Infof("Sweep Worker started with %d tasks", len(sw.tasks))
	return nil
}

func (sw *SweepWorker) Stop() error {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	if !sw.isRunning {
		return nil
	}

	logrus.Info("Stopping Sweep Worker...")

	sw.cancel()
	sw.isRunning = false
	sw.wg.Wait()

	logrus.Info("Sweep Worker stopped successfully")
	return nil
}

// tickInterval is the shortest task interval, bounded below by a second.
func (sw *SweepWorker) tickInterval() time.Duration {
	tick := time.Minute
	for _, task := range sw.tasks {
		if task.Interval < tick {
			tick = task.Interval
		}
	}
	if tick < time.Second {
		tick = time.Second
	}
	return tick
}

func (sw *SweepWorker) taskScheduler() {
	defer sw.wg.Done()

	ticker := time.NewTicker(sw.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.executeScheduledTasks(time.Now())

		case <-sw.ctx.Done():
			return
		}
	}
}

func (sw *SweepWorker) executeScheduledTasks(now time.Time) {
	for i := range sw.tasks {
		task := &sw.tasks[i]
		if now.Before(task.NextRun) {
			continue
		}

		if _, err := task.Function(sw.ctx); err != nil {
			logrus.Errorf("Sweep task %s failed: %v", task.Name, err)
		}
		task.NextRun = now.Add(task.Interval)
	}
}

// Run executes one job by name.
func (sw *SweepWorker) Run(ctx context.Context, job string) (models.SweepResult, error) {
	switch job {
	case JobBystander:
		return sw.SweepBystander(ctx)
	case JobBadges:
		return sw.SweepBadges(ctx)
	case JobAreas:
		return sw.SweepAreas(ctx)
	default:
		return models.SweepResult{Job: job}, utils.NewValidationError("Unknown sweep job", map[string]string{"job": job})
	}
}

func (sw *SweepWorker) SweepBystander(ctx context.Context) (models.SweepResult, error) {
	return sw.execute(ctx, JobBystander, func(ctx context.Context) (int, int, error) {
		activated, err := sw.emergencyService.SweepBystanderTimeouts(ctx, sw.config.BystanderTimeout)
		return activated, activated, err
	})
}

func (sw *SweepWorker) SweepBadges(ctx context.Context) (models.SweepResult, error) {
	return sw.execute(ctx, JobBadges, func(ctx context.Context) (int, int, error) {
		reports, err := sw.scoringService.SweepAndAwardBadges(ctx)
		awarded := 0
		for _, report := range reports {
			awarded += len(report.Awarded)
		}
		return len(reports), awarded, err
	})
}

func (sw *SweepWorker) SweepAreas(ctx context.Context) (models.SweepResult, error) {
	return sw.execute(ctx, JobAreas, func(ctx context.Context) (int, int, error) {
		updated, err := sw.safetyService.RecalculateAll(ctx, sw.config.RefreshAreaMetrics)
		return updated, updated, err
	})
}

func (sw *SweepWorker) execute(ctx context.Context, job string, fn func(ctx context.Context) (int, int, error)) (models.SweepResult, error) {
	sw.runMutex.Lock()
	defer sw.runMutex.Unlock()

	start := time.Now()
	processed, changed, err := fn(ctx)
	result := models.SweepResult{
		Job:       job,
		Processed: processed,
		Changed:   changed,
		Duration:  time.Since(start),
	}

	sw.statsMutex.Lock()
	sw.stats.Runs[job]++
	if err != nil {
		sw.stats.Failures[job]++
	}
	sw.stats.LastRun[job] = result
	sw.statsMutex.Unlock()

	if err != nil {
		return result, err
	}

	entry := logrus.WithFields(logrus.Fields{
		"job":       job,
		"processed": processed,
		"changed":   changed,
		"duration":  result.Duration.String(),
	})
	if changed > 0 {
		entry.Info("Sweep completed")
	} else {
		entry.Debug("Sweep completed")
	}
	return result, nil
}

// Stats returns a copy of the worker counters.
func (sw *SweepWorker) Stats() SweepWorkerStats {
	sw.statsMutex.RLock()
	defer sw.statsMutex.RUnlock()

	stats := SweepWorkerStats{
		Runs:      make(map[string]int64, len(sw.stats.Runs)),
		Failures:  make(map[string]int64, len(sw.stats.Failures)),
		LastRun:   make(map[string]models.SweepResult, len(sw.stats.LastRun)),
		StartTime: sw.stats.StartTime,
	}
	for k, v := range sw.stats.Runs {
		stats.Runs[k] = v
	}
	for k, v := range sw.stats.Failures {
		stats.Failures[k] = v
	}
	for k, v := range sw.stats.LastRun {
		stats.LastRun[k] = v
	}
	return stats
}
