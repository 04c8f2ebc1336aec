// Package main runs the maintenance sweeps once and prints a report. It is
// meant for cron jobs and for operators who want a pass outside the
// server's schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"goldenminutes/config"
	"goldenminutes/database"
	"goldenminutes/events"
	"goldenminutes/models"
	"goldenminutes/repositories"
	"goldenminutes/repositories/memory"
	"goldenminutes/routes"
	"goldenminutes/services"
	"goldenminutes/utils"
	"goldenminutes/workers"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var allJobs = []string{workers.JobBystander, workers.JobBadges, workers.JobAreas}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	job := flag.String("job", "all", "Sweep to run: all, bystander, badges or areas")
	timeout := flag.Duration("bystander-timeout", cfg.BystanderTimeout(), "Unattended time before bystander mode starts")
	refresh := flag.Bool("refresh-areas", true, "Recount area volunteers and emergencies before scoring")
	top := flag.Int("top", 10, "Leaderboard rows to print after a badge sweep (0 to skip)")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logrus.SetLevel(logrus.WarnLevel)
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	jobs := allJobs
	if *job != "all" {
		jobs = []string{*job}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	// Events from this run reach connected clients through the relay.
	bus := events.NewBus()
	var locker utils.Locker
	if redisClient := config.InitRedis(cfg); redisClient != nil {
		defer redisClient.Close()
		locker = utils.NewRedisLocker(redisClient, "lock")
		bus.Subscribe("redis-relay", events.NewRedisRelay(redisClient, events.DefaultRelayChannel).Handle)
	}

	svc := routes.InitializeServices(store, bus, locker, cfg.DefaultLanguage)
	bus.Subscribe("scoring", svc.Scoring.HandleEvent, services.ScoringEventTypes...)

	worker := workers.NewSweepWorker(svc.Emergency, svc.Scoring, svc.Safety, workers.SweepWorkerConfig{
		BystanderTimeout:   *timeout,
		RefreshAreaMetrics: *refresh,
	})

	var rows [][]string
	failed := false
	for _, name := range jobs {
		result, err := worker.Run(ctx, name)
		status := "ok"
		if err != nil {
			status = err.Error()
			failed = true
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(result.Processed),
			strconv.Itoa(result.Changed),
			utils.FormatDuration(result.Duration),
			status,
		})
	}
	fmt.Print(utils.FormatTable([]string{"JOB", "PROCESSED", "CHANGED", "DURATION", "STATUS"}, rows))

	if *top > 0 && utils.StringSliceContains(jobs, workers.JobBadges) {
		entries, err := svc.Scoring.Leaderboard(ctx, *top)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sweep: leaderboard: %v\n", err)
			failed = true
		} else {
			fmt.Println()
			fmt.Print(formatLeaderboard(entries))
		}
	}

	if failed {
		os.Exit(1)
	}
}

func formatLeaderboard(entries []models.LeaderboardEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{strconv.Itoa(e.Rank), e.UserID, e.RoleLevel, strconv.Itoa(e.ImpactScore)})
	}
	return utils.FormatTable([]string{"RANK", "RESPONDER", "ROLE", "IMPACT"}, rows)
}

func openStore(cfg *config.Config) (*repositories.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		return repositories.NewMongoStore(db), func() { database.Disconnect() }, nil
	case config.StoreDriverMemory:
		// Only useful for trying the command out; nothing persists.
		return memory.New().Repositories(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
