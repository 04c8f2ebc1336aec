package services

import (
	"context"
	"errors"
	"math"
	"sort"

	"goldenminutes/events"
	"goldenminutes/models"
	"goldenminutes/repositories"
	"goldenminutes/utils"

	"github.com/sirupsen/logrus"
)

// Hour windows for the time-of-day badges, UTC.
const (
	nightStartHour   = 22
	nightEndHour     = 6
	morningStartHour = 5
	morningEndHour   = 8
)

type ScoringService struct {
	emergencyRepo repositories.EmergencyStore
	responderRepo repositories.ResponderStore
	badgeRepo     repositories.BadgeStore
	trainingRepo  repositories.TrainingStore
	locker        utils.Locker
	validator     *utils.ValidationService
	now           Clock
}

func NewScoringService(store *repositories.Store, locker utils.Locker) *ScoringService {
	if locker == nil {
		locker = utils.NewKeyedMutex()
	}
	return &ScoringService{
		emergencyRepo: store.Emergencies,
		responderRepo: store.Responders,
		badgeRepo:     store.Badges,
		trainingRepo:  store.Training,
		locker:        locker,
		validator:     utils.NewValidationService(),
		now:           systemClock,
	}
}

func (ss *ScoringService) WithClock(clock Clock) *ScoringService {
	ss.now = clock
	return ss
}

// =================== LOCKED UPDATES ===================

// UpdateStats loads (or creates) the responder's stats under the per-responder
// lock, applies fn and saves when fn reports a change.
func (ss *ScoringService) UpdateStats(ctx context.Context, responderID string, fn func(stats *models.ResponderStats) (bool, error)) (*models.ResponderStats, error) {
	key := "stats:" + responderID
	unlock, err := ss.locker.Lock(ctx, key)
	if err != nil {
		return nil, lockError(err, key)
	}
	defer unlock()

	stats, err := ss.responderRepo.GetStats(ctx, responderID)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, storeError(err, "Responder stats", "get stats")
		}
		stats = models.NewResponderStats(responderID, ss.now())
	}

	changed, err := fn(stats)
	if err != nil {
		return nil, err
	}
	if !changed {
		return stats, nil
	}

	stats.UpdatedAt = ss.now()
	if err := ss.responderRepo.SaveStats(ctx, stats); err != nil {
		return nil, storeError(err, "Responder stats", "save stats")
	}
	return stats, nil
}

// updateVolunteer applies fn to the volunteer profile under its lock. A
// missing profile is not an error; fn is simply not called.
func (ss *ScoringService) updateVolunteer(ctx context.Context, userID string, fn func(profile *models.VolunteerProfile)) (*models.VolunteerProfile, error) {
	key := "volunteer:" + userID
	unlock, err := ss.locker.Lock(ctx, key)
	if err != nil {
		return nil, lockError(err, key)
	}
	defer unlock()

	profile, err := ss.responderRepo.GetVolunteer(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		return nil, storeError(err, "Volunteer profile", "get volunteer")
	}

	fn(profile)
	profile.UpdatedAt = ss.now()
	if err := ss.responderRepo.SaveVolunteer(ctx, profile); err != nil {
		return nil, storeError(err, "Volunteer profile", "save volunteer")
	}
	return profile, nil
}

// =================== STATS ===================

// RecomputeStats rebuilds the derived counters from stored responses and
// emergencies and applies the daily streak rule.
func (ss *ScoringService) RecomputeStats(ctx context.Context, responderID string) (*models.ResponderStats, error) {
	// Reads happen under the stats lock so an older snapshot can never be
	// saved over a newer one.
	return ss.UpdateStats(ctx, responderID, func(stats *models.ResponderStats) (bool, error) {
		responses, err := ss.emergencyRepo.ListResponsesByResponder(ctx, responderID)
		if err != nil {
			return false, storeError(err, "Emergency response", "list responses")
		}
		assigned, err := ss.emergencyRepo.List(ctx, repositories.EmergencyFilter{PrimaryResponderID: responderID})
		if err != nil {
			return false, storeError(err, "Emergency", "list emergencies")
		}

		applyResponseCounters(stats, responses)
		applyAssignmentCounters(stats, assigned)
		stats.UpdateStreak(ss.now())
		stats.RecomputeLevel()
		return true, nil
	})
}

func applyResponseCounters(stats *models.ResponderStats, responses []models.EmergencyResponse) {
	stats.TotalResponses = len(responses)
	stats.NightResponses = 0
	stats.MorningResponses = 0

	var total float64
	var timed int
	var fastest *float64

	for i := range responses {
		r := &responses[i]
		if r.Status != models.ResponseStatusAccepted {
			continue
		}
		minutes, ok := r.ResponseMinutes()
		if !ok {
			continue
		}
		total += minutes
		timed++
		if fastest == nil || minutes < *fastest {
			m := minutes
			fastest = &m
		}

		hour := r.RespondedAt.UTC().Hour()
		if hour >= nightStartHour || hour < nightEndHour {
			stats.NightResponses++
		}
		if hour >= morningStartHour && hour < morningEndHour {
			stats.MorningResponses++
		}
	}

	if timed == 0 {
		stats.AverageResponseTime = 0
		stats.FastestResponse = nil
		return
	}
	stats.AverageResponseTime = utils.RoundToDecimalPlaces(total/float64(timed), 2)
	stats.FastestResponse = utils.Float64Ptr(utils.RoundToDecimalPlaces(*fastest, 2))
}

func applyAssignmentCounters(stats *models.ResponderStats, assigned []models.Emergency) {
	stats.CompletedResponses = 0
	stats.LivesSaved = 0

	var arrivalTotal float64
	var arrivals int

	for i := range assigned {
		e := &assigned[i]
		if e.Status == models.EmergencyStatusResolved {
			stats.CompletedResponses++
			if e.LifeSaved {
				stats.LivesSaved++
			}
		}
		if e.ResponderAcceptedAt != nil && e.ResponderArrivedAt != nil {
			arrivalTotal += e.ResponderArrivedAt.Sub(*e.ResponderAcceptedAt).Minutes()
			arrivals++
		}
	}

	stats.AverageArrivalTime = 0
	if arrivals > 0 {
		stats.AverageArrivalTime = utils.RoundToDecimalPlaces(arrivalTotal/float64(arrivals), 2)
	}
}

// GetStats returns stored stats, or fresh defaults for a responder that has
// never been scored.
func (ss *ScoringService) GetStats(ctx context.Context, responderID string) (*models.ResponderStats, error) {
	stats, err := ss.responderRepo.GetStats(ctx, responderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.NewResponderStats(responderID, ss.now()), nil
		}
		return nil, storeError(err, "Responder stats", "get stats")
	}
	return stats, nil
}

// Rank is 1 + the number of responders with more points.
func (ss *ScoringService) Rank(ctx context.Context, responderID string) (int, error) {
	stats, err := ss.GetStats(ctx, responderID)
	if err != nil {
		return 0, err
	}
	all, err := ss.responderRepo.ListStats(ctx)
	if err != nil {
		return 0, storeError(err, "Responder stats", "list stats")
	}
	rank := 1
	for _, other := range all {
		if other.ResponderID != responderID && other.TotalPoints > stats.TotalPoints {
			rank++
		}
	}
	return rank, nil
}

// =================== BADGES ===================

// qualifies reports whether stats meet the badge requirement. Training badges
// and unknown requirement types never qualify here.
func qualifies(stats *models.ResponderStats, badge models.Badge) bool {
	threshold := badge.RequirementValue

	switch badge.RequirementType {
	case models.RequirementTotalResponses:
		return float64(stats.TotalResponses) >= threshold
	case models.RequirementLivesSaved:
		return float64(stats.LivesSaved) >= threshold
	case models.RequirementResponseTime, models.RequirementAvgResponseTime:
		return stats.FastestResponse != nil && stats.AverageResponseTime <= threshold
	case models.RequirementStreak, models.RequirementCurrentStreak:
		return float64(stats.CurrentStreak) >= threshold
	case models.RequirementRating:
		return stats.Rating >= threshold
	case models.RequirementCompletedResponses:
		return float64(stats.CompletedResponses) >= threshold
	case models.RequirementLevel:
		return float64(stats.Level) >= threshold
	case models.RequirementPoints:
		return float64(stats.TotalPoints) >= threshold
	case models.RequirementFastestResponse:
		return stats.FastestResponse != nil && *stats.FastestResponse <= threshold
	case models.RequirementNightResponses:
		return float64(stats.NightResponses) >= threshold
	case models.RequirementMorningResponses:
		return float64(stats.MorningResponses) >= threshold
	default:
		return false
	}
}

// EvaluateBadges awards every catalogue badge the responder now qualifies
// for and returns the ids that were newly earned.
func (ss *ScoringService) EvaluateBadges(ctx context.Context, responderID string) ([]string, *models.ResponderStats, error) {
	badges, err := ss.badgeRepo.ListBadges(ctx)
	if err != nil {
		return nil, nil, storeError(err, "Badge", "list badges")
	}

	awarded := []string{}
	stats, err := ss.UpdateStats(ctx, responderID, func(stats *models.ResponderStats) (bool, error) {
		// Catalogue order matters: a points or level badge can become
		// reachable through an earlier award in the same pass.
		for _, badge := range badges {
			if stats.HasBadge(badge.BadgeID) || !qualifies(stats, badge) {
				continue
			}
			if stats.EarnBadge(badge.BadgeID, badge.PointsReward) {
				awarded = append(awarded, badge.BadgeID)
			}
		}
		return len(awarded) > 0, nil
	})
	if err != nil {
		return nil, nil, err
	}

	if len(awarded) > 0 {
		logrus.WithFields(logrus.Fields{
			"responderId": responderID,
			"badges":      awarded,
			"points":      stats.TotalPoints,
			"level":       stats.Level,
		}).Info("Badges awarded")
	}
	return awarded, stats, nil
}

// SweepAndAwardBadges evaluates every responder that has stats.
func (ss *ScoringService) SweepAndAwardBadges(ctx context.Context) ([]models.BadgeAwardReport, error) {
	all, err := ss.responderRepo.ListStats(ctx)
	if err != nil {
		return nil, storeError(err, "Responder stats", "list stats")
	}

	reports := make([]models.BadgeAwardReport, 0, len(all))
	for _, s := range all {
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
		awarded, stats, err := ss.EvaluateBadges(ctx, s.ResponderID)
		if err != nil {
			logrus.WithField("responderId", s.ResponderID).Errorf("Badge evaluation failed: %v", err)
			continue
		}
		reports = append(reports, models.BadgeAwardReport{
			ResponderID: s.ResponderID,
			Awarded:     awarded,
			TotalPoints: stats.TotalPoints,
			Level:       stats.Level,
		})
	}
	return reports, nil
}

func (ss *ScoringService) ListBadges(ctx context.Context) ([]models.Badge, error) {
	badges, err := ss.badgeRepo.ListBadges(ctx)
	if err != nil {
		return nil, storeError(err, "Badge", "list badges")
	}
	return badges, nil
}

// BadgeProgress reports how far the responder is from every badge not yet
// earned. Progress is clamped to [0, 100].
func (ss *ScoringService) BadgeProgress(ctx context.Context, responderID string) ([]models.BadgeProgress, error) {
	stats, err := ss.GetStats(ctx, responderID)
	if err != nil {
		return nil, err
	}
	badges, err := ss.ListBadges(ctx)
	if err != nil {
		return nil, err
	}

	progress := []models.BadgeProgress{}
	for _, badge := range badges {
		if stats.HasBadge(badge.BadgeID) {
			continue
		}
		current, ok := progressValue(stats, badge)
		if !ok {
			continue
		}
		pct := 0.0
		if badge.RequirementValue > 0 {
			pct = math.Max(0, math.Min(current/badge.RequirementValue*100, 100))
		}
		progress = append(progress, models.BadgeProgress{
			Badge:    badge,
			Current:  current,
			Required: badge.RequirementValue,
			Progress: utils.RoundToDecimalPlaces(pct, 1),
		})
	}
	return progress, nil
}

// progressValue is the display counter for a badge. For avg_response_time it
// is the remaining margin, which goes negative for slow responders.
func progressValue(stats *models.ResponderStats, badge models.Badge) (float64, bool) {
	switch badge.RequirementType {
	case models.RequirementTotalResponses:
		return float64(stats.TotalResponses), true
	case models.RequirementLivesSaved:
		return float64(stats.LivesSaved), true
	case models.RequirementStreak, models.RequirementCurrentStreak:
		return float64(stats.CurrentStreak), true
	case models.RequirementCompletedResponses:
		return float64(stats.CompletedResponses), true
	case models.RequirementLevel:
		return float64(stats.Level), true
	case models.RequirementPoints:
		return float64(stats.TotalPoints), true
	case models.RequirementNightResponses:
		return float64(stats.NightResponses), true
	case models.RequirementMorningResponses:
		return float64(stats.MorningResponses), true
	case models.RequirementAvgResponseTime, models.RequirementResponseTime:
		return badge.RequirementValue - stats.AverageResponseTime, true
	default:
		return 0, false
	}
}

// =================== TRAINING ===================

// RecordTrainingCompletion stores a passing attempt and awards the module's
// badge. Scores below the passing mark change nothing.
func (ss *ScoringService) RecordTrainingCompletion(ctx context.Context, userID, moduleID string, req models.TrainingCompletionRequest) (*models.TrainingCompletionResult, error) {
	if err := ss.validator.Validate(req); err != nil {
		return nil, err
	}

	module, err := ss.trainingRepo.GetModule(ctx, moduleID)
	if err != nil {
		return nil, storeError(err, "Training module", "get module")
	}

	score := int(math.Round(*req.ScorePercent))
	result := &models.TrainingCompletionResult{Score: score}
	if score < models.TrainingPassingScore {
		return result, nil
	}
	result.Passed = true

	progress, err := ss.trainingRepo.GetProgress(ctx, userID, moduleID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, storeError(err, "Training progress", "get progress")
	}
	if progress == nil || score > progress.Score {
		if err := ss.trainingRepo.SaveProgress(ctx, &models.TrainingProgress{
			UserID:      userID,
			ModuleID:    moduleID,
			Score:       score,
			CompletedAt: ss.now(),
		}); err != nil {
			return nil, storeError(err, "Training progress", "save progress")
		}
	}

	if module.BadgeIDReward != "" {
		earned, err := ss.earn(ctx, userID, module.BadgeIDReward, module.PointsReward)
		if err != nil {
			return nil, err
		}
		if earned {
			result.BadgeAwarded = module.BadgeIDReward
		}
	}

	if err := ss.awardTrainingAll(ctx, userID); err != nil {
		logrus.WithField("userId", userID).Errorf("Failed to evaluate training_all badges: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"userId":   userID,
		"moduleId": moduleID,
		"score":    score,
		"badge":    result.BadgeAwarded,
	}).Info("Training completed")

	return result, nil
}

func (ss *ScoringService) earn(ctx context.Context, userID, badgeID string, points int) (bool, error) {
	earned := false
	_, err := ss.UpdateStats(ctx, userID, func(stats *models.ResponderStats) (bool, error) {
		earned = stats.EarnBadge(badgeID, points)
		return earned, nil
	})
	return earned, err
}

// awardTrainingAll grants training_all badges once every module is passed.
func (ss *ScoringService) awardTrainingAll(ctx context.Context, userID string) error {
	modules, err := ss.trainingRepo.ListModules(ctx)
	if err != nil || len(modules) == 0 {
		return err
	}
	progress, err := ss.trainingRepo.ListProgress(ctx, userID)
	if err != nil {
		return err
	}

	passed := make(map[string]bool, len(progress))
	for _, p := range progress {
		if p.Score >= models.TrainingPassingScore {
			passed[p.ModuleID] = true
		}
	}
	for _, m := range modules {
		if !passed[m.ModuleID] {
			return nil
		}
	}

	badges, err := ss.badgeRepo.ListBadges(ctx)
	if err != nil {
		return err
	}
	for _, badge := range badges {
		if badge.RequirementType != models.RequirementTrainingAll {
			continue
		}
		if _, err := ss.earn(ctx, userID, badge.BadgeID, badge.PointsReward); err != nil {
			return err
		}
	}
	return nil
}

// =================== IMPACT SCORE ===================

// CalculateImpactScore recomputes and persists the volunteer's impact score.
func (ss *ScoringService) CalculateImpactScore(ctx context.Context, userID string) (*models.VolunteerProfile, error) {
	profile, err := ss.updateVolunteer(ctx, userID, func(p *models.VolunteerProfile) {
		p.CalculateImpactScore()
	})
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, utils.NewVolunteerNotFoundError()
	}
	return profile, nil
}

// Leaderboard ranks approved volunteers by impact score.
func (ss *ScoringService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	volunteers, err := ss.responderRepo.ListVolunteers(ctx, repositories.VolunteerFilter{
		VerificationStatus: models.VerificationApproved,
	})
	if err != nil {
		return nil, storeError(err, "Volunteer profile", "list volunteers")
	}

	sort.SliceStable(volunteers, func(i, j int) bool {
		if volunteers[i].ImpactScore != volunteers[j].ImpactScore {
			return volunteers[i].ImpactScore > volunteers[j].ImpactScore
		}
		return volunteers[i].UserID < volunteers[j].UserID
	})
	if limit > 0 && len(volunteers) > limit {
		volunteers = volunteers[:limit]
	}

	entries := make([]models.LeaderboardEntry, len(volunteers))
	for i, v := range volunteers {
		entries[i] = models.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      v.UserID,
			RoleLevel:   v.RoleLevel,
			ImpactScore: v.ImpactScore,
		}
	}
	return entries, nil
}

// =================== EVENT HANDLING ===================

// ScoringEventTypes are the events HandleEvent reacts to.
var ScoringEventTypes = []string{
	events.ResponseNotified,
	events.ResponseViewed,
	events.ResponseAccepted,
	events.ResponseDeclined,
	events.ResponderEnRoute,
	events.ResponderArrived,
	events.EmergencyResolved,
}

// HandleEvent keeps profiles and stats in step with response activity.
func (ss *ScoringService) HandleEvent(ctx context.Context, event events.Event) error {
	if event.ResponderID == "" {
		return nil
	}

	switch event.Type {
	case events.ResponseAccepted:
		minutes := -1.0
		if event.Emergency != nil {
			minutes = event.Emergency.ResponseTimeMinutes()
		}
		if _, err := ss.updateVolunteer(ctx, event.ResponderID, func(p *models.VolunteerProfile) {
			p.RecordAssignment(minutes)
		}); err != nil {
			return err
		}
	case events.EmergencyResolved:
		if _, err := ss.updateVolunteer(ctx, event.ResponderID, func(p *models.VolunteerProfile) {
			p.SuccessfulResponses++
		}); err != nil {
			return err
		}
	}

	if _, err := ss.RecomputeStats(ctx, event.ResponderID); err != nil {
		return err
	}
	_, _, err := ss.EvaluateBadges(ctx, event.ResponderID)
	return err
}
