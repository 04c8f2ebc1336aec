package models

import (
	"math"
	"time"
)

// Badge is an achievement definition. Badges are configuration, the
// evaluation rules live in the scoring service.
type Badge struct {
	BadgeID          string    `json:"badgeId" bson:"_id" yaml:"badge_id"`
	Name             string    `json:"name" bson:"name" yaml:"name"`
	Description      string    `json:"description" bson:"description" yaml:"description"`
	BadgeType        string    `json:"badgeType" bson:"badgeType" yaml:"badge_type"`
	RequirementType  string    `json:"requirementType" bson:"requirementType" yaml:"requirement_type"`
	RequirementValue float64   `json:"requirementValue" bson:"requirementValue" yaml:"requirement_value"`
	PointsReward     int       `json:"pointsReward" bson:"pointsReward" yaml:"points_reward"`
	Rarity           string    `json:"rarity" bson:"rarity" yaml:"rarity"`
	CreatedAt        time.Time `json:"createdAt" bson:"createdAt" yaml:"-"`
}

// Badge requirement types
const (
	RequirementTotalResponses     = "total_responses"
	RequirementLivesSaved         = "lives_saved"
	RequirementResponseTime       = "response_time"
	RequirementAvgResponseTime    = "avg_response_time"
	RequirementStreak             = "streak"
	RequirementCurrentStreak      = "current_streak"
	RequirementRating             = "rating"
	RequirementCompletedResponses = "completed_responses"
	RequirementLevel              = "level"
	RequirementPoints             = "points"
	RequirementFastestResponse    = "fastest_response"
	RequirementNightResponses     = "night_responses"
	RequirementMorningResponses   = "morning_responses"
	RequirementTrainingCPR        = "training_cpr"
	RequirementTrainingAll        = "training_all"
)

// Badge types
const (
	BadgeTypeMilestone   = "milestone"
	BadgeTypePerformance = "performance"
	BadgeTypeSpecial     = "special"
	BadgeTypeTraining    = "training"
)

// BadgeProgress is display-only; Current may be negative for
// avg_response_time when the responder is slower than the threshold.
type BadgeProgress struct {
	Badge    Badge   `json:"badge"`
	Current  float64 `json:"current"`
	Required float64 `json:"required"`
	Progress float64 `json:"progress"`
}

// AreaSafetyScore is the community safety rating of one area.
type AreaSafetyScore struct {
	AreaName                   string    `json:"areaName" bson:"_id" yaml:"area_name"`
	Latitude                   float64   `json:"latitude" bson:"latitude" yaml:"latitude"`
	Longitude                  float64   `json:"longitude" bson:"longitude" yaml:"longitude"`
	RadiusKm                   float64   `json:"radiusKm" bson:"radiusKm" yaml:"radius_km"`
	VolunteerCount             int       `json:"volunteerCount" bson:"volunteerCount" yaml:"volunteer_count"`
	AverageResponseTimeMinutes float64   `json:"averageResponseTimeMinutes" bson:"averageResponseTimeMinutes" yaml:"average_response_time_minutes"`
	TotalEmergencies           int       `json:"totalEmergencies" bson:"totalEmergencies" yaml:"total_emergencies"`
	ResolvedEmergencies        int       `json:"resolvedEmergencies" bson:"resolvedEmergencies" yaml:"resolved_emergencies"`
	SafetyScore                int       `json:"safetyScore" bson:"safetyScore" yaml:"-"`
	ScoreColor                 string    `json:"scoreColor" bson:"scoreColor" yaml:"-"`
	LastCalculated             time.Time `json:"lastCalculated" bson:"lastCalculated" yaml:"-"`
}

// Score colours
const (
	ScoreColorGreen  = "green"
	ScoreColorYellow = "yellow"
	ScoreColorOrange = "orange"
	ScoreColorRed    = "red"
)

const DefaultAreaRadiusKm = 2

// CalculateSafetyScore recomputes SafetyScore and ScoreColor.
//
//	density:    min(volunteers / (pi r^2) * 50, 50)
//	time:       max(30 - avg minutes*3, 0)
//	resolution: resolved/total*100 (50 with no history) * 0.2
func (a *AreaSafetyScore) CalculateSafetyScore() int {
	area := math.Pi * a.RadiusKm * a.RadiusKm
	density := 0.0
	if area > 0 {
		density = float64(a.VolunteerCount) / area
	}
	densityScore := math.Min(density*50, 50)

	timeScore := math.Max(30-a.AverageResponseTimeMinutes*3, 0)

	resolutionRate := 50.0
	if a.TotalEmergencies > 0 {
		resolutionRate = float64(a.ResolvedEmergencies) / float64(a.TotalEmergencies) * 100
	}
	resolutionScore := resolutionRate * 0.2

	a.SafetyScore = int(math.Floor(densityScore + timeScore + resolutionScore))
	a.ScoreColor = ColorForSafetyScore(a.SafetyScore)
	return a.SafetyScore
}

func ColorForSafetyScore(score int) string {
	switch {
	case score >= 75:
		return ScoreColorGreen
	case score >= 50:
		return ScoreColorYellow
	case score >= 25:
		return ScoreColorOrange
	default:
		return ScoreColorRed
	}
}

// TrainingModule is the part of a training course the scoring engine cares about.
type TrainingModule struct {
	ModuleID      string `json:"moduleId" bson:"_id" yaml:"module_id"`
	Title         string `json:"title" bson:"title" yaml:"title"`
	BadgeIDReward string `json:"badgeIdReward,omitempty" bson:"badgeIdReward,omitempty" yaml:"badge_id_reward"`
	PointsReward  int    `json:"pointsReward" bson:"pointsReward" yaml:"points_reward"`
}

type TrainingProgress struct {
	UserID      string    `json:"userId" bson:"userId"`
	ModuleID    string    `json:"moduleId" bson:"moduleId"`
	Score       int       `json:"score" bson:"score"`
	CompletedAt time.Time `json:"completedAt" bson:"completedAt"`
}

const TrainingPassingScore = 70

type TrainingCompletionRequest struct {
	ScorePercent *float64 `json:"scorePercent" validate:"required,gte=0,lte=100"`
}

type TrainingCompletionResult struct {
	Passed       bool   `json:"passed"`
	Score        int    `json:"score"`
	BadgeAwarded string `json:"badgeAwarded,omitempty"`
}

// BadgeAwardReport summarises one responder in a badge sweep.
type BadgeAwardReport struct {
	ResponderID string   `json:"responderId"`
	Awarded     []string `json:"awarded"`
	TotalPoints int      `json:"totalPoints"`
	Level       int      `json:"level"`
}

type SweepResult struct {
	Job       string        `json:"job"`
	Processed int           `json:"processed"`
	Changed   int           `json:"changed"`
	Duration  time.Duration `json:"duration"`
}
