package models

import (
	"math"
	"time"
)

// VolunteerProfile is the volunteer-side profile of a user.
type VolunteerProfile struct {
	UserID             string     `json:"userId" bson:"_id"`
	RoleLevel          string     `json:"roleLevel" bson:"roleLevel"`
	VerificationStatus string     `json:"verificationStatus" bson:"verificationStatus"`
	VerifiedBy         string     `json:"verifiedBy,omitempty" bson:"verifiedBy,omitempty"`
	VerifiedAt         *time.Time `json:"verifiedAt,omitempty" bson:"verifiedAt,omitempty"`

	IsAvailable          bool `json:"isAvailable" bson:"isAvailable"`
	AvailabilityRadiusKm int  `json:"availabilityRadiusKm" bson:"availabilityRadiusKm"`

	TotalResponses             int     `json:"totalResponses" bson:"totalResponses"`
	SuccessfulResponses        int     `json:"successfulResponses" bson:"successfulResponses"`
	AverageResponseTimeMinutes float64 `json:"averageResponseTimeMinutes" bson:"averageResponseTimeMinutes"`
	ImpactScore                int     `json:"impactScore" bson:"impactScore"`

	Bio             string `json:"bio,omitempty" bson:"bio,omitempty"`
	Specializations string `json:"specializations,omitempty" bson:"specializations,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (vp *VolunteerProfile) IsVerified() bool {
	return vp.VerificationStatus == VerificationApproved
}

// CanRespond is false only for rejected applications; pending volunteers may
// still act on emergencies.
func (vp *VolunteerProfile) CanRespond() bool {
	return vp.VerificationStatus != VerificationRejected
}

var roleMultiplier = map[string]float64{
	RoleLevelGeneral:  1.0,
	RoleLevelFirstAid: 1.5,
	RoleLevelMedical:  2.0,
}

// CalculateImpactScore recomputes and stores ImpactScore.
//
//	response: min(total*10, 400)
//	success:  success rate percent * 3
//	time:     max(200 - avg minutes*2, 0)
//	role:     multiplier * 100
func (vp *VolunteerProfile) CalculateImpactScore() int {
	responseScore := math.Min(float64(vp.TotalResponses*10), 400)

	successRate := 0.0
	if vp.TotalResponses > 0 {
		successRate = float64(vp.SuccessfulResponses) / float64(vp.TotalResponses) * 100
	}
	successScore := successRate * 3

	timeScore := math.Max(200-vp.AverageResponseTimeMinutes*2, 0)

	multiplier, ok := roleMultiplier[vp.RoleLevel]
	if !ok {
		multiplier = 1.0
	}
	roleScore := multiplier * 100

	vp.ImpactScore = int(responseScore + successScore + timeScore + roleScore)
	return vp.ImpactScore
}

// RecordAssignment folds one accepted emergency into the running counters.
func (vp *VolunteerProfile) RecordAssignment(responseMinutes float64) {
	if responseMinutes >= 0 {
		total := vp.AverageResponseTimeMinutes * float64(vp.TotalResponses)
		vp.AverageResponseTimeMinutes = (total + responseMinutes) / float64(vp.TotalResponses+1)
	}
	vp.TotalResponses++
}

// ResponderStats tracks responder performance and gamification state.
type ResponderStats struct {
	ResponderID string `json:"responderId" bson:"_id"`

	TotalResponses     int `json:"totalResponses" bson:"totalResponses"`
	CompletedResponses int `json:"completedResponses" bson:"completedResponses"`
	LivesSaved         int `json:"livesSaved" bson:"livesSaved"`
	NightResponses     int `json:"nightResponses" bson:"nightResponses"`
	MorningResponses   int `json:"morningResponses" bson:"morningResponses"`

	AverageResponseTime float64  `json:"averageResponseTime" bson:"averageResponseTime"`
	AverageArrivalTime  float64  `json:"averageArrivalTime" bson:"averageArrivalTime"`
	FastestResponse     *float64 `json:"fastestResponse,omitempty" bson:"fastestResponse,omitempty"`

	Rating       float64 `json:"rating" bson:"rating"`
	TotalRatings int     `json:"totalRatings" bson:"totalRatings"`

	CurrentStreak int        `json:"currentStreak" bson:"currentStreak"`
	LongestStreak int        `json:"longestStreak" bson:"longestStreak"`
	LastActive    *time.Time `json:"lastActive,omitempty" bson:"lastActive,omitempty"`

	TotalPoints int      `json:"totalPoints" bson:"totalPoints"`
	Level       int      `json:"level" bson:"level"`
	Badges      []string `json:"badges" bson:"badges"`

	LastAcknowledgedAlertID string `json:"lastAcknowledgedAlertId,omitempty" bson:"lastAcknowledgedAlertId,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// NewResponderStats returns the defaults a freshly created stats row has.
func NewResponderStats(responderID string, now time.Time) *ResponderStats {
	return &ResponderStats{
		ResponderID: responderID,
		Rating:      5.0,
		Level:       1,
		Badges:      []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func LevelForPoints(points int) int {
	if points < 0 {
		points = 0
	}
	return points/100 + 1
}

func (rs *ResponderStats) RecomputeLevel() {
	rs.Level = LevelForPoints(rs.TotalPoints)
}

func (rs *ResponderStats) HasBadge(badgeID string) bool {
	for _, b := range rs.Badges {
		if b == badgeID {
			return true
		}
	}
	return false
}

// EarnBadge adds badgeID once, credits points and recomputes the level in
// the same update. It returns false if the badge was already earned.
func (rs *ResponderStats) EarnBadge(badgeID string, points int) bool {
	if rs.HasBadge(badgeID) {
		return false
	}
	rs.Badges = append(rs.Badges, badgeID)
	rs.AddPoints(points)
	return true
}

// AddPoints credits points and reports whether the level went up.
func (rs *ResponderStats) AddPoints(points int) bool {
	oldLevel := rs.Level
	rs.TotalPoints += points
	rs.RecomputeLevel()
	return rs.Level > oldLevel
}

// UpdateStreak applies the daily activity rule: exactly one whole day since
// last activity extends the streak, more than one resets it, same day leaves
// it unchanged. LastActive is always moved to now.
func (rs *ResponderStats) UpdateStreak(now time.Time) {
	if rs.LastActive != nil {
		daysSince := int(now.Sub(*rs.LastActive) / (24 * time.Hour))
		switch {
		case daysSince == 1:
			rs.CurrentStreak++
			if rs.CurrentStreak > rs.LongestStreak {
				rs.LongestStreak = rs.CurrentStreak
			}
		case daysSince > 1:
			rs.CurrentStreak = 0
		}
	}
	t := now
	rs.LastActive = &t
}

// ResponderLocation is the last known position of a responder.
type ResponderLocation struct {
	ResponderID string    `json:"responderId" bson:"_id"`
	Latitude    float64   `json:"latitude" bson:"latitude"`
	Longitude   float64   `json:"longitude" bson:"longitude"`
	Accuracy    *float64  `json:"accuracy,omitempty" bson:"accuracy,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Role level constants
const (
	RoleLevelGeneral  = "general"
	RoleLevelFirstAid = "first_aid"
	RoleLevelMedical  = "medical"
)

// Verification status constants
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

type RegisterVolunteerRequest struct {
	RoleLevel            string `json:"roleLevel" validate:"omitempty,role_level"`
	AvailabilityRadiusKm int    `json:"availabilityRadiusKm" validate:"omitempty,min=1,max=100"`
	Bio                  string `json:"bio,omitempty" validate:"max=2000"`
	Specializations      string `json:"specializations,omitempty" validate:"max=255"`
}

type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
}

type AvailabilityRequest struct {
	IsAvailable bool `json:"isAvailable"`
}

type AcknowledgeAlertRequest struct {
	EmergencyID string `json:"emergencyId" validate:"required"`
}

type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	RoleLevel   string `json:"roleLevel"`
	ImpactScore int    `json:"impactScore"`
}

type AlertCheckResult struct {
	HasNew    bool       `json:"hasNew"`
	Emergency *Emergency `json:"emergency,omitempty"`
}
