package models

import (
	"time"
)

// Core Emergency struct
type Emergency struct {
	ID              string     `json:"emergencyId" bson:"_id"`
	VictimID        string     `json:"victimId" bson:"victimId"`
	Type            string     `json:"type" bson:"type"`
	Severity        string     `json:"severity" bson:"severity"`
	Status          string     `json:"status" bson:"status"`
	Latitude        float64    `json:"latitude" bson:"latitude"`
	Longitude       float64    `json:"longitude" bson:"longitude"`
	LocationAddress string     `json:"locationAddress,omitempty" bson:"locationAddress,omitempty"`
	Description     string     `json:"description,omitempty" bson:"description,omitempty"`
	VoiceNoteRef    string     `json:"voiceNoteRef,omitempty" bson:"voiceNoteRef,omitempty"`

	PrimaryResponderID *string `json:"primaryResponderId,omitempty" bson:"primaryResponderId"`

	TriggeredAt         time.Time  `json:"triggeredAt" bson:"triggeredAt"`
	ResponderAcceptedAt *time.Time `json:"responderAcceptedAt,omitempty" bson:"responderAcceptedAt,omitempty"`
	ResponderEnRouteAt  *time.Time `json:"responderEnRouteAt,omitempty" bson:"responderEnRouteAt,omitempty"`
	ResponderArrivedAt  *time.Time `json:"responderArrivedAt,omitempty" bson:"responderArrivedAt,omitempty"`
	ResolvedAt          *time.Time `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
	CancelledAt         *time.Time `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`

	BystanderModeActive      bool       `json:"bystanderModeActive" bson:"bystanderModeActive"`
	BystanderModeActivatedAt *time.Time `json:"bystanderModeActivatedAt,omitempty" bson:"bystanderModeActivatedAt,omitempty"`

	Resolution         string `json:"resolution,omitempty" bson:"resolution,omitempty"`
	LifeSaved          bool   `json:"lifeSaved" bson:"lifeSaved"`
	CancellationReason string `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// HasPrimaryResponder reports whether a responder has won the emergency.
func (e *Emergency) HasPrimaryResponder() bool {
	return e.PrimaryResponderID != nil && *e.PrimaryResponderID != ""
}

// IsPrimaryResponder reports whether userID is the current primary responder.
func (e *Emergency) IsPrimaryResponder(userID string) bool {
	return e.HasPrimaryResponder() && *e.PrimaryResponderID == userID
}

func (e *Emergency) IsTerminal() bool {
	return IsTerminalStatus(e.Status)
}

// ResponseTimeMinutes is the time from trigger to acceptance, or -1 when
// nobody has accepted yet.
func (e *Emergency) ResponseTimeMinutes() float64 {
	if e.ResponderAcceptedAt == nil {
		return -1
	}
	return e.ResponderAcceptedAt.Sub(e.TriggeredAt).Minutes()
}

// StampStatus applies the timestamp that belongs to entering status.
func (e *Emergency) StampStatus(status string, at time.Time) {
	t := at
	switch status {
	case EmergencyStatusResponderAssigned:
		e.ResponderAcceptedAt = &t
	case EmergencyStatusResponderEnRoute:
		e.ResponderEnRouteAt = &t
	case EmergencyStatusResponderArrived:
		e.ResponderArrivedAt = &t
	case EmergencyStatusResolved:
		e.ResolvedAt = &t
	case EmergencyStatusCancelled:
		e.CancelledAt = &t
	}
	e.Status = status
	e.UpdatedAt = at
}

type EmergencyResponse struct {
	ID                      string     `json:"id" bson:"_id"`
	EmergencyID             string     `json:"emergencyId" bson:"emergencyId"`
	ResponderID             string     `json:"responderId" bson:"responderId"`
	Status                  string     `json:"status" bson:"status"`
	DistanceKm              *float64   `json:"distanceKm,omitempty" bson:"distanceKm,omitempty"`
	EstimatedArrivalMinutes *int       `json:"estimatedArrivalMinutes,omitempty" bson:"estimatedArrivalMinutes,omitempty"`
	NotifiedAt              time.Time  `json:"notifiedAt" bson:"notifiedAt"`
	ViewedAt                *time.Time `json:"viewedAt,omitempty" bson:"viewedAt,omitempty"`
	RespondedAt             *time.Time `json:"respondedAt,omitempty" bson:"respondedAt,omitempty"`
	ArrivedAt               *time.Time `json:"arrivedAt,omitempty" bson:"arrivedAt,omitempty"`
	Notes                   string     `json:"notes,omitempty" bson:"notes,omitempty"`
}

// ResponseMinutes is respondedAt - notifiedAt; ok is false when either stamp
// is missing.
func (r *EmergencyResponse) ResponseMinutes() (float64, bool) {
	if r.RespondedAt == nil || r.NotifiedAt.IsZero() {
		return 0, false
	}
	return r.RespondedAt.Sub(r.NotifiedAt).Minutes(), true
}

// EmergencyTimeline is an append-only audit entry.
type EmergencyTimeline struct {
	ID          string    `json:"id" bson:"_id"`
	EmergencyID string    `json:"emergencyId" bson:"emergencyId"`
	EventType   string    `json:"eventType" bson:"eventType"`
	Description string    `json:"description" bson:"description"`
	ActorID     string    `json:"actorId,omitempty" bson:"actorId,omitempty"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

// BystanderGuidance is one step of first-aid instructions for bystanders.
type BystanderGuidance struct {
	EmergencyType string `json:"emergencyType" bson:"emergencyType" yaml:"emergency_type"`
	Language      string `json:"language" bson:"language" yaml:"language"`
	StepNumber    int    `json:"stepNumber" bson:"stepNumber" yaml:"step"`
	Title         string `json:"title" bson:"title" yaml:"title"`
	Instruction   string `json:"instruction" bson:"instruction" yaml:"instruction"`
	Warning       string `json:"warning,omitempty" bson:"warning,omitempty" yaml:"warning"`
}

// Emergency Type Constants
const (
	EmergencyTypeAccident       = "accident"
	EmergencyTypeMedical        = "medical"
	EmergencyTypeFire           = "fire"
	EmergencyTypePersonalSafety = "personal_safety"
	EmergencyTypeDisaster       = "disaster"
)

var EmergencyTypes = []string{
	EmergencyTypeAccident,
	EmergencyTypeMedical,
	EmergencyTypeFire,
	EmergencyTypePersonalSafety,
	EmergencyTypeDisaster,
}

// Severity Constants
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityModerate = "moderate"
	SeverityLow      = "low"
)

// Emergency Status Constants
const (
	EmergencyStatusActive            = "active"
	EmergencyStatusResponderAssigned = "responder_assigned"
	EmergencyStatusResponderEnRoute  = "responder_en_route"
	EmergencyStatusResponderArrived  = "responder_arrived"
	EmergencyStatusResolved          = "resolved"
	EmergencyStatusCancelled         = "cancelled"
)

// OpenEmergencyStatuses are the non-terminal statuses.
var OpenEmergencyStatuses = []string{
	EmergencyStatusActive,
	EmergencyStatusResponderAssigned,
	EmergencyStatusResponderEnRoute,
	EmergencyStatusResponderArrived,
}

// AssignedEmergencyStatuses are the statuses in which a primary responder is committed.
var AssignedEmergencyStatuses = []string{
	EmergencyStatusResponderAssigned,
	EmergencyStatusResponderEnRoute,
	EmergencyStatusResponderArrived,
}

func IsTerminalStatus(status string) bool {
	return status == EmergencyStatusResolved || status == EmergencyStatusCancelled
}

// Response Status Constants
const (
	ResponseStatusNotified = "notified"
	ResponseStatusViewed   = "viewed"
	ResponseStatusAccepted = "accepted"
	ResponseStatusDeclined = "declined"
	ResponseStatusEnRoute  = "en_route"
	ResponseStatusArrived  = "arrived"
)

// Timeline Event Constants
const (
	TimelineSOSTriggered       = "sos_triggered"
	TimelineResponderNotified  = "responder_notified"
	TimelineResponderAccepted  = "responder_accepted"
	TimelineResponderDeclined  = "responder_declined"
	TimelineResponderEnRoute   = "responder_en_route"
	TimelineResponderArrived   = "responder_arrived"
	TimelineBystanderActivated = "bystander_mode_activated"
	TimelineStatusUpdated      = "status_updated"
	TimelineResolved           = "resolved"
	TimelineCancelled          = "cancelled"
)

// Guidance languages
const (
	LanguageEnglish = "en"
	LanguageHindi   = "hi"
	LanguageMarathi = "mr"
)

var SupportedLanguages = []string{LanguageEnglish, LanguageHindi, LanguageMarathi}

// =================== REQUEST/RESPONSE MODELS ===================

type CreateEmergencyRequest struct {
	Type            string   `json:"type" validate:"required,emergency_type"`
	Latitude        *float64 `json:"latitude" validate:"required,latitude"`
	Longitude       *float64 `json:"longitude" validate:"required,longitude"`
	Description     string   `json:"description,omitempty" validate:"max=2000"`
	LocationAddress string   `json:"locationAddress,omitempty" validate:"max=255"`
	VoiceNoteRef    string   `json:"voiceNoteRef,omitempty" validate:"max=255"`
}

type UpdateResponseStatusRequest struct {
	Status string `json:"status" validate:"required,response_status"`
}

type ResolveEmergencyRequest struct {
	Resolution string `json:"resolution,omitempty" validate:"max=1000"`
	// LifeSaved confirms the responder saved a life; it feeds livesSaved.
	LifeSaved bool `json:"lifeSaved"`
}

type CancelEmergencyRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=1000"`
}

// Accept outcomes
const (
	AcceptOutcomeAssigned        = "assigned"
	AcceptOutcomeAlreadyAccepted = "already_accepted"
)

type AcceptResult struct {
	Outcome   string             `json:"outcome"`
	Emergency *Emergency         `json:"emergency"`
	Response  *EmergencyResponse `json:"response,omitempty"`
}

type BystanderActivationResult struct {
	Activated bool       `json:"activated"`
	Reason    string     `json:"reason,omitempty"`
	Emergency *Emergency `json:"emergency"`
}

// Viewer is the identity a request is made under.
type Viewer struct {
	UserID string
	Role   string
}

// User roles
const (
	RoleCitizen   = "citizen"
	RoleVolunteer = "volunteer"
	RoleAdmin     = "admin"
)
