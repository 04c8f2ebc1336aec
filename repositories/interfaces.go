package repositories

import (
	"context"
	"errors"
	"time"

	"goldenminutes/models"
	"goldenminutes/utils"
)

// Store sentinels. Services translate them into utils.ServiceError values.
var (
	ErrNotFound    = errors.New("not found")
	ErrNotModified = errors.New("conditional update did not match")
	ErrDuplicate   = errors.New("duplicate key")
)

// EmergencyFilter selects emergencies. Zero values mean "no constraint".
type EmergencyFilter struct {
	Statuses           []string
	VictimID           string
	PrimaryResponderID string
	// ActiveOrAssignedTo matches status=active or primaryResponderId=value.
	ActiveOrAssignedTo string
	TriggeredAfter     *time.Time
	TriggeredBefore    *time.Time
	Bounds             *utils.BoundingBox
	Limit              int
}

// StatusTransition is a conditional status change. The update only applies
// when the current status is one of From and, if set, the primary responder
// equals PrimaryResponderID.
type StatusTransition struct {
	EmergencyID        string
	From               []string
	To                 string
	PrimaryResponderID string
	At                 time.Time
	Resolution         string
	LifeSaved          bool
	CancellationReason string
}

type EmergencyStore interface {
	Create(ctx context.Context, emergency *models.Emergency) error
	GetByID(ctx context.Context, id string) (*models.Emergency, error)
	List(ctx context.Context, filter EmergencyFilter) ([]models.Emergency, error)
	Count(ctx context.Context, filter EmergencyFilter) (int64, error)

	// AssignPrimaryResponder sets the primary responder only while the
	// emergency is active and unassigned, and moves the pair's response to
	// accepted in the same unit. ErrNotModified means somebody else won.
	AssignPrimaryResponder(ctx context.Context, emergencyID, responderID string, at time.Time) (*models.Emergency, *models.EmergencyResponse, error)
	TransitionStatus(ctx context.Context, transition StatusTransition) (*models.Emergency, error)
	// ActivateBystanderMode flips the flag once; false means no change.
	ActivateBystanderMode(ctx context.Context, emergencyID string, at time.Time) (bool, error)
	FindBystanderCandidates(ctx context.Context, cutoff time.Time) ([]models.Emergency, error)

	GetResponse(ctx context.Context, emergencyID, responderID string) (*models.EmergencyResponse, error)
	// CreateResponseIfAbsent returns the stored response and whether it was created.
	CreateResponseIfAbsent(ctx context.Context, response *models.EmergencyResponse) (*models.EmergencyResponse, bool, error)
	SaveResponse(ctx context.Context, response *models.EmergencyResponse) error
	ListResponses(ctx context.Context, emergencyID string) ([]models.EmergencyResponse, error)
	ListResponsesByResponder(ctx context.Context, responderID string) ([]models.EmergencyResponse, error)

	AppendTimeline(ctx context.Context, entry *models.EmergencyTimeline) error
	GetTimeline(ctx context.Context, emergencyID string) ([]models.EmergencyTimeline, error)
}

// VolunteerFilter selects volunteer profiles.
type VolunteerFilter struct {
	VerificationStatus string
	AvailableOnly      bool
}

type ResponderStore interface {
	CreateVolunteer(ctx context.Context, profile *models.VolunteerProfile) error
	GetVolunteer(ctx context.Context, userID string) (*models.VolunteerProfile, error)
	SaveVolunteer(ctx context.Context, profile *models.VolunteerProfile) error
	ListVolunteers(ctx context.Context, filter VolunteerFilter) ([]models.VolunteerProfile, error)

	GetStats(ctx context.Context, responderID string) (*models.ResponderStats, error)
	SaveStats(ctx context.Context, stats *models.ResponderStats) error
	ListStats(ctx context.Context) ([]models.ResponderStats, error)

	SaveLocation(ctx context.Context, location *models.ResponderLocation) error
	GetLocation(ctx context.Context, responderID string) (*models.ResponderLocation, error)
	ListLocations(ctx context.Context) ([]models.ResponderLocation, error)
}

type BadgeStore interface {
	UpsertBadge(ctx context.Context, badge *models.Badge) error
	GetBadge(ctx context.Context, badgeID string) (*models.Badge, error)
	ListBadges(ctx context.Context) ([]models.Badge, error)
}

type AreaStore interface {
	UpsertArea(ctx context.Context, area *models.AreaSafetyScore) error
	GetArea(ctx context.Context, areaName string) (*models.AreaSafetyScore, error)
	ListAreas(ctx context.Context) ([]models.AreaSafetyScore, error)
}

type GuidanceStore interface {
	UpsertGuidance(ctx context.Context, step *models.BystanderGuidance) error
	// ListGuidance returns steps ordered by step number.
	ListGuidance(ctx context.Context, emergencyType, language string) ([]models.BystanderGuidance, error)
}

type TrainingStore interface {
	UpsertModule(ctx context.Context, module *models.TrainingModule) error
	GetModule(ctx context.Context, moduleID string) (*models.TrainingModule, error)
	ListModules(ctx context.Context) ([]models.TrainingModule, error)
	GetProgress(ctx context.Context, userID, moduleID string) (*models.TrainingProgress, error)
	SaveProgress(ctx context.Context, progress *models.TrainingProgress) error
	ListProgress(ctx context.Context, userID string) ([]models.TrainingProgress, error)
}

// Store bundles every store a service layer needs.
type Store struct {
	Emergencies EmergencyStore
	Responders  ResponderStore
	Badges      BadgeStore
	Areas       AreaStore
	Guidance    GuidanceStore
	Training    TrainingStore
}
