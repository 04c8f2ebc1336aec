package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"goldenminutes/events"
	"goldenminutes/models"
	"goldenminutes/repositories"
	"goldenminutes/utils"

	"github.com/sirupsen/logrus"
)

type EmergencyService struct {
	emergencyRepo repositories.EmergencyStore
	classifier    SeverityClassifier
	publisher     events.Publisher
	validator     *utils.ValidationService
	now           Clock
}

func NewEmergencyService(
	emergencyRepo repositories.EmergencyStore,
	classifier SeverityClassifier,
	publisher events.Publisher,
) *EmergencyService {
	if classifier == nil {
		classifier = NewRuleSeverityClassifier()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &EmergencyService{
		emergencyRepo: emergencyRepo,
		classifier:    classifier,
		publisher:     publisher,
		validator:     utils.NewValidationService(),
		now:           systemClock,
	}
}

// WithClock replaces the time source.
func (es *EmergencyService) WithClock(clock Clock) *EmergencyService {
	es.now = clock
	return es
}

// =================== CREATION ===================

func (es *EmergencyService) CreateEmergency(ctx context.Context, victimID string, req models.CreateEmergencyRequest) (*models.Emergency, error) {
	if strings.TrimSpace(victimID) == "" {
		return nil, utils.NewValidationError("Victim is required", nil)
	}
	if err := es.validator.Validate(req); err != nil {
		return nil, err
	}

	now := es.now()
	emergency := &models.Emergency{
		VictimID:        victimID,
		Type:            req.Type,
		Severity:        es.classifier.Classify(ctx, req.Type, req.Description),
		Status:          models.EmergencyStatusActive,
		Latitude:        *req.Latitude,
		Longitude:       *req.Longitude,
		LocationAddress: req.LocationAddress,
		Description:     req.Description,
		VoiceNoteRef:    req.VoiceNoteRef,
		TriggeredAt:     now,
	}

	if err := es.emergencyRepo.Create(ctx, emergency); err != nil {
		return nil, storeError(err, "Emergency", "create emergency")
	}

	logrus.WithFields(logrus.Fields{
		"emergencyId": emergency.ID,
		"victimId":    victimID,
		"type":        emergency.Type,
		"severity":    emergency.Severity,
	}).Info("SOS triggered")

	appendTimeline(ctx, es.emergencyRepo, emergency.ID, models.TimelineSOSTriggered,
		fmt.Sprintf("%s emergency triggered (%s severity)", emergency.Type, emergency.Severity), victimID, now)

	es.publisher.Publish(ctx, events.Event{
		Type:        events.EmergencyTriggered,
		EmergencyID: emergency.ID,
		ActorID:     victimID,
		Emergency:   emergency,
		OccurredAt:  now,
	})

	return emergency, nil
}

// =================== READS ===================

func (es *EmergencyService) GetEmergency(ctx context.Context, emergencyID string, viewer models.Viewer) (*models.Emergency, error) {
	emergency, err := es.emergencyRepo.GetByID(ctx, emergencyID)
	if err != nil {
		return nil, storeError(err, "Emergency", "get emergency")
	}
	if !canView(emergency, viewer) {
		return nil, utils.NewForbiddenError("Access denied")
	}
	return emergency, nil
}

func (es *EmergencyService) GetTimeline(ctx context.Context, emergencyID string, viewer models.Viewer) ([]models.EmergencyTimeline, error) {
	if _, err := es.GetEmergency(ctx, emergencyID, viewer); err != nil {
		return nil, err
	}
	timeline, err := es.emergencyRepo.GetTimeline(ctx, emergencyID)
	if err != nil {
		return nil, storeError(err, "Timeline", "get timeline")
	}
	return timeline, nil
}

// ListActiveEmergencies returns the non-terminal emergencies the viewer may
// see: citizens their own, volunteers unassigned ones plus their own
// assignments, admins everything.
func (es *EmergencyService) ListActiveEmergencies(ctx context.Context, viewer models.Viewer) ([]models.Emergency, error) {
	filter := repositories.EmergencyFilter{Statuses: models.OpenEmergencyStatuses}

	switch viewer.Role {
	case models.RoleAdmin:
	case models.RoleVolunteer:
		filter.ActiveOrAssignedTo = viewer.UserID
	default:
		filter.VictimID = viewer.UserID
	}

	emergencies, err := es.emergencyRepo.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "Emergency", "list emergencies")
	}
	return emergencies, nil
}

func canView(e *models.Emergency, viewer models.Viewer) bool {
	switch viewer.Role {
	case models.RoleAdmin, models.RoleVolunteer:
		return true
	default:
		return e.VictimID == viewer.UserID
	}
}

// =================== TERMINAL TRANSITIONS ===================

// ResolveEmergency closes an assigned emergency. Only an admin or the
// primary responder may resolve.
func (es *EmergencyService) ResolveEmergency(ctx context.Context, emergencyID string, actor models.Viewer, req models.ResolveEmergencyRequest) (*models.Emergency, error) {
	if err := es.validator.Validate(req); err != nil {
		return nil, err
	}

	emergency, err := es.emergencyRepo.GetByID(ctx, emergencyID)
	if err != nil {
		return nil, storeError(err, "Emergency", "get emergency")
	}

	isAdmin := actor.Role == models.RoleAdmin
	if !isAdmin && !emergency.IsPrimaryResponder(actor.UserID) {
		return nil, utils.NewForbiddenError("Only an administrator or the primary responder can resolve this emergency")
	}
	if !utils.StringSliceContains(models.AssignedEmergencyStatuses, emergency.Status) {
		return nil, utils.NewPreconditionFailedError(fmt.Sprintf("Cannot resolve an emergency in status %s", emergency.Status))
	}

	now := es.now()
	transition := repositories.StatusTransition{
		EmergencyID: emergencyID,
		From:        models.AssignedEmergencyStatuses,
		To:          models.EmergencyStatusResolved,
		At:          now,
		Resolution:  req.Resolution,
		LifeSaved:   req.LifeSaved,
	}
	if !isAdmin {
		transition.PrimaryResponderID = actor.UserID
	}

	updated, err := es.emergencyRepo.TransitionStatus(ctx, transition)
	if err != nil {
		return nil, storeError(err, "Emergency", "resolve emergency")
	}

	logrus.WithFields(logrus.Fields{
		"emergencyId": emergencyID,
		"actorId":     actor.UserID,
	}).Info("Emergency resolved")

	appendTimeline(ctx, es.emergencyRepo, emergencyID, models.TimelineResolved, "Emergency resolved", actor.UserID, now)

	es.publisher.Publish(ctx, events.Event{
		Type:        events.EmergencyResolved,
		EmergencyID: emergencyID,
		ResponderID: primaryResponderID(updated),
		ActorID:     actor.UserID,
		Emergency:   updated,
		OccurredAt:  now,
	})

	return updated, nil
}

// CancelEmergency is allowed from any non-terminal status, by the victim or an admin.
func (es *EmergencyService) CancelEmergency(ctx context.Context, emergencyID string, actor models.Viewer, req models.CancelEmergencyRequest) (*models.Emergency, error) {
	if err := es.validator.Validate(req); err != nil {
		return nil, err
	}

	emergency, err := es.emergencyRepo.GetByID(ctx, emergencyID)
	if err != nil {
		return nil, storeError(err, "Emergency", "get emergency")
	}
	if actor.Role != models.RoleAdmin && emergency.VictimID != actor.UserID {
		return nil, utils.NewForbiddenError("Only the victim or an administrator can cancel this emergency")
	}
	if emergency.IsTerminal() {
		return nil, utils.NewPreconditionFailedError(fmt.Sprintf("Emergency is already %s", emergency.Status))
	}

	now := es.now()
	updated, err := es.emergencyRepo.TransitionStatus(ctx, repositories.StatusTransition{
		EmergencyID:        emergencyID,
		From:               models.OpenEmergencyStatuses,
		To:                 models.EmergencyStatusCancelled,
		At:                 now,
		CancellationReason: req.Reason,
	})
	if err != nil {
		return nil, storeError(err, "Emergency", "cancel emergency")
	}

	description := "Emergency cancelled"
	if req.Reason != "" {
		description += ": " + req.Reason
	}
	appendTimeline(ctx, es.emergencyRepo, emergencyID, models.TimelineCancelled, description, actor.UserID, now)

	es.publisher.Publish(ctx, events.Event{
		Type:        events.EmergencyCancelled,
		EmergencyID: emergencyID,
		ResponderID: primaryResponderID(updated),
		ActorID:     actor.UserID,
		Emergency:   updated,
		OccurredAt:  now,
	})

	return updated, nil
}

// =================== BYSTANDER MODE ===================

// ActivateBystanderMode flips the bystander flag on an unattended active
// emergency. Repeated calls return Activated=false and change nothing.
func (es *EmergencyService) ActivateBystanderMode(ctx context.Context, emergencyID string) (*models.BystanderActivationResult, error) {
	now := es.now()
	activated, err := es.emergencyRepo.ActivateBystanderMode(ctx, emergencyID, now)
	if err != nil {
		return nil, storeError(err, "Emergency", "activate bystander mode")
	}

	emergency, err := es.emergencyRepo.GetByID(ctx, emergencyID)
	if err != nil {
		return nil, storeError(err, "Emergency", "get emergency")
	}

	result := &models.BystanderActivationResult{Activated: activated, Emergency: emergency}
	if !activated {
		result.Reason = bystanderSkipReason(emergency)
		return result, nil
	}

	logrus.WithField("emergencyId", emergencyID).Warn("Bystander mode activated")

	appendTimeline(ctx, es.emergencyRepo, emergencyID, models.TimelineBystanderActivated,
		"No responder accepted in time, bystander guidance activated", "", now)

	es.publisher.Publish(ctx, events.Event{
		Type:        events.EmergencyBystanderActivated,
		EmergencyID: emergencyID,
		Emergency:   emergency,
		OccurredAt:  now,
	})

	return result, nil
}

// RequestBystanderMode is the manual switch. Only the victim or an admin may
// use it; responders wait for the timeout sweep.
func (es *EmergencyService) RequestBystanderMode(ctx context.Context, emergencyID string, actor models.Viewer) (*models.BystanderActivationResult, error) {
	emergency, err := es.emergencyRepo.GetByID(ctx, emergencyID)
	if err != nil {
		return nil, storeError(err, "Emergency", "get emergency")
	}
	if actor.Role != models.RoleAdmin && emergency.VictimID != actor.UserID {
		return nil, utils.NewForbiddenError("Only the victim or an administrator can activate bystander mode")
	}
	return es.ActivateBystanderMode(ctx, emergencyID)
}

func bystanderSkipReason(e *models.Emergency) string {
	switch {
	case e.BystanderModeActive:
		return "already active"
	case e.HasPrimaryResponder():
		return "responder assigned"
	default:
		return "emergency not active"
	}
}

// SweepBystanderTimeouts activates bystander mode for every emergency that
// has waited longer than timeout without a responder.
func (es *EmergencyService) SweepBystanderTimeouts(ctx context.Context, timeout time.Duration) (int, error) {
	cutoff := es.now().Add(-timeout)
	candidates, err := es.emergencyRepo.FindBystanderCandidates(ctx, cutoff)
	if err != nil {
		return 0, storeError(err, "Emergency", "find bystander candidates")
	}

	activated := 0
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return activated, ctx.Err()
		}
		result, err := es.ActivateBystanderMode(ctx, candidate.ID)
		if err != nil {
			logrus.WithField("emergencyId", candidate.ID).Errorf("Bystander activation failed: %v", err)
			continue
		}
		if result.Activated {
			activated++
		}
	}

	return activated, nil
}
