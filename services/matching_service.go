package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"goldenminutes/events"
	"goldenminutes/models"
	"goldenminutes/repositories"
	"goldenminutes/utils"

	"github.com/sirupsen/logrus"
)

const defaultAvailabilityRadiusKm = 5

// MatchingService mediates between one emergency and the many responders
// who are told about it.
type MatchingService struct {
	emergencyRepo repositories.EmergencyStore
	responderRepo repositories.ResponderStore
	publisher     events.Publisher
	locker        utils.Locker
	validator     *utils.ValidationService
	now           Clock
}

func NewMatchingService(
	emergencyRepo repositories.EmergencyStore,
	responderRepo repositories.ResponderStore,
	publisher events.Publisher,
	locker utils.Locker,
) *MatchingService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if locker == nil {
		locker = utils.NewKeyedMutex()
	}
	return &MatchingService{
		emergencyRepo: emergencyRepo,
		responderRepo: responderRepo,
		publisher:     publisher,
		locker:        locker,
		validator:     utils.NewValidationService(),
		now:           systemClock,
	}
}

func (ms *MatchingService) WithClock(clock Clock) *MatchingService {
	ms.now = clock
	return ms
}

// requireVolunteer returns the caller's profile, or Forbidden when the caller
// has none or was rejected.
func (ms *MatchingService) requireVolunteer(ctx context.Context, responderID string) (*models.VolunteerProfile, error) {
	profile, err := ms.responderRepo.GetVolunteer(ctx, responderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, utils.NewNotVolunteerError()
		}
		return nil, storeError(err, "Volunteer profile", "get volunteer")
	}
	if !profile.CanRespond() {
		return nil, utils.NewNotVolunteerError()
	}
	return profile, nil
}

func (ms *MatchingService) lockPair(ctx context.Context, emergencyID, responderID string) (func(), error) {
	key := "response:" + emergencyID + ":" + responderID
	unlock, err := ms.locker.Lock(ctx, key)
	if err != nil {
		return nil, lockError(err, key)
	}
	return unlock, nil
}

// =================== NOTIFY ===================

// NotifyResponder records that responderID was told about the emergency.
// It is idempotent per pair.
func (ms *MatchingService) NotifyResponder(ctx context.Context, emergencyID, responderID string) (*models.EmergencyResponse, error) {
	if _, err := ms.requireVolunteer(ctx, responderID); err != nil {
		return nil, err
	}

	emergency, err := ms.emergencyRepo.GetByID(ctx, emergencyID)
	if err != nil {
		return nil, storeError(err, "Emergency", "get emergency")
	}
	if emergency.IsTerminal() {
		return nil, utils.NewEmergencyNotActiveError()
	}

	location, err := ms.responderRepo.GetLocation(ctx, responderID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, storeError(err, "Responder location", "get location")
	}

	response, _, err := ms.notify(ctx, emergency, responderID, location)
	return response, err
}

// NotifyNearbyResponders notifies every approved, available volunteer whose
// last known location is within their availability radius, closest first.
// It returns the responses created by this call.
func (ms *MatchingService) NotifyNearbyResponders(ctx context.Context, emergencyID string) ([]models.EmergencyResponse, error) {
	emergency, err := ms.emergencyRepo.GetByID(ctx, emergencyID)
	if err != nil {
		return nil, storeError(err, "Emergency", "get emergency")
	}
	if emergency.Status != models.EmergencyStatusActive {
		return nil, utils.NewEmergencyNotActiveError()
	}

	volunteers, err := ms.responderRepo.ListVolunteers(ctx, repositories.VolunteerFilter{
		VerificationStatus: models.VerificationApproved,
		AvailableOnly:      true,
	})
	if err != nil {
		return nil, storeError(err, "Volunteer profile", "list volunteers")
	}

	type candidate struct {
		responderID string
		location    *models.ResponderLocation
		distanceKm  float64
	}
	var candidates []candidate

	for _, volunteer := range volunteers {
		if volunteer.UserID == emergency.VictimID {
			continue
		}
		location, err := ms.responderRepo.GetLocation(ctx, volunteer.UserID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, storeError(err, "Responder location", "get location")
		}

		radius := float64(volunteer.AvailabilityRadiusKm)
		if radius <= 0 {
			radius = defaultAvailabilityRadiusKm
		}
		distance := utils.CalculateDistanceKm(location.Latitude, location.Longitude, emergency.Latitude, emergency.Longitude)
		if distance > radius {
			continue
		}
		candidates = append(candidates, candidate{volunteer.UserID, location, distance})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distanceKm < candidates[j].distanceKm
	})

	created := []models.EmergencyResponse{}
	for _, c := range candidates {
		response, isNew, err := ms.notify(ctx, emergency, c.responderID, c.location)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"emergencyId": emergencyID,
				"responderId": c.responderID,
			}).Errorf("Failed to notify responder: %v", err)
			continue
		}
		if isNew {
			created = append(created, *response)
		}
	}

	logrus.WithFields(logrus.Fields{
		"emergencyId": emergencyID,
		"candidates":  len(candidates),
		"notified":    len(created),
	}).Info("Nearby responders notified")

	return created, nil
}

func (ms *MatchingService) notify(ctx context.Context, emergency *models.Emergency, responderID string, location *models.ResponderLocation) (*models.EmergencyResponse, bool, error) {
	now := ms.now()
	response := &models.EmergencyResponse{
		EmergencyID: emergency.ID,
		ResponderID: responderID,
		Status:      models.ResponseStatusNotified,
		NotifiedAt:  now,
	}
	if location != nil {
		distance := utils.RoundToDecimalPlaces(
			utils.CalculateDistanceKm(location.Latitude, location.Longitude, emergency.Latitude, emergency.Longitude), 2)
		eta := utils.EstimateArrivalMinutes(distance)
		response.DistanceKm = &distance
		response.EstimatedArrivalMinutes = &eta
	}

	stored, created, err := ms.emergencyRepo.CreateResponseIfAbsent(ctx, response)
	if err != nil {
		return nil, false, storeError(err, "Emergency response", "create response")
	}
	if !created {
		return stored, false, nil
	}

	appendTimeline(ctx, ms.emergencyRepo, emergency.ID, models.TimelineResponderNotified,
		"Responder notified", responderID, now)

	ms.publisher.Publish(ctx, events.Event{
		Type:        events.ResponseNotified,
		EmergencyID: emergency.ID,
		ResponderID: responderID,
		Response:    stored,
		OccurredAt:  now,
	})

	return stored, true, nil
}

// =================== VIEW ===================

// ViewEmergency moves the caller's response from notified to viewed.
func (ms *MatchingService) ViewEmergency(ctx context.Context, emergencyID, responderID string) (*models.EmergencyResponse, error) {
	if _, err := ms.requireVolunteer(ctx, responderID); err != nil {
		return nil, err
	}

	emergency, err := ms.emergencyRepo.GetByID(ctx, emergencyID)
	if err != nil {
		return nil, storeError(err, "Emergency", "get emergency")
	}

	unlock, err := ms.lockPair(ctx, emergencyID, responderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	response, err := ms.emergencyRepo.GetResponse(ctx, emergencyID, responderID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, storeError(err, "Emergency response", "get response")
	}

	if emergency.IsTerminal() {
		if response == nil {
			return nil, utils.NewEmergencyNotActiveError()
		}
		return response, nil
	}

	now := ms.now()
	viewedAt := now

	switch {
	case response == nil:
		response = &models.EmergencyResponse{
			EmergencyID: emergencyID,
			ResponderID: responderID,
			Status:      models.ResponseStatusViewed,
			NotifiedAt:  now,
			ViewedAt:    &viewedAt,
		}
		stored, created, err := ms.emergencyRepo.CreateResponseIfAbsent(ctx, response)
		if err != nil {
			return nil, storeError(err, "Emergency response", "create response")
		}
		if !created {
			return stored, nil
		}
		response = stored
	case response.Status == models.ResponseStatusNotified:
		response.Status = models.ResponseStatusViewed
		response.ViewedAt = &viewedAt
		if err := ms.emergencyRepo.SaveResponse(ctx, response); err != nil {
			return nil, storeError(err, "Emergency response", "save response")
		}
	default:
		return response, nil
	}

	ms.publisher.Publish(ctx, events.Event{
		Type:        events.ResponseViewed,
		EmergencyID: emergencyID,
		ResponderID: responderID,
		Response:    response,
		OccurredAt:  now,
	})

	return response, nil
}

// =================== ACCEPT ===================

// AcceptEmergency tries to make the caller the primary responder. Exactly one
// concurrent caller wins; the others get a Conflict, and a caller who already
// won gets AcceptOutcomeAlreadyAccepted.
func (ms *MatchingService) AcceptEmergency(ctx context.Context, emergencyID, responderID string) (*models.AcceptResult, error) {
	if _, err := ms.requireVolunteer(ctx, responderID); err != nil {
		return nil, err
	}

	emergency, err := ms.emergencyRepo.GetByID(ctx, emergencyID)
	if err != nil {
		return nil, storeError(err, "Emergency", "get emergency")
	}
	if result, err := ms.acceptRejection(ctx, emergency, responderID); result != nil || err != nil {
		return result, err
	}

	unlock, err := ms.lockPair(ctx, emergencyID, responderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := ms.now()
	updated, response, err := ms.emergencyRepo.AssignPrimaryResponder(ctx, emergencyID, responderID, now)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotModified) {
			return nil, storeError(err, "Emergency", "assign responder")
		}
		current, getErr := ms.emergencyRepo.GetByID(ctx, emergencyID)
		if getErr != nil {
			return nil, storeError(getErr, "Emergency", "get emergency")
		}
		if result, rejection := ms.acceptRejection(ctx, current, responderID); result != nil || rejection != nil {
			return result, rejection
		}
		return nil, utils.NewEmergencyTakenError()
	}

	logrus.WithFields(logrus.Fields{
		"emergencyId": emergencyID,
		"responderId": responderID,
		"minutes":     updated.ResponseTimeMinutes(),
	}).Info("Responder assigned")

	appendTimeline(ctx, ms.emergencyRepo, emergencyID, models.TimelineResponderAccepted,
		"Responder accepted the emergency", responderID, now)

	ms.publisher.Publish(ctx, events.Event{
		Type:        events.ResponseAccepted,
		EmergencyID: emergencyID,
		ResponderID: responderID,
		Emergency:   updated,
		Response:    response,
		OccurredAt:  now,
	})

	return &models.AcceptResult{
		Outcome:   models.AcceptOutcomeAssigned,
		Emergency: updated,
		Response:  response,
	}, nil
}

// acceptRejection explains why an accept cannot proceed, or returns nil, nil
// when the emergency is still up for grabs.
func (ms *MatchingService) acceptRejection(ctx context.Context, emergency *models.Emergency, responderID string) (*models.AcceptResult, error) {
	if emergency.IsPrimaryResponder(responderID) {
		response, err := ms.emergencyRepo.GetResponse(ctx, emergency.ID, responderID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return nil, storeError(err, "Emergency response", "get response")
		}
		return &models.AcceptResult{
			Outcome:   models.AcceptOutcomeAlreadyAccepted,
			Emergency: emergency,
			Response:  response,
		}, nil
	}
	if emergency.IsTerminal() {
		return nil, utils.NewEmergencyNotActiveError()
	}
	if emergency.HasPrimaryResponder() {
		return nil, utils.NewEmergencyTakenError()
	}
	if emergency.Status != models.EmergencyStatusActive {
		return nil, utils.NewEmergencyNotActiveError()
	}
	return nil, nil
}

// =================== DECLINE ===================

// DeclineEmergency records the caller's refusal. The primary responder cannot
// decline; they have to resolve or the victim has to cancel.
func (ms *MatchingService) DeclineEmergency(ctx context.Context, emergencyID, responderID string) (*models.EmergencyResponse, error) {
	if _, err := ms.requireVolunteer(ctx, responderID); err != nil {
		return nil, err
	}

	unlock, err := ms.lockPair(ctx, emergencyID, responderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	emergency, err := ms.emergencyRepo.GetByID(ctx, emergencyID)
	if err != nil {
		return nil, storeError(err, "Emergency", "get emergency")
	}
	if emergency.IsPrimaryResponder(responderID) {
		return nil, utils.NewPreconditionFailedError("The primary responder cannot decline an accepted emergency")
	}
	if emergency.IsTerminal() {
		return nil, utils.NewEmergencyNotActiveError()
	}

	now := ms.now()
	respondedAt := now

	response, err := ms.emergencyRepo.GetResponse(ctx, emergencyID, responderID)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, storeError(err, "Emergency response", "get response")
		}
		// A concurrent notify may create the row first; either way we
		// update the single stored row for the pair.
		response, _, err = ms.emergencyRepo.CreateResponseIfAbsent(ctx, &models.EmergencyResponse{
			EmergencyID: emergencyID,
			ResponderID: responderID,
			Status:      models.ResponseStatusNotified,
			NotifiedAt:  now,
		})
		if err != nil {
			return nil, storeError(err, "Emergency response", "create response")
		}
	}
	response.Status = models.ResponseStatusDeclined
	response.RespondedAt = &respondedAt

	if err := ms.emergencyRepo.SaveResponse(ctx, response); err != nil {
		return nil, storeError(err, "Emergency response", "save response")
	}

	appendTimeline(ctx, ms.emergencyRepo, emergencyID, models.TimelineResponderDeclined,
		"Responder declined", responderID, now)

	ms.publisher.Publish(ctx, events.Event{
		Type:        events.ResponseDeclined,
		EmergencyID: emergencyID,
		ResponderID: responderID,
		Response:    response,
		OccurredAt:  now,
	})

	return response, nil
}

// =================== STATUS UPDATES ===================

var statusUpdateRules = map[string]struct {
	from     []string
	to       string
	timeline string
	event    string
}{
	models.ResponseStatusEnRoute: {
		from:     []string{models.EmergencyStatusResponderAssigned},
		to:       models.EmergencyStatusResponderEnRoute,
		timeline: models.TimelineResponderEnRoute,
		event:    events.ResponderEnRoute,
	},
	models.ResponseStatusArrived: {
		from:     []string{models.EmergencyStatusResponderAssigned, models.EmergencyStatusResponderEnRoute},
		to:       models.EmergencyStatusResponderArrived,
		timeline: models.TimelineResponderArrived,
		event:    events.ResponderArrived,
	},
}

// UpdateResponseStatus lets the primary responder report en_route or arrived.
func (ms *MatchingService) UpdateResponseStatus(ctx context.Context, emergencyID, responderID string, req models.UpdateResponseStatusRequest) (*models.Emergency, error) {
	if err := ms.validator.Validate(req); err != nil {
		return nil, err
	}
	rule := statusUpdateRules[req.Status]

	if _, err := ms.requireVolunteer(ctx, responderID); err != nil {
		return nil, err
	}

	emergency, err := ms.emergencyRepo.GetByID(ctx, emergencyID)
	if err != nil {
		return nil, storeError(err, "Emergency", "get emergency")
	}
	if !emergency.IsPrimaryResponder(responderID) {
		return nil, utils.NewNotPrimaryResponderError()
	}
	if !utils.StringSliceContains(rule.from, emergency.Status) {
		return nil, utils.NewPreconditionFailedError(
			fmt.Sprintf("Cannot move from %s to %s", emergency.Status, rule.to))
	}

	now := ms.now()
	updated, err := ms.emergencyRepo.TransitionStatus(ctx, repositories.StatusTransition{
		EmergencyID:        emergencyID,
		From:               rule.from,
		To:                 rule.to,
		PrimaryResponderID: responderID,
		At:                 now,
	})
	if err != nil {
		return nil, storeError(err, "Emergency", "update status")
	}

	var response *models.EmergencyResponse
	if req.Status == models.ResponseStatusArrived {
		response, err = ms.emergencyRepo.GetResponse(ctx, emergencyID, responderID)
		if err == nil {
			arrivedAt := now
			response.ArrivedAt = &arrivedAt
			if saveErr := ms.emergencyRepo.SaveResponse(ctx, response); saveErr != nil {
				logrus.WithField("emergencyId", emergencyID).Errorf("Failed to stamp arrival on response: %v", saveErr)
			}
		} else {
			logrus.WithField("emergencyId", emergencyID).Errorf("Primary responder has no response row: %v", err)
		}
	}

	appendTimeline(ctx, ms.emergencyRepo, emergencyID, rule.timeline,
		fmt.Sprintf("Responder status: %s", req.Status), responderID, now)

	ms.publisher.Publish(ctx, events.Event{
		Type:        rule.event,
		EmergencyID: emergencyID,
		ResponderID: responderID,
		Emergency:   updated,
		Response:    response,
		OccurredAt:  now,
	})

	return updated, nil
}
