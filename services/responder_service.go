package services

import (
	"context"
	"errors"

	"goldenminutes/models"
	"goldenminutes/repositories"
	"goldenminutes/utils"

	"github.com/sirupsen/logrus"
)

// ResponderService owns volunteer registration, availability, live location
// and alert polling.
type ResponderService struct {
	responderRepo repositories.ResponderStore
	emergencyRepo repositories.EmergencyStore
	scoring       *ScoringService
	validator     *utils.ValidationService
	now           Clock
}

func NewResponderService(store *repositories.Store, scoring *ScoringService) *ResponderService {
	return &ResponderService{
		responderRepo: store.Responders,
		emergencyRepo: store.Emergencies,
		scoring:       scoring,
		validator:     utils.NewValidationService(),
		now:           systemClock,
	}
}

func (rs *ResponderService) WithClock(clock Clock) *ResponderService {
	rs.now = clock
	return rs
}

// =================== REGISTRATION ===================

func (rs *ResponderService) RegisterVolunteer(ctx context.Context, userID string, req models.RegisterVolunteerRequest) (*models.VolunteerProfile, error) {
	if err := rs.validator.Validate(req); err != nil {
		return nil, err
	}

	now := rs.now()
	profile := &models.VolunteerProfile{
		UserID:               userID,
		RoleLevel:            req.RoleLevel,
		VerificationStatus:   models.VerificationPending,
		IsAvailable:          true,
		AvailabilityRadiusKm: req.AvailabilityRadiusKm,
		Bio:                  req.Bio,
		Specializations:      req.Specializations,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if profile.RoleLevel == "" {
		profile.RoleLevel = models.RoleLevelGeneral
	}
	if profile.AvailabilityRadiusKm == 0 {
		profile.AvailabilityRadiusKm = defaultAvailabilityRadiusKm
	}
	profile.CalculateImpactScore()

	if err := rs.responderRepo.CreateVolunteer(ctx, profile); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, utils.NewConflictError("Volunteer profile already exists")
		}
		return nil, storeError(err, "Volunteer profile", "create volunteer")
	}

	if _, err := rs.scoring.UpdateStats(ctx, userID, func(*models.ResponderStats) (bool, error) {
		return true, nil
	}); err != nil {
		logrus.WithField("userId", userID).Errorf("Failed to initialise responder stats: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"userId":    userID,
		"roleLevel": profile.RoleLevel,
	}).Info("Volunteer registered")

	return profile, nil
}

func (rs *ResponderService) GetVolunteer(ctx context.Context, userID string) (*models.VolunteerProfile, error) {
	profile, err := rs.responderRepo.GetVolunteer(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, utils.NewVolunteerNotFoundError()
		}
		return nil, storeError(err, "Volunteer profile", "get volunteer")
	}
	return profile, nil
}

func (rs *ResponderService) ApproveVolunteer(ctx context.Context, userID, adminID string) (*models.VolunteerProfile, error) {
	return rs.setVerification(ctx, userID, adminID, models.VerificationApproved)
}

func (rs *ResponderService) RejectVolunteer(ctx context.Context, userID, adminID string) (*models.VolunteerProfile, error) {
	return rs.setVerification(ctx, userID, adminID, models.VerificationRejected)
}

func (rs *ResponderService) setVerification(ctx context.Context, userID, adminID, status string) (*models.VolunteerProfile, error) {
	now := rs.now()
	profile, err := rs.scoring.updateVolunteer(ctx, userID, func(p *models.VolunteerProfile) {
		p.VerificationStatus = status
		p.VerifiedBy = adminID
		p.VerifiedAt = utils.TimePtr(now)
	})
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, utils.NewVolunteerNotFoundError()
	}

	logrus.WithFields(logrus.Fields{
		"userId":  userID,
		"adminId": adminID,
		"status":  status,
	}).Info("Volunteer verification updated")

	return profile, nil
}

func (rs *ResponderService) SetAvailability(ctx context.Context, userID string, available bool) (*models.VolunteerProfile, error) {
	profile, err := rs.scoring.updateVolunteer(ctx, userID, func(p *models.VolunteerProfile) {
		p.IsAvailable = available
	})
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, utils.NewVolunteerNotFoundError()
	}
	return profile, nil
}

// =================== LOCATION ===================

func (rs *ResponderService) UpdateLocation(ctx context.Context, responderID string, req models.UpdateLocationRequest) (*models.ResponderLocation, error) {
	if err := rs.validator.Validate(req); err != nil {
		return nil, err
	}
	if _, err := rs.GetVolunteer(ctx, responderID); err != nil {
		return nil, err
	}

	location := &models.ResponderLocation{
		ResponderID: responderID,
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
		Accuracy:    req.Accuracy,
		UpdatedAt:   rs.now(),
	}
	if err := rs.responderRepo.SaveLocation(ctx, location); err != nil {
		return nil, storeError(err, "Responder location", "save location")
	}
	return location, nil
}

func (rs *ResponderService) GetLocation(ctx context.Context, responderID string) (*models.ResponderLocation, error) {
	location, err := rs.responderRepo.GetLocation(ctx, responderID)
	if err != nil {
		return nil, storeError(err, "Responder location", "get location")
	}
	return location, nil
}

// =================== ALERTS ===================

// CheckNewAlert returns the most recent unassigned active emergency the
// responder has neither answered nor acknowledged.
func (rs *ResponderService) CheckNewAlert(ctx context.Context, responderID string) (*models.AlertCheckResult, error) {
	if _, err := rs.GetVolunteer(ctx, responderID); err != nil {
		return nil, err
	}

	stats, err := rs.scoring.GetStats(ctx, responderID)
	if err != nil {
		return nil, err
	}

	active, err := rs.emergencyRepo.List(ctx, repositories.EmergencyFilter{
		Statuses: []string{models.EmergencyStatusActive},
	})
	if err != nil {
		return nil, storeError(err, "Emergency", "list emergencies")
	}

	responses, err := rs.emergencyRepo.ListResponsesByResponder(ctx, responderID)
	if err != nil {
		return nil, storeError(err, "Emergency response", "list responses")
	}
	answered := make(map[string]bool, len(responses))
	for _, r := range responses {
		if r.Status == models.ResponseStatusAccepted || r.Status == models.ResponseStatusDeclined {
			answered[r.EmergencyID] = true
		}
	}

	var latest *models.Emergency
	for i := range active {
		e := &active[i]
		if e.HasPrimaryResponder() || e.VictimID == responderID || answered[e.ID] {
			continue
		}
		if latest == nil || e.TriggeredAt.After(latest.TriggeredAt) {
			latest = e
		}
	}

	if latest == nil || latest.ID == stats.LastAcknowledgedAlertID {
		return &models.AlertCheckResult{}, nil
	}
	return &models.AlertCheckResult{HasNew: true, Emergency: latest}, nil
}

func (rs *ResponderService) AcknowledgeAlert(ctx context.Context, responderID string, req models.AcknowledgeAlertRequest) error {
	if err := rs.validator.Validate(req); err != nil {
		return err
	}
	if _, err := rs.emergencyRepo.GetByID(ctx, req.EmergencyID); err != nil {
		return storeError(err, "Emergency", "get emergency")
	}

	_, err := rs.scoring.UpdateStats(ctx, responderID, func(stats *models.ResponderStats) (bool, error) {
		if stats.LastAcknowledgedAlertID == req.EmergencyID {
			return false, nil
		}
		stats.LastAcknowledgedAlertID = req.EmergencyID
		return true, nil
	})
	return err
}
