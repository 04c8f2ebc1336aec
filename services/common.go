package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"goldenminutes/models"
	"goldenminutes/repositories"
	"goldenminutes/utils"

	"github.com/sirupsen/logrus"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// storeError maps repository sentinels onto service errors.
func storeError(err error, resource, operation string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return utils.NewNotFoundError(resource)
	case errors.Is(err, repositories.ErrDuplicate):
		return utils.NewConflictError(resource + " already exists")
	case errors.Is(err, repositories.ErrNotModified):
		return utils.NewPreconditionFailedError(resource + " changed state, re-fetch and retry")
	default:
		if _, ok := utils.GetServiceError(err); ok {
			return err
		}
		return utils.WrapDatabaseError(err, operation)
	}
}

func lockError(err error, key string) error {
	logrus.WithField("key", key).Errorf("Failed to acquire lock: %v", err)
	return utils.NewServiceErrorWithStatus(utils.ErrCodeInternal, "Resource is busy, retry shortly", http.StatusServiceUnavailable)
}

// appendTimeline writes an audit entry. Failures are logged and swallowed.
func appendTimeline(ctx context.Context, store repositories.EmergencyStore, emergencyID, eventType, description, actorID string, at time.Time) {
	entry := &models.EmergencyTimeline{
		EmergencyID: emergencyID,
		EventType:   eventType,
		Description: description,
		ActorID:     actorID,
		Timestamp:   at,
	}
	if err := store.AppendTimeline(ctx, entry); err != nil {
		logrus.WithFields(logrus.Fields{
			"emergencyId": emergencyID,
			"eventType":   eventType,
		}).Errorf("Failed to append timeline entry: %v", err)
	}
}

func primaryResponderID(e *models.Emergency) string {
	if e == nil || !e.HasPrimaryResponder() {
		return ""
	}
	return *e.PrimaryResponderID
}
