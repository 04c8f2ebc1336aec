package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"goldenminutes/models"
	"goldenminutes/repositories"
	"goldenminutes/repositories/memory"
	"goldenminutes/utils"
)

func TestConcurrentAcceptHasSingleWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	responders := []string{"responder-1", "responder-2"}
	for _, id := range responders {
		h.volunteer(t, id, true)
	}
	emergency := h.sos(t, "victim-1", models.EmergencyTypeMedical)

	var wg sync.WaitGroup
	results := make([]*models.AcceptResult, len(responders))
	errs := make([]error, len(responders))
	for i, id := range responders {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i], errs[i] = h.matching.AcceptEmergency(ctx, emergency.ID, id)
		}(i, id)
	}
	wg.Wait()

	winners, conflicts := 0, 0
	winner := ""
	for i := range responders {
		switch {
		case errs[i] == nil && results[i].Outcome == models.AcceptOutcomeAssigned:
			winners++
			winner = responders[i]
		case utils.HasCode(errs[i], utils.ErrCodeConflict):
			conflicts++
		default:
			t.Fatalf("unexpected outcome for %s: %+v, %v", responders[i], results[i], errs[i])
		}
	}
	if winners != 1 || conflicts != 1 {
		t.Fatalf("winners=%d conflicts=%d, want 1 and 1", winners, conflicts)
	}

	stored, err := h.repos.Emergencies.GetByID(ctx, emergency.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.IsPrimaryResponder(winner) || stored.Status != models.EmergencyStatusResponderAssigned {
		t.Fatalf("stored emergency = %+v, want primary %s", stored, winner)
	}

	responses, err := h.repos.Emergencies.ListResponses(ctx, emergency.ID)
	if err != nil {
		t.Fatalf("responses: %v", err)
	}
	accepted := 0
	for _, r := range responses {
		if r.Status == models.ResponseStatusAccepted {
			accepted++
			if r.ResponderID != winner {
				t.Errorf("accepted response belongs to %s, not the winner", r.ResponderID)
			}
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted responses = %d, want 1", accepted)
	}
}

func TestAcceptTwiceReturnsAlreadyAccepted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)
	emergency := h.sos(t, "victim-1", models.EmergencyTypeFire)

	first, err := h.matching.AcceptEmergency(ctx, emergency.ID, "responder-1")
	if err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if first.Outcome != models.AcceptOutcomeAssigned {
		t.Fatalf("first outcome = %s", first.Outcome)
	}

	h.clock.Advance(time.Minute)
	second, err := h.matching.AcceptEmergency(ctx, emergency.ID, "responder-1")
	if err != nil {
		t.Fatalf("second accept: %v", err)
	}
	if second.Outcome != models.AcceptOutcomeAlreadyAccepted {
		t.Fatalf("second outcome = %s", second.Outcome)
	}
	if !second.Emergency.ResponderAcceptedAt.Equal(*first.Emergency.ResponderAcceptedAt) {
		t.Error("accepted time changed on the repeat accept")
	}
}

func TestAcceptPreconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)
	h.volunteer(t, "pending-1", false)
	h.volunteer(t, "rejected-1", true)
	if _, err := h.responder.RejectVolunteer(ctx, "rejected-1", "admin-1"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	active := h.sos(t, "victim-1", models.EmergencyTypeMedical)
	cancelled := h.sos(t, "victim-2", models.EmergencyTypeMedical)
	if _, err := h.emergency.CancelEmergency(ctx, cancelled.ID, citizen("victim-2"), models.CancelEmergencyRequest{}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	tests := []struct {
		name        string
		emergencyID string
		responderID string
		code        string
	}{
		{"no volunteer profile", active.ID, "stranger", utils.ErrCodeAuthorization},
		{"rejected volunteer", active.ID, "rejected-1", utils.ErrCodeAuthorization},
		{"cancelled emergency", cancelled.ID, "responder-1", utils.ErrCodePreconditionFailed},
		{"unknown emergency", "missing", "responder-1", utils.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.matching.AcceptEmergency(ctx, tt.emergencyID, tt.responderID)
			assertCode(t, err, tt.code)
		})
	}

	// Pending volunteers may still respond.
	result, err := h.matching.AcceptEmergency(ctx, active.ID, "pending-1")
	if err != nil {
		t.Fatalf("pending accept: %v", err)
	}
	if result.Outcome != models.AcceptOutcomeAssigned {
		t.Fatalf("pending outcome = %s", result.Outcome)
	}
}

func TestAcceptAfterResolutionByAnother(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)
	h.volunteer(t, "responder-2", true)
	emergency := h.sos(t, "victim-1", models.EmergencyTypeMedical)

	if _, err := h.matching.AcceptEmergency(ctx, emergency.ID, "responder-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err := h.matching.AcceptEmergency(ctx, emergency.ID, "responder-2")
	assertCode(t, err, utils.ErrCodeConflict)

	if _, err := h.emergency.ResolveEmergency(ctx, emergency.ID, volunteerViewer("responder-1"), models.ResolveEmergencyRequest{}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	_, err = h.matching.AcceptEmergency(ctx, emergency.ID, "responder-2")
	assertCode(t, err, utils.ErrCodePreconditionFailed)
}

func TestUpdateResponseStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)
	h.volunteer(t, "responder-2", true)
	emergency := h.sos(t, "victim-1", models.EmergencyTypeAccident)

	enRoute := models.UpdateResponseStatusRequest{Status: models.ResponseStatusEnRoute}
	arrived := models.UpdateResponseStatusRequest{Status: models.ResponseStatusArrived}

	_, err := h.matching.UpdateResponseStatus(ctx, emergency.ID, "responder-1", enRoute)
	assertCode(t, err, utils.ErrCodeAuthorization)

	if _, err := h.matching.AcceptEmergency(ctx, emergency.ID, "responder-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err = h.matching.UpdateResponseStatus(ctx, emergency.ID, "responder-2", enRoute)
	assertCode(t, err, utils.ErrCodeAuthorization)

	_, err = h.matching.UpdateResponseStatus(ctx, emergency.ID, "responder-1",
		models.UpdateResponseStatusRequest{Status: models.ResponseStatusAccepted})
	assertCode(t, err, utils.ErrCodeValidation)

	h.clock.Advance(time.Minute)
	updated, err := h.matching.UpdateResponseStatus(ctx, emergency.ID, "responder-1", enRoute)
	if err != nil {
		t.Fatalf("en route: %v", err)
	}
	if updated.Status != models.EmergencyStatusResponderEnRoute || updated.ResponderEnRouteAt == nil {
		t.Fatalf("en route emergency = %+v", updated)
	}

	h.clock.Advance(4 * time.Minute)
	updated, err = h.matching.UpdateResponseStatus(ctx, emergency.ID, "responder-1", arrived)
	if err != nil {
		t.Fatalf("arrived: %v", err)
	}
	if updated.Status != models.EmergencyStatusResponderArrived || updated.ResponderArrivedAt == nil {
		t.Fatalf("arrived emergency = %+v", updated)
	}

	_, err = h.matching.UpdateResponseStatus(ctx, emergency.ID, "responder-1", enRoute)
	assertCode(t, err, utils.ErrCodePreconditionFailed)

	response, err := h.repos.Emergencies.GetResponse(ctx, emergency.ID, "responder-1")
	if err != nil {
		t.Fatalf("response: %v", err)
	}
	if response.Status != models.ResponseStatusAccepted {
		t.Errorf("response status = %s, want accepted", response.Status)
	}
	if response.ArrivedAt == nil {
		t.Error("arrival was not stamped on the response")
	}

	stats, err := h.scoring.GetStats(ctx, "responder-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.AverageArrivalTime != 5 {
		t.Errorf("average arrival = %v, want 5", stats.AverageArrivalTime)
	}
}

func TestArrivedDirectlyFromAssigned(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)
	emergency := h.sos(t, "victim-1", models.EmergencyTypeAccident)

	if _, err := h.matching.AcceptEmergency(ctx, emergency.ID, "responder-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	updated, err := h.matching.UpdateResponseStatus(ctx, emergency.ID, "responder-1",
		models.UpdateResponseStatusRequest{Status: models.ResponseStatusArrived})
	if err != nil {
		t.Fatalf("arrived: %v", err)
	}
	if updated.Status != models.EmergencyStatusResponderArrived {
		t.Fatalf("status = %s", updated.Status)
	}
}

func TestDeclineEmergency(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)
	h.volunteer(t, "responder-2", true)
	emergency := h.sos(t, "victim-1", models.EmergencyTypeMedical)

	response, err := h.matching.DeclineEmergency(ctx, emergency.ID, "responder-2")
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if response.Status != models.ResponseStatusDeclined || response.RespondedAt == nil {
		t.Fatalf("declined response = %+v", response)
	}

	stored, err := h.repos.Emergencies.GetByID(ctx, emergency.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != models.EmergencyStatusActive {
		t.Fatalf("decline changed the emergency status to %s", stored.Status)
	}

	if _, err := h.matching.AcceptEmergency(ctx, emergency.ID, "responder-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err = h.matching.DeclineEmergency(ctx, emergency.ID, "responder-1")
	assertCode(t, err, utils.ErrCodePreconditionFailed)

	primary, err := h.repos.Emergencies.GetResponse(ctx, emergency.ID, "responder-1")
	if err != nil {
		t.Fatalf("response: %v", err)
	}
	if primary.Status != models.ResponseStatusAccepted {
		t.Fatalf("primary response status = %s", primary.Status)
	}
}

func TestNotifyAndView(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)
	h.locate(t, "responder-1", 19.0800, 72.8777)
	emergency := h.sos(t, "victim-1", models.EmergencyTypeMedical)

	notified, err := h.matching.NotifyResponder(ctx, emergency.ID, "responder-1")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if notified.Status != models.ResponseStatusNotified {
		t.Fatalf("status = %s", notified.Status)
	}
	if notified.DistanceKm == nil || *notified.DistanceKm <= 0 || *notified.DistanceKm > 1 {
		t.Fatalf("distance = %v", notified.DistanceKm)
	}
	if notified.EstimatedArrivalMinutes == nil || *notified.EstimatedArrivalMinutes < 1 {
		t.Fatalf("eta = %v", notified.EstimatedArrivalMinutes)
	}

	again, err := h.matching.NotifyResponder(ctx, emergency.ID, "responder-1")
	if err != nil {
		t.Fatalf("notify again: %v", err)
	}
	if again.ID != notified.ID {
		t.Fatal("second notify created a new response")
	}

	h.clock.Advance(30 * time.Second)
	viewed, err := h.matching.ViewEmergency(ctx, emergency.ID, "responder-1")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if viewed.Status != models.ResponseStatusViewed || viewed.ViewedAt == nil {
		t.Fatalf("viewed response = %+v", viewed)
	}
	firstView := *viewed.ViewedAt

	h.clock.Advance(30 * time.Second)
	viewed, err = h.matching.ViewEmergency(ctx, emergency.ID, "responder-1")
	if err != nil {
		t.Fatalf("view again: %v", err)
	}
	if !viewed.ViewedAt.Equal(firstView) {
		t.Error("repeat view restamped viewedAt")
	}

	notifiedEntries := 0
	for _, eventType := range timelineTypes(t, h, emergency.ID) {
		if eventType == models.TimelineResponderNotified {
			notifiedEntries++
		}
	}
	if notifiedEntries != 1 {
		t.Errorf("responder_notified entries = %d, want 1", notifiedEntries)
	}
}

func TestNotifyNearbyRespondersClosestFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.volunteer(t, "near", true)
	h.locate(t, "near", 19.0800, 72.8777)
	h.volunteer(t, "mid", true)
	h.locate(t, "mid", 19.0960, 72.8777)
	h.volunteer(t, "far", true)
	h.locate(t, "far", 19.3000, 72.8777)
	h.volunteer(t, "off-duty", true)
	h.locate(t, "off-duty", 19.0765, 72.8777)
	if _, err := h.responder.SetAvailability(ctx, "off-duty", false); err != nil {
		t.Fatalf("availability: %v", err)
	}
	h.volunteer(t, "pending", false)
	h.locate(t, "pending", 19.0765, 72.8777)
	h.volunteer(t, "victim-1", true)
	h.locate(t, "victim-1", 19.0760, 72.8777)

	emergency := h.sos(t, "victim-1", models.EmergencyTypeFire)

	created, err := h.matching.NotifyNearbyResponders(ctx, emergency.ID)
	if err != nil {
		t.Fatalf("notify nearby: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("notified %d responders, want 2: %+v", len(created), created)
	}
	if created[0].ResponderID != "near" || created[1].ResponderID != "mid" {
		t.Fatalf("order = %s, %s", created[0].ResponderID, created[1].ResponderID)
	}

	created, err = h.matching.NotifyNearbyResponders(ctx, emergency.ID)
	if err != nil {
		t.Fatalf("notify nearby again: %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("second pass created %d responses", len(created))
	}
}

// notifyDuringDeclineStore creates a notified row for the pair right after
// the decline's lookup misses, and enforces one row per pair on save.
type notifyDuringDeclineStore struct {
	repositories.EmergencyStore
}

func (s notifyDuringDeclineStore) GetResponse(ctx context.Context, emergencyID, responderID string) (*models.EmergencyResponse, error) {
	_, _, err := s.EmergencyStore.CreateResponseIfAbsent(ctx, &models.EmergencyResponse{
		EmergencyID: emergencyID,
		ResponderID: responderID,
		Status:      models.ResponseStatusNotified,
		NotifiedAt:  time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return nil, repositories.ErrNotFound
}

func (s notifyDuringDeclineStore) SaveResponse(ctx context.Context, response *models.EmergencyResponse) error {
	existing, err := s.EmergencyStore.GetResponse(ctx, response.EmergencyID, response.ResponderID)
	if err == nil && existing.ID != response.ID {
		return repositories.ErrDuplicate
	}
	return s.EmergencyStore.SaveResponse(ctx, response)
}

func TestDeclineWhileNotifiedConcurrently(t *testing.T) {
	repos := memory.New().Repositories()
	repos.Emergencies = notifyDuringDeclineStore{repos.Emergencies}
	h := newHarnessWithStore(t, repos)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)
	emergency := h.sos(t, "victim-1", models.EmergencyTypeMedical)

	response, err := h.matching.DeclineEmergency(ctx, emergency.ID, "responder-1")
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if response.Status != models.ResponseStatusDeclined {
		t.Errorf("status = %s", response.Status)
	}

	responses, err := h.repos.Emergencies.ListResponses(ctx, emergency.ID)
	if err != nil {
		t.Fatalf("list responses: %v", err)
	}
	if len(responses) != 1 || responses[0].Status != models.ResponseStatusDeclined || responses[0].ID != response.ID {
		t.Errorf("responses = %+v, want the single row declined", responses)
	}
}
