package services

import (
	"context"
	"testing"
	"time"

	"goldenminutes/models"
	"goldenminutes/repositories/memory"
	"goldenminutes/utils"
)

func TestRuleSeverityClassifier(t *testing.T) {
	classifier := NewRuleSeverityClassifier()

	tests := []struct {
		emergencyType string
		want          string
	}{
		{models.EmergencyTypeFire, models.SeverityCritical},
		{models.EmergencyTypeDisaster, models.SeverityCritical},
		{models.EmergencyTypeMedical, models.SeverityHigh},
		{models.EmergencyTypePersonalSafety, models.SeverityHigh},
		{models.EmergencyTypeAccident, models.SeverityModerate},
		{"earthquake", models.SeverityModerate},
		{"", models.SeverityModerate},
	}

	for _, tt := range tests {
		t.Run(tt.emergencyType, func(t *testing.T) {
			if got := classifier.Classify(context.Background(), tt.emergencyType, ""); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.emergencyType, got, tt.want)
			}
		})
	}
}

func TestCreateEmergencyValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.CreateEmergencyRequest
	}{
		{"missing coordinates", models.CreateEmergencyRequest{Type: models.EmergencyTypeFire}},
		{"unknown type", models.CreateEmergencyRequest{
			Type:      "alien_invasion",
			Latitude:  utils.Float64Ptr(10),
			Longitude: utils.Float64Ptr(10),
		}},
		{"latitude out of range", models.CreateEmergencyRequest{
			Type:      models.EmergencyTypeFire,
			Latitude:  utils.Float64Ptr(91),
			Longitude: utils.Float64Ptr(10),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.emergency.CreateEmergency(ctx, "victim-1", tt.req)
			assertCode(t, err, utils.ErrCodeValidation)
		})
	}

	active, err := h.emergency.ListActiveEmergencies(ctx, models.Viewer{UserID: "admin", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("invalid requests must not store anything, found %d", len(active))
	}
}

func TestCreateEmergencyDerivesSeverity(t *testing.T) {
	h := newHarness(t)

	emergency := h.sos(t, "victim-1", models.EmergencyTypeFire)

	if emergency.Severity != models.SeverityCritical {
		t.Errorf("severity = %s, want critical", emergency.Severity)
	}
	if emergency.Status != models.EmergencyStatusActive {
		t.Errorf("status = %s, want active", emergency.Status)
	}
	if emergency.ID == "" {
		t.Error("emergency id was not assigned")
	}
	if got := timelineTypes(t, h, emergency.ID); len(got) != 1 || got[0] != models.TimelineSOSTriggered {
		t.Errorf("timeline = %v, want [sos_triggered]", got)
	}
}

func TestCreateListResolveRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)

	emergency := h.sos(t, "victim-1", models.EmergencyTypeMedical)

	active, err := h.emergency.ListActiveEmergencies(ctx, citizen("victim-1"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].ID != emergency.ID {
		t.Fatalf("active = %+v, want the new emergency", active)
	}

	if _, err := h.matching.AcceptEmergency(ctx, emergency.ID, "responder-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	resolved, err := h.emergency.ResolveEmergency(ctx, emergency.ID, volunteerViewer("responder-1"),
		models.ResolveEmergencyRequest{Resolution: "patient stabilised", LifeSaved: true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != models.EmergencyStatusResolved || resolved.ResolvedAt == nil {
		t.Fatalf("resolved emergency = %+v", resolved)
	}

	active, err = h.emergency.ListActiveEmergencies(ctx, citizen("victim-1"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("resolved emergency still listed: %+v", active)
	}

	want := []string{models.TimelineSOSTriggered, models.TimelineResponderAccepted, models.TimelineResolved}
	got := timelineTypes(t, h, emergency.ID)
	if len(got) != len(want) {
		t.Fatalf("timeline = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("timeline = %v, want %v", got, want)
		}
	}
}

func TestListActiveEmergenciesScopes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)
	h.volunteer(t, "responder-2", true)

	mine := h.sos(t, "victim-1", models.EmergencyTypeMedical)
	other := h.sos(t, "victim-2", models.EmergencyTypeAccident)
	taken := h.sos(t, "victim-3", models.EmergencyTypeFire)

	if _, err := h.matching.AcceptEmergency(ctx, taken.ID, "responder-2"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	tests := []struct {
		name   string
		viewer models.Viewer
		want   map[string]bool
	}{
		{"citizen sees own", citizen("victim-1"), map[string]bool{mine.ID: true}},
		{"volunteer sees unassigned", volunteerViewer("responder-1"), map[string]bool{mine.ID: true, other.ID: true}},
		{"assigned volunteer sees own assignment", volunteerViewer("responder-2"), map[string]bool{mine.ID: true, other.ID: true, taken.ID: true}},
		{"admin sees all", models.Viewer{UserID: "admin", Role: models.RoleAdmin}, map[string]bool{mine.ID: true, other.ID: true, taken.ID: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.emergency.ListActiveEmergencies(ctx, tt.viewer)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d emergencies, want %d", len(got), len(tt.want))
			}
			for _, e := range got {
				if !tt.want[e.ID] {
					t.Errorf("unexpected emergency %s", e.ID)
				}
			}
		})
	}
}

func TestGetEmergencyAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	emergency := h.sos(t, "victim-1", models.EmergencyTypeMedical)

	if _, err := h.emergency.GetEmergency(ctx, emergency.ID, citizen("victim-1")); err != nil {
		t.Fatalf("victim get: %v", err)
	}
	if _, err := h.emergency.GetEmergency(ctx, emergency.ID, volunteerViewer("responder-1")); err != nil {
		t.Fatalf("volunteer get: %v", err)
	}

	_, err := h.emergency.GetEmergency(ctx, emergency.ID, citizen("someone-else"))
	assertCode(t, err, utils.ErrCodeAuthorization)

	_, err = h.emergency.GetEmergency(ctx, "missing", citizen("victim-1"))
	assertCode(t, err, utils.ErrCodeNotFound)
}

func TestResolvePreconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)
	h.volunteer(t, "responder-2", true)
	admin := models.Viewer{UserID: "admin", Role: models.RoleAdmin}

	emergency := h.sos(t, "victim-1", models.EmergencyTypeMedical)

	_, err := h.emergency.ResolveEmergency(ctx, emergency.ID, admin, models.ResolveEmergencyRequest{})
	assertCode(t, err, utils.ErrCodePreconditionFailed)

	if _, err := h.matching.AcceptEmergency(ctx, emergency.ID, "responder-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err = h.emergency.ResolveEmergency(ctx, emergency.ID, volunteerViewer("responder-2"), models.ResolveEmergencyRequest{})
	assertCode(t, err, utils.ErrCodeAuthorization)

	if _, err := h.emergency.ResolveEmergency(ctx, emergency.ID, admin, models.ResolveEmergencyRequest{}); err != nil {
		t.Fatalf("admin resolve: %v", err)
	}

	_, err = h.emergency.ResolveEmergency(ctx, emergency.ID, admin, models.ResolveEmergencyRequest{})
	assertCode(t, err, utils.ErrCodePreconditionFailed)
}

func TestCancelEmergency(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	emergency := h.sos(t, "victim-1", models.EmergencyTypeAccident)

	_, err := h.emergency.CancelEmergency(ctx, emergency.ID, citizen("victim-2"), models.CancelEmergencyRequest{})
	assertCode(t, err, utils.ErrCodeAuthorization)

	cancelled, err := h.emergency.CancelEmergency(ctx, emergency.ID, citizen("victim-1"),
		models.CancelEmergencyRequest{Reason: "false alarm"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != models.EmergencyStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("cancelled emergency = %+v", cancelled)
	}
	if cancelled.CancellationReason != "false alarm" {
		t.Errorf("reason = %q", cancelled.CancellationReason)
	}

	_, err = h.emergency.CancelEmergency(ctx, emergency.ID, citizen("victim-1"), models.CancelEmergencyRequest{})
	assertCode(t, err, utils.ErrCodePreconditionFailed)
}

func TestActivateBystanderModeIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	emergency := h.sos(t, "victim-1", models.EmergencyTypeMedical)

	first, err := h.emergency.ActivateBystanderMode(ctx, emergency.ID)
	if err != nil {
		t.Fatalf("first activation: %v", err)
	}
	if !first.Activated || !first.Emergency.BystanderModeActive {
		t.Fatalf("first activation = %+v", first)
	}
	stamped := *first.Emergency.BystanderModeActivatedAt

	h.clock.Advance(time.Minute)

	second, err := h.emergency.ActivateBystanderMode(ctx, emergency.ID)
	if err != nil {
		t.Fatalf("second activation: %v", err)
	}
	if second.Activated {
		t.Fatal("second activation reported a change")
	}
	if second.Reason != "already active" {
		t.Errorf("reason = %q", second.Reason)
	}
	if !second.Emergency.BystanderModeActivatedAt.Equal(stamped) {
		t.Error("activation time was restamped")
	}

	count := 0
	for _, eventType := range timelineTypes(t, h, emergency.ID) {
		if eventType == models.TimelineBystanderActivated {
			count++
		}
	}
	if count != 1 {
		t.Errorf("bystander timeline entries = %d, want 1", count)
	}
}

func TestActivateBystanderModeSkipsAssigned(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)
	emergency := h.sos(t, "victim-1", models.EmergencyTypeMedical)

	if _, err := h.matching.AcceptEmergency(ctx, emergency.ID, "responder-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	result, err := h.emergency.ActivateBystanderMode(ctx, emergency.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if result.Activated || result.Reason != "responder assigned" {
		t.Fatalf("result = %+v", result)
	}
}

func TestSweepBystanderTimeouts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)

	unattended := h.sos(t, "victim-1", models.EmergencyTypeMedical)
	attended := h.sos(t, "victim-2", models.EmergencyTypeFire)
	if _, err := h.matching.AcceptEmergency(ctx, attended.ID, "responder-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	h.clock.Advance(4 * time.Minute)
	n, err := h.emergency.SweepBystanderTimeouts(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("activated %d before the timeout", n)
	}

	h.clock.Advance(2 * time.Minute)
	n, err = h.emergency.SweepBystanderTimeouts(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("activated %d, want 1", n)
	}

	n, err = h.emergency.SweepBystanderTimeouts(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep activated %d", n)
	}

	got, err := h.emergency.GetEmergency(ctx, unattended.ID, citizen("victim-1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.BystanderModeActive {
		t.Error("unattended emergency not in bystander mode")
	}
}

func TestCreateEmergencyKeepsVoiceNote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	emergency, err := h.emergency.CreateEmergency(ctx, "victim-1", models.CreateEmergencyRequest{
		Type:         models.EmergencyTypeAccident,
		Latitude:     utils.Float64Ptr(19.0760),
		Longitude:    utils.Float64Ptr(72.8777),
		VoiceNoteRef: "voice/2024/03/victim-1.m4a",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stored, err := h.repos.Emergencies.GetByID(ctx, emergency.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.VoiceNoteRef != "voice/2024/03/victim-1.m4a" {
		t.Errorf("voice note = %q", stored.VoiceNoteRef)
	}
}

func TestTimelineFailureDoesNotBlockTransitions(t *testing.T) {
	repos := memory.New().Repositories()
	repos.Emergencies = failingTimelineStore{repos.Emergencies}
	h := newHarnessWithStore(t, repos)
	ctx := context.Background()

	h.volunteer(t, "responder-1", true)
	emergency := h.sos(t, "victim-1", models.EmergencyTypeMedical)

	accepted, err := h.matching.AcceptEmergency(ctx, emergency.ID, "responder-1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Outcome != models.AcceptOutcomeAssigned {
		t.Fatalf("accept outcome = %q", accepted.Outcome)
	}

	resolved, err := h.emergency.ResolveEmergency(ctx, emergency.ID, volunteerViewer("responder-1"), models.ResolveEmergencyRequest{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != models.EmergencyStatusResolved {
		t.Errorf("resolve returned status %s", resolved.Status)
	}

	stored, err := h.repos.Emergencies.GetByID(ctx, emergency.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != models.EmergencyStatusResolved || !stored.IsPrimaryResponder("responder-1") {
		t.Errorf("stored emergency = %+v", stored)
	}
	if types := timelineTypes(t, h, emergency.ID); len(types) != 0 {
		t.Errorf("timeline = %v, want nothing written", types)
	}
}

func TestRequestBystanderModeRequiresVictimOrAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.volunteer(t, "responder-1", true)
	emergency := h.sos(t, "victim-1", models.EmergencyTypeMedical)

	_, err := h.emergency.RequestBystanderMode(ctx, emergency.ID, volunteerViewer("responder-1"))
	assertCode(t, err, utils.ErrCodeAuthorization)
	_, err = h.emergency.RequestBystanderMode(ctx, emergency.ID, citizen("victim-2"))
	assertCode(t, err, utils.ErrCodeAuthorization)

	stored, err := h.repos.Emergencies.GetByID(ctx, emergency.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.BystanderModeActive {
		t.Fatal("rejected request switched bystander mode on")
	}

	result, err := h.emergency.RequestBystanderMode(ctx, emergency.ID, citizen("victim-1"))
	if err != nil {
		t.Fatalf("victim request: %v", err)
	}
	if !result.Activated {
		t.Errorf("victim request result = %+v", result)
	}

	result, err = h.emergency.RequestBystanderMode(ctx, emergency.ID, models.Viewer{UserID: "admin-1", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("admin request: %v", err)
	}
	if result.Activated || result.Reason != "already active" {
		t.Errorf("admin request result = %+v", result)
	}

	_, err = h.emergency.RequestBystanderMode(ctx, "missing", citizen("victim-1"))
	assertCode(t, err, utils.ErrCodeNotFound)
}
