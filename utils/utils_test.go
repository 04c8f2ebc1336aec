package utils

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"testing"
	"time"

	"goldenminutes/models"
)

func TestServiceErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"not found", NewEmergencyNotFoundError(), ErrCodeNotFound, http.StatusNotFound},
		{"conflict", NewEmergencyTakenError(), ErrCodeConflict, http.StatusConflict},
		{"precondition", NewEmergencyNotActiveError(), ErrCodePreconditionFailed, http.StatusPreconditionFailed},
		{"forbidden", NewNotVolunteerError(), ErrCodeAuthorization, http.StatusForbidden},
		{"validation", NewValidationError("bad", nil), ErrCodeValidation, http.StatusBadRequest},
		{"database", WrapDatabaseError(fmt.Errorf("boom"), "insert"), ErrCodeDatabase, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", tt.err)
			serviceErr, ok := GetServiceError(wrapped)
			if !ok {
				t.Fatal("expected a ServiceError in the chain")
			}
			if serviceErr.Code != tt.code || serviceErr.StatusCode != tt.status {
				t.Errorf("got %s/%d, want %s/%d", serviceErr.Code, serviceErr.StatusCode, tt.code, tt.status)
			}
			if !HasCode(wrapped, tt.code) {
				t.Errorf("HasCode(%s) = false", tt.code)
			}
		})
	}
}

func TestCalculateDistanceKm(t *testing.T) {
	// Mumbai CST to Bandra is roughly 12.7 km in a straight line.
	d := CalculateDistanceKm(18.9398, 72.8355, 19.0544, 72.8406)
	if d < 12 || d > 13.5 {
		t.Errorf("distance = %.2f km", d)
	}
	if CalculateDistanceKm(10, 10, 10, 10) != 0 {
		t.Error("distance to self should be 0")
	}
}

func TestEstimateArrivalMinutes(t *testing.T) {
	tests := []struct {
		km   float64
		want int
	}{
		{0, 1},
		{0.1, 1},
		{15, 30},
		{2.6, 6},
	}
	for _, tt := range tests {
		if got := EstimateArrivalMinutes(tt.km); got != tt.want {
			t.Errorf("EstimateArrivalMinutes(%v) = %d, want %d", tt.km, got, tt.want)
		}
	}
}

func TestBoundingBoxContains(t *testing.T) {
	box := CalculateBoundingBox(19.0, 72.8, 2000)
	if !box.Contains(19.0, 72.8) {
		t.Error("centre should be inside")
	}
	if box.Contains(19.1, 72.8) {
		t.Error("11 km north should be outside a 2 km box")
	}
	if math.Abs(box.NorthEast.Latitude-19.018) > 0.001 {
		t.Errorf("north edge = %v", box.NorthEast.Latitude)
	}
}

func TestKeyedMutexSerialisesPerKey(t *testing.T) {
	locker := NewKeyedMutex()
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "responder-1")
			if err != nil {
				t.Error(err)
				return
			}
			current := counter
			time.Sleep(time.Microsecond)
			counter = current + 1
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if len(locker.locks) != 0 {
		t.Errorf("expected lock table to be empty, has %d entries", len(locker.locks))
	}
}

func TestSlidingWindowRateLimiter(t *testing.T) {
	limiter := NewSlidingWindowRateLimiter(2, time.Minute)
	now := time.Now()

	if ok, remaining := limiter.AllowAt(now); !ok || remaining != 1 {
		t.Fatalf("first request: %v %d", ok, remaining)
	}
	if ok, _ := limiter.AllowAt(now.Add(time.Second)); !ok {
		t.Fatal("second request should pass")
	}
	if ok, _ := limiter.AllowAt(now.Add(2 * time.Second)); ok {
		t.Fatal("third request should be limited")
	}
	if ok, _ := limiter.AllowAt(now.Add(61 * time.Second)); !ok {
		t.Fatal("request after the window should pass")
	}
}

func TestKeyedRateLimiterIsolatesKeys(t *testing.T) {
	limiter := NewKeyedRateLimiter(1, time.Minute)
	if ok, _ := limiter.Allow("a"); !ok {
		t.Fatal("a first")
	}
	if ok, _ := limiter.Allow("a"); ok {
		t.Fatal("a second should be limited")
	}
	if ok, _ := limiter.Allow("b"); !ok {
		t.Fatal("b should have its own budget")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")
	token, err := svc.GenerateToken("user-1", models.RoleVolunteer)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "user-1" || claims.Role != models.RoleVolunteer {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := NewJWTService("other-secret").ValidateToken(token); err == nil {
		t.Error("token signed with another secret should be rejected")
	}
}

func TestValidateCreateEmergencyRequest(t *testing.T) {
	vs := NewValidationService()
	lat, lon := 19.07, 72.87
	badLat := 91.0

	tests := []struct {
		name    string
		req     models.CreateEmergencyRequest
		wantErr bool
	}{
		{"valid", models.CreateEmergencyRequest{Type: models.EmergencyTypeFire, Latitude: &lat, Longitude: &lon}, false},
		{"unknown type", models.CreateEmergencyRequest{Type: "flood", Latitude: &lat, Longitude: &lon}, true},
		{"missing latitude", models.CreateEmergencyRequest{Type: models.EmergencyTypeFire, Longitude: &lon}, true},
		{"latitude out of range", models.CreateEmergencyRequest{Type: models.EmergencyTypeFire, Latitude: &badLat, Longitude: &lon}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vs.Validate(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !HasCode(err, ErrCodeValidation) {
				t.Errorf("expected validation code, got %v", err)
			}
		})
	}
}

func TestValidateResponseStatus(t *testing.T) {
	vs := NewValidationService()
	if err := vs.Validate(models.UpdateResponseStatusRequest{Status: models.ResponseStatusArrived}); err != nil {
		t.Errorf("arrived should be valid: %v", err)
	}
	if err := vs.Validate(models.UpdateResponseStatusRequest{Status: models.ResponseStatusAccepted}); err == nil {
		t.Error("accepted is not a status update")
	}
}
