// Package memory is an in-process implementation of the repository
// interfaces. It backs STORE_DRIVER=memory and the package tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"goldenminutes/models"
	"goldenminutes/repositories"

	"github.com/google/uuid"
)

var (
	_ repositories.EmergencyStore = (*Store)(nil)
	_ repositories.ResponderStore = (*Store)(nil)
	_ repositories.BadgeStore     = (*Store)(nil)
	_ repositories.AreaStore      = (*Store)(nil)
	_ repositories.GuidanceStore  = (*Store)(nil)
	_ repositories.TrainingStore  = (*Store)(nil)
)

type responseKey struct {
	emergencyID string
	responderID string
}

type guidanceKey struct {
	emergencyType string
	language      string
	step          int
}

type progressKey struct {
	userID   string
	moduleID string
}

// Store keeps every entity in maps guarded by a single mutex, so each
// conditional update is atomic with respect to all other operations.
type Store struct {
	mu sync.RWMutex

	emergencies map[string]models.Emergency
	responses   map[responseKey]models.EmergencyResponse
	timeline    map[string][]models.EmergencyTimeline

	volunteers map[string]models.VolunteerProfile
	stats      map[string]models.ResponderStats
	locations  map[string]models.ResponderLocation

	badges   map[string]models.Badge
	areas    map[string]models.AreaSafetyScore
	guidance map[guidanceKey]models.BystanderGuidance
	modules  map[string]models.TrainingModule
	progress map[progressKey]models.TrainingProgress
}

func New() *Store {
	return &Store{
		emergencies: make(map[string]models.Emergency),
		responses:   make(map[responseKey]models.EmergencyResponse),
		timeline:    make(map[string][]models.EmergencyTimeline),
		volunteers:  make(map[string]models.VolunteerProfile),
		stats:       make(map[string]models.ResponderStats),
		locations:   make(map[string]models.ResponderLocation),
		badges:      make(map[string]models.Badge),
		areas:       make(map[string]models.AreaSafetyScore),
		guidance:    make(map[guidanceKey]models.BystanderGuidance),
		modules:     make(map[string]models.TrainingModule),
		progress:    make(map[progressKey]models.TrainingProgress),
	}
}

// Repositories exposes the store through the repository bundle.
func (s *Store) Repositories() *repositories.Store {
	return &repositories.Store{
		Emergencies: s,
		Responders:  s,
		Badges:      s,
		Areas:       s,
		Guidance:    s,
		Training:    s,
	}
}

// =================== EMERGENCIES ===================

func (s *Store) Create(ctx context.Context, emergency *models.Emergency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if emergency.ID == "" {
		emergency.ID = uuid.NewString()
	}
	if _, exists := s.emergencies[emergency.ID]; exists {
		return repositories.ErrDuplicate
	}

	now := time.Now()
	if emergency.TriggeredAt.IsZero() {
		emergency.TriggeredAt = now
	}
	emergency.CreatedAt = now
	emergency.UpdatedAt = now
	if emergency.Status == "" {
		emergency.Status = models.EmergencyStatusActive
	}

	s.emergencies[emergency.ID] = *emergency
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*models.Emergency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emergency, ok := s.emergencies[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &emergency, nil
}

func (s *Store) List(ctx context.Context, filter repositories.EmergencyFilter) ([]models.Emergency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.Emergency{}
	for _, emergency := range s.emergencies {
		if matchesFilter(&emergency, filter) {
			result = append(result, emergency)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TriggeredAt.After(result[j].TriggeredAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) Count(ctx context.Context, filter repositories.EmergencyFilter) (int64, error) {
	filter.Limit = 0
	list, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func matchesFilter(e *models.Emergency, f repositories.EmergencyFilter) bool {
	if len(f.Statuses) > 0 && !contains(f.Statuses, e.Status) {
		return false
	}
	if f.VictimID != "" && e.VictimID != f.VictimID {
		return false
	}
	if f.PrimaryResponderID != "" && !e.IsPrimaryResponder(f.PrimaryResponderID) {
		return false
	}
	if f.ActiveOrAssignedTo != "" && e.Status != models.EmergencyStatusActive && !e.IsPrimaryResponder(f.ActiveOrAssignedTo) {
		return false
	}
	if f.TriggeredAfter != nil && e.TriggeredAt.Before(*f.TriggeredAfter) {
		return false
	}
	if f.TriggeredBefore != nil && e.TriggeredAt.After(*f.TriggeredBefore) {
		return false
	}
	if f.Bounds != nil && !f.Bounds.Contains(e.Latitude, e.Longitude) {
		return false
	}
	return true
}

func (s *Store) AssignPrimaryResponder(ctx context.Context, emergencyID, responderID string, at time.Time) (*models.Emergency, *models.EmergencyResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emergency, ok := s.emergencies[emergencyID]
	if !ok {
		return nil, nil, repositories.ErrNotFound
	}
	if emergency.Status != models.EmergencyStatusActive || emergency.HasPrimaryResponder() {
		return nil, nil, repositories.ErrNotModified
	}

	primary := responderID
	emergency.PrimaryResponderID = &primary
	emergency.StampStatus(models.EmergencyStatusResponderAssigned, at)
	s.emergencies[emergencyID] = emergency

	key := responseKey{emergencyID, responderID}
	response, exists := s.responses[key]
	if !exists {
		response = models.EmergencyResponse{
			ID:          uuid.NewString(),
			EmergencyID: emergencyID,
			ResponderID: responderID,
			NotifiedAt:  at,
		}
	}
	respondedAt := at
	response.Status = models.ResponseStatusAccepted
	response.RespondedAt = &respondedAt
	s.responses[key] = response

	return &emergency, &response, nil
}

func (s *Store) TransitionStatus(ctx context.Context, transition repositories.StatusTransition) (*models.Emergency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emergency, ok := s.emergencies[transition.EmergencyID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if !contains(transition.From, emergency.Status) {
		return nil, repositories.ErrNotModified
	}
	if transition.PrimaryResponderID != "" && !emergency.IsPrimaryResponder(transition.PrimaryResponderID) {
		return nil, repositories.ErrNotModified
	}

	emergency.StampStatus(transition.To, transition.At)
	if transition.Resolution != "" {
		emergency.Resolution = transition.Resolution
	}
	if transition.LifeSaved {
		emergency.LifeSaved = true
	}
	if transition.CancellationReason != "" {
		emergency.CancellationReason = transition.CancellationReason
	}
	s.emergencies[transition.EmergencyID] = emergency

	return &emergency, nil
}

func (s *Store) ActivateBystanderMode(ctx context.Context, emergencyID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emergency, ok := s.emergencies[emergencyID]
	if !ok {
		return false, repositories.ErrNotFound
	}
	if !bystanderEligible(&emergency) {
		return false, nil
	}

	activatedAt := at
	emergency.BystanderModeActive = true
	emergency.BystanderModeActivatedAt = &activatedAt
	emergency.UpdatedAt = at
	s.emergencies[emergencyID] = emergency
	return true, nil
}

func (s *Store) FindBystanderCandidates(ctx context.Context, cutoff time.Time) ([]models.Emergency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.Emergency{}
	for _, emergency := range s.emergencies {
		if bystanderEligible(&emergency) && !emergency.TriggeredAt.After(cutoff) {
			result = append(result, emergency)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TriggeredAt.Before(result[j].TriggeredAt)
	})
	return result, nil
}

func bystanderEligible(e *models.Emergency) bool {
	return e.Status == models.EmergencyStatusActive && !e.HasPrimaryResponder() && !e.BystanderModeActive
}

// =================== RESPONSES ===================

func (s *Store) GetResponse(ctx context.Context, emergencyID, responderID string) (*models.EmergencyResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	response, ok := s.responses[responseKey{emergencyID, responderID}]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &response, nil
}

func (s *Store) CreateResponseIfAbsent(ctx context.Context, response *models.EmergencyResponse) (*models.EmergencyResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := responseKey{response.EmergencyID, response.ResponderID}
	if existing, ok := s.responses[key]; ok {
		return &existing, false, nil
	}
	if response.ID == "" {
		response.ID = uuid.NewString()
	}
	s.responses[key] = *response
	created := *response
	return &created, true, nil
}

func (s *Store) SaveResponse(ctx context.Context, response *models.EmergencyResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if response.ID == "" {
		response.ID = uuid.NewString()
	}
	s.responses[responseKey{response.EmergencyID, response.ResponderID}] = *response
	return nil
}

func (s *Store) ListResponses(ctx context.Context, emergencyID string) ([]models.EmergencyResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.EmergencyResponse{}
	for key, response := range s.responses {
		if key.emergencyID == emergencyID {
			result = append(result, response)
		}
	}
	repositories.SortResponses(result)
	return result, nil
}

func (s *Store) ListResponsesByResponder(ctx context.Context, responderID string) ([]models.EmergencyResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.EmergencyResponse{}
	for key, response := range s.responses {
		if key.responderID == responderID {
			result = append(result, response)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].NotifiedAt.After(result[j].NotifiedAt)
	})
	return result, nil
}

// =================== TIMELINE ===================

func (s *Store) AppendTimeline(ctx context.Context, entry *models.EmergencyTimeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	s.timeline[entry.EmergencyID] = append(s.timeline[entry.EmergencyID], *entry)
	return nil
}

func (s *Store) GetTimeline(ctx context.Context, emergencyID string) ([]models.EmergencyTimeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := append([]models.EmergencyTimeline{}, s.timeline[emergencyID]...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
