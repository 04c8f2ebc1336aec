package memory

import (
	"context"
	"sort"
	"time"

	"goldenminutes/models"
	"goldenminutes/repositories"
)

func (s *Store) CreateVolunteer(ctx context.Context, profile *models.VolunteerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.volunteers[profile.UserID]; exists {
		return repositories.ErrDuplicate
	}
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	s.volunteers[profile.UserID] = *profile
	return nil
}

func (s *Store) GetVolunteer(ctx context.Context, userID string) (*models.VolunteerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.volunteers[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &profile, nil
}

func (s *Store) SaveVolunteer(ctx context.Context, profile *models.VolunteerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile.UpdatedAt = time.Now()
	s.volunteers[profile.UserID] = *profile
	return nil
}

func (s *Store) ListVolunteers(ctx context.Context, filter repositories.VolunteerFilter) ([]models.VolunteerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.VolunteerProfile{}
	for _, profile := range s.volunteers {
		if filter.VerificationStatus != "" && profile.VerificationStatus != filter.VerificationStatus {
			continue
		}
		if filter.AvailableOnly && !profile.IsAvailable {
			continue
		}
		result = append(result, profile)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ImpactScore != result[j].ImpactScore {
			return result[i].ImpactScore > result[j].ImpactScore
		}
		return result[i].UserID < result[j].UserID
	})
	return result, nil
}

func (s *Store) GetStats(ctx context.Context, responderID string) (*models.ResponderStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.stats[responderID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	stats.Badges = append([]string{}, stats.Badges...)
	return &stats, nil
}

func (s *Store) SaveStats(ctx context.Context, stats *models.ResponderStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats.UpdatedAt = time.Now()
	stored := *stats
	stored.Badges = append([]string{}, stats.Badges...)
	s.stats[stats.ResponderID] = stored
	return nil
}

func (s *Store) ListStats(ctx context.Context) ([]models.ResponderStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.ResponderStats, 0, len(s.stats))
	for _, stats := range s.stats {
		stats.Badges = append([]string{}, stats.Badges...)
		result = append(result, stats)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalPoints != result[j].TotalPoints {
			return result[i].TotalPoints > result[j].TotalPoints
		}
		return result[i].ResponderID < result[j].ResponderID
	})
	return result, nil
}

func (s *Store) SaveLocation(ctx context.Context, location *models.ResponderLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if location.UpdatedAt.IsZero() {
		location.UpdatedAt = time.Now()
	}
	s.locations[location.ResponderID] = *location
	return nil
}

func (s *Store) GetLocation(ctx context.Context, responderID string) (*models.ResponderLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	location, ok := s.locations[responderID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &location, nil
}

func (s *Store) ListLocations(ctx context.Context) ([]models.ResponderLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.ResponderLocation, 0, len(s.locations))
	for _, location := range s.locations {
		result = append(result, location)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ResponderID < result[j].ResponderID
	})
	return result, nil
}
