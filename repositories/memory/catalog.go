package memory

import (
	"context"
	"sort"
	"time"

	"goldenminutes/models"
	"goldenminutes/repositories"
)

func (s *Store) UpsertBadge(ctx context.Context, badge *models.Badge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if badge.CreatedAt.IsZero() {
		badge.CreatedAt = time.Now()
	}
	s.badges[badge.BadgeID] = *badge
	return nil
}

func (s *Store) GetBadge(ctx context.Context, badgeID string) (*models.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	badge, ok := s.badges[badgeID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &badge, nil
}

func (s *Store) ListBadges(ctx context.Context) ([]models.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Badge, 0, len(s.badges))
	for _, badge := range s.badges {
		result = append(result, badge)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BadgeID < result[j].BadgeID })
	return result, nil
}

func (s *Store) UpsertArea(ctx context.Context, area *models.AreaSafetyScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.areas[area.AreaName] = *area
	return nil
}

func (s *Store) GetArea(ctx context.Context, areaName string) (*models.AreaSafetyScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	area, ok := s.areas[areaName]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &area, nil
}

func (s *Store) ListAreas(ctx context.Context) ([]models.AreaSafetyScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.AreaSafetyScore, 0, len(s.areas))
	for _, area := range s.areas {
		result = append(result, area)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SafetyScore != result[j].SafetyScore {
			return result[i].SafetyScore > result[j].SafetyScore
		}
		return result[i].AreaName < result[j].AreaName
	})
	return result, nil
}

func (s *Store) UpsertGuidance(ctx context.Context, step *models.BystanderGuidance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.guidance[guidanceKey{step.EmergencyType, step.Language, step.StepNumber}] = *step
	return nil
}

func (s *Store) ListGuidance(ctx context.Context, emergencyType, language string) ([]models.BystanderGuidance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.BystanderGuidance{}
	for key, step := range s.guidance {
		if key.emergencyType == emergencyType && key.language == language {
			result = append(result, step)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StepNumber < result[j].StepNumber })
	return result, nil
}

func (s *Store) UpsertModule(ctx context.Context, module *models.TrainingModule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.modules[module.ModuleID] = *module
	return nil
}

func (s *Store) GetModule(ctx context.Context, moduleID string) (*models.TrainingModule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	module, ok := s.modules[moduleID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &module, nil
}

func (s *Store) ListModules(ctx context.Context) ([]models.TrainingModule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.TrainingModule, 0, len(s.modules))
	for _, module := range s.modules {
		result = append(result, module)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ModuleID < result[j].ModuleID })
	return result, nil
}

func (s *Store) GetProgress(ctx context.Context, userID, moduleID string) (*models.TrainingProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	progress, ok := s.progress[progressKey{userID, moduleID}]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &progress, nil
}

func (s *Store) SaveProgress(ctx context.Context, progress *models.TrainingProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress[progressKey{progress.UserID, progress.ModuleID}] = *progress
	return nil
}

func (s *Store) ListProgress(ctx context.Context, userID string) ([]models.TrainingProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.TrainingProgress{}
	for key, progress := range s.progress {
		if key.userID == userID {
			result = append(result, progress)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ModuleID < result[j].ModuleID })
	return result, nil
}
