package services

import (
	"context"

	"goldenminutes/models"
	"goldenminutes/repositories"
	"goldenminutes/utils"
)

type GuidanceService struct {
	guidanceRepo    repositories.GuidanceStore
	defaultLanguage string
}

func NewGuidanceService(guidanceRepo repositories.GuidanceStore, defaultLanguage string) *GuidanceService {
	if defaultLanguage == "" {
		defaultLanguage = models.LanguageEnglish
	}
	return &GuidanceService{guidanceRepo: guidanceRepo, defaultLanguage: defaultLanguage}
}

// GetBystanderGuidance returns the steps for emergencyType in language,
// falling back to the default language when there are none.
func (gs *GuidanceService) GetBystanderGuidance(ctx context.Context, emergencyType, language string) ([]models.BystanderGuidance, error) {
	if !utils.IsValidEmergencyType(emergencyType) {
		return nil, utils.NewValidationError("Invalid emergency type", map[string]string{"type": emergencyType})
	}
	if language == "" {
		language = gs.defaultLanguage
	}

	steps, err := gs.guidanceRepo.ListGuidance(ctx, emergencyType, language)
	if err != nil {
		return nil, storeError(err, "Guidance", "list guidance")
	}
	if len(steps) > 0 || language == gs.defaultLanguage {
		return steps, nil
	}

	steps, err = gs.guidanceRepo.ListGuidance(ctx, emergencyType, gs.defaultLanguage)
	if err != nil {
		return nil, storeError(err, "Guidance", "list guidance")
	}
	return steps, nil
}
