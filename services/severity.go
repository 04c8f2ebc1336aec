package services

import (
	"context"

	"goldenminutes/models"
)

// SeverityClassifier derives the severity of a new emergency. It is called
// once at creation; severity is never recomputed.
type SeverityClassifier interface {
	Classify(ctx context.Context, emergencyType, description string) string
}

// RuleSeverityClassifier maps the emergency type through a fixed table.
type RuleSeverityClassifier struct {
	rules    map[string]string
	fallback string
}

func NewRuleSeverityClassifier() *RuleSeverityClassifier {
	return &RuleSeverityClassifier{
		rules: map[string]string{
			models.EmergencyTypeFire:           models.SeverityCritical,
			models.EmergencyTypeDisaster:       models.SeverityCritical,
			models.EmergencyTypeMedical:        models.SeverityHigh,
			models.EmergencyTypePersonalSafety: models.SeverityHigh,
			models.EmergencyTypeAccident:       models.SeverityModerate,
		},
		fallback: models.SeverityModerate,
	}
}

func (c *RuleSeverityClassifier) Classify(ctx context.Context, emergencyType, description string) string {
	if severity, ok := c.rules[emergencyType]; ok {
		return severity
	}
	return c.fallback
}
