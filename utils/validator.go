package utils

import (
	"fmt"

	"goldenminutes/models"

	"github.com/go-playground/validator/v10"
)

type ValidationService struct {
	validator *validator.Validate
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func NewValidationService() *ValidationService {
	v := validator.New()

	// Register custom validators. latitude and longitude are validator built-ins.
	v.RegisterValidation("emergency_type", validateEmergencyType)
	v.RegisterValidation("response_status", validateResponseStatus)
	v.RegisterValidation("role_level", validateRoleLevel)
	v.RegisterValidation("language", validateLanguage)

	return &ValidationService{
		validator: v,
	}
}

func (vs *ValidationService) ValidateStruct(s interface{}) []ValidationError {
	var validationErrors []ValidationError

	err := vs.validator.Struct(s)
	if err != nil {
		fieldErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return []ValidationError{{Message: err.Error()}}
		}
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fe.Field(),
				Tag:     fe.Tag(),
				Value:   fmt.Sprintf("%v", fe.Value()),
				Message: vs.getErrorMessage(fe),
			})
		}
	}

	return validationErrors
}

// Validate returns a VALIDATION_ERROR service error carrying the field
// errors, or nil.
func (vs *ValidationService) Validate(s interface{}) error {
	if errs := vs.ValidateStruct(s); len(errs) > 0 {
		return NewValidationError("Validation failed", errs)
	}
	return nil
}

func (vs *ValidationService) getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	case "latitude":
		return "Latitude must be between -90 and 90"
	case "longitude":
		return "Longitude must be between -180 and 180"
	case "emergency_type":
		return "Invalid emergency type"
	case "response_status":
		return "Status must be en_route or arrived"
	case "role_level":
		return "Invalid role level"
	case "language":
		return "Unsupported language"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// Custom validation functions
func validateEmergencyType(fl validator.FieldLevel) bool {
	return IsValidEmergencyType(fl.Field().String())
}

func validateResponseStatus(fl validator.FieldLevel) bool {
	status := fl.Field().String()
	return status == models.ResponseStatusEnRoute || status == models.ResponseStatusArrived
}

func validateRoleLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case models.RoleLevelGeneral, models.RoleLevelFirstAid, models.RoleLevelMedical:
		return true
	}
	return false
}

func validateLanguage(fl validator.FieldLevel) bool {
	return StringSliceContains(models.SupportedLanguages, fl.Field().String())
}

func IsValidEmergencyType(emergencyType string) bool {
	return StringSliceContains(models.EmergencyTypes, emergencyType)
}
