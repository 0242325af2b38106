package application

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/thefonseca/concept-guidelines/internal/domain"
)

// RegisterEvaluationValidators registers the custom tags used by
// EvaluationConfig: noisepolicy, sectionkind, distancemetric and
// modelformat.
func RegisterEvaluationValidators(v *validator.Validate) error {
	validators := []struct {
		tag string
		fn  validator.Func
	}{
		{"noisepolicy", validateNoisePolicy},
		{"sectionkind", validateSectionKind},
		{"distancemetric", validateDistanceMetric},
		{"modelformat", validateModelFormat},
	}

	for _, val := range validators {
		if err := v.RegisterValidation(val.tag, val.fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", val.tag, err)
		}
	}
	return nil
}

func validateNoisePolicy(fl validator.FieldLevel) bool {
	_, err := domain.ParseNoisePolicy(fl.Field().String())
	return err == nil
}

func validateSectionKind(fl validator.FieldLevel) bool {
	_, err := domain.ParseSectionKind(fl.Field().String())
	return err == nil
}

// validateDistanceMetric accepts the empty string so optional metric fields
// fall back to their defaults.
func validateDistanceMetric(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := domain.ParseDistanceMetric(s)
	return err == nil
}

// validateModelFormat validates that a model string has the form
// provider/model or provider/model@version.
func validateModelFormat(fl validator.FieldLevel) bool {
	model := fl.Field().String()

	if model == "" {
		return true
	}

	for i, ch := range model {
		if ch == '/' {
			if i == 0 {
				return false // provider name cannot be empty
			}
			if i == len(model)-1 {
				return false // model name cannot be empty
			}
			return true
		}
	}

	return false
}
