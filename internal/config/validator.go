package config

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/alexisbeaulieu97/refinery/internal/template"
	refinerrors "github.com/alexisbeaulieu97/refinery/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	extensionPattern = regexp.MustCompile(`^\.[A-Za-z0-9_]+$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("encoding", func(fl validator.FieldLevel) bool {
			return template.Supported(fl.Field().String())
		})

		_ = v.RegisterValidation("extension", func(fl validator.FieldLevel) bool {
			return extensionPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// ValidateLibrary checks descriptor fields and id uniqueness.
func ValidateLibrary(lib *ParameterLibrary) error {
	if lib == nil {
		return refinerrors.NewValidationError("parameters_library", "library is nil", nil)
	}

	if err := validatorInstance().Struct(lib); err != nil {
		return convertValidationError(err)
	}

	seen := make(map[int]int, len(lib.Parameters))
	for i, p := range lib.Parameters {
		if prev, exists := seen[p.ID]; exists {
			return refinerrors.NewValidationError(
				fmt.Sprintf("parameters_library[%d].id", i),
				fmt.Sprintf("duplicate id %d (also used by parameters_library[%d])", p.ID, prev),
				nil,
			)
		}
		seen[p.ID] = i
	}

	return nil
}

// ValidateSteps checks the step list and, when lib is supplied, that every id resolves.
func ValidateSteps(steps []Step, lib *ParameterLibrary) error {
	v := validatorInstance()
	if err := v.Struct(&StepConfig{Steps: steps}); err != nil {
		return convertValidationError(err)
	}

	if lib == nil {
		return nil
	}

	for i, step := range steps {
		for j, ap := range step.ActiveParams {
			if _, ok := lib.Lookup(ap.ID); !ok {
				return refinerrors.NewValidationError(
					fmt.Sprintf("steps[%d].active_params[%d].id", i, j),
					fmt.Sprintf("references unknown parameter %d", ap.ID),
					nil,
				)
			}
		}
	}

	return nil
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	if ves, ok := err.(validator.ValidationErrors); ok {
		ve := ves[0]
		field := yamlishFieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		return refinerrors.NewValidationError(field, msg, err)
	}

	return refinerrors.NewValidationError("config", err.Error(), err)
}

func yamlishFieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	parts := strings.Split(ns, ".")
	var lowered []string
	for _, part := range parts {
		lowered = append(lowered, strings.ToLower(part))
	}
	return strings.Join(lowered, ".")
}
