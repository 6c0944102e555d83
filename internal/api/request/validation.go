package request

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/venla/onboard-gateway/internal/onboarding"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// step_range tracks the catalog size so the DTO rule cannot drift
	// from the step list.
	_ = v.RegisterValidation("step_range", func(fl validator.FieldLevel) bool {
		n := fl.Field().Int()
		return n >= 1 && n <= int64(onboarding.TotalSteps)
	})
	return v
}

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}
