package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"pointsledger/internal/models"

	"github.com/go-playground/validator/v10"
)

// Validator checks decoded request bodies. Field names in reported errors use the json tag.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("user_category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).UserPostable()
	})
	_ = v.RegisterValidation("entity_kind", func(fl validator.FieldLevel) bool {
		return models.EntityKind(fl.Field().String()).Valid()
	})
	return &Validator{validate: v}
}

func (v *Validator) Struct(s any) error {
	return v.validate.Struct(s)
}

// Details flattens validation errors into field -> failed tag.
func Details(err error) map[string]string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}
	details := make(map[string]string, len(validationErrs))
	for _, fieldErr := range validationErrs {
		details[fieldErr.Field()] = fmt.Sprintf("failed on '%s'", fieldErr.Tag())
	}
	return details
}
