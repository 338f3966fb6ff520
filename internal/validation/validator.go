package validation

import (
	"errors"
	"reflect"
	"regexp"
	"time"

	"fluxior-backend/internal/models"
	"github.com/go-playground/validator/v10"
)

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()

	v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, err := time.Parse("2006-01-02", value)
		return err == nil
	})

	phoneRegex := regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return phoneRegex.MatchString(stripPhoneSeparators(value))
	})

	v.RegisterValidation("leadstatus", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		return models.IsValidStatus(models.LeadStatus(fl.Field().String()))
	})

	v.RegisterValidation("leadsource", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		return models.IsValidSource(models.LeadSource(fl.Field().String()))
	})

	return &Validator{v: v}
}

func (v *Validator) Struct(s interface{}) error {
	return v.v.Struct(s)
}

func (v *Validator) ValidationErrors(err error) validator.ValidationErrors {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}

// stripPhoneSeparators drops the spaces, dots and dashes people type in phone numbers.
func stripPhoneSeparators(value string) string {
	out := make([]rune, 0, len(value))
	for _, r := range value {
		switch r {
		case ' ', '.', '-', '(', ')':
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
