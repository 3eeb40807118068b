package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
	"github.com/clinicdesk/appointment-scheduling/internal/directory"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("actor_role", validateActorRole)
	_ = validate.RegisterValidation("status_token", validateStatusToken)
	_ = validate.RegisterValidation("clinic_datetime", validateClinicDateTime)
}

func validateActorRole(fl validator.FieldLevel) bool {
	_, ok := directory.ParseRole(fl.Field().String())
	return ok
}

func validateStatusToken(fl validator.FieldLevel) bool {
	_, err := appointment.ParseStatus(fl.Field().String())
	return err == nil
}

func validateClinicDateTime(fl validator.FieldLevel) bool {
	_, err := parseDateTime(fl.Field().String(), time.UTC)
	return err == nil
}

// Local layouts carry no offset and are read in the clinic time zone.
var localDateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// parseDateTime accepts RFC 3339 or a local date-time without offset.
func parseDateTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localDateTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date-time %q, expected RFC 3339 or YYYY-MM-DDTHH:MM[:SS]", raw)
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return t, nil
}

// validationDetails turns validator output into a short message per field.
func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "clinic_datetime":
			msgs = append(msgs, field+" must be RFC 3339 or YYYY-MM-DDTHH:MM[:SS]")
		case "status_token":
			msgs = append(msgs, field+" is not a known appointment status")
		case "datetime":
			msgs = append(msgs, field+" must be YYYY-MM-DD")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
