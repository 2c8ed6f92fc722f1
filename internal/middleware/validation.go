package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"carecohort/internal/cohort"
	apierrors "carecohort/internal/errors"
)

// DefaultMaxJSONBody bounds JSON request bodies; uploads go through multipart.
const DefaultMaxJSONBody = 1 << 20

// Validator decodes JSON bodies and validates them with struct tags.
type Validator struct {
	validate    *validator.Validate
	logger      *slog.Logger
	maxBodySize int64
}

// NewValidator creates a validator that reports JSON field names and knows
// the custom "refdate" and "safename" tags.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("refdate", isReferenceDate)
	_ = v.RegisterValidation("safename", isSafeName)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validate:    v,
		logger:      logger.With(slog.String("component", "validation")),
		maxBodySize: DefaultMaxJSONBody,
	}
}

// DecodeJSON reads r's body into dst and validates it. An empty body leaves
// dst at its zero value and still runs validation.
func (v *Validator) DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, v.maxBodySize+1))
		if err != nil {
			return apierrors.InvalidRequestWithError(err)
		}
		if int64(len(body)) > v.maxBodySize {
			return apierrors.NewWithDetails(http.StatusRequestEntityTooLarge, apierrors.CodePayloadTooLarge,
				"Request body exceeds maximum allowed size", map[string]int64{"max_size": v.maxBodySize})
		}
		if len(strings.TrimSpace(string(body))) > 0 {
			if err := json.Unmarshal(body, dst); err != nil {
				return apierrors.InvalidRequestWithError(err)
			}
		}
	}
	return v.Struct(dst)
}

// Struct validates a struct and returns an APIError listing failed fields.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{Field: fe.Field(), Message: formatValidationError(fe)})
	}
	v.logger.Debug("request validation failed", slog.Int("fields", len(out)))
	return apierrors.NewValidationErrors(out)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "refdate":
		return fmt.Sprintf("%s must be a date such as 2024-01-31 or 31/01/2024", field)
	case "safename":
		return fmt.Sprintf("%s must not contain path separators", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// isReferenceDate accepts anything the cohort date parser understands and
// bare "2006-01" months.
func isReferenceDate(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" {
		return true
	}
	if _, ok := cohort.ParseDate(s); ok {
		return true
	}
	_, err := time.Parse("2006-01", s)
	return err == nil
}

func isSafeName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

// QueryInt reads an integer query parameter within [lo, hi].
func QueryInt(r *http.Request, param string, lo, hi, defaultValue int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(param))
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierrors.ErrValidation(param, fmt.Sprintf("%s must be a valid integer", param))
	}
	if value < lo || value > hi {
		return 0, apierrors.ErrValidation(param, fmt.Sprintf("%s must be between %d and %d", param, lo, hi))
	}
	return value, nil
}

// QueryBool reads a boolean query parameter; "1", "true", "sim" are true.
func QueryBool(r *http.Request, param string, defaultValue bool) (bool, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(param)))
	switch raw {
	case "":
		return defaultValue, nil
	case "1", "true", "sim", "yes":
		return true, nil
	case "0", "false", "nao", "não", "no":
		return false, nil
	}
	return false, apierrors.ErrValidation(param, fmt.Sprintf("%s must be a boolean", param))
}

// QueryList collects a repeated query parameter (?g=a&g=b), dropping blanks.
// Values are not split on commas since group names may contain them.
func QueryList(r *http.Request, param string) []string {
	var out []string
	for _, v := range r.URL.Query()[param] {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
