// Package validation is the ingestion boundary: it turns raw user or file input
// into admitted observations, rejecting malformed numbers and out-of-policy doses.
package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mrcode/pen-tracker/internal/models"
)

// MaxDoseMg is the largest single dose that may be admitted
const MaxDoseMg = 15.0

var (
	// ErrMalformedNumber is returned when a numeric field cannot be parsed
	ErrMalformedNumber = errors.New("malformed number")
	// ErrDoseLimit is returned when a dose exceeds MaxDoseMg
	ErrDoseLimit = fmt.Errorf("dose exceeds the %.0f mg maximum", MaxDoseMg)
	// ErrInvalidObservation is returned when an observation fails field validation
	ErrInvalidObservation = errors.New("invalid observation")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Input is a typed observation candidate
type Input struct {
	Timestamp          time.Time `validate:"required"`
	Weight             *float64  `validate:"omitempty,gt=0,lt=1000"`
	DoseAmount         *float64  `validate:"omitempty,gt=0"`
	PenID              string    `validate:"omitempty,max=64"`
	PenNominalStrength *float64  `validate:"omitempty,gt=0,lte=15"`
	IsPenStart         bool
	Cost               *float64 `validate:"omitempty,gte=0"`
	Note               string   `validate:"max=1000"`
}

// FormInput is an observation candidate as typed by the user, every field a string
type FormInput struct {
	Date    string
	Weight  string
	Dosage  string
	PenID   string
	PenType string
	NewPen  bool
	PenCost string
	Notes   string
}

// NewObservation validates in and returns an observation with a fresh stable ID
func NewObservation(in Input) (models.Observation, error) {
	if err := check(in); err != nil {
		return models.Observation{}, err
	}
	return models.Observation{
		ID:                 uuid.NewString(),
		Timestamp:          in.Timestamp.UTC(),
		Weight:             in.Weight,
		DoseAmount:         in.DoseAmount,
		PenID:              in.PenID,
		PenNominalStrength: in.PenNominalStrength,
		IsPenStart:         in.IsPenStart,
		Cost:               in.Cost,
		Note:               strings.TrimSpace(in.Note),
	}, nil
}

// ParseForm converts string form input into a typed Input.
// Empty optional fields stay nil; anything unparseable is rejected.
func ParseForm(f FormInput) (Input, error) {
	ts, err := ParseDate(f.Date)
	if err != nil {
		return Input{}, err
	}

	in := Input{
		Timestamp:  ts,
		PenID:      strings.TrimSpace(f.PenID),
		IsPenStart: f.NewPen,
		Note:       f.Notes,
	}
	if in.Weight, err = optionalNumber("weight", f.Weight); err != nil {
		return Input{}, err
	}
	if in.DoseAmount, err = optionalNumber("dosage", f.Dosage); err != nil {
		return Input{}, err
	}
	if in.PenNominalStrength, err = optionalNumber("penType", f.PenType); err != nil {
		return Input{}, err
	}
	if in.Cost, err = optionalNumber("penCost", f.PenCost); err != nil {
		return Input{}, err
	}
	return in, nil
}

// ValidateObservation checks an already-built observation, e.g. one read from a snapshot
func ValidateObservation(o models.Observation) error {
	if o.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidObservation)
	}
	return check(Input{
		Timestamp:          o.Timestamp,
		Weight:             o.Weight,
		DoseAmount:         o.DoseAmount,
		PenID:              o.PenID,
		PenNominalStrength: o.PenNominalStrength,
		IsPenStart:         o.IsPenStart,
		Cost:               o.Cost,
		Note:               o.Note,
	})
}

func check(in Input) error {
	if in.Weight == nil && in.DoseAmount == nil {
		return fmt.Errorf("%w: weight or dosage is required", ErrInvalidObservation)
	}
	if in.DoseAmount != nil && *in.DoseAmount > MaxDoseMg {
		return fmt.Errorf("%w: %.2f mg", ErrDoseLimit, *in.DoseAmount)
	}
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidObservation, formatValidationError(err))
	}
	return nil
}

// ParseNumber parses a user-supplied number. A trailing unit ("mg", "kg") and a
// decimal comma are accepted; NaN and infinities are rejected.
func ParseNumber(field, raw string) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "mg"), "kg"))
	s = strings.Replace(s, ",", ".", 1)
	if s == "" {
		return 0, fmt.Errorf("%w: %s is empty", ErrMalformedNumber, field)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformedNumber, field, raw)
	}
	return v, nil
}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates (midnight UTC)
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", ErrInvalidObservation)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised date %q", ErrInvalidObservation, raw)
}

// ParseCost parses a price. Empty input is zero; negative prices are rejected.
func ParseCost(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	v, err := ParseNumber("penCost", raw)
	if err != nil {
		return decimal.Zero, err
	}
	if v < 0 {
		return decimal.Zero, fmt.Errorf("%w: pencost must not be negative", ErrInvalidObservation)
	}
	return decimal.NewFromFloat(v), nil
}

func optionalNumber(field, raw string) (*float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := ParseNumber(field, raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// formatValidationError formats validation errors into readable messages
func formatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, formatFieldError(e))
	}
	return strings.Join(msgs, "; ")
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must not be negative", field)
	case "lt", "lte":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// ParseFields reads a form entry written as comma-separated key=value pairs,
// e.g. "date=2025-01-06,weight=120,dose=2.5,strength=5,new". A bare "new"
// marks a pen start. Numbers in this form use a decimal point.
func ParseFields(raw string) (FormInput, error) {
	var f FormInput
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		key, value = strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)

		switch key {
		case "date":
			f.Date = value
		case "weight":
			f.Weight = value
		case "dose", "dosage":
			f.Dosage = value
		case "pen":
			f.PenID = value
		case "strength":
			f.PenType = value
		case "cost":
			f.PenCost = value
		case "note", "notes":
			f.Notes = value
		case "new":
			f.NewPen = !hasValue || value == "true" || value == "yes" || value == "1"
		default:
			return FormInput{}, fmt.Errorf("%w: unknown field %q", ErrInvalidObservation, key)
		}
	}
	return f, nil
}
