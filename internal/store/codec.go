package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/mrcode/pen-tracker/internal/models"
	"github.com/mrcode/pen-tracker/internal/validation"
)

// record is the persisted form of an observation. Numeric fields are kept raw
// because older exports wrote them as strings such as "5mg".
type record struct {
	ID       string          `json:"id"`
	Date     string          `json:"date"`
	Weight   json.RawMessage `json:"weight,omitempty"`
	Dosage   json.RawMessage `json:"dosage,omitempty"`
	PenID    string          `json:"penId,omitempty"`
	PenType  json.RawMessage `json:"penType,omitempty"`
	IsNewPen bool            `json:"isNewPen,omitempty"`
	PenCost  json.RawMessage `json:"penCost,omitempty"`
	Notes    string          `json:"notes,omitempty"`
}

// Rejection describes a snapshot record that could not be admitted
type Rejection struct {
	Index int
	Err   error
}

func (r Rejection) Error() string {
	return fmt.Sprintf("record %d: %v", r.Index, r.Err)
}

// Encode writes observations as an indented JSON array with RFC 3339 dates
func Encode(observations []models.Observation) ([]byte, error) {
	if observations == nil {
		observations = []models.Observation{}
	}
	data, err := json.MarshalIndent(observations, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot. Records without an id get one derived from their
// position and content, so reloading the same file yields the same ids.
// Records that fail parsing or validation, or repeat an earlier id, are
// skipped and reported as rejections. An error is returned only when the
// document itself is not a JSON array.
func Decode(data []byte) ([]models.Observation, []Rejection, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}

	var (
		out      = make([]models.Observation, 0, len(raws))
		seen     = make(map[string]struct{}, len(raws))
		rejected []Rejection
	)
	for i, raw := range raws {
		o, err := decodeRecord(i, raw)
		if err == nil {
			err = validation.ValidateObservation(o)
		}
		if err == nil {
			if _, dup := seen[o.ID]; dup {
				err = fmt.Errorf("%w: %s", ErrDuplicateID, o.ID)
			}
		}
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Err: err})
			continue
		}
		seen[o.ID] = struct{}{}
		out = append(out, o)
	}
	return out, rejected, nil
}

// recordIDNamespace scopes the name-based ids of records stored without one
var recordIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("pen-tracker/observation"))

func decodeRecord(index int, raw json.RawMessage) (models.Observation, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.Observation{}, fmt.Errorf("%w: %v", validation.ErrInvalidObservation, err)
	}
	o, err := r.observation()
	if err != nil {
		return models.Observation{}, err
	}
	if o.ID == "" {
		name := append([]byte(strconv.Itoa(index)+":"), bytes.TrimSpace(raw)...)
		o.ID = uuid.NewSHA1(recordIDNamespace, name).String()
	}
	return o, nil
}

func (r record) observation() (models.Observation, error) {
	ts, err := validation.ParseDate(r.Date)
	if err != nil {
		return models.Observation{}, err
	}

	o := models.Observation{
		ID:         r.ID,
		Timestamp:  ts,
		PenID:      r.PenID,
		IsPenStart: r.IsNewPen,
		Note:       r.Notes,
	}
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  **float64
	}{
		{"weight", r.Weight, &o.Weight},
		{"dosage", r.Dosage, &o.DoseAmount},
		{"penType", r.PenType, &o.PenNominalStrength},
		{"penCost", r.PenCost, &o.Cost},
	}
	for _, f := range fields {
		v, err := rawNumber(f.name, f.raw)
		if err != nil {
			return models.Observation{}, err
		}
		*f.dst = v
	}
	return o, nil
}

// rawNumber accepts a JSON number, a numeric string with an optional unit, or
// null/"" for an absent value
func rawNumber(field string, raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %s", validation.ErrMalformedNumber, field)
		}
		if s == "" {
			return nil, nil
		}
		v, err := validation.ParseNumber(field, s)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}

	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s", validation.ErrMalformedNumber, field, raw)
	}
	return &v, nil
}
