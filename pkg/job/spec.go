package job

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidSpec is the sentinel wrapped by every enqueue payload
// validation failure. Callers classify it as a user-input error.
var ErrInvalidSpec = errors.New("invalid job spec")

// Spec is the user-supplied enqueue payload. Optional fields are pointers
// so that "omitted" is distinguishable from an explicit zero; defaults are
// filled from the persisted queue configuration at enqueue time.
type Spec struct {
	ID         string `json:"id" validate:"required"`
	Command    string `json:"command" validate:"required"`
	Priority   *int   `json:"priority,omitempty"`
	Timeout    *int   `json:"timeout,omitempty" validate:"omitempty,gte=1"`
	MaxRetries *int   `json:"max_retries,omitempty" validate:"omitempty,gte=0"`
	RunAt      string `json:"run_at,omitempty"`
}

var specValidate = validator.New()

// ParseSpec decodes and validates an enqueue payload.
//
// Unknown keys are rejected. A malformed run_at is rejected here rather
// than at claim time so the submitter sees the error.
func ParseSpec(raw []byte) (Spec, error) {
	var spec Spec

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return Spec{}, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// Validate checks the spec's field constraints and run_at syntax. All
// failures wrap ErrInvalidSpec.
func (s Spec) Validate() error {
	if err := specValidate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %q fails constraint %q", ErrInvalidSpec, strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	if s.RunAt != "" {
		if _, err := ParseTime(s.RunAt, time.Now().UTC()); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
		}
	}
	return nil
}

// timeLayouts are the accepted run_at formats, tried in order. Layouts
// without a zone are interpreted as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses a run_at value. Empty or "now" resolve to now.
// The result is always UTC.
func ParseTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "now") {
		return now.UTC(), nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid timestamp %q: use RFC 3339 (2025-11-05T15:00:00Z) or \"now\"", s)
}
