package attendance

import (
	"encoding/json"
	"strings"

	"emargement/internal/apperr"
)

// Status is the outcome recorded for one student on a sheet.
type Status string

const (
	Present Status = "present"
	Late    Status = "late"
	Absent  Status = "absent"
)

// legacyLate is the label older clients send for Late.
const legacyLate = "en_retard"

// ParseStatus accepts the canonical labels and the legacy "en_retard".
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Present):
		return Present, nil
	case string(Late), legacyLate:
		return Late, nil
	case string(Absent):
		return Absent, nil
	}
	return "", apperr.Invalid("unknown status %q", s)
}

func (s Status) Valid() bool {
	return s == Present || s == Late || s == Absent
}

// Label is the French wording shown on exports.
func (s Status) Label() string {
	switch s {
	case Present:
		return "Présent"
	case Late:
		return "En retard"
	case Absent:
		return "Absent"
	}
	return string(s)
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return apperr.Invalid("status must be a string")
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
