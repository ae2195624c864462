package core

import (
	"maps"
	"time"
)

// DateLayout is the calendar date format used for UserSessionContext.Date.
const DateLayout = "2006-01-02"

// Payload type tags attached to the last tool payload so callers can render
// structured data distinctly from prose.
const (
	DataTypeVaccineList     = "vaccine_list"
	DataTypeClinicList      = "clinic_list"
	DataTypeSlotList        = "slot_list"
	DataTypeRecords         = "records"
	DataTypeRecommendations = "recommendations"
	DataTypeBooking         = "booking"
)

// UserSessionContext is the per-session slot-filling state. It is mutated
// only by tool execution and travels with every task across handoffs.
type UserSessionContext struct {
	AuthHeader             map[string]string `json:"auth_header,omitempty"`
	Vaccine                string            `json:"vaccine,omitempty"`
	Clinic                 string            `json:"clinic,omitempty"`
	DataType               string            `json:"data_type,omitempty"`
	Date                   string            `json:"date,omitempty"`
	VaccineRecommendations string            `json:"vaccine_recommendations,omitempty"`
	Restart                bool              `json:"restart"`
}

// NewUserSessionContext creates a session context dated today.
func NewUserSessionContext() UserSessionContext {
	return UserSessionContext{Date: time.Now().Format(DateLayout)}
}

// Clone returns a deep copy.
func (s UserSessionContext) Clone() UserSessionContext {
	out := s
	if s.AuthHeader != nil {
		out.AuthHeader = maps.Clone(s.AuthHeader)
	}

	return out
}

// WithDefaults fills empty fields. An empty Date is set from fallbackDate
// or, when that is empty too, today's date.
func (s UserSessionContext) WithDefaults(fallbackDate string) UserSessionContext {
	out := s.Clone()
	if out.Date == "" {
		out.Date = fallbackDate
	}

	if out.Date == "" {
		out.Date = time.Now().Format(DateLayout)
	}

	return out
}

// ParsedDate returns Date as a time value.
func (s UserSessionContext) ParsedDate() (time.Time, error) {
	return time.Parse(DateLayout, s.Date)
}
