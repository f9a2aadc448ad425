package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank orders priorities for sorting; higher is more important.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

type Assignment struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"dueDate"`
	Priority    Priority  `json:"priority"`
	Completed   bool      `json:"completed"`
}

// AssignmentInput carries the editable fields of an assignment.
type AssignmentInput struct {
	Title       string
	Subject     string
	Description string
	DueDate     time.Time
	Priority    Priority
}

// UnmarshalJSON accepts RFC 3339 due dates as well as the minute-precision
// local form ("2006-01-02T15:04") produced by datetime-local inputs.
func (a *Assignment) UnmarshalJSON(data []byte) error {
	type alias Assignment
	var raw struct {
		alias
		DueDate string `json:"dueDate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	due, err := ParseDue(raw.DueDate)
	if err != nil {
		return err
	}
	*a = Assignment(raw.alias)
	a.DueDate = due
	return nil
}

var dueLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseDue parses a due date string. Layouts without a zone are read in local time.
func ParseDue(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("due date is empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due date %q", s)
}

// NotificationSettings is persisted as a flat JSON object.
type NotificationSettings struct {
	Enabled       bool `json:"enabled"`
	Notify24h     bool `json:"notify24h"`
	Notify1h      bool `json:"notify1h"`
	Notify10min   bool `json:"notify10min"`
	NotifyOverdue bool `json:"notifyOverdue"`
}

func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		Enabled:       true,
		Notify24h:     true,
		Notify1h:      true,
		Notify10min:   true,
		NotifyOverdue: true,
	}
}

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// Alert is a single emitted deadline event.
type Alert struct {
	AssignmentID string    `json:"assignmentId"`
	Title        string    `json:"title"`
	Subject      string    `json:"subject"`
	Threshold    string    `json:"threshold"`
	Heading      string    `json:"heading"`
	Message      string    `json:"message"`
	FiredAt      time.Time `json:"firedAt"`
}

// Body is the notification body shown to the user.
func (a Alert) Body() string {
	if a.Subject == "" {
		return a.Message
	}
	return a.Message + "\nSubject: " + a.Subject
}

// AlertRecord is one row of the delivery history.
type AlertRecord struct {
	ID           string    `json:"id" db:"id"`
	AssignmentID string    `json:"assignmentId" db:"assignment_id"`
	Threshold    string    `json:"threshold" db:"threshold"`
	Heading      string    `json:"heading" db:"heading"`
	Message      string    `json:"message" db:"message"`
	Channel      string    `json:"channel" db:"channel"`
	Delivered    bool      `json:"delivered" db:"delivered"`
	Error        string    `json:"error,omitempty" db:"error"`
	FiredAt      time.Time `json:"firedAt" db:"fired_at"`
	DeliveredAt  time.Time `json:"deliveredAt" db:"delivered_at"`
}
