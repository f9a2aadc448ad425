package scheduler

import (
	"fmt"
	"time"

	"deadlinemaster/internal/domain"
)

type Label string

const (
	Label24h     Label = "24h"
	Label1h      Label = "1h"
	Label10min   Label = "10min"
	LabelOverdue Label = "overdue"
	LabelDigest  Label = "digest"
)

const (
	headingApproaching = "⏰ Deadline Alert"
	headingOverdue     = "🚨 Assignment Overdue!"
	headingDigest      = "📅 Upcoming Deadlines"
)

// Threshold is a named window on the remaining duration until due.
// A threshold with Overdue set ignores the window and matches any negative duration.
type Threshold struct {
	Label   Label
	After   time.Duration // exclusive lower bound
	Until   time.Duration // inclusive upper bound
	Overdue bool
	phrase  string
	enabled func(domain.NotificationSettings) bool
}

// Thresholds are disjoint; at most one matches a given duration.
var Thresholds = []Threshold{
	{
		Label: Label24h, After: 23 * time.Hour, Until: 24 * time.Hour, phrase: "is due in 24 hours",
		enabled: func(s domain.NotificationSettings) bool { return s.Notify24h },
	},
	{
		Label: Label1h, After: 55 * time.Minute, Until: 60 * time.Minute, phrase: "is due in 1 hour",
		enabled: func(s domain.NotificationSettings) bool { return s.Notify1h },
	},
	{
		Label: Label10min, After: 5 * time.Minute, Until: 10 * time.Minute, phrase: "is due in 10 minutes",
		enabled: func(s domain.NotificationSettings) bool { return s.Notify10min },
	},
	{
		Label: LabelOverdue, Overdue: true, phrase: "is now overdue",
		enabled: func(s domain.NotificationSettings) bool { return s.NotifyOverdue },
	},
}

// MaxInterval is the longest tick period that still lands at least twice in
// the narrowest window.
var MaxInterval = narrowestWindow() / 2

func narrowestWindow() time.Duration {
	var w time.Duration
	for _, th := range Thresholds {
		if th.Overdue {
			continue
		}
		if d := th.Until - th.After; w == 0 || d < w {
			w = d
		}
	}
	return w
}

// Contains reports whether diff (due minus now) falls in the threshold window.
func (t Threshold) Contains(diff time.Duration) bool {
	if t.Overdue {
		return diff < 0
	}
	return diff > t.After && diff <= t.Until
}

func (t Threshold) Enabled(s domain.NotificationSettings) bool {
	return t.enabled != nil && t.enabled(s)
}

func (t Threshold) Message(title string) string {
	return fmt.Sprintf("%s %s", title, t.phrase)
}

func (t Threshold) Heading() string {
	if t.Overdue {
		return headingOverdue
	}
	return headingApproaching
}

// Alert builds the event for a.
func (t Threshold) Alert(a domain.Assignment, now time.Time) domain.Alert {
	return domain.Alert{
		AssignmentID: a.ID,
		Title:        a.Title,
		Subject:      a.Subject,
		Threshold:    string(t.Label),
		Heading:      t.Heading(),
		Message:      t.Message(a.Title),
		FiredAt:      now,
	}
}

// Key identifies one suppressed alert.
type Key struct {
	AssignmentID string `json:"assignmentId"`
	Label        Label  `json:"threshold"`
}

func (k Key) String() string {
	return k.AssignmentID + ":" + string(k.Label)
}
