// Package countdown turns a due instant into a time-remaining descriptor.
package countdown

import (
	"fmt"
	"time"
)

type Urgency string

const (
	UrgencyNormal  Urgency = "normal"
	UrgencyWarning Urgency = "warning"
	UrgencyUrgent  Urgency = "urgent"
)

const (
	secondsPerDay    = 86400
	secondsPerHour   = 3600
	secondsPerMinute = 60

	// ProgressHorizon is the span a full progress bar represents.
	ProgressHorizon = 30 * 24 * time.Hour
)

type TimeRemaining struct {
	Days         int64   `json:"days"`
	Hours        int64   `json:"hours"`
	Minutes      int64   `json:"minutes"`
	Seconds      int64   `json:"seconds"`
	TotalSeconds int64   `json:"totalSeconds"`
	IsOverdue    bool    `json:"isOverdue"`
	Completed    bool    `json:"completed"`
	Urgency      Urgency `json:"urgency"`
}

// TotalHours is days*24 + hours.
func (t TimeRemaining) TotalHours() int64 {
	return t.Days*24 + t.Hours
}

// Classify computes the remaining time until due as seen at now.
// Completed assignments and overdue ones yield a zeroed descriptor.
func Classify(due, now time.Time, completed bool) TimeRemaining {
	if completed {
		return TimeRemaining{Completed: true, Urgency: UrgencyNormal}
	}
	diff := due.Sub(now)
	if diff <= 0 {
		return TimeRemaining{IsOverdue: true, Urgency: UrgencyNormal}
	}

	total := int64(diff / time.Second)
	tr := TimeRemaining{
		Days:         total / secondsPerDay,
		Hours:        (total % secondsPerDay) / secondsPerHour,
		Minutes:      (total % secondsPerHour) / secondsPerMinute,
		Seconds:      total % secondsPerMinute,
		TotalSeconds: total,
	}
	switch h := tr.TotalHours(); {
	case h < 24:
		tr.Urgency = UrgencyUrgent
	case h < 72:
		tr.Urgency = UrgencyWarning
	default:
		tr.Urgency = UrgencyNormal
	}
	return tr
}

// StatusMessage is the short human label shown next to a countdown.
func StatusMessage(t TimeRemaining) string {
	switch {
	case t.Completed:
		return "Completed"
	case t.IsOverdue:
		return "Overdue"
	}
	hours := t.TotalHours()
	switch {
	case hours*60+t.Minutes < 60:
		return "Less than 1 hour"
	case hours < 24:
		return fmt.Sprintf("%d hours left", hours)
	case t.Days < 7:
		return fmt.Sprintf("%d days left", t.Days)
	}
	return fmt.Sprintf("%d weeks left", t.Days/7)
}

// Progress reports how much of ProgressHorizon is still remaining, in percent.
func Progress(t TimeRemaining) float64 {
	if t.Completed || t.IsOverdue {
		return 0
	}
	p := float64(t.TotalSeconds) / ProgressHorizon.Seconds() * 100
	if p > 100 {
		return 100
	}
	return p
}

// Format renders the countdown as "3d 04h 05m 06s", dropping the day part when zero.
func Format(t TimeRemaining) string {
	if t.Days > 0 {
		return fmt.Sprintf("%dd %02dh %02dm %02ds", t.Days, t.Hours, t.Minutes, t.Seconds)
	}
	return fmt.Sprintf("%02dh %02dm %02ds", t.Hours, t.Minutes, t.Seconds)
}
