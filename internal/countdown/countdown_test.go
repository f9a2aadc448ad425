package countdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestClassify_UrgencyBoundaries(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want Urgency
	}{
		{"23h59m", 23*time.Hour + 59*time.Minute, UrgencyUrgent},
		{"24h01m", 24*time.Hour + time.Minute, UrgencyWarning},
		{"exactly 24h", 24 * time.Hour, UrgencyWarning},
		{"71h59m", 71*time.Hour + 59*time.Minute, UrgencyWarning},
		{"72h", 72 * time.Hour, UrgencyNormal},
		{"one second", time.Second, UrgencyUrgent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(now.Add(tt.in), now, false).Urgency)
		})
	}
}

func TestClassify_Decomposition(t *testing.T) {
	tr := Classify(now.Add(3*24*time.Hour+4*time.Hour+5*time.Minute+6*time.Second+999*time.Millisecond), now, false)
	assert.Equal(t, TimeRemaining{
		Days: 3, Hours: 4, Minutes: 5, Seconds: 6,
		TotalSeconds: 3*86400 + 4*3600 + 5*60 + 6,
		Urgency:      UrgencyNormal,
	}, tr)
	assert.Equal(t, int64(76), tr.TotalHours())
}

func TestClassify_OverdueIsZeroed(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Nanosecond, -time.Second, -90 * 24 * time.Hour} {
		tr := Classify(now.Add(d), now, false)
		assert.True(t, tr.IsOverdue, d.String())
		assert.Zero(t, tr.Days+tr.Hours+tr.Minutes+tr.Seconds+tr.TotalSeconds, d.String())
		assert.Equal(t, UrgencyNormal, tr.Urgency)
	}
}

func TestClassify_CompletedIgnoresDue(t *testing.T) {
	for _, d := range []time.Duration{-time.Hour, time.Hour, 100 * time.Hour} {
		tr := Classify(now.Add(d), now, true)
		assert.Equal(t, TimeRemaining{Completed: true, Urgency: UrgencyNormal}, tr)
	}
}

func TestClassify_Pure(t *testing.T) {
	due := now.Add(5*time.Hour + 17*time.Second)
	assert.Equal(t, Classify(due, now, false), Classify(due, now, false))
}

func TestStatusMessage(t *testing.T) {
	tests := []struct {
		in        time.Duration
		completed bool
		want      string
	}{
		{time.Hour, true, "Completed"},
		{-time.Hour, false, "Overdue"},
		{59 * time.Minute, false, "Less than 1 hour"},
		{time.Hour, false, "1 hours left"},
		{23*time.Hour + 59*time.Minute, false, "23 hours left"},
		{3 * 24 * time.Hour, false, "3 days left"},
		{15 * 24 * time.Hour, false, "2 weeks left"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusMessage(Classify(now.Add(tt.in), now, tt.completed)))
		})
	}
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0.0, Progress(Classify(now.Add(-time.Hour), now, false)))
	assert.Equal(t, 0.0, Progress(Classify(now.Add(time.Hour), now, true)))
	assert.Equal(t, 100.0, Progress(Classify(now.Add(60*24*time.Hour), now, false)))
	assert.InDelta(t, 50.0, Progress(Classify(now.Add(15*24*time.Hour), now, false)), 0.001)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "3d 04h 05m 06s", Format(TimeRemaining{Days: 3, Hours: 4, Minutes: 5, Seconds: 6}))
	assert.Equal(t, "00h 09m 59s", Format(TimeRemaining{Minutes: 9, Seconds: 59}))
}
