package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"deadlinemaster/internal/domain"
)

func openBackends(t *testing.T) map[string]Backend {
	t.Helper()
	dir := t.TempDir()

	sq, err := OpenSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	bo, err := OpenBolt(filepath.Join(dir, "test.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() {
		sq.Close()
		bo.Close()
	})
	return map[string]Backend{DriverSQLite: sq, DriverBolt: bo}
}

func TestBackends_AssignmentsRoundTrip(t *testing.T) {
	ctx := context.Background()
	due := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	list := []domain.Assignment{
		{ID: "asg_2", Title: "Essay", Subject: "English", Description: "5 pages", DueDate: due, Priority: domain.PriorityHigh},
		{ID: "asg_1", Title: "Lab", Subject: "Physics", DueDate: due.Add(time.Hour), Priority: domain.PriorityLow, Completed: true},
	}

	for name, b := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, b.Load(ctx))

			require.NoError(t, b.Save(ctx, list))
			got := b.Load(ctx)
			require.Len(t, got, 2)
			assert.Equal(t, "asg_2", got[0].ID)
			assert.True(t, got[0].DueDate.Equal(due))
			assert.Equal(t, "5 pages", got[0].Description)
			assert.True(t, got[1].Completed)
			assert.Equal(t, domain.PriorityLow, got[1].Priority)

			require.NoError(t, b.Save(ctx, list[:1]))
			assert.Len(t, b.Load(ctx), 1)
		})
	}
}

func TestBackends_SettingsDefaultAbsent(t *testing.T) {
	ctx := context.Background()
	for name, b := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := b.LoadSettings(ctx)
			require.NoError(t, err)
			assert.False(t, found)

			want := domain.DefaultNotificationSettings()
			want.Notify1h = false
			require.NoError(t, b.SaveSettings(ctx, want))
			require.NoError(t, b.SaveSettings(ctx, want))

			got, found, err := b.LoadSettings(ctx)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, want, got)
		})
	}
}

func TestBackends_AlertHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for name, b := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			for i, th := range []string{"24h", "1h", "10min"} {
				require.NoError(t, b.Record(ctx, domain.AlertRecord{
					ID: "alt_" + th, AssignmentID: "asg_1", Threshold: th, Heading: "h", Message: "m",
					Channel: "log", Delivered: i != 1, FiredAt: at.Add(time.Duration(i) * time.Minute),
					DeliveredAt: at.Add(time.Duration(i) * time.Minute),
				}))
			}
			got, err := b.Recent(ctx, 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "10min", got[0].Threshold)
			assert.Equal(t, "1h", got[1].Threshold)
			assert.False(t, got[1].Delivered)
			assert.True(t, got[0].FiredAt.Equal(at.Add(2*time.Minute)))
		})
	}
}

func TestBolt_CorruptAssignmentsLoadEmpty(t *testing.T) {
	b, err := OpenBolt(filepath.Join(t.TempDir(), "c.bolt"))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMain).Put([]byte(assignmentsKey), []byte("{not json"))
	}))
	got := b.Load(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBolt_BadRecordSkipped(t *testing.T) {
	b, err := OpenBolt(filepath.Join(t.TempDir(), "c.bolt"))
	require.NoError(t, err)
	defer b.Close()

	data := `[{"id":"a","title":"ok","dueDate":"2026-05-01T10:00"},{"id":"b","title":"bad","dueDate":"tomorrow"}]`
	require.NoError(t, b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMain).Put([]byte(assignmentsKey), []byte(data))
	}))
	got := b.Load(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, 10, got[0].DueDate.Hour())
}

func TestSQLite_CorruptDueDateSkipped(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.DB().Exec(`INSERT INTO assignments (id,position,title,due_date) VALUES ('x',0,'X','garbage'),('y',1,'Y','2026-05-01T10:00:00Z')`)
	require.NoError(t, err)

	got := s.Load(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, "y", got[0].ID)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mongo", "x")
	assert.Error(t, err)
}

func TestOpenOrRecover_CorruptFileStartsEmpty(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{DriverSQLite, DriverBolt} {
		t.Run(driver, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "deadlines."+driver)
			garbage := bytes.Repeat([]byte("garbage!"), 2048)
			require.NoError(t, os.WriteFile(path, garbage, 0600))

			_, err := Open(driver, path)
			require.Error(t, err)

			b, err := OpenOrRecover(driver, path)
			require.NoError(t, err)
			defer b.Close()
			assert.Empty(t, b.Load(ctx))

			aside, err := filepath.Glob(path + ".corrupt-*")
			require.NoError(t, err)
			require.Len(t, aside, 1)
			kept, err := os.ReadFile(aside[0])
			require.NoError(t, err)
			assert.Equal(t, garbage, kept)
		})
	}
}

func TestOpenOrRecover_HealthyFileUntouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "deadlines.bolt")
	b, err := OpenOrRecover(DriverBolt, path)
	require.NoError(t, err)
	require.NoError(t, b.Save(ctx, []domain.Assignment{{ID: "asg_1", Title: "Essay", DueDate: time.Now(), Priority: domain.PriorityHigh}}))
	require.NoError(t, b.Close())

	b, err = OpenOrRecover(DriverBolt, path)
	require.NoError(t, err)
	defer b.Close()
	assert.Len(t, b.Load(ctx), 1)
	aside, _ := filepath.Glob(path + ".corrupt-*")
	assert.Empty(t, aside)
}
