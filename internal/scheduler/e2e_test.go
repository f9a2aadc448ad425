package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deadlinemaster/internal/domain"
	"deadlinemaster/internal/scheduler"
	"deadlinemaster/internal/store"
)

type nopPersister struct{}

func (nopPersister) Save(context.Context, []domain.Assignment) error { return nil }
func (nopPersister) Load(context.Context) []domain.Assignment       { return nil }

type defaults struct{}

func (defaults) Current() domain.NotificationSettings { return domain.DefaultNotificationSettings() }

type sink struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (s *sink) Deliver(_ context.Context, a domain.Alert) error {
	s.mu.Lock()
	s.alerts = append(s.alerts, a)
	s.mu.Unlock()
	return nil
}

func wire(t *testing.T, clock func() time.Time) (*store.Store, *scheduler.Service, *sink) {
	t.Helper()
	st := store.New(nopPersister{})
	out := &sink{}
	svc, err := scheduler.New(st, defaults{}, out, scheduler.Options{Now: clock})
	require.NoError(t, err)
	st.SetInvalidator(svc)
	return st, svc, out
}

func TestEndToEnd_24hThenCompletionSuppresses(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	st, svc, out := wire(t, func() time.Time { return now })
	ctx := context.Background()

	a, err := st.Create(ctx, domain.AssignmentInput{
		Title: "Thesis draft", Subject: "History", DueDate: now.Add(23*time.Hour + 30*time.Minute),
		Priority: domain.PriorityHigh,
	})
	require.NoError(t, err)

	require.Equal(t, 1, svc.Tick(ctx, now))
	require.Len(t, out.alerts, 1)
	assert.Equal(t, "24h", out.alerts[0].Threshold)
	assert.Contains(t, out.alerts[0].Message, "24 hours")
	assert.Equal(t, "Thesis draft is due in 24 hours\nSubject: History", out.alerts[0].Body())

	_, ok, err := st.ToggleComplete(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, svc.Notified())

	for _, at := range []time.Time{now.Add(23 * time.Hour), now.Add(23*time.Hour + 22*time.Minute), now.Add(24 * time.Hour)} {
		assert.Zero(t, svc.Tick(ctx, at))
	}
	assert.Len(t, out.alerts, 1)
}

func TestEndToEnd_DeletionDoesNotLeak(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	st, svc, out := wire(t, func() time.Time { return now })
	ctx := context.Background()

	a, err := st.Create(ctx, domain.AssignmentInput{Title: "A", Subject: "S", DueDate: now.Add(-time.Minute)})
	require.NoError(t, err)
	require.Equal(t, 1, svc.Tick(ctx, now))
	require.Equal(t, []scheduler.Key{{AssignmentID: a.ID, Label: scheduler.LabelOverdue}}, svc.Notified())

	ok, err := st.Delete(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, svc.Notified())

	b, err := st.Create(ctx, domain.AssignmentInput{Title: "B", Subject: "S", DueDate: now.Add(-time.Minute)})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 1, svc.Tick(ctx, now))
	assert.Equal(t, b.ID, out.alerts[1].AssignmentID)
}

func TestEndToEnd_ConcurrentMutationAndTick(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	st, svc, _ := wire(t, func() time.Time { return now })
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			a, _ := st.Create(ctx, domain.AssignmentInput{Title: "x", Subject: "s", DueDate: now.Add(-time.Second)})
			_, _ = st.Delete(ctx, a.ID)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			svc.Tick(ctx, now)
		}
	}()
	wg.Wait()

	assert.Empty(t, st.List())
	assert.Empty(t, svc.Notified())
}
