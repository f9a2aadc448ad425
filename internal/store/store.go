// Package store holds the in-memory assignment collection and writes every
// change through to a persistence backend.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"deadlinemaster/internal/domain"
	"deadlinemaster/internal/metrics"
)

type Persister interface {
	Save(ctx context.Context, list []domain.Assignment) error
	// Load never fails; missing or corrupt data yields an empty slice.
	Load(ctx context.Context) []domain.Assignment
}

// Invalidator is told about every id whose alert state must be forgotten.
type Invalidator interface {
	Invalidate(id string)
}

type Store struct {
	mu      sync.Mutex
	items   []domain.Assignment
	p       Persister
	inv     Invalidator
	metrics *metrics.Metrics
}

func New(p Persister) *Store {
	return &Store{p: p}
}

func (s *Store) SetInvalidator(inv Invalidator) {
	s.mu.Lock()
	s.inv = inv
	s.mu.Unlock()
}

func (s *Store) SetMetrics(m *metrics.Metrics) {
	s.mu.Lock()
	s.metrics = m
	s.observe()
	s.mu.Unlock()
}

func NewID() string {
	return "asg_" + uuid.NewString()
}

// Load replaces the collection with what the persister holds.
func (s *Store) Load(ctx context.Context) int {
	loaded := Sanitize(s.p.Load(ctx))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.items {
		s.invalidate(a.ID)
	}
	s.items = loaded
	s.observe()
	log.Info().Int("count", len(loaded)).Msg("assignments loaded")
	return len(loaded)
}

// Sanitize drops records with an empty or repeated id or a zero due date.
func Sanitize(list []domain.Assignment) []domain.Assignment {
	seen := make(map[string]struct{}, len(list))
	out := make([]domain.Assignment, 0, len(list))
	for _, a := range list {
		if a.ID == "" || a.DueDate.IsZero() {
			log.Warn().Str("assignment_id", a.ID).Msg("dropping assignment without id or due date")
			continue
		}
		if _, dup := seen[a.ID]; dup {
			log.Warn().Str("assignment_id", a.ID).Msg("dropping duplicate assignment id")
			continue
		}
		seen[a.ID] = struct{}{}
		if !a.Priority.Valid() {
			a.Priority = domain.PriorityMedium
		}
		out = append(out, a)
	}
	return out
}

// Create prepends a new assignment so the list stays newest first.
func (s *Store) Create(ctx context.Context, in domain.AssignmentInput) (domain.Assignment, error) {
	a := domain.Assignment{ID: NewID()}
	apply(&a, in)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]domain.Assignment{a}, s.items...)
	s.invalidate(a.ID)
	return a, s.persist(ctx, "create", a.ID)
}

// Update replaces the editable fields. It reports false when id is unknown.
func (s *Store) Update(ctx context.Context, id string, in domain.AssignmentInput) (domain.Assignment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return domain.Assignment{}, false, nil
	}
	apply(&s.items[i], in)
	s.invalidate(id)
	return s.items[i], true, s.persist(ctx, "update", id)
}

func (s *Store) ToggleComplete(ctx context.Context, id string) (domain.Assignment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return domain.Assignment{}, false, nil
	}
	s.items[i].Completed = !s.items[i].Completed
	s.invalidate(id)
	return s.items[i], true, s.persist(ctx, "toggle", id)
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return false, nil
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	s.invalidate(id)
	return true, s.persist(ctx, "delete", id)
}

func (s *Store) Get(id string) (domain.Assignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		return s.items[i], true
	}
	return domain.Assignment{}, false
}

func (s *Store) List() []domain.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// View runs fn with a copy of the collection while the store lock is held.
// fn must not call back into the Store.
func (s *Store) View(fn func([]domain.Assignment)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.snapshot())
}

func apply(a *domain.Assignment, in domain.AssignmentInput) {
	a.Title = in.Title
	a.Subject = in.Subject
	a.Description = in.Description
	a.DueDate = in.DueDate
	a.Priority = in.Priority
	if !a.Priority.Valid() {
		a.Priority = domain.PriorityMedium
	}
}

func (s *Store) index(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshot() []domain.Assignment {
	out := make([]domain.Assignment, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) invalidate(id string) {
	if s.inv != nil {
		s.inv.Invalidate(id)
	}
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context, op, id string) error {
	s.observe()
	if err := s.p.Save(ctx, s.snapshot()); err != nil {
		log.Error().Err(err).Str("op", op).Str("assignment_id", id).Msg("persist assignments")
		return fmt.Errorf("persist after %s: %w", op, err)
	}
	return nil
}

func (s *Store) observe() {
	if s.metrics == nil {
		return
	}
	done := 0
	for _, a := range s.items {
		if a.Completed {
			done++
		}
	}
	s.metrics.Assignments(len(s.items)-done, done)
}

type Status string

const (
	StatusAll       Status = "all"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

type SortKey string

const (
	SortNone     SortKey = ""
	SortDueDate  SortKey = "dueDate"
	SortPriority SortKey = "priority"
)

type Filter struct {
	Status Status
	Search string
	Sort   SortKey
}

// Query returns the assignments matching f in the requested order.
// Without a sort key the list keeps its newest-first order.
func (s *Store) Query(f Filter) []domain.Assignment {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	list := s.List()

	out := list[:0]
	for _, a := range list {
		switch f.Status {
		case StatusActive:
			if a.Completed {
				continue
			}
		case StatusCompleted:
			if !a.Completed {
				continue
			}
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(a.Title), q) &&
			!strings.Contains(strings.ToLower(a.Subject), q) {
			continue
		}
		out = append(out, a)
	}

	switch f.Sort {
	case SortDueDate:
		sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	case SortPriority:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Priority.Rank() > out[j].Priority.Rank() })
	}
	return out
}

type PriorityCount struct {
	Priority domain.Priority `json:"name"`
	Count    int             `json:"value"`
}

type Stats struct {
	Total        int             `json:"total"`
	Completed    int             `json:"completed"`
	Pending      int             `json:"pending"`
	HighPriority int             `json:"highPriority"`
	Overdue      int             `json:"overdue"`
	Upcoming24h  int             `json:"upcoming24h"`
	Priorities   []PriorityCount `json:"priorityData"`
}

func (s *Store) Stats(now time.Time) Stats {
	list := s.List()
	st := Stats{Total: len(list), Priorities: []PriorityCount{}}
	counts := map[domain.Priority]int{}
	for _, a := range list {
		counts[a.Priority]++
		if a.Completed {
			st.Completed++
			continue
		}
		if a.Priority == domain.PriorityHigh {
			st.HighPriority++
		}
		diff := a.DueDate.Sub(now)
		if diff < 0 {
			st.Overdue++
		}
		if diff > 0 && diff <= 24*time.Hour {
			st.Upcoming24h++
		}
	}
	st.Pending = st.Total - st.Completed
	for _, p := range []domain.Priority{domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow} {
		if n := counts[p]; n > 0 {
			st.Priorities = append(st.Priorities, PriorityCount{Priority: p, Count: n})
		}
	}
	return st
}

// Upcoming lists active assignments due in (now, now+within], soonest first.
func (s *Store) Upcoming(now time.Time, within time.Duration, limit int) []domain.Assignment {
	var out []domain.Assignment
	for _, a := range s.List() {
		diff := a.DueDate.Sub(now)
		if !a.Completed && diff > 0 && diff <= within {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
