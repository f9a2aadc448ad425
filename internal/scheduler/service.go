package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"deadlinemaster/internal/domain"
	"deadlinemaster/internal/metrics"
)

var ErrIntervalTooLong = errors.New("tick interval exceeds half the narrowest threshold window")

const (
	DefaultInterval = 60 * time.Second

	digestWindow = 24 * time.Hour
	digestTitles = 3
)

// Source exposes the assignment collection under its owner's lock.
type Source interface {
	View(fn func([]domain.Assignment))
}

type SettingsProvider interface {
	Current() domain.NotificationSettings
}

// Deliverer hands an alert off for delivery. It must not block on the channel itself.
type Deliverer interface {
	Deliver(ctx context.Context, a domain.Alert) error
}

type Options struct {
	Interval   time.Duration
	DigestSpec string
	Now        func() time.Time
	Metrics    *metrics.Metrics
}

// Service evaluates assignments against the alert thresholds and owns the
// set of keys already alerted.
type Service struct {
	src      Source
	settings SettingsProvider
	out      Deliverer
	metrics  *metrics.Metrics
	now      func() time.Time

	cron       *cron.Cron
	digestSpec string
	stop       chan struct{}
	stopOnce   sync.Once
	interval   time.Duration

	mu       sync.Mutex // taken after the source lock, never before
	notified map[Key]struct{}
}

func New(src Source, settings SettingsProvider, out Deliverer, opts Options) (*Service, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Interval > MaxInterval {
		return nil, fmt.Errorf("%w: %s > %s", ErrIntervalTooLong, opts.Interval, MaxInterval)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Service{
		src:        src,
		settings:   settings,
		out:        out,
		metrics:    opts.Metrics,
		now:        opts.Now,
		cron:       cron.New(),
		digestSpec: opts.DigestSpec,
		stop:       make(chan struct{}),
		interval:   opts.Interval,
		notified:   make(map[Key]struct{}),
	}
	if opts.DigestSpec != "" {
		if _, err := s.cron.AddFunc(opts.DigestSpec, s.runDigest); err != nil {
			return nil, fmt.Errorf("digest schedule %q: %w", opts.DigestSpec, err)
		}
	}
	return s, nil
}

// Run evaluates once immediately and then on every tick until ctx is done or Stop is called.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.digestSpec != "" {
		s.cron.Start()
		defer s.cron.Stop()
		if next, ok := s.NextDigest(s.now()); ok {
			log.Info().Time("next_digest", next).Msg("digest scheduled")
		}
	}

	log.Info().Dur("interval", s.interval).Str("digest", s.digestSpec).Msg("alert scheduler started")
	s.Tick(ctx, s.now())

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("alert scheduler stopped")
			return
		case <-s.stop:
			log.Info().Msg("alert scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Tick runs one evaluation at now and returns the number of alerts emitted.
func (s *Service) Tick(ctx context.Context, now time.Time) int {
	cfg := s.settings.Current()
	if !cfg.Enabled {
		return 0
	}
	start := time.Now()

	var (
		alerts []domain.Alert
		size   int
	)
	s.src.View(func(list []domain.Assignment) {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, a := range list {
			if a.Completed {
				continue
			}
			diff := a.DueDate.Sub(now)
			for _, th := range Thresholds {
				if !th.Enabled(cfg) || !th.Contains(diff) {
					continue
				}
				k := Key{AssignmentID: a.ID, Label: th.Label}
				if _, seen := s.notified[k]; seen {
					continue
				}
				s.notified[k] = struct{}{}
				alerts = append(alerts, th.Alert(a, now))
			}
		}
		size = len(s.notified)
	})

	for _, a := range alerts {
		s.metrics.AlertFired(a.Threshold)
		s.deliver(ctx, a)
	}
	s.metrics.Tick(time.Since(start), size)

	if len(alerts) > 0 {
		log.Debug().Int("count", len(alerts)).Time("at", now).Msg("alerts emitted")
	}
	return len(alerts)
}

func (s *Service) deliver(ctx context.Context, a domain.Alert) {
	if err := s.out.Deliver(ctx, a); err != nil {
		log.Error().Err(err).
			Str("assignment_id", a.AssignmentID).
			Str("threshold", a.Threshold).
			Msg("alert delivery failed")
	}
}

// Invalidate forgets every threshold key recorded for id.
func (s *Service) Invalidate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, th := range Thresholds {
		delete(s.notified, Key{AssignmentID: id, Label: th.Label})
	}
}

func (s *Service) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified = make(map[Key]struct{})
	log.Info().Msg("alert suppression set cleared")
}

// Notified returns the recorded keys ordered by assignment id then label.
func (s *Service) Notified() []Key {
	s.mu.Lock()
	keys := make([]Key, 0, len(s.notified))
	for k := range s.notified {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].AssignmentID != keys[j].AssignmentID {
			return keys[i].AssignmentID < keys[j].AssignmentID
		}
		return keys[i].Label < keys[j].Label
	})
	return keys
}

// NextDigest reports when the digest fires next after from. It is false when
// no digest schedule is configured.
func (s *Service) NextDigest(from time.Time) (time.Time, bool) {
	if s.digestSpec == "" {
		return time.Time{}, false
	}
	next, err := NextRunTime(s.digestSpec, from)
	if err != nil {
		return time.Time{}, false
	}
	return next, true
}

func (s *Service) runDigest() {
	s.Digest(context.Background(), s.now())
}

// Digest delivers one summary of active assignments due within the next day.
// It reports whether an alert was handed off.
func (s *Service) Digest(ctx context.Context, now time.Time) bool {
	if !s.settings.Current().Enabled {
		return false
	}
	var due []domain.Assignment
	s.src.View(func(list []domain.Assignment) {
		for _, a := range list {
			diff := a.DueDate.Sub(now)
			if !a.Completed && diff > 0 && diff <= digestWindow {
				due = append(due, a)
			}
		}
	})
	if len(due) == 0 {
		return false
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].DueDate.Before(due[j].DueDate) })

	titles := make([]string, 0, digestTitles)
	for i := 0; i < len(due) && i < digestTitles; i++ {
		titles = append(titles, due[i].Title)
	}
	msg := fmt.Sprintf("%d due within 24 hours: %s", len(due), strings.Join(titles, ", "))
	if len(due) > digestTitles {
		msg += fmt.Sprintf(" and %d more", len(due)-digestTitles)
	}

	a := domain.Alert{
		Threshold: string(LabelDigest),
		Heading:   headingDigest,
		Message:   msg,
		FiredAt:   now,
	}
	s.metrics.AlertFired(a.Threshold)
	s.deliver(ctx, a)
	return true
}

// ValidateCronExpression checks a digest schedule using the parser Service uses.
func ValidateCronExpression(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}

// NextRunTime calculates the next digest time for a cron expression.
func NextRunTime(expr string, from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}
