// Package settings keeps the runtime notification settings.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"deadlinemaster/internal/domain"
	"deadlinemaster/internal/store"
)

var ErrUnknownSetting = errors.New("unknown setting")

type Manager struct {
	mu    sync.RWMutex
	cur   domain.NotificationSettings
	store store.SettingsStore
}

// Load reads the persisted settings, falling back to defaults when they are
// absent or unreadable.
func Load(ctx context.Context, st store.SettingsStore) *Manager {
	m := &Manager{cur: domain.DefaultNotificationSettings(), store: st}
	ns, found, err := st.LoadSettings(ctx)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("notification settings unreadable, using defaults")
	case found:
		m.cur = ns
	}
	log.Info().Interface("settings", m.cur).Msg("notification settings loaded")
	return m
}

func (m *Manager) Current() domain.NotificationSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Update replaces the settings and persists them. The new value applies even
// when persisting fails.
func (m *Manager) Update(ctx context.Context, ns domain.NotificationSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set(ctx, ns)
}

func (m *Manager) set(ctx context.Context, ns domain.NotificationSettings) error {
	m.cur = ns
	if err := m.store.SaveSettings(ctx, ns); err != nil {
		log.Error().Err(err).Msg("persist notification settings")
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Toggle flips one flag by its JSON name and returns the result.
func (m *Manager) Toggle(ctx context.Context, name string) (domain.NotificationSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := m.cur
	flag := field(&ns, name)
	if flag == nil {
		return ns, fmt.Errorf("%w %q", ErrUnknownSetting, name)
	}
	*flag = !*flag
	return ns, m.set(ctx, ns)
}

func field(ns *domain.NotificationSettings, name string) *bool {
	switch name {
	case "enabled":
		return &ns.Enabled
	case "notify24h":
		return &ns.Notify24h
	case "notify1h":
		return &ns.Notify1h
	case "notify10min":
		return &ns.Notify10min
	case "notifyOverdue":
		return &ns.NotifyOverdue
	}
	return nil
}
