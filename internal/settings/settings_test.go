package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deadlinemaster/internal/domain"
	"deadlinemaster/internal/store"
)

type brokenStore struct{ loadErr, saveErr error }

func (b brokenStore) LoadSettings(context.Context) (domain.NotificationSettings, bool, error) {
	return domain.NotificationSettings{}, b.loadErr != nil, b.loadErr
}

func (b brokenStore) SaveSettings(context.Context, domain.NotificationSettings) error { return b.saveErr }

func TestLoad_DefaultsWhenAbsent(t *testing.T) {
	bo, err := store.OpenBolt(filepath.Join(t.TempDir(), "s.bolt"))
	require.NoError(t, err)
	defer bo.Close()

	m := Load(context.Background(), bo)
	assert.Equal(t, domain.DefaultNotificationSettings(), m.Current())
}

func TestLoad_DefaultsWhenCorrupt(t *testing.T) {
	m := Load(context.Background(), brokenStore{loadErr: errors.New("bad json")})
	assert.Equal(t, domain.DefaultNotificationSettings(), m.Current())
}

func TestUpdateAndToggle_Persist(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "s.db")
	sq, err := store.OpenSQLite(path)
	require.NoError(t, err)

	m := Load(ctx, sq)
	ns, err := m.Toggle(ctx, "notify10min")
	require.NoError(t, err)
	assert.False(t, ns.Notify10min)

	_, err = m.Toggle(ctx, "volume")
	assert.ErrorIs(t, err, ErrUnknownSetting)
	assert.False(t, m.Current().Notify10min)

	require.NoError(t, sq.Close())
	sq, err = store.OpenSQLite(path)
	require.NoError(t, err)
	defer sq.Close()

	again := Load(ctx, sq)
	want := domain.DefaultNotificationSettings()
	want.Notify10min = false
	assert.Equal(t, want, again.Current())
}

func TestUpdate_SaveErrorKeepsValue(t *testing.T) {
	m := Load(context.Background(), brokenStore{saveErr: errors.New("read-only")})
	err := m.Update(context.Background(), domain.NotificationSettings{})
	assert.Error(t, err)
	assert.False(t, m.Current().Enabled)
}
