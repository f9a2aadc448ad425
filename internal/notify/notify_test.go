package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deadlinemaster/internal/domain"
)

func fakeDesktop(sound bool) (*Desktop, *[]string) {
	var calls []string
	d := NewDesktop(sound)
	d.notify = func(title, body string) error {
		calls = append(calls, "notify:"+title)
		return nil
	}
	d.beep = func() error {
		calls = append(calls, "beep")
		return errors.New("no speaker")
	}
	return d, &calls
}

func TestDesktop_PermissionFlow(t *testing.T) {
	ctx := context.Background()
	d, calls := fakeDesktop(true)

	assert.Equal(t, domain.PermissionDefault, d.Permission())
	assert.ErrorIs(t, d.Deliver(ctx, "t", "b"), ErrPermission)
	assert.Empty(t, *calls)

	assert.Equal(t, domain.PermissionGranted, d.RequestPermission(ctx))
	require.NoError(t, d.Deliver(ctx, "t", "b"))
	assert.Equal(t, []string{"notify:t", "beep"}, *calls)

	d.perm = domain.PermissionDenied // user blocked notifications in the OS
	assert.ErrorIs(t, d.Deliver(ctx, "t", "b"), ErrPermission)
	assert.Equal(t, domain.PermissionDenied, d.RequestPermission(ctx))
}

func TestDesktop_Unsupported(t *testing.T) {
	d, calls := fakeDesktop(false)
	d.Unsupported = true

	assert.Equal(t, domain.PermissionDenied, d.RequestPermission(context.Background()))
	err := d.Deliver(context.Background(), "t", "b")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.True(t, Soft(err))
	assert.Empty(t, *calls)
}

func TestWebhook_Deliver(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, 0)
	assert.Equal(t, domain.PermissionGranted, w.RequestPermission(context.Background()))
	require.NoError(t, w.Deliver(context.Background(), "⏰ Deadline Alert", "Essay is due in 1 hour"))
	assert.Equal(t, webhookPayload{Title: "⏰ Deadline Alert", Body: "Essay is due in 1 hour"}, got)
}

func TestWebhook_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, 0).Deliver(context.Background(), "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.False(t, Soft(err))

	assert.Equal(t, domain.PermissionDenied, (&Webhook{}).Permission())
}

func TestCommand_PassesAlertInEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	out := filepath.Join(t.TempDir(), "alert.txt")
	c := Command{Path: "sh", Args: []string{"-c", `printf '%s|%s' "$ALERT_TITLE" "$ALERT_BODY" > ` + out}}

	require.NoError(t, c.Deliver(context.Background(), "Heads up", "Lab is now overdue"))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Heads up|Lab is now overdue", string(data))

	assert.Error(t, Command{Path: "sh", Args: []string{"-c", "exit 3"}}.Deliver(context.Background(), "t", "b"))
	assert.Equal(t, domain.PermissionDenied, Command{}.Permission())
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	d, _ := fakeDesktop(false)
	m := Multi{d, Log{}}

	assert.Equal(t, domain.PermissionGranted, m.Permission())
	err := m.Deliver(ctx, "t", "b")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermission)
	assert.Contains(t, err.Error(), "desktop")

	m.RequestPermission(ctx)
	assert.NoError(t, m.Deliver(ctx, "t", "b"))

	assert.Equal(t, domain.PermissionDenied, Multi{}.Permission())
	assert.Equal(t, domain.PermissionDefault, Multi{NewDesktop(false)}.Permission())
	assert.ErrorIs(t, Multi{}.Deliver(ctx, "t", "b"), ErrUnsupported)
}
