package notify

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"deadlinemaster/internal/domain"
)

// Command runs an external program per alert, for example an audio player.
// The alert text is passed in ALERT_TITLE and ALERT_BODY.
type Command struct {
	Path string
	Args []string
}

func (c Command) Name() string { return "command" }

func (c Command) RequestPermission(ctx context.Context) domain.Permission { return c.Permission() }

func (c Command) Permission() domain.Permission {
	if c.Path == "" {
		return domain.PermissionDenied
	}
	return domain.PermissionGranted
}

func (c Command) Deliver(ctx context.Context, title, body string) error {
	if c.Path == "" {
		return fmt.Errorf("command is required")
	}
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = append(os.Environ(), "ALERT_TITLE="+title, "ALERT_BODY="+body)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("command error: %v; out=%s", err, string(out))
	}
	return nil
}
