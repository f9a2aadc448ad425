package notify

import (
	"context"
	"sync"

	"github.com/gen2brain/beeep"

	"deadlinemaster/internal/domain"
)

// Desktop shows a native notification and optionally beeps.
type Desktop struct {
	Sound       bool
	Unsupported bool

	notify func(title, body string) error
	beep   func() error

	mu   sync.Mutex
	perm domain.Permission
}

func NewDesktop(sound bool) *Desktop {
	return &Desktop{
		Sound:  sound,
		notify: func(title, body string) error { return beeep.Notify(title, body, "") },
		beep:   func() error { return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration) },
		perm:   domain.PermissionDefault,
	}
}

func (d *Desktop) Name() string { return "desktop" }

func (d *Desktop) RequestPermission(context.Context) domain.Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Unsupported {
		d.perm = domain.PermissionDenied
	} else if d.perm != domain.PermissionDenied {
		d.perm = domain.PermissionGranted
	}
	return d.perm
}

func (d *Desktop) Permission() domain.Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.perm
}

func (d *Desktop) Deliver(_ context.Context, title, body string) error {
	if d.Unsupported {
		return ErrUnsupported
	}
	if d.Permission() != domain.PermissionGranted {
		return ErrPermission
	}
	if err := d.notify(title, body); err != nil {
		return err
	}
	if d.Sound {
		// a failed beep does not fail the notification
		_ = d.beep()
	}
	return nil
}
