// Package notify delivers alerts to the user through one or more channels.
package notify

import (
	"context"
	"errors"
	"fmt"

	"deadlinemaster/internal/domain"
)

var (
	// ErrPermission means the user has not granted notification permission.
	ErrPermission = errors.New("notification permission not granted")
	// ErrUnsupported means the platform has no notification capability.
	ErrUnsupported = errors.New("notifications unsupported on this platform")
)

type Channel interface {
	Name() string
	RequestPermission(ctx context.Context) domain.Permission
	Permission() domain.Permission
	Deliver(ctx context.Context, title, body string) error
}

// Soft reports whether err is a missing-capability failure rather than a fault.
func Soft(err error) bool {
	return errors.Is(err, ErrPermission) || errors.Is(err, ErrUnsupported)
}

// Multi fans a delivery out to every channel.
type Multi []Channel

func (m Multi) Name() string { return "multi" }

func (m Multi) RequestPermission(ctx context.Context) domain.Permission {
	for _, c := range m {
		c.RequestPermission(ctx)
	}
	return m.Permission()
}

// Permission is granted when any channel is; denied when every channel is.
func (m Multi) Permission() domain.Permission {
	if len(m) == 0 {
		return domain.PermissionDenied
	}
	denied := 0
	for _, c := range m {
		switch c.Permission() {
		case domain.PermissionGranted:
			return domain.PermissionGranted
		case domain.PermissionDenied:
			denied++
		}
	}
	if denied == len(m) {
		return domain.PermissionDenied
	}
	return domain.PermissionDefault
}

func (m Multi) Deliver(ctx context.Context, title, body string) error {
	if len(m) == 0 {
		return ErrUnsupported
	}
	var errs []error
	for _, c := range m {
		if err := c.Deliver(ctx, title, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}
