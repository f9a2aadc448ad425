package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"deadlinemaster/internal/domain"
)

// Log writes alerts to the application log. It is always available.
type Log struct{}

func (Log) Name() string { return "log" }

func (Log) RequestPermission(context.Context) domain.Permission { return domain.PermissionGranted }

func (Log) Permission() domain.Permission { return domain.PermissionGranted }

func (Log) Deliver(_ context.Context, title, body string) error {
	log.Info().Str("channel", "log").Str("title", title).Msg(body)
	return nil
}
