package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"deadlinemaster/internal/api"
	"deadlinemaster/internal/config"
	"deadlinemaster/internal/metrics"
	"deadlinemaster/internal/notify"
	"deadlinemaster/internal/scheduler"
	"deadlinemaster/internal/settings"
	"deadlinemaster/internal/store"
	"deadlinemaster/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(v *viper.Viper, load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the deadline alert scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			setupLogging(cfg, os.Stdout)
			debug, _ := cmd.Flags().GetBool("debug")
			return serve(cfg, debug)
		},
	}
	cmd.Flags().String("addr", ":8080", "HTTP bind address")
	cmd.Flags().String("driver", "sqlite", "storage driver (sqlite or bolt)")
	cmd.Flags().String("db", "deadlinemaster.db", "storage file path")
	cmd.Flags().Duration("interval", scheduler.DefaultInterval, "alert evaluation interval")
	cmd.Flags().Int("workers", 4, "concurrent alert deliveries")
	cmd.Flags().String("digest", "", "cron expression for the upcoming-deadlines digest")
	cmd.Flags().Bool("debug", false, "expose pprof handlers")
	bindFlags(v, cmd, map[string]string{
		"addr":     "addr",
		"driver":   "storage.driver",
		"db":       "storage.path",
		"interval": "alerts.interval",
		"workers":  "alerts.workers",
		"digest":   "alerts.digest_cron",
	})
	return cmd
}

func buildChannels(ctx context.Context, cfg *config.Config) []notify.Channel {
	var chans []notify.Channel
	if cfg.Channels.Desktop {
		d := notify.NewDesktop(cfg.Channels.Sound)
		log.Info().Str("channel", d.Name()).Str("permission", string(d.RequestPermission(ctx))).Msg("notification channel ready")
		chans = append(chans, d)
	}
	if cfg.Channels.Command != "" {
		chans = append(chans, notify.Command{Path: cfg.Channels.Command, Args: cfg.Channels.CommandArgs})
	}
	if cfg.Channels.WebhookURL != "" {
		chans = append(chans, notify.NewWebhook(cfg.Channels.WebhookURL, cfg.Alerts.DeliveryTimeout))
	}
	if cfg.Channels.Log || len(chans) == 0 {
		chans = append(chans, notify.Log{})
	}
	return chans
}

func serve(cfg *config.Config, debug bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := store.OpenOrRecover(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	log.Info().Str("driver", cfg.Storage.Driver).Str("path", cfg.Storage.Path).Msg("storage opened")

	m := metrics.New()
	st := store.New(backend)
	st.SetMetrics(m)
	st.Load(ctx)
	set := settings.Load(ctx, backend)

	chans := buildChannels(ctx, cfg)
	pool := worker.NewPool(chans, worker.Options{
		Workers:   cfg.Alerts.Workers,
		QueueSize: cfg.Alerts.QueueSize,
		Timeout:   cfg.Alerts.DeliveryTimeout,
		History:   backend,
		Metrics:   m,
	})

	sched, err := scheduler.New(st, set, pool, scheduler.Options{
		Interval:   cfg.Alerts.Interval,
		DigestSpec: cfg.Alerts.DigestCron,
		Metrics:    m,
	})
	if err != nil {
		backend.Close()
		return err
	}
	st.SetInvalidator(sched)

	pool.Start(ctx)
	go sched.Run(ctx)

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.NewServer(api.Deps{
			Store: st, Scheduler: sched, Settings: set, Notifier: notify.Multi(chans),
			History: backend, Metrics: m, Debug: debug,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
		"alerts": func(ctx context.Context) error {
			sched.Stop()
			return pool.Shutdown(ctx)
		},
	})

	code := <-wait
	if err := backend.Close(); err != nil {
		log.Error().Err(err).Msg("close storage")
	}
	log.Info().Int("code", code).Msg("shut down")
	if code != 0 {
		return fmt.Errorf("shutdown exited with code %d", code)
	}
	return nil
}
