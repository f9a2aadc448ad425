package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"deadlinemaster/internal/config"
	"deadlinemaster/internal/tui"
)

func newWatchCmd(v *viper.Viper, load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show live countdowns from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			setupLogging(cfg, os.Stderr)

			m := tui.New(tui.NewClient(cfg.Display.Server), cfg.Display.Refresh, cfg.Display.Reload, nil)
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().String("server", "http://localhost:8080", "server base URL")
	bindFlags(v, cmd, map[string]string{"server": "display.server"})
	return cmd
}
