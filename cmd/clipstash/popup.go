package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/popup"
	"go.klb.dev/clipstash/internal/tui"
)

func newPopupCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "popup",
		Short: "Open the clipboard history popup",
		Long: `Opens the terminal popup. While it is open the system clipboard is polled and
every new text or image is added to the history. Closing it stops the capture.

Keys: up/down move, enter/c copy, d delete, / search, esc clear search,
ctrl+r refresh, n dismiss the note, q quit.

Logs go to --log-file (default: clipstash/popup.log in the user cache dir).`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runPopup(cmd, v) },
	}
	addPollFlags(cmd)
	return cmd
}

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Capture clipboard changes without a UI",
		Long: `Runs the popup's capture loop headless until interrupted. The daemon sees it
as an open popup.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runWatch(cmd, v) },
	}
	addPollFlags(cmd)
	return cmd
}

func addPollFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("poll-interval", popup.DefaultInterval, "clipboard poll interval")
	addClientFlags(cmd)
	addLoggingFlags(cmd)
}

func newController(cmd *cobra.Command, v *viper.Viper) (*popup.Controller, func(), error) {
	svc, transport, err := dialService(cmd, v)
	if err != nil {
		return nil, nil, err
	}
	cb := clip.New()
	slog.Info("popup connecting", "transport", transport, "clipboard", cb.Name())

	ctrl := popup.New(svc, cb, popup.Options{
		Interval: v.GetDuration("poll-interval"),
		Capacity: daemonCapacity(cmd.Context(), svc),
	})
	cleanup := func() {
		cb.Close()
		_ = svc.Close()
	}
	return ctrl, cleanup, nil
}

func runPopup(cmd *cobra.Command, v *viper.Viper) error {
	logs, err := setupLogging(v, popupLogFile())
	if err != nil {
		return err
	}
	defer logs.Close()

	ctrl, cleanup, err := newController(cmd, v)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(cmd.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ctrl.Run(ctx)
	}()

	_, runErr := tea.NewProgram(tui.New(ctx, ctrl), tea.WithAltScreen()).Run()
	cancel()
	<-done
	if runErr != nil {
		return fmt.Errorf("popup: %w", runErr)
	}
	return nil
}

func runWatch(cmd *cobra.Command, v *viper.Viper) error {
	logs, err := setupLogging(v, "")
	if err != nil {
		return err
	}
	defer logs.Close()

	ctrl, cleanup, err := newController(cmd, v)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		for range ctrl.Updates() {
			if ctrl.State() == popup.StateLoaded {
				slog.Debug("history", "items", len(ctrl.Items()))
			}
		}
	}()
	return ctrl.Run(ctx)
}

// popupLogFile keeps the TUI's logs off the terminal it draws on.
func popupLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "clipstash-popup.log")
	}
	dir = filepath.Join(dir, "clipstash")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return filepath.Join(os.TempDir(), "clipstash-popup.log")
	}
	return filepath.Join(dir, "popup.log")
}
