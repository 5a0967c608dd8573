package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"echomind/internal/tui"
)

var logFile = "echomind.log"

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive chat (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", logFile,
		"File the interactive chat writes its log to")
	rootCmd.AddCommand(cmd)
}

func runChat(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// The terminal belongs to the UI while it runs.
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.WithMessage(err, "could not open log file")
	}
	defer f.Close()
	log.SetOutput(f)

	a, err := newApp(ctx)
	if err != nil {
		return errors.WithMessage(err, "could not start echomind")
	}
	defer a.Close()

	if _, err := tea.NewProgram(tui.New(ctx, a.svc), tea.WithAltScreen()).Run(); err != nil {
		return errors.WithMessage(err, "chat ui failed")
	}
	return nil
}
