package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/hearcheck/internal/audiometry"
	"github.com/RMahshie/hearcheck/internal/config"
	"github.com/RMahshie/hearcheck/internal/repository/backend"
	"github.com/RMahshie/hearcheck/internal/tone"
	"github.com/RMahshie/hearcheck/internal/tui"
)

var (
	audioBackend string
	logFile      string
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run a hearing test",
	Long: `Plays tones one ear at a time from 250 Hz to 8000 Hz. Press space to play
the tone, y if you heard it and n if you did not. Use headphones.`,
	RunE: runTest,
}

func init() {
	testCmd.Flags().StringVar(&audioBackend, "audio", "", "audio output: ffplay or oto (default from AUDIO_BACKEND)")
	testCmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file while the test runs")
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	restore, err := redirectLogs(logFile)
	if err != nil {
		return err
	}
	defer restore()

	results, store, err := backend.OpenResults(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening result store: %w", err)
	}
	defer store.Close()

	audio := cfg.Audio
	if audioBackend != "" {
		audio.Backend = audioBackend
	}
	factory, err := localOutput(audio)
	if err != nil {
		return err
	}

	sessions := audiometry.NewManager(audiometry.ManagerConfig{
		Ladder:       cfg.Test.Ladder(),
		ToneDuration: cfg.Test.ToneDuration,
		AutoPlay:     cfg.Test.AutoPlay,
		SessionTTL:   cfg.Test.SessionTTL,
	}, factory, results, audiometry.SystemClock)
	defer sessions.Close()

	sess, err := sessions.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting test: %w", err)
	}

	final, err := tea.NewProgram(tui.New(sess), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("running test: %w", err)
	}

	res, ok := final.(tui.Model).Result()
	if !ok {
		fmt.Println("Test cancelled. Nothing was saved.")
		return nil
	}
	fmt.Printf("Left ear:  %s (%.1f dB HL, score %d/10)\n", res.Summary.Left.Condition, res.Summary.Left.Average, res.Summary.Left.Score)
	fmt.Printf("Right ear: %s (%.1f dB HL, score %d/10)\n", res.Summary.Right.Condition, res.Summary.Right.Average, res.Summary.Right.Score)
	if res.Summary.Asymmetry {
		fmt.Println(res.Summary.AsymmetryWarning)
	}
	if !res.Saved {
		return fmt.Errorf("result was not saved")
	}
	return nil
}

// localOutput opens speakers on this machine. Browser streaming needs the server.
func localOutput(audio config.Audio) (audiometry.OutputFactory, error) {
	switch audio.Backend {
	case "ffplay":
		return func(uuid.UUID) (tone.Output, error) {
			return tone.NewFFplayOutput(audio.FFplayCmd)
		}, nil
	case "oto":
		return func(uuid.UUID) (tone.Output, error) {
			return tone.NewOtoOutput(tone.DefaultFormat)
		}, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("audio backend %q cannot play locally; use --audio ffplay or --audio oto", audio.Backend)
	}
}

// redirectLogs keeps log output off the terminal UI
func redirectLogs(path string) (func(), error) {
	prev := log.Logger
	if path == "" {
		log.Logger = zerolog.New(io.Discard)
		return func() { log.Logger = prev }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return func() {
		log.Logger = prev
		_ = f.Close()
	}, nil
}
