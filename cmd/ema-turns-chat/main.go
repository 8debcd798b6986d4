// Command ema-turns-chat is a terminal client for an in-process
// conversation coordinator. Typed lines are submitted as fragments, ctrl+r
// records a spoken fragment and assistant speech is played locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	orchestration "github.com/koscakluka/ema-turns/core"
	"github.com/koscakluka/ema-turns/core/audio"
	"github.com/koscakluka/ema-turns/core/audio/miniaudio"
	"github.com/koscakluka/ema-turns/core/audio/portaudio"
	"github.com/koscakluka/ema-turns/core/events"
	"github.com/koscakluka/ema-turns/internal/app"
	"github.com/koscakluka/ema-turns/internal/config"
)

const portaudioBufferSize = 1024

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ema-turns-chat: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("ema-turns-chat", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	audioBackend := flags.String("audio", "miniaudio", "audio backend: miniaudio, portaudio or none")
	logPath := flags.String("log", "", "write logs to this file instead of discarding them")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// The terminal belongs to the UI, logs go to a file or nowhere.
	var logOutput io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOutput = f
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: slog.LevelDebug})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	coordinator, err := app.BuildCoordinator(cfg)
	if err != nil {
		return err
	}

	device, err := openDevice(*audioBackend)
	if err != nil {
		return err
	}
	if device != nil {
		defer device.Close()
	}

	var playback *speaker
	if device != nil && coordinator.CanSpeak() {
		playback = newSpeaker(device)
		go playback.run(ctx)
	}

	var program *tea.Program
	sessionOpts := []orchestration.SessionOption{
		orchestration.WithEventHandler(func(event events.Event) {
			if program != nil {
				program.Send(eventMsg{event: event})
			}
		}),
	}
	if playback != nil {
		sessionOpts = append(sessionOpts, orchestration.WithSpeechChunkHandler(playback.enqueue))
	}
	session := coordinator.NewSession(ctx, sessionOpts...)
	defer func() {
		session.Close()
		session.Wait()
	}()

	var recorder audio.Recorder
	if device != nil && coordinator.CanTranscribe() {
		recorder = device
	}

	model := newModel(ctx, coordinator, session, recorder)
	program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// openDevice returns nil for the "none" backend.
func openDevice(backend string) (audio.Device, error) {
	playback := audio.GetDefaultOutputEncodingInfo()
	capture := audio.GetDefaultEncodingInfo()

	switch backend {
	case "none":
		return nil, nil
	case "miniaudio":
		client, err := miniaudio.NewClient(playback, capture)
		if err != nil {
			return nil, fmt.Errorf("miniaudio: %w", err)
		}
		return client, nil
	case "portaudio":
		client, err := portaudio.NewClient(playback, capture, portaudioBufferSize)
		if err != nil {
			return nil, fmt.Errorf("portaudio: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}
}
