package main

import (
	"fmt"

	orchestration "github.com/koscakluka/ema-turns/core"
	"github.com/koscakluka/ema-turns/core/transport/wsapi"
	"github.com/koscakluka/ema-turns/internal/app"
	"github.com/koscakluka/ema-turns/internal/config"
)

type components struct {
	coordinator *orchestration.Coordinator
	assistant   *wsapi.Handler
}

func buildComponents(cfg config.Config) (*components, error) {
	coordinator, err := app.BuildCoordinator(cfg)
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}

	return &components{
		coordinator: coordinator,
		assistant: wsapi.NewHandler(coordinator,
			wsapi.WithPingInterval(cfg.Server.PingInterval),
			wsapi.WithMaxMessageBytes(cfg.Server.MaxMessageBytes),
		),
	}, nil
}
