package main

import (
	"context"
	"log/slog"

	"github.com/koscakluka/ema-turns/core/audio"
	"github.com/koscakluka/ema-turns/core/events"
)

const speakerQueueSize = 64

// speaker plays assistant speech chunks one after another in the order they
// were delivered.
type speaker struct {
	player audio.Player
	queue  chan events.AssistantSpeechChunk
}

func newSpeaker(player audio.Player) *speaker {
	return &speaker{
		player: player,
		queue:  make(chan events.AssistantSpeechChunk, speakerQueueSize),
	}
}

// enqueue never blocks the delivering turn. Chunks that do not fit are
// dropped.
func (s *speaker) enqueue(chunk events.AssistantSpeechChunk) {
	if chunk.Skipped() {
		return
	}
	select {
	case s.queue <- chunk:
	default:
		slog.Warn("playback queue full, dropping chunk", "turn", chunk.TurnID, "index", chunk.Index)
	}
}

func (s *speaker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.player.ClearBuffer()
			return
		case chunk := <-s.queue:
			s.play(ctx, chunk)
		}
	}
}

func (s *speaker) play(ctx context.Context, chunk events.AssistantSpeechChunk) {
	if rate := s.player.EncodingInfo().SampleRate; chunk.Waveform.SampleRate != rate {
		slog.Warn("chunk sample rate does not match the player",
			"turn", chunk.TurnID,
			"index", chunk.Index,
			"chunk_rate", chunk.Waveform.SampleRate,
			"player_rate", rate,
		)
		return
	}
	if err := s.player.Play(ctx, audio.Float32ToPCM16(chunk.Waveform.Samples)); err != nil && ctx.Err() == nil {
		slog.Error("failed to play chunk", "turn", chunk.TurnID, "index", chunk.Index, "error", err)
	}
}
