package texttospeech

import (
	"context"
	"time"
)

// Waveform is a block of mono synthesized speech.
type Waveform struct {
	SampleRate int
	Samples    []float32
}

func (w Waveform) IsEmpty() bool {
	return len(w.Samples) == 0
}

func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Synthesizer turns one chunk of text into speech. Implementations must be
// safe for concurrent use, the scheduler calls Synthesize from several
// workers at once.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Waveform, error)
}

type SynthesizerFunc func(ctx context.Context, text string) (Waveform, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, text string) (Waveform, error) {
	return f(ctx, text)
}

// JoinWaveforms concatenates waveforms that share a sample rate. Empty
// waveforms are skipped, the first non-empty one decides the rate and
// waveforms at any other rate are dropped.
func JoinWaveforms(waveforms ...Waveform) Waveform {
	joined := Waveform{}
	for _, waveform := range waveforms {
		if waveform.IsEmpty() {
			continue
		}
		if joined.SampleRate == 0 {
			joined.SampleRate = waveform.SampleRate
		}
		if waveform.SampleRate != joined.SampleRate {
			continue
		}
		joined.Samples = append(joined.Samples, waveform.Samples...)
	}
	return joined
}
