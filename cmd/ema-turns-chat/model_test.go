package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/koscakluka/ema-turns/core/audio"
	"github.com/koscakluka/ema-turns/core/events"
	"github.com/koscakluka/ema-turns/core/texttospeech"
)

func sizedModel(t *testing.T, recorder audio.Recorder) model {
	t.Helper()
	m := newModel(context.Background(), nil, nil, recorder)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(model)
}

func TestModelTracksTurnProcessing(t *testing.T) {
	m := sizedModel(t, nil)

	m = m.handleEvent(events.NewTurnStarted("turn-1", "hello there", 0.9))
	if !m.processing {
		t.Fatalf("expected processing after turn started")
	}
	m = m.handleEvent(events.NewAssistantResponseFinal("turn-1", "Hi!"))
	m = m.handleEvent(events.NewTurnCompleted("turn-1", "hello there", 0.9, "Hi!", nil))
	if m.processing {
		t.Fatalf("expected processing to stop after turn completed")
	}

	if !strings.Contains(m.viewport.View(), "Hi!") {
		t.Fatalf("expected reply in the viewport, got %q", m.viewport.View())
	}
}

func TestModelAdmissionFailureKeepsProcessing(t *testing.T) {
	m := sizedModel(t, nil)
	m = m.handleEvent(events.NewTurnStarted("turn-1", "hello", 0.9))

	m = m.handleEvent(events.NewTurnFailed("", "transcription failed", errors.New("boom")))
	if !m.processing {
		t.Fatalf("expected a failure without a turn id to leave the running turn alone")
	}

	m = m.handleEvent(events.NewTurnFailed("turn-1", "timeout", nil))
	if m.processing {
		t.Fatalf("expected the turn failure to stop processing")
	}
	if len(m.lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(m.lines))
	}
}

func TestModelBusyLine(t *testing.T) {
	m := sizedModel(t, nil)
	m = m.handleEvent(events.NewTurnBusy("wait"))

	if len(m.lines) != 1 || !strings.Contains(m.lines[0], "dropped: wait") {
		t.Fatalf("expected a dropped fragment line, got %v", m.lines)
	}
}

func TestModelRecordingWithoutRecorder(t *testing.T) {
	m := sizedModel(t, nil)

	m, cmd := m.toggleRecording()
	if cmd != nil || m.recording {
		t.Fatalf("expected recording to stay off without a recorder")
	}
	if len(m.lines) != 1 {
		t.Fatalf("expected a notice line, got %v", m.lines)
	}
}

func TestModelRecordingToggle(t *testing.T) {
	recorder := &fakeRecorder{chunks: [][]byte{{1, 2}, {3, 4}}}
	m := sizedModel(t, recorder)

	m, cmd := m.toggleRecording()
	if cmd != nil || !m.recording {
		t.Fatalf("expected recording to start")
	}

	m, cmd = m.toggleRecording()
	if m.recording {
		t.Fatalf("expected recording to stop")
	}
	if cmd == nil {
		t.Fatalf("expected a submit command after stopping")
	}
	if !recorder.stopped {
		t.Fatalf("expected the recorder to be stopped")
	}
	if got := m.capture.Bytes(); len(got) != 4 {
		t.Fatalf("expected 4 captured bytes, got %d", len(got))
	}
}

func TestSpeakerPlaysChunksInOrder(t *testing.T) {
	player := &fakePlayer{encoding: audio.GetDefaultOutputEncodingInfo()}
	s := newSpeaker(player)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.run(ctx)

	rate := audio.DefaultOutputSampleRate
	s.enqueue(events.NewAssistantSpeechChunk("t", 0, "one", texttospeech.Waveform{SampleRate: rate, Samples: []float32{0.1}}, nil))
	s.enqueue(events.NewAssistantSpeechChunk("t", 1, "two", texttospeech.Waveform{}, errors.New("failed")))
	s.enqueue(events.NewAssistantSpeechChunk("t", 2, "three", texttospeech.Waveform{SampleRate: 8000, Samples: []float32{0.1}}, nil))
	s.enqueue(events.NewAssistantSpeechChunk("t", 3, "four", texttospeech.Waveform{SampleRate: rate, Samples: []float32{0.2, 0.3}}, nil))

	waitForCondition(t, time.Second, func() bool { return player.count() == 2 })
	played := player.snapshot()
	if len(played[0]) != 2 || len(played[1]) != 4 {
		t.Fatalf("expected chunks 0 and 3 in order, got lengths %d and %d", len(played[0]), len(played[1]))
	}
}

func TestCaptureBufferReset(t *testing.T) {
	buf := &captureBuffer{}
	buf.Write([]byte{1, 2, 3})
	snapshot := buf.Bytes()
	buf.Reset()
	buf.Write([]byte{9})

	if len(snapshot) != 3 || snapshot[0] != 1 {
		t.Fatalf("expected snapshot to be unaffected by reset, got %v", snapshot)
	}
	if got := buf.Bytes(); len(got) != 1 || got[0] != 9 {
		t.Fatalf("expected [9], got %v", got)
	}
}

type fakeRecorder struct {
	chunks  [][]byte
	stopped bool
}

func (r *fakeRecorder) StartRecording(_ context.Context, onAudio func(pcm []byte)) error {
	for _, chunk := range r.chunks {
		onAudio(chunk)
	}
	return nil
}

func (r *fakeRecorder) StopRecording() error {
	r.stopped = true
	return nil
}

type fakePlayer struct {
	mu       sync.Mutex
	encoding audio.EncodingInfo
	played   [][]byte
}

func (p *fakePlayer) Play(_ context.Context, pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, pcm)
	return nil
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.played)
}

func (p *fakePlayer) snapshot() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.played...)
}

func (p *fakePlayer) ClearBuffer()                     {}
func (p *fakePlayer) EncodingInfo() audio.EncodingInfo { return p.encoding }
func (p *fakePlayer) Close()                           {}

func waitForCondition(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
