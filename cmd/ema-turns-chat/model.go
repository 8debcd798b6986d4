package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	orchestration "github.com/koscakluka/ema-turns/core"
	"github.com/koscakluka/ema-turns/core/audio"
	"github.com/koscakluka/ema-turns/core/events"
	"github.com/koscakluka/ema-turns/core/speechtotext"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFCC00"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4444"))

	recordingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4444")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

// chrome is the number of rows taken by everything except the viewport.
const chrome = 5

type eventMsg struct {
	event events.Event
}

type model struct {
	ctx         context.Context
	coordinator *orchestration.Coordinator
	session     *orchestration.Session
	recorder    audio.Recorder

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	lines      []string
	width      int
	ready      bool
	processing bool
	recording  bool
	capture    *captureBuffer
}

func newModel(ctx context.Context, coordinator *orchestration.Coordinator, session *orchestration.Session, recorder audio.Recorder) model {
	input := textinput.New()
	input.Placeholder = "say something..."
	input.Prompt = "› "
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return model{
		ctx:         ctx,
		coordinator: coordinator,
		session:     session,
		recorder:    recorder,
		input:       input,
		spinner:     s,
		capture:     &captureBuffer{},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if text == "" {
				return m, nil
			}
			m = m.appendLine(userStyle.Render("you: ") + text)
			return m, m.submitFragment(text)
		case "ctrl+r":
			var cmd tea.Cmd
			m, cmd = m.toggleRecording()
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := max(msg.Height-chrome, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = max(msg.Width-4, 1)
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case eventMsg:
		m = m.handleEvent(msg.event)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m model) handleEvent(event events.Event) model {
	switch e := event.(type) {
	case events.UserTranscriptFinal:
		return m.appendLine(userStyle.Render("you (voice): ") + e.Transcript)
	case events.TurnBuffered:
		return m.appendLine(statusStyle.Render(fmt.Sprintf("listening... (p=%.2f)", e.Probability)))
	case events.TurnBusy:
		if e.Fragment == "" {
			return m.appendLine(warningStyle.Render("busy, recording dropped"))
		}
		return m.appendLine(warningStyle.Render("busy, dropped: " + e.Fragment))
	case events.TurnStarted:
		m.processing = true
		return m.appendLine(statusStyle.Render(fmt.Sprintf("turn complete (p=%.2f)", e.Probability)))
	case events.AssistantResponseFinal:
		return m.appendLine(assistantStyle.Render("assistant: ") + e.Text)
	case events.AssistantSpeechChunk:
		if e.Err != nil {
			return m.appendLine(warningStyle.Render(fmt.Sprintf("could not speak %q", e.Text)))
		}
	case events.TurnCompleted:
		m.processing = false
	case events.TurnFailed:
		if e.TurnID != "" {
			m.processing = false
		}
		line := "turn failed: " + e.Reason
		if e.Err != nil {
			line += " (" + e.Err.Error() + ")"
		}
		return m.appendLine(errorStyle.Render(line))
	}
	return m
}

// submitFragment runs off the update loop, the coordinator reports
// rejections synchronously through the session handler.
func (m model) submitFragment(text string) tea.Cmd {
	return func() tea.Msg {
		m.coordinator.SubmitFragment(m.ctx, m.session, text)
		return nil
	}
}

func (m model) toggleRecording() (model, tea.Cmd) {
	if m.recorder == nil {
		return m.appendLine(warningStyle.Render("voice input is not available")), nil
	}

	if !m.recording {
		m.capture.Reset()
		if err := m.recorder.StartRecording(m.ctx, m.capture.Write); err != nil {
			return m.appendLine(errorStyle.Render("could not start recording: " + err.Error())), nil
		}
		m.recording = true
		return m, nil
	}

	m.recording = false
	if err := m.recorder.StopRecording(); err != nil {
		return m.appendLine(errorStyle.Render("could not stop recording: " + err.Error())), nil
	}
	recording := m.capture.Bytes()
	return m, func() tea.Msg {
		m.coordinator.SubmitAudio(m.ctx, m.session, recording, speechtotext.WithEncodingInfo(audio.GetDefaultEncodingInfo()))
		return nil
	}
}

func (m model) appendLine(line string) model {
	m.lines = append(m.lines, line)
	m.refresh()
	return m
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	wrapped := make([]string, len(m.lines))
	for i, line := range m.lines {
		wrapped[i] = wordwrap.String(line, max(m.width-2, 10))
	}
	m.viewport.SetContent(strings.Join(wrapped, "\n"))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}

	status := ""
	switch {
	case m.recording:
		status = recordingStyle.Render("● recording") + statusStyle.Render("  ctrl+r to send")
	case m.processing:
		status = m.spinner.View() + statusStyle.Render(" thinking")
	}

	help := "enter: send • esc: quit"
	if m.recorder != nil {
		help = "enter: send • ctrl+r: record • esc: quit"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("ema-turns"),
		m.viewport.View(),
		status,
		m.input.View(),
		helpStyle.Render(help),
	)
}

// captureBuffer collects microphone audio from the device callback.
type captureBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (c *captureBuffer) Write(pcm []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = append(c.buf, pcm...)
}

func (c *captureBuffer) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf...)
}

func (c *captureBuffer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = c.buf[:0]
}
