package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"imaging-rag/internal/domain"
	"imaging-rag/internal/session"
)

// ChatPort is the TUI-facing subset of the pipeline.
type ChatPort interface {
	ChatStream(ctx context.Context, query string, k int, history []domain.Message, onDelta func(string)) (*domain.ChatResult, error)
}

// Model is the Bubble Tea model for the chat application. Answers stream
// in incrementally: each delta arrives as its own message and is appended
// to the in-progress turn.
type Model struct {
	pipeline  ChatPort
	sessions  *session.Store
	sessionID string
	topK      int

	input      textinput.Model
	viewport   viewport.Model
	transcript []string
	status     string
	ready      bool
	waiting    bool

	stream       chan tea.Msg
	pendingQuery string
	pendingText  string
}

type streamDeltaMsg struct {
	delta string
}

type streamDoneMsg struct {
	query  string
	result *domain.ChatResult
	err    error
}

// New creates a new chat TUI model with a fresh session.
func New(pipeline ChatPort, sessions *session.Store, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the ingested imaging notes"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		pipeline:  pipeline,
		sessions:  sessions,
		sessionID: sessions.Create(),
		topK:      topK,
		input:     ti,
		viewport:  vp,
		status:    "Index ready. Ask a question.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and stream events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved - th
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderTranscript())
		return m, nil
	case streamDeltaMsg:
		m.pendingText += msg.delta
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, waitForStream(m.stream)
	case streamDoneMsg:
		m.waiting = false
		m.stream = nil
		m.pendingQuery = ""
		m.pendingText = ""
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.sessions.Append(m.sessionID,
				domain.Message{Role: domain.RoleUser, Content: msg.query},
				domain.Message{Role: domain.RoleAssistant, Content: msg.result.Answer},
			)
			m.transcript = append(m.transcript, renderTurn(msg.query, msg.result))
			m.status = fmt.Sprintf("Answered with %d contexts (%s)", len(msg.result.Contexts), msg.result.Model)
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.waiting {
				m.waiting = true
				m.status = "Thinking..."
				m.input.SetValue("")
				m.pendingQuery = q
				m.pendingText = ""
				m.stream = startStream(m.pipeline, q, m.topK, m.sessions.History(m.sessionID))
				m.viewport.SetContent(m.renderTranscript())
				return m, waitForStream(m.stream)
			}
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// startStream runs the chat round-trip in the background. Deltas and the
// final result are delivered through the returned channel, one message per
// waitForStream read.
func startStream(pipeline ChatPort, query string, k int, history []domain.Message) chan tea.Msg {
	ch := make(chan tea.Msg, 16)
	go func() {
		res, err := pipeline.ChatStream(context.Background(), query, k, history, func(delta string) {
			ch <- streamDeltaMsg{delta: delta}
		})
		ch <- streamDoneMsg{query: query, result: res, err: err}
		close(ch)
	}()
	return ch
}

func waitForStream(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

// View renders the TUI layout and transcript.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Imaging RAG Chat")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

// renderTranscript joins the finished turns, plus the streaming one while
// an answer is still arriving.
func (m Model) renderTranscript() string {
	turns := m.transcript
	if m.waiting && m.pendingQuery != "" {
		partial := questionStyle.Render("You: "+m.pendingQuery) + "\n" + m.pendingText
		turns = append(turns[:len(turns):len(turns)], partial)
	}
	if len(turns) == 0 {
		return "No questions yet."
	}
	return strings.Join(turns, "\n\n")
}

func renderTurn(query string, result *domain.ChatResult) string {
	var buf strings.Builder
	buf.WriteString(questionStyle.Render("You: " + query))
	buf.WriteString("\n")
	buf.WriteString(result.Answer)
	if len(result.Contexts) > 0 {
		buf.WriteString("\n")
		sources := make([]string, 0, len(result.Contexts))
		for _, c := range result.Contexts {
			sources = append(sources, c.Source)
		}
		buf.WriteString(sourceStyle.Render("Sources: " + strings.Join(dedupe(sources), ", ")))
	}
	return buf.String()
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
