package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"echomind/internal/domain"
	"echomind/internal/service"
)

// ChatPort is the TUI-facing subset of the chat service.
type ChatPort interface {
	Submit(ctx context.Context, conversationID uuid.UUID, question string) (*service.Reply, error)
	RetrySave(ctx context.Context, reply *service.Reply) error
	NewConversation(ctx context.Context) (*domain.Conversation, error)
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) error
	Messages(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error)
}

type (
	conversationsMsg struct {
		convs []domain.Conversation
		err   error
	}
	messagesMsg struct {
		convID uuid.UUID
		msgs   []domain.Message
		err    error
	}
	replyMsg struct {
		convID uuid.UUID
		reply  *service.Reply
		err    error
	}
	savedMsg struct {
		convID uuid.UUID
		err    error
	}
	createdMsg struct {
		conv *domain.Conversation
		err  error
	}
	deletedMsg struct {
		convID uuid.UUID
		err    error
	}
)

// Model is the Bubble Tea model for the chat client. Submissions run as commands
// and carry the conversation they were made in, so switching conversations while
// one is pending never misroutes its answer.
type Model struct {
	ctx      context.Context
	service  ChatPort
	input    textinput.Model
	viewport viewport.Model

	conversations []domain.Conversation
	current       int
	transcripts   map[uuid.UUID][]domain.Message
	pending       map[uuid.UUID]bool
	unsaved       map[uuid.UUID]*service.Reply

	errText string
	status  string
	ready   bool
}

// New creates a new TUI model instance.
func New(ctx context.Context, svc ChatPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask EchoMind anything and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:         ctx,
		service:     svc,
		input:       ti,
		viewport:    vp,
		transcripts: map[uuid.UUID][]domain.Message{},
		pending:     map[uuid.UUID]bool{},
		unsaved:     map[uuid.UUID]*service.Reply{},
		status:      "Loading conversations...",
	}
}

// Init starts the cursor blink and loads the conversation list.
func (m Model) Init() tea.Cmd { return tea.Batch(textinput.Blink, m.loadConversations()) }

// Update handles key, window and service events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 3 + ih // header, error and status lines
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case conversationsMsg:
		if msg.err != nil {
			m.errText = domain.UserMessage(msg.err)
			return m, nil
		}
		selected := m.currentID()
		m.conversations = msg.convs
		m.current = 0
		for i, c := range m.conversations {
			if c.ID == selected {
				m.current = i
			}
		}
		if len(m.conversations) == 0 {
			return m, m.createConversation()
		}
		m.status = helpText
		m.refresh()
		return m, m.ensureLoaded()

	case messagesMsg:
		if msg.err != nil {
			m.errText = domain.UserMessage(msg.err)
			return m, nil
		}
		if !m.pending[msg.convID] {
			m.transcripts[msg.convID] = msg.msgs
		}
		m.refresh()
		return m, nil

	case createdMsg:
		if msg.err != nil {
			m.errText = domain.UserMessage(msg.err)
			return m, nil
		}
		m.conversations = append([]domain.Conversation{*msg.conv}, m.conversations...)
		m.current = 0
		m.transcripts[msg.conv.ID] = nil
		m.status = helpText
		m.refresh()
		return m, nil

	case deletedMsg:
		if msg.err != nil {
			m.errText = domain.UserMessage(msg.err)
			return m, nil
		}
		// A fresh slice: earlier Model values share the old backing array.
		kept := make([]domain.Conversation, 0, len(m.conversations))
		for _, c := range m.conversations {
			if c.ID != msg.convID {
				kept = append(kept, c)
			}
		}
		m.conversations = kept
		delete(m.transcripts, msg.convID)
		delete(m.unsaved, msg.convID)
		if m.current >= len(m.conversations) {
			m.current = len(m.conversations) - 1
		}
		if len(m.conversations) == 0 {
			m.current = 0
			return m, m.createConversation()
		}
		m.refresh()
		return m, m.ensureLoaded()

	case replyMsg:
		delete(m.pending, msg.convID)
		if r := msg.reply; r != nil {
			if r.Answered() {
				m.transcripts[msg.convID] = append(m.transcripts[msg.convID], r.AssistantMessage)
				if r.Degraded {
					m.status = "Answered without conversation memory."
				}
			}
			// Covers an unstored question after a failed completion as well.
			if r.Unsaved {
				m.unsaved[msg.convID] = r
			}
		}
		if msg.err != nil {
			m.errText = domain.UserMessage(msg.err)
		}
		m.refresh()
		// Titles change after the first answer.
		return m, m.loadConversations()

	case savedMsg:
		if msg.err != nil {
			m.errText = domain.UserMessage(msg.err)
			return m, nil
		}
		delete(m.unsaved, msg.convID)
		m.status = "Saved."
		m.refresh()
		return m, m.loadConversations()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			return m.submit()
		case "esc":
			m.errText = ""
			return m, nil
		case "ctrl+n":
			m.errText = ""
			return m, m.createConversation()
		case "ctrl+x":
			if id := m.currentID(); id != uuid.Nil {
				m.errText = ""
				return m, m.deleteConversation(id)
			}
			return m, nil
		case "ctrl+s":
			return m.retrySave()
		case "tab":
			return m.switchConversation(1)
		case "shift+tab":
			return m.switchConversation(-1)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	id := m.currentID()
	if q == "" || id == uuid.Nil {
		return m, nil
	}
	if m.pending[id] {
		m.status = "Still waiting for the previous answer in this conversation."
		return m, nil
	}
	m.errText = ""
	m.pending[id] = true
	m.transcripts[id] = append(m.transcripts[id], domain.Message{ConversationID: id, Role: domain.RoleUser, Content: q})
	m.input.Reset()
	m.refresh()

	ctx, svc := m.ctx, m.service
	return m, func() tea.Msg {
		reply, err := svc.Submit(ctx, id, q)
		return replyMsg{convID: id, reply: reply, err: err}
	}
}

func (m Model) retrySave() (tea.Model, tea.Cmd) {
	id := m.currentID()
	reply, ok := m.unsaved[id]
	if !ok {
		return m, nil
	}
	m.errText = ""
	m.status = "Retrying save..."
	ctx, svc := m.ctx, m.service
	return m, func() tea.Msg {
		return savedMsg{convID: id, err: svc.RetrySave(ctx, reply)}
	}
}

func (m Model) switchConversation(step int) (tea.Model, tea.Cmd) {
	n := len(m.conversations)
	if n == 0 {
		return m, nil
	}
	m.errText = ""
	m.current = (m.current + step + n) % n
	m.refresh()
	return m, m.ensureLoaded()
}

func (m Model) currentID() uuid.UUID {
	if m.current < 0 || m.current >= len(m.conversations) {
		return uuid.Nil
	}
	return m.conversations[m.current].ID
}

func (m Model) ensureLoaded() tea.Cmd {
	id := m.currentID()
	if id == uuid.Nil {
		return nil
	}
	if _, ok := m.transcripts[id]; ok {
		return nil
	}
	ctx, svc := m.ctx, m.service
	return func() tea.Msg {
		msgs, err := svc.Messages(ctx, id)
		return messagesMsg{convID: id, msgs: msgs, err: err}
	}
}

func (m Model) loadConversations() tea.Cmd {
	ctx, svc := m.ctx, m.service
	return func() tea.Msg {
		convs, err := svc.ListConversations(ctx)
		return conversationsMsg{convs: convs, err: err}
	}
}

func (m Model) createConversation() tea.Cmd {
	ctx, svc := m.ctx, m.service
	return func() tea.Msg {
		conv, err := svc.NewConversation(ctx)
		return createdMsg{conv: conv, err: err}
	}
}

func (m Model) deleteConversation(id uuid.UUID) tea.Cmd {
	ctx, svc := m.ctx, m.service
	return func() tea.Msg {
		return deletedMsg{convID: id, err: svc.DeleteConversation(ctx, id)}
	}
}

// refresh re-renders the transcript of the current conversation into the viewport.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the TUI layout and current conversation.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render(m.headerText())
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	errLine := errorStyle.Render(m.errText)
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + errLine + "\n" + status
}

func (m Model) headerText() string {
	if len(m.conversations) == 0 {
		return "EchoMind"
	}
	c := m.conversations[m.current]
	text := fmt.Sprintf("EchoMind  %s  (%d/%d)", c.Title, m.current+1, len(m.conversations))
	if _, ok := m.unsaved[c.ID]; ok {
		text += "  [unsaved, ctrl+s to retry]"
	}
	return text
}

func (m Model) renderTranscript() string {
	id := m.currentID()
	msgs := m.transcripts[id]
	if len(msgs) == 0 && !m.pending[id] {
		return "No messages yet."
	}
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(renderMessage(msg))
	}
	if m.pending[id] {
		b.WriteString("\n\n")
		b.WriteString(pendingStyle.Render("EchoMind is thinking..."))
	}
	return b.String()
}

func renderMessage(msg domain.Message) string {
	label := userStyle.Render("You")
	if msg.Role == domain.RoleAssistant {
		label = assistantStyle.Render("EchoMind")
	}
	if msg.IsPinned {
		label += " *"
	}
	return label + "\n" + msg.Content
}

const helpText = "enter send · ctrl+n new · tab/shift+tab switch · ctrl+x delete · ctrl+s retry save · esc dismiss"

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	pendingStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
