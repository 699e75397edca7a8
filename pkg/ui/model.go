package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/portfolio-optimizer/business/wallet/domain"
	"github.com/fd1az/portfolio-optimizer/internal/apperror"
	"github.com/fd1az/portfolio-optimizer/pkg/ui/components"
)

// Controller is the wallet session as seen by the TUI.
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context)
	Refresh(ctx context.Context) bool
	Snapshot() domain.Snapshot
	Subscribe() (<-chan domain.Snapshot, func())
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome Phase = "welcome"
	PhaseWallet  Phase = "wallet"
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	ctx     context.Context
	ctrl    Controller
	updates <-chan domain.Snapshot
	cancel  func()

	keys    KeyMap
	help    help.Model
	account *components.AccountComponent

	phase        Phase
	welcomeStart time.Time
	snap         domain.Snapshot
	pending      Action
	actionErr    string
	quitting     bool
	width        int
}

// New creates a TUI model driving ctrl. It subscribes to the session
// immediately; the subscription ends when the model quits.
func New(ctx context.Context, ctrl Controller) Model {
	updates, cancel := ctrl.Subscribe()

	account := components.NewAccountComponent()
	snap := ctrl.Snapshot()
	account.Update(snap)

	return Model{
		ctx:          ctx,
		ctrl:         ctrl,
		updates:      updates,
		cancel:       cancel,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		account:      account,
		phase:        PhaseWelcome,
		welcomeStart: time.Now(),
		snap:         snap,
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitForSnapshot(m.updates))
}

// tickCmd drives the welcome timeout and spinners.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

func waitForSnapshot(updates <-chan domain.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return SubscriptionClosedMsg{}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

func (m Model) run(action Action) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		var err error
		switch action {
		case ActionConnect:
			err = ctrl.Connect(ctx)
		case ActionDisconnect:
			ctrl.Disconnect(ctx)
		case ActionRefresh:
			if !ctrl.Refresh(ctx) {
				err = apperror.New(apperror.CodeInvalidState, apperror.WithContext("no wallet connected"))
			}
		}
		return ActionDoneMsg{Action: action, Err: err}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}
		// Any other key skips the welcome screen.
		if m.phase == PhaseWelcome {
			m.phase = PhaseWallet
			return m, nil
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.phase = PhaseWallet
		}
		return m, tickCmd()

	case SnapshotMsg:
		m.snap = msg.Snapshot
		m.account.Update(msg.Snapshot)
		return m, waitForSnapshot(m.updates)

	case SubscriptionClosedMsg:
		m.snap = m.ctrl.Snapshot()
		m.account.Update(m.snap)

	case ActionDoneMsg:
		if m.pending == msg.Action {
			m.pending = ""
		}
		// Connect failures are already on the session as its reason.
		if msg.Err != nil && msg.Action != ActionConnect {
			m.actionErr = reasonOf(msg.Err)
		}
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var action Action
	switch {
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Connect) && m.snap.Status.CanConnect():
		action = ActionConnect
	case key.Matches(msg, m.keys.Disconnect) && !m.snap.Status.CanConnect():
		action = ActionDisconnect
	case key.Matches(msg, m.keys.Refresh) && m.snap.Connected():
		action = ActionRefresh
	default:
		return m, nil
	}

	// One action at a time, except that a pending connect can be abandoned.
	if m.pending != "" && !(m.pending == ActionConnect && action == ActionDisconnect) {
		return m, nil
	}

	m.pending = action
	m.actionErr = ""
	return m, m.run(action)
}

func reasonOf(err error) string {
	if appErr, ok := apperror.As(err); ok {
		return appErr.Reason()
	}
	return err.Error()
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}
	if m.phase == PhaseWelcome {
		return m.renderWelcomeScreen()
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(" Portfolio Optimizer "))
	b.WriteString("\n\n")

	var panel strings.Builder
	panel.WriteString(headerStyle.Render("Wallet Connection Test"))
	panel.WriteString("  ")
	panel.WriteString(statusBadge(m.snap.Status))
	panel.WriteString("\n\n")
	panel.WriteString(m.renderWallet())

	width := 72
	if m.width > 0 && m.width-4 < width {
		width = m.width - 4
	}
	b.WriteString(panelStyle.Width(width).Render(panel.String()))
	b.WriteString("\n")

	if m.actionErr != "" {
		b.WriteString(errorStyle.Render("  " + m.actionErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	keys := m.keys.forStatus(m.snap.Connected(), m.snap.Status.CanConnect())
	b.WriteString(helpStyle.Render(m.help.View(keys)))

	return b.String()
}

func (m Model) renderWallet() string {
	switch m.snap.Status {
	case domain.StatusConnecting:
		return pendingStyle.Render(m.spinner() + " Waiting for the wallet to approve...")

	case domain.StatusConnected:
		var b strings.Builder
		b.WriteString(m.account.View())
		b.WriteString("\n\n")
		b.WriteString(buttonStyle.Render("Disconnect Wallet"))
		b.WriteString(mutedStyle.Render("  (d)"))
		if m.pending == ActionRefresh {
			b.WriteString(mutedStyle.Render("  refreshing " + m.spinner()))
		}
		return b.String()

	case domain.StatusError:
		var b strings.Builder
		b.WriteString(errorStyle.Render("✗ " + m.snap.Reason))
		b.WriteString("\n\n")
		b.WriteString(buttonStyle.Render("Connect Wallet"))
		b.WriteString(mutedStyle.Render("  (c to retry)"))
		return b.String()

	default:
		if m.pending == ActionConnect {
			return pendingStyle.Render(m.spinner() + " Connecting...")
		}
		return buttonStyle.Render("Connect Wallet") + mutedStyle.Render("  (c)")
	}
}

func (m Model) spinner() string {
	spinners := []string{"◐", "◓", "◑", "◒"}
	return spinners[int(time.Now().UnixMilli()/200)%len(spinners)]
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	bannerStyle := lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	loadingStyle := lipgloss.NewStyle().Foreground(colorOK)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")
	sb.WriteString(bannerStyle.Render("        P O R T F O L I O   O P T I M I Z E R"))
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("          Connect an Ethereum wallet to begin"))
	sb.WriteString("\n\n\n")
	sb.WriteString(loadingStyle.Render(fmt.Sprintf("                    Loading%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("          Press any key to skip, or wait..."))
	sb.WriteString("\n")

	return sb.String()
}

// Phase reports the current UI phase.
func (m Model) Phase() Phase {
	return m.phase
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// ends.
func Run(ctx context.Context, ctrl Controller) error {
	p := tea.NewProgram(New(ctx, ctrl), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
