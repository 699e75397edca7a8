package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/portfolio-optimizer/business/wallet/domain"
)

var (
	colorAccent  = lipgloss.Color("#7C3AED")
	colorOK      = lipgloss.Color("#10B981")
	colorFail    = lipgloss.Color("#EF4444")
	colorPending = lipgloss.Color("#F59E0B")
	colorMuted   = lipgloss.Color("#6B7280")
	colorFrame   = lipgloss.Color("#374151")
	colorText    = lipgloss.Color("#FFFFFF")
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorFrame).
			Padding(1, 2)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText).
			Background(colorAccent).
			Padding(0, 2)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText).
			Background(colorFrame).
			Padding(0, 1)

	pendingStyle = lipgloss.NewStyle().Foreground(colorPending).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorFail)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	helpStyle    = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
)

var statusColors = map[domain.Status]lipgloss.Color{
	domain.StatusDisconnected: colorMuted,
	domain.StatusConnecting:   colorPending,
	domain.StatusConnected:    colorOK,
	domain.StatusError:        colorFail,
}

// statusBadge renders the session status as an upper-case colored label.
func statusBadge(s domain.Status) string {
	color, ok := statusColors[s]
	if !ok {
		color = colorMuted
	}
	return lipgloss.NewStyle().
		Foreground(color).
		Bold(true).
		Render("[" + strings.ToUpper(s.String()) + "]")
}
