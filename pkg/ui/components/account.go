// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/portfolio-optimizer/business/wallet/domain"
)

var (
	labelStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	connectedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	unavailableStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// AccountComponent renders the connected account and its balance.
type AccountComponent struct {
	snap domain.Snapshot
}

// NewAccountComponent creates an empty account component.
func NewAccountComponent() *AccountComponent {
	return &AccountComponent{}
}

// Update replaces the rendered snapshot.
func (a *AccountComponent) Update(snap domain.Snapshot) {
	a.snap = snap
}

// View renders the account lines, or nothing when no account is connected.
func (a *AccountComponent) View() string {
	if !a.snap.Connected() {
		return ""
	}

	var b strings.Builder
	b.WriteString(connectedStyle.Render("● Connected"))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Connected Account:"), valueStyle.Render(a.snap.Account.Hex()))

	if a.snap.ChainName != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Network:"),
			valueStyle.Render(fmt.Sprintf("%s (%d)", a.snap.ChainName, a.snap.ChainID)))
	}

	fmt.Fprintf(&b, "%s %s", labelStyle.Render("ETH Balance:"), a.balance())
	return b.String()
}

func (a *AccountComponent) balance() string {
	switch {
	case a.snap.Balance == nil:
		return labelStyle.Render("loading...")
	case a.snap.Balance.Unavailable:
		return unavailableStyle.Render(domain.UnavailableText)
	default:
		return valueStyle.Render(a.snap.BalanceText() + " ETH")
	}
}
