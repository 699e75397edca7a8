package ui

import "github.com/fd1az/portfolio-optimizer/business/wallet/domain"

// Message types for TUI updates

// SnapshotMsg carries the latest session state.
type SnapshotMsg struct {
	Snapshot domain.Snapshot
}

// SubscriptionClosedMsg is sent once the session stops publishing.
type SubscriptionClosedMsg struct{}

// Action names a user-triggered session operation.
type Action string

const (
	ActionConnect    Action = "connect"
	ActionDisconnect Action = "disconnect"
	ActionRefresh    Action = "refresh"
)

// ActionDoneMsg is sent when a session operation returns.
type ActionDoneMsg struct {
	Action Action
	Err    error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}
