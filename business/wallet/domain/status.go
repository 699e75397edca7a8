// Package domain contains the core domain types for the wallet context.
package domain

// Status is the connection status of a wallet session.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// CanConnect reports whether a connect request is accepted in this status.
func (s Status) CanConnect() bool {
	return s == StatusDisconnected || s == StatusError
}

func (s Status) String() string {
	return string(s)
}
