package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot is a consistent, read-only copy of a session's connection state.
type Snapshot struct {
	Status     Status          `json:"status"`
	Account    *common.Address `json:"account,omitempty"`
	ChainID    uint64          `json:"chain_id,omitempty"`
	ChainName  string          `json:"chain_name,omitempty"`
	Balance    *Balance        `json:"balance,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	ReasonCode string          `json:"reason_code,omitempty"`
	Generation uint64          `json:"generation"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Connected reports whether the snapshot has an active account.
func (s Snapshot) Connected() bool {
	return s.Status == StatusConnected && s.Account != nil
}

// BalanceText renders the balance for display; empty while loading.
func (s Snapshot) BalanceText() string {
	if s.Balance == nil {
		return ""
	}
	return s.Balance.String()
}
