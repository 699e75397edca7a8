package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind classifies provider notifications.
type EventKind string

const (
	EventAccountsChanged      EventKind = "accountsChanged"
	EventChainChanged         EventKind = "chainChanged"
	EventNewBlock             EventKind = "block"
	EventProviderDisconnected EventKind = "disconnect"
)

// ProviderEvent is a notification emitted by a wallet provider for an active handle.
type ProviderEvent struct {
	Kind     EventKind
	Accounts []common.Address // AccountsChanged; empty means the wallet was locked
	ChainID  uint64           // ChainChanged
	Block    *big.Int         // NewBlock
}

// AccountsChanged builds an accounts notification.
func AccountsChanged(accounts ...common.Address) ProviderEvent {
	return ProviderEvent{Kind: EventAccountsChanged, Accounts: accounts}
}

// ChainChanged builds a chain notification.
func ChainChanged(chainID uint64) ProviderEvent {
	return ProviderEvent{Kind: EventChainChanged, ChainID: chainID}
}

// NewBlock builds a block notification.
func NewBlock(number *big.Int) ProviderEvent {
	return ProviderEvent{Kind: EventNewBlock, Block: number}
}

// ProviderDisconnected builds a transport-lost notification.
func ProviderDisconnected() ProviderEvent {
	return ProviderEvent{Kind: EventProviderDisconnected}
}
