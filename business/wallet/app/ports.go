// Package app contains the wallet session and the port definitions it depends on.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/portfolio-optimizer/business/wallet/domain"
	"github.com/fd1az/portfolio-optimizer/internal/asset"
)

// ProviderHandle is an opaque reference to an active wallet provider session.
// It is owned by exactly one Session from activation until deactivation.
type ProviderHandle interface {
	// ID identifies the handle for logs and ownership checks.
	ID() string
	// ChainID is the chain the provider currently points at.
	ChainID() uint64
	// BalanceAt returns the native balance in wei. A nil block means latest.
	BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error)
}

// Activation is the result of a successful provider activation.
type Activation struct {
	Account common.Address
	ChainID uint64
	Handle  ProviderHandle
}

// WalletProvider is the externally supplied wallet capability.
type WalletProvider interface {
	// Activate requests account access. Failures are *apperror.AppError with
	// an activation code (user rejected, unsupported chain, provider not
	// found, generic).
	Activate(ctx context.Context) (*Activation, error)

	// Deactivate releases the handle.
	Deactivate(ctx context.Context, handle ProviderHandle) error

	// Watch streams provider notifications for handle until ctx ends or the
	// handle is deactivated, then closes the channel.
	Watch(ctx context.Context, handle ProviderHandle) (<-chan domain.ProviderEvent, error)
}

// BalanceService queries account balances through a provider handle.
type BalanceService interface {
	GetBalance(ctx context.Context, handle ProviderHandle, account common.Address, block *big.Int) (asset.Amount, error)
}
