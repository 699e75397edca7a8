// Package di contains dependency injection tokens for the wallet context.
package di

import (
	"github.com/fd1az/portfolio-optimizer/business/wallet/app"
	"github.com/fd1az/portfolio-optimizer/business/wallet/infra/ethereum"
	"github.com/fd1az/portfolio-optimizer/business/wallet/infra/injected"
	"github.com/fd1az/portfolio-optimizer/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Session = di.NewToken[*app.Session]("wallet.Session")
)

// Private dependency tokens - internal to wallet module
var (
	Connector      = di.NewToken[*injected.Connector]("wallet:connector")
	BalanceCache   = di.NewToken[ethereum.BalanceCache]("wallet:balanceCache")
	BalanceService = di.NewToken[*ethereum.BalanceService]("wallet:balanceService")
)

// Helper functions for type-safe access
func GetSession(c di.ServiceRegistry) *app.Session {
	return di.GetToken(c, Session)
}

func GetConnector(c di.ServiceRegistry) *injected.Connector {
	return di.GetToken(c, Connector)
}

func GetBalanceCache(c di.ServiceRegistry) ethereum.BalanceCache {
	return di.GetToken(c, BalanceCache)
}

func GetBalanceService(c di.ServiceRegistry) *ethereum.BalanceService {
	return di.GetToken(c, BalanceService)
}
