package apperror

// Code identifies an error condition across layers and transports.
type Code string

// General codes
const (
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeServiceTimeout     Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Wallet activation failures. Any of these leaves the session in the error status.
const (
	CodeWalletUserRejected     Code = "WALLET_USER_REJECTED"
	CodeWalletUnsupportedChain Code = "WALLET_UNSUPPORTED_CHAIN"
	CodeWalletProviderNotFound Code = "WALLET_PROVIDER_NOT_FOUND"
	CodeWalletActivationFailed Code = "WALLET_ACTIVATION_FAILED"
)

// Wallet runtime failures. None of these change the session status.
const (
	CodeWalletDeactivationFailed Code = "WALLET_DEACTIVATION_FAILED"
	CodeWalletWatchFailed        Code = "WALLET_WATCH_FAILED"
	CodeBalanceFetchFailed       Code = "BALANCE_FETCH_FAILED"
	CodeBalanceCacheFailed       Code = "BALANCE_CACHE_FAILED"
)

// Portfolio
const (
	CodePortfolioNoAssets           Code = "PORTFOLIO_NO_ASSETS"
	CodePortfolioInvalidRisk        Code = "PORTFOLIO_INVALID_RISK_TOLERANCE"
	CodePortfolioInvalidWeights     Code = "PORTFOLIO_INVALID_WEIGHTS"
	CodePortfolioOptimizationFailed Code = "PORTFOLIO_OPTIMIZATION_FAILED"
)

// Circuit breaker
const (
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)

// IsActivationFailure reports whether code belongs to the activation failure family.
func IsActivationFailure(code Code) bool {
	switch code {
	case CodeWalletUserRejected, CodeWalletUnsupportedChain,
		CodeWalletProviderNotFound, CodeWalletActivationFailed:
		return true
	}
	return false
}
