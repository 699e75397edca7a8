package apperror

import "net/http"

type entry struct {
	message string
	status  int
}

// catalog holds the public message and HTTP status of every known code.
// Codes outside it surface as 500 with the code as message.
var catalog = map[Code]entry{
	CodeInvalidInput:    {"Invalid input provided", http.StatusBadRequest},
	CodeInvalidState:    {"Invalid state for this operation", http.StatusConflict},
	CodeNotFound:        {"Resource not found", http.StatusNotFound},
	CodeValidationError: {"Validation error", http.StatusBadRequest},

	CodeConfigurationError: {"Configuration error", http.StatusInternalServerError},

	CodeServiceTimeout:     {"Service request timeout", http.StatusGatewayTimeout},
	CodeServiceUnavailable: {"Service temporarily unavailable", http.StatusServiceUnavailable},
	CodeRateLimitExceeded:  {"Rate limit exceeded", http.StatusTooManyRequests},

	CodeInternalError: {"Internal server error", http.StatusInternalServerError},
	CodeUnknownError:  {"An unknown error occurred", http.StatusInternalServerError},

	CodeWalletUserRejected:     {"The wallet request was rejected by the user", http.StatusForbidden},
	CodeWalletUnsupportedChain: {"The wallet is connected to an unsupported network", http.StatusConflict},
	CodeWalletProviderNotFound: {"No injected wallet provider was found", http.StatusServiceUnavailable},
	CodeWalletActivationFailed: {"Failed to activate the wallet", http.StatusBadGateway},

	CodeWalletDeactivationFailed: {"Failed to deactivate the wallet", http.StatusInternalServerError},
	CodeWalletWatchFailed:        {"Failed to watch wallet events", http.StatusInternalServerError},
	CodeBalanceFetchFailed:       {"Failed to fetch the account balance", http.StatusBadGateway},
	CodeBalanceCacheFailed:       {"Balance cache unavailable", http.StatusServiceUnavailable},

	CodePortfolioNoAssets:           {"At least one asset must be provided", http.StatusBadRequest},
	CodePortfolioInvalidRisk:        {"Risk tolerance must be between 0 and 1", http.StatusBadRequest},
	CodePortfolioInvalidWeights:     {"Initial weights must match the assets and be non-negative", http.StatusBadRequest},
	CodePortfolioOptimizationFailed: {"Portfolio optimization failed", http.StatusInternalServerError},

	CodeCircuitOpen: {"Service circuit breaker is open", http.StatusServiceUnavailable},
}

func lookup(code Code) entry {
	if e, ok := catalog[code]; ok {
		return e
	}
	return entry{message: string(code), status: http.StatusInternalServerError}
}
