package injected

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/portfolio-optimizer/internal/apperror"
)

// JSON-RPC error codes used by injected providers (EIP-1193 and JSON-RPC 2.0).
const (
	codeUserRejected   = 4001
	codeUnauthorized   = 4100
	codeMethodNotFound = -32601
)

func rpcCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}

func isMethodNotFound(err error) bool {
	code, ok := rpcCode(err)
	return ok && code == codeMethodNotFound
}

// activationFailure maps an error raised while activating into an activation
// AppError. JSON-RPC errors come from the wallet itself; anything else means
// the transport to the wallet failed.
func activationFailure(ctx context.Context, err error, step string) *apperror.AppError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperror.New(apperror.CodeWalletActivationFailed,
			apperror.WithCause(err), apperror.WithContext("activation timed out"))
	}

	code, ok := rpcCode(err)
	switch {
	case ok && (code == codeUserRejected || code == codeUnauthorized):
		return apperror.New(apperror.CodeWalletUserRejected,
			apperror.WithCause(err), apperror.WithContext(step))
	case ok:
		return apperror.New(apperror.CodeWalletActivationFailed,
			apperror.WithCause(err), apperror.WithContext(step))
	case errors.Is(err, context.Canceled):
		return apperror.New(apperror.CodeWalletActivationFailed,
			apperror.WithCause(err), apperror.WithContext("activation canceled"))
	default:
		return apperror.New(apperror.CodeWalletProviderNotFound,
			apperror.WithCause(err), apperror.WithContext("provider unreachable"))
	}
}
