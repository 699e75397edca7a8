package apm

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/portfolio-optimizer/internal/apperror"
)

// ErrorCodeKey is the span attribute holding an AppError code.
const ErrorCodeKey = attribute.Key("error.code")

// NoticeError records err on span and marks the span failed. AppErrors also
// tag the span with their code so failures can be grouped by it.
func NoticeError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	if appErr, ok := apperror.As(err); ok {
		span.SetAttributes(ErrorCodeKey.String(string(appErr.Code)))
		span.SetStatus(codes.Error, appErr.Reason())
		return
	}
	span.SetStatus(codes.Error, err.Error())
}
