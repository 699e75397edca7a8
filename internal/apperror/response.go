package apperror

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Response is the JSON error envelope returned by the HTTP API.
type Response struct {
	Error ResponseBody `json:"error"`
}

// ResponseBody carries the public part of an AppError.
type ResponseBody struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Context   string `json:"context,omitempty"`
	TraceID   string `json:"traceId,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ToResponse serializes the error for an HTTP response. The trace ID comes
// from the span in ctx, when there is one.
func (e *AppError) ToResponse(ctx context.Context) Response {
	body := ResponseBody{
		Code:      e.Code,
		Message:   e.Message,
		Context:   e.Context,
		Timestamp: e.Timestamp.Format(time.RFC3339),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		body.TraceID = sc.TraceID().String()
	}
	return Response{Error: body}
}

// LogValue groups the error attributes, cause and stack included, when the
// error is passed to slog.
func (e *AppError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", string(e.Code)),
		slog.String("message", e.Message),
		slog.Int("status", e.StatusCode),
	}
	if e.Context != "" {
		attrs = append(attrs, slog.String("context", e.Context))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	if len(e.stack) > 0 {
		attrs = append(attrs, slog.String("stack", e.formatStack()))
	}
	return slog.GroupValue(attrs...)
}

func (e *AppError) formatStack() string {
	var sb strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", frame.File, frame.Line, frame.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}
