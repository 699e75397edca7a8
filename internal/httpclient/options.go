// Package httpclient builds the traced and counted *http.Client used for
// JSON-RPC calls to the wallet provider.
package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
)

type options struct {
	meterProvider   metric.MeterProvider
	providerName    string
	roundTripper    http.RoundTripper
	requestTimeout  time.Duration
	maxConnsPerHost int
	headers         map[string]string
}

// ClientOption configures New.
type ClientOption func(*options)

func newOptions(opts ...ClientOption) options {
	o := options{
		providerName:    "default",
		requestTimeout:  defaultRequestTimeout,
		maxConnsPerHost: defaultMaxConnsPerHost,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) ClientOption {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithProviderName labels the request counter and spans.
func WithProviderName(name string) ClientOption {
	return func(o *options) {
		if name != "" {
			o.providerName = name
		}
	}
}

// WithRoundTripper replaces the pooled transport. Instrumentation still wraps it.
func WithRoundTripper(rt http.RoundTripper) ClientOption {
	return func(o *options) {
		o.roundTripper = rt
	}
}

// WithRequestTimeout bounds every request. Non-positive values keep the default.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(o *options) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithMaxConnsPerHost caps connections to the provider endpoint.
func WithMaxConnsPerHost(n int) ClientOption {
	return func(o *options) {
		o.maxConnsPerHost = n
	}
}

// WithHeaders sets headers added to requests that do not already carry them.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *options) {
		o.headers = headers
	}
}
