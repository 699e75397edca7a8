package metrics

import "time"

// Exporter names a metric reader backend.
type Exporter string

const (
	PrometheusExporter Exporter = "prometheus"
	OTLPExporter       Exporter = "otlp"
)

// DefaultExportInterval is how often the OTLP reader pushes.
const DefaultExportInterval = 15 * time.Second

// Config describes the meter provider: its service name and every reader
// attached to it.
type Config struct {
	ServiceName    string
	Readers        []ReaderConfig
	ExportInterval time.Duration
}

// ReaderConfig configures one reader. Endpoint, Headers and Insecure only
// apply to OTLP.
type ReaderConfig struct {
	Exporter Exporter
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

type OptionFn func(config Config) Config

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName
		return config
	}
}

// WithPrometheus adds a pull reader scraped through ServePrometheus.
func WithPrometheus() OptionFn {
	return func(config Config) Config {
		config.Readers = append(config.Readers, ReaderConfig{Exporter: PrometheusExporter})
		return config
	}
}

// WithOTLP adds a periodic gRPC push reader. Empty endpoints are ignored.
func WithOTLP(endpoint string, headers map[string]string, insecure bool) OptionFn {
	return func(config Config) Config {
		if endpoint == "" {
			return config
		}
		config.Readers = append(config.Readers, ReaderConfig{
			Exporter: OTLPExporter,
			Endpoint: endpoint,
			Headers:  headers,
			Insecure: insecure,
		})
		return config
	}
}

func WithExportInterval(d time.Duration) OptionFn {
	return func(config Config) Config {
		config.ExportInterval = d
		return config
	}
}

func buildConfig(options []OptionFn) Config {
	cfg := Config{ExportInterval: DefaultExportInterval}
	for _, opt := range options {
		cfg = opt(cfg)
	}
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = DefaultExportInterval
	}
	return cfg
}
