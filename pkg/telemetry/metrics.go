// Package telemetry exports the monitor's latest readings as OpenTelemetry
// gauges. It is off by default; the log file stays the primary output.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ExporterType defines where gauges are pushed.
type ExporterType string

const (
	ExporterNone     ExporterType = "none"
	ExporterStdout   ExporterType = "stdout"
	ExporterOTLPGRPC ExporterType = "otlp-grpc"
	ExporterOTLPHTTP ExporterType = "otlp-http"
)

// MetricsConfig holds configuration for the exporter.
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	ExporterType   ExporterType

	// OTLPEndpoint is host:port for the OTLP exporters.
	OTLPEndpoint string
	OTLPInsecure bool

	// Attributes are added to the resource, e.g. the monitored PID.
	Attributes map[string]string
}

func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		ServiceName:  "tegramon",
		ExporterType: ExporterNone,
	}
}

// readings is the last value of every gauge. Negative means "not observed".
type readings struct {
	procCPU    float64
	procRSS    int64
	hostCPU    float64
	hostMemory int64
	gpuUtil    int64
	gpuRAMUsed int64
}

// Metrics publishes the most recent readings through observable gauges.
// Record* calls are cheap and may come from the polling loop at any rate;
// the SDK reads the values on its own export schedule.
type Metrics struct {
	config        *MetricsConfig
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	registration  metric.Registration
	shutdown      func(context.Context) error

	mu   sync.Mutex
	last readings
}

func NewMetrics(ctx context.Context, cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil {
		cfg = DefaultMetricsConfig()
	}

	m := &Metrics{
		config: cfg,
		last:   readings{procCPU: -1, procRSS: -1, hostCPU: -1, hostMemory: -1, gpuUtil: -1, gpuRAMUsed: -1},
	}

	if cfg.ExporterType == ExporterNone || cfg.ExporterType == "" {
		m.meterProvider = sdkmetric.NewMeterProvider()
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		m.shutdown = func(context.Context) error { return nil }
		return m, nil
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	m.meterProvider = mp
	m.meter = mp.Meter(cfg.ServiceName)
	m.shutdown = mp.Shutdown

	if err := m.registerInstruments(); err != nil {
		_ = mp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to register metric instruments: %w", err)
	}
	return m, nil
}

func createExporter(ctx context.Context, cfg *MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}
}

func createResource(cfg *MetricsConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attrs...),
	)
}

func (m *Metrics) registerInstruments() error {
	procCPU, err := m.meter.Float64ObservableGauge("tegramon.process.cpu.utilization",
		metric.WithDescription("CPU used by the monitored process, percent of one core"),
		metric.WithUnit("%"))
	if err != nil {
		return err
	}
	procRSS, err := m.meter.Int64ObservableGauge("tegramon.process.memory.rss",
		metric.WithDescription("Resident set size of the monitored process"),
		metric.WithUnit("By"))
	if err != nil {
		return err
	}
	hostCPU, err := m.meter.Float64ObservableGauge("tegramon.host.cpu.utilization",
		metric.WithDescription("Host CPU utilization"),
		metric.WithUnit("%"))
	if err != nil {
		return err
	}
	hostMem, err := m.meter.Int64ObservableGauge("tegramon.host.memory.used",
		metric.WithDescription("Host memory in use (MemTotal - MemFree)"),
		metric.WithUnit("By"))
	if err != nil {
		return err
	}
	gpuUtil, err := m.meter.Int64ObservableGauge("tegramon.gpu.utilization",
		metric.WithDescription("GR3D load reported by tegrastats"),
		metric.WithUnit("%"))
	if err != nil {
		return err
	}
	gpuRAM, err := m.meter.Int64ObservableGauge("tegramon.gpu.memory.used",
		metric.WithDescription("Shared RAM in use reported by tegrastats"),
		metric.WithUnit("By"))
	if err != nil {
		return err
	}

	m.registration, err = m.meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			r := m.snapshot()
			if r.procCPU >= 0 {
				o.ObserveFloat64(procCPU, r.procCPU)
			}
			if r.procRSS >= 0 {
				o.ObserveInt64(procRSS, r.procRSS)
			}
			if r.hostCPU >= 0 {
				o.ObserveFloat64(hostCPU, r.hostCPU)
			}
			if r.hostMemory >= 0 {
				o.ObserveInt64(hostMem, r.hostMemory)
			}
			if r.gpuUtil >= 0 {
				o.ObserveInt64(gpuUtil, r.gpuUtil)
			}
			if r.gpuRAMUsed >= 0 {
				o.ObserveInt64(gpuRAM, r.gpuRAMUsed)
			}
			return nil
		},
		procCPU, procRSS, hostCPU, hostMem, gpuUtil, gpuRAM,
	)
	return err
}

func (m *Metrics) snapshot() readings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// RecordProcess stores the tracked process's CPU percent and RSS in bytes.
func (m *Metrics) RecordProcess(cpuPercent float64, rssBytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last.procCPU, m.last.procRSS = cpuPercent, int64(rssBytes)
}

// RecordHost stores host CPU percent and used memory in bytes. A negative
// cpuPercent leaves the host CPU gauge unobserved.
func (m *Metrics) RecordHost(cpuPercent float64, usedBytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last.hostCPU, m.last.hostMemory = cpuPercent, int64(usedBytes)
}

// RecordGPU stores the GR3D load and used RAM; pass negative values for
// fields the telemetry line did not carry.
func (m *Metrics) RecordGPU(utilPercent int, ramUsedBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last.gpuUtil, m.last.gpuRAMUsed = int64(utilPercent), ramUsedBytes
}

// Enabled reports whether an exporter is configured.
func (m *Metrics) Enabled() bool {
	return m.config.ExporterType != ExporterNone && m.config.ExporterType != ""
}

// MeterProvider returns the underlying meter provider.
func (m *Metrics) MeterProvider() *sdkmetric.MeterProvider { return m.meterProvider }

// Shutdown unregisters the gauges and flushes pending exports.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.registration != nil {
		if err := m.registration.Unregister(); err != nil {
			return fmt.Errorf("failed to unregister gauge callback: %w", err)
		}
		m.registration = nil
	}
	if m.shutdown != nil {
		return m.shutdown(ctx)
	}
	return nil
}

// NoopMetrics returns a Metrics that records but never exports.
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(context.Background(), DefaultMetricsConfig())
	return m
}
