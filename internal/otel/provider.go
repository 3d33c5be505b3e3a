// Package otel sets up the OpenTelemetry log pipeline for a session.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ErrNoSink is returned when OTel is enabled with neither a writer nor an endpoint.
var ErrNoSink = errors.New("otel enabled but no log writer or endpoint configured")

// Config holds OTel configuration.
type Config struct {
	Enabled      bool
	ServiceName  string
	Version      string
	InstanceID   string // session id; optional
	BatchTimeout time.Duration
	LogWriter    io.Writer // pretty-printed records, e.g. the session log file
	Endpoint     string    // OTLP/HTTP host:port; optional
	Insecure     bool
}

// Provider owns the log pipeline. A disabled Provider is valid and does nothing.
type Provider struct {
	logProvider *sdklog.LoggerProvider
	config      Config
}

// New builds the pipeline described by cfg.
func New(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	var processors []sdklog.Processor
	if cfg.LogWriter != nil {
		proc, err := fileProcessor(cfg)
		if err != nil {
			return nil, err
		}
		processors = append(processors, proc)
	}
	if cfg.Endpoint != "" {
		proc, err := otlpProcessor(cfg)
		if err != nil {
			return nil, err
		}
		processors = append(processors, proc)
	}
	if len(processors) == 0 {
		return nil, ErrNoSink
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, proc := range processors {
		opts = append(opts, sdklog.WithProcessor(proc))
	}
	p.logProvider = sdklog.NewLoggerProvider(opts...)
	return p, nil
}

func newResource(cfg Config) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	}
	if cfg.Version != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.Version)))
	}
	if cfg.InstanceID != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceInstanceID(cfg.InstanceID)))
	}
	res, err := resource.New(context.Background(), attrs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func fileProcessor(cfg Config) (sdklog.Processor, error) {
	exp, err := stdoutlog.New(
		stdoutlog.WithWriter(cfg.LogWriter),
		stdoutlog.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create file log exporter: %w", err)
	}
	return sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout)), nil
}

func otlpProcessor(cfg Config) (sdklog.Processor, error) {
	opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	exp, err := otlploghttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}
	return sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout)), nil
}

// LoggerProvider feeds the otelslog bridge. Nil when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logProvider
}

// Meter returns a meter from the global provider. It is a no-op meter
// unless the host installed a MeterProvider.
func (p *Provider) Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// Flush exports buffered records.
func (p *Provider) Flush(ctx context.Context) error {
	if p.logProvider == nil {
		return nil
	}
	if err := p.logProvider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("log flush failed: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the pipeline. Call once on exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.logProvider == nil {
		return nil
	}
	if err := p.logProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("log shutdown failed: %w", err)
	}
	return nil
}

func (p *Provider) Enabled() bool {
	return p.config.Enabled
}
