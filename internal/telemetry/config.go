// Package telemetry exports run and tool metrics to Prometheus and trace
// spans to an OTLP collector. Both are exposed as agent observers.
package telemetry

import (
	"errors"
	"fmt"
)

const defaultServiceName = "mcpflow"

// Config controls which exporters are enabled.
type Config struct {
	// Metrics enables the Prometheus collectors. Defaults to true.
	Metrics *bool `yaml:"metrics"`

	// OTLPEndpoint is the OTLP/HTTP traces endpoint URL, for example
	// http://localhost:4318/v1/traces. Tracing is disabled when empty.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of root runs traced, in [0, 1].
	// Defaults to 1.
	SampleRatio *float64 `yaml:"sample_ratio"`
}

func (c *Config) defaults() {
	if c.Metrics == nil {
		t := true
		c.Metrics = &t
	}
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.SampleRatio == nil {
		r := 1.0
		c.SampleRatio = &r
	}
}

func (c *Config) metricsEnabled() bool {
	return c.Metrics == nil || *c.Metrics
}

func (c *Config) sampleRatio() float64 {
	if c.SampleRatio == nil {
		return 1
	}
	return *c.SampleRatio
}

func (c *Config) validate() error {
	var errs []error
	if r := c.sampleRatio(); r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry: sample_ratio must be within [0, 1], got %v", r))
	}
	if c.ServiceName == "" {
		errs = append(errs, errors.New("telemetry: service_name must not be empty"))
	}
	return errors.Join(errs...)
}
