package xtap

import (
	"github.com/trickstertwo/xlog"
)

// Option configures an Interceptor.
type Option func(*config)

type config struct {
	demand   Demand
	resource Resource
	stages   Stages
	source   any
	logger   *xlog.Logger
}

// WithDemand sets the upstream credit channel wrapped by Interceptor.Request.
func WithDemand(d Demand) Option {
	return func(c *config) { c.demand = d }
}

// WithResource attaches the interceptor's teardown to the host's disposal
// mechanism.
func WithResource(r Resource) Option {
	return func(c *config) { c.resource = r }
}

// WithStages records the adjacent stages for diagnostics.
func WithStages(upstream, downstream any) Option {
	return func(c *config) { c.stages = Stages{Upstream: upstream, Downstream: downstream} }
}

// WithSource makes OnStart report a Subscribe notification carrying source
// instead of a plain OnStart.
func WithSource(source any) Option {
	return func(c *config) { c.source = source }
}

// WithLogger sets the channel listener failures are reported on.
func WithLogger(l *xlog.Logger) Option {
	return func(c *config) { c.logger = l }
}
