package partlock

import (
	"github.com/joeycumines/logiface"
)

// kernelOptions holds configuration options for Kernel creation.
type kernelOptions struct {
	logger         *logiface.Logger[logiface.Event]
	metricsEnabled bool
}

// Option configures a Kernel instance.
type Option interface {
	applyKernel(*kernelOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyKernelFunc func(*kernelOptions) error
}

func (x *optionImpl) applyKernel(opts *kernelOptions) error {
	return x.applyKernelFunc(opts)
}

// WithLogger wires a structured logger into the kernel. A nil logger (the
// default) disables logging entirely; logiface builders are no-ops against a
// nil logger, so disabled logging costs nothing on the operation path.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables runtime counters on the kernel, accessible via
// [Kernel.Metrics]. The overhead is one atomic add per recorded outcome;
// disabled (the default), the counters are entirely absent.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveOptions applies Option instances to kernelOptions.
func resolveOptions(opts []Option) (*kernelOptions, error) {
	cfg := new(kernelOptions)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyKernel(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
