package fiber

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/yuanfeng0905/luv/eventloop"
)

// DefaultStuckWarningRates limits how often a drive loop that returned with
// contexts still suspended is reported, per main context.
var DefaultStuckWarningRates = map[time.Duration]int{
	time.Second: 1,
	time.Minute: 10,
}

type schedulerOptions struct {
	logger      *logiface.Logger[logiface.Event]
	loop        *eventloop.Loop
	loopOptions []eventloop.LoopOption
	stuckRates  map[time.Duration]int
	stackLimit  int
}

// Option configures a Scheduler.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

type optionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (o *optionImpl) applyScheduler(opts *schedulerOptions) error {
	return o.applySchedulerFunc(opts)
}

// WithLoop uses an existing reactor, instead of creating one. The Scheduler
// does not close a reactor provided this way.
func WithLoop(loop *eventloop.Loop) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if loop == nil {
			return errors.New("fiber: nil loop")
		}
		opts.loop = loop
		return nil
	}}
}

// WithLoopOptions configures the reactor created by the Scheduler. It has no
// effect in combination with WithLoop.
func WithLoopOptions(options ...eventloop.LoopOption) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.loopOptions = append(opts.loopOptions, options...)
		return nil
	}}
}

// WithStackLimit sets the value stack limit of the main context and of
// spawned fibers. Defaults to valuestack.DefaultLimit.
func WithStackLimit(limit int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if limit <= 0 {
			return errors.New("fiber: stack limit must be positive")
		}
		opts.stackLimit = limit
		return nil
	}}
}

// WithLogger attaches a structured logger. Await, rouse and notify are traced
// at debug level. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithStuckWarningRates overrides DefaultStuckWarningRates. An empty map
// disables rate limiting.
func WithStuckWarningRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.stuckRates = rates
		return nil
	}}
}

func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		stuckRates: DefaultStuckWarningRates,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
