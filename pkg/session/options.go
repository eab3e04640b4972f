package session

import (
	"math/rand/v2"
	"time"

	"github.com/bornholm/rewarder/pkg/attempt"
	"github.com/bornholm/rewarder/pkg/pool"
)

const (
	DefaultMinPacing = 10 * time.Second
	DefaultMaxPacing = 15 * time.Second
	DefaultPoolSize  = 100
)

type Options struct {
	MinPacing time.Duration
	MaxPacing time.Duration
	Sleep     attempt.SleepFunc
	Rand      *rand.Rand
	Now       func() time.Time
	// Refill is used to rebuild the pool when stale. The pool is used as-is
	// when nil.
	Refill   pool.RefillFunc
	PoolSize int
	Recorder Recorder
}

type OptionFunc func(opts *Options)

func NewOptions(funcs ...OptionFunc) *Options {
	opts := &Options{
		MinPacing: DefaultMinPacing,
		MaxPacing: DefaultMaxPacing,
		Sleep:     attempt.Sleep,
		Rand:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		Now:       time.Now,
		PoolSize:  DefaultPoolSize,
	}

	for _, fn := range funcs {
		fn(opts)
	}

	return opts
}

func WithPacing(lower, upper time.Duration) OptionFunc {
	return func(opts *Options) {
		if upper < lower {
			lower, upper = upper, lower
		}

		opts.MinPacing = lower
		opts.MaxPacing = upper
	}
}

func WithSleep(sleep attempt.SleepFunc) OptionFunc {
	return func(opts *Options) {
		opts.Sleep = sleep
	}
}

func WithRand(rnd *rand.Rand) OptionFunc {
	return func(opts *Options) {
		opts.Rand = rnd
	}
}

func WithNow(now func() time.Time) OptionFunc {
	return func(opts *Options) {
		opts.Now = now
	}
}

func WithRefill(refill pool.RefillFunc, size int) OptionFunc {
	return func(opts *Options) {
		opts.Refill = refill
		if size > 0 {
			opts.PoolSize = size
		}
	}
}

func WithRecorder(recorder Recorder) OptionFunc {
	return func(opts *Options) {
		opts.Recorder = recorder
	}
}
