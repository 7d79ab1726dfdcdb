// Package backoff computes the delay a retry layer waits between attempts.
package backoff

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// Strategy returns how long to wait before the attempt following the given
// zero-based failed attempt.
type Strategy interface {
	Duration(attempt uint) time.Duration
}

// Fixed waits the same delay after every attempt.
type Fixed time.Duration

// Duration for Fixed.
func (f Fixed) Duration(uint) time.Duration {
	return time.Duration(f)
}

// ExponentialOption customizes an exponential strategy.
type ExponentialOption func(*exponentialOptions)

type exponentialOptions struct {
	base, max time.Duration
	jitter    bool
	rand      *rand.Rand
}

func (e exponentialOptions) validate() (err error) {
	if e.base <= 0 {
		err = multierr.Append(err, errors.New("invalid base for exponential backoff, need greater than zero"))
	}
	if e.max < 0 {
		err = multierr.Append(err, errors.New("invalid cap for exponential backoff, need greater than or equal to zero"))
	}
	if e.max > 0 && e.max < e.base {
		err = multierr.Append(err, errors.New("exponential backoff cap must not be lower than base"))
	}
	return err
}

// WithJitter picks a uniformly random delay in [0, computed] ("full jitter").
func WithJitter() ExponentialOption {
	return func(o *exponentialOptions) {
		o.jitter = true
	}
}

func randGenerator(r *rand.Rand) ExponentialOption {
	return func(o *exponentialOptions) {
		o.rand = r
	}
}

// Exponential doubles the delay after every attempt, starting at base and
// never exceeding the cap. A zero cap means no cap.
type Exponential struct {
	opts exponentialOptions
	mu   sync.Mutex // guards opts.rand
}

// NewExponential returns an exponential strategy.
func NewExponential(base, cap time.Duration, opts ...ExponentialOption) (*Exponential, error) {
	options := exponentialOptions{
		base: base,
		max:  cap,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	return &Exponential{opts: options}, nil
}

// Duration for Exponential.
func (e *Exponential) Duration(attempt uint) time.Duration {
	if attempt > 62 {
		attempt = 62
	}
	d := time.Duration(int64(1)<<attempt) * e.opts.base
	// either the shift overflowed or we went past the cap
	if d <= 0 || d/e.opts.base != time.Duration(int64(1)<<attempt) || (e.opts.max > 0 && d > e.opts.max) {
		if e.opts.max > 0 {
			d = e.opts.max
		} else {
			d = time.Duration(math.MaxInt64)
		}
	}
	if !e.opts.jitter {
		return d
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	n := int64(d)
	if n < math.MaxInt64 {
		n++
	}
	return time.Duration(e.opts.rand.Int63n(n))
}
