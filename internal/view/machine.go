package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/evyataryagoni/iptracker/internal/logger"
	"github.com/evyataryagoni/iptracker/internal/lookup"
	"github.com/evyataryagoni/iptracker/internal/metrics"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrBusy is returned by Submit while a lookup is in flight
	ErrBusy = errors.New("a lookup is already in progress")

	// ErrSuperseded is returned by Submit when its cycle was reset before the lookup finished
	ErrSuperseded = errors.New("lookup superseded by a newer cycle")
)

// Looker performs one lookup (implemented by *lookup.Client)
type Looker interface {
	Lookup(ctx context.Context, query string) (*lookup.Result, error)
}

// Listener is told about every transition, in subscription order
// An error returned while applying Success turns the state into Error
type Listener func(State) error

// Machine drives the view: Idle -> Loading -> Success | Error, re-enterable forever
//
// Transitions and listener calls happen under one lock, so listeners see
// states in order and must not call back into the machine.
type Machine struct {
	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	looker    Looker
	timeout   time.Duration
	listeners []Listener
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// Option configures a Machine
type Option func(m *Machine)

// WithTimeout bounds each lookup; zero means no deadline beyond the caller's
func WithTimeout(d time.Duration) Option {
	return func(m *Machine) {
		m.timeout = d
	}
}

// WithMetrics records transitions (m may be nil)
func WithMetrics(mc *metrics.Metrics) Option {
	return func(m *Machine) {
		m.metrics = mc
	}
}

// WithLogger sets the machine logger
func WithLogger(log *logger.Logger) Option {
	return func(m *Machine) {
		m.logger = log
	}
}

// NewMachine creates a machine in the Idle state
func NewMachine(looker Looker, opts ...Option) *Machine {
	m := &Machine{
		state:  State{Kind: Idle},
		looker: looker,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Nop()
	}
	m.logger = m.logger.WithComponent("ViewMachine")
	return m
}

// Subscribe adds a listener; it is not called for the current state
func (m *Machine) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Submit runs one lookup cycle for raw and blocks until it settles
//
// Blank input goes straight to Error without a request. While a cycle is
// Loading, Submit returns ErrBusy and changes nothing. Otherwise the returned
// error is the one that put the machine into Error, or nil on Success.
func (m *Machine) Submit(ctx context.Context, raw string) error {
	m.mu.Lock()
	if m.state.Kind == Loading {
		m.mu.Unlock()
		m.logger.Debug().Msg("Submit ignored while loading")
		return ErrBusy
	}

	cycle := m.state.Cycle + 1
	cycleID := ulid.Make().String()

	query, err := lookup.ValidateInput(raw)
	if err != nil {
		m.transition(State{Kind: Error, Message: lookup.Message(err), Cycle: cycle, CycleID: cycleID})
		m.mu.Unlock()
		return err
	}

	if m.timeout > 0 {
		ctx, m.cancel = context.WithTimeout(ctx, m.timeout)
	} else {
		ctx, m.cancel = context.WithCancel(ctx)
	}
	cancel := m.cancel
	defer cancel()

	m.transition(State{Kind: Loading, Cycle: cycle, CycleID: cycleID})
	m.mu.Unlock()

	log := m.logger.WithCycle(cycleID)
	log.Info().Str("query", query).Msg("Lookup started")
	result, lookupErr := m.looker.Lookup(ctx, query)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Cycle != cycle {
		log.Info().Uint64("current_cycle", m.state.Cycle).Msg("Discarding result of superseded cycle")
		return ErrSuperseded
	}
	m.cancel = nil

	if lookupErr != nil {
		log.Warn().Err(lookupErr).Msg("Lookup failed")
		m.transition(State{Kind: Error, Message: lookup.Message(lookupErr), Cycle: cycle, CycleID: cycleID})
		return lookupErr
	}

	log.Info().Str("resolved_ip", result.IP).Msg("Lookup succeeded")
	return m.transition(State{Kind: Success, Result: result, Cycle: cycle, CycleID: cycleID})
}

// Reset returns to Idle, aborting any in-flight lookup
// The aborted cycle's outcome is discarded
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.transition(State{Kind: Idle, Cycle: m.state.Cycle + 1})
}

// Fail moves the Success of cycle into Error after the fact, for renderers
// that report from outside the process (the browser's map). Any other state
// is left alone and ErrSuperseded returned
func (m *Machine) Fail(cycle uint64, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Kind != Success || m.state.Cycle != cycle {
		return ErrSuperseded
	}

	m.logger.Error().Err(err).Str("cycle_id", m.state.CycleID).Msg("Rendering failed")
	failed := State{Kind: Error, Message: lookup.Message(err), Cycle: cycle, CycleID: m.state.CycleID}
	m.set(failed)
	for _, l := range m.listeners {
		l(failed)
	}
	return nil
}

// transition replaces the state and notifies listeners; callers hold mu
func (m *Machine) transition(next State) error {
	m.set(next)

	for _, l := range m.listeners {
		err := l(next)
		if err == nil || next.Kind != Success {
			continue
		}

		m.logger.Error().Err(err).Str("cycle_id", next.CycleID).Msg("Rendering failed")
		failed := State{Kind: Error, Message: lookup.Message(err), Cycle: next.Cycle, CycleID: next.CycleID}
		m.set(failed)
		for _, l := range m.listeners {
			l(failed)
		}
		return err
	}
	return nil
}

func (m *Machine) set(next State) {
	m.logger.Debug().
		Str("from", m.state.Kind.String()).
		Str("to", next.Kind.String()).
		Uint64("cycle", next.Cycle).
		Msg("View transition")
	m.state = next
	if m.metrics != nil {
		m.metrics.ViewTransitions.WithLabelValues(next.Kind.String()).Inc()
	}
}
