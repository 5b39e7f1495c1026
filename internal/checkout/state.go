package checkout

import (
	"context"
	"fmt"

	"github.com/angelmondragon/kirana-backend/pkg/logger"
)

// State is a step of one checkout attempt.
type State string

const (
	StateIdle            State = "idle"
	StateValidatingCart  State = "validating_cart"
	StateComputingTotal  State = "computing_total"
	StatePersistingOrder State = "persisting_order"
	StateClearingCart    State = "clearing_cart"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

var transitions = map[State][]State{
	StateIdle:            {StateValidatingCart, StateDone},
	StateValidatingCart:  {StateComputingTotal, StateDone},
	StateComputingTotal:  {StatePersistingOrder},
	StatePersistingOrder: {StateClearingCart, StateDone},
	StateClearingCart:    {StateDone},
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether next may follow s. Failed is reachable from
// every non-terminal state.
func (s State) CanTransition(next State) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// machine records the trail of one attempt and logs each transition.
type machine struct {
	logg    *logger.Logger
	current State
	trail   []State
	failed  State
}

func newMachine(logg *logger.Logger) *machine {
	return &machine{logg: logg, current: StateIdle, trail: []State{StateIdle}}
}

func (m *machine) advance(ctx context.Context, next State) (context.Context, error) {
	if !m.current.CanTransition(next) {
		return ctx, fmt.Errorf("checkout: illegal transition %s -> %s", m.current, next)
	}
	m.current = next
	m.trail = append(m.trail, next)
	ctx = m.logg.WithCheckoutState(ctx, string(next))
	m.logg.Info(ctx, "checkout state changed")
	return ctx, nil
}

// fail moves to Failed and remembers the step that failed.
func (m *machine) fail(ctx context.Context, err error) {
	if m.current.IsTerminal() {
		return
	}
	m.failed = m.current
	m.current = StateFailed
	m.trail = append(m.trail, StateFailed)
	ctx = m.logg.WithFields(ctx, map[string]any{"checkout_state": string(StateFailed), "failed_step": string(m.failed)})
	m.logg.Error(ctx, "checkout failed", err)
}

func (m *machine) Trail() []State {
	out := make([]State, len(m.trail))
	copy(out, m.trail)
	return out
}
