package domain

import (
	"fmt"
	"sort"
)

// Transitions is an explicit finite-state-machine definition: for each state,
// the set of states it may move to. A state absent from the map (or mapped to
// an empty set) is terminal.
type Transitions[S ~string] map[S][]S

// Can reports whether the edge from -> to exists.
func (t Transitions[S]) Can(from, to S) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Step validates the edge from -> to, returning a wrapped ErrInvalidState
// naming both states when the edge is not in the set.
func (t Transitions[S]) Step(from, to S) error {
	if !t.Can(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
	}
	return nil
}

// Terminal reports whether the given state has no outgoing edges.
func (t Transitions[S]) Terminal(s S) bool {
	return len(t[s]) == 0
}

// States returns every state mentioned in the edge set, sorted.
func (t Transitions[S]) States() []S {
	seen := map[S]bool{}
	for from, nexts := range t {
		seen[from] = true
		for _, n := range nexts {
			seen[n] = true
		}
	}
	out := make([]S, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PropertyTransitions is the one-way lifecycle of a property token inventory.
// Sold is terminal.
var PropertyTransitions = Transitions[PropertyStatus]{
	PropertyStatusDraft:   {PropertyStatusActive, PropertyStatusFunding},
	PropertyStatusActive:  {PropertyStatusFunding, PropertyStatusClosed},
	PropertyStatusFunding: {PropertyStatusClosed, PropertyStatusSold},
	PropertyStatusClosed:  {PropertyStatusSold},
}

// TransactionTransitions is the one-way status lifecycle of a journal entry.
// Failed and Refunded are terminal.
var TransactionTransitions = Transitions[TransactionStatus]{
	TransactionStatusPending:   {TransactionStatusCompleted, TransactionStatusFailed},
	TransactionStatusCompleted: {TransactionStatusRefunded},
}

// SellOrderTransitions is the lifecycle of a sell order. Filled and Cancelled
// are terminal.
var SellOrderTransitions = Transitions[SellOrderStatus]{
	SellOrderStatusOpen: {SellOrderStatusFilled, SellOrderStatusCancelled},
}
