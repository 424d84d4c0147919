// SPDX-License-Identifier: MIT

// Package state implements the application state controller: a fixed
// transition table over the nine application states, bounded transition
// history, per-state dwell time accounting and pause/resume semantics.
package state

// State is one named mode of overall application operation.
type State string

const (
	Initializing    State = "Initializing"
	Loading         State = "Loading"
	Ready           State = "Ready"
	Exploring       State = "Exploring"
	ViewingDetail   State = "ViewingDetail"
	MenuOpen        State = "MenuOpen"
	ExternalSession State = "ExternalSession"
	Error           State = "Error"
	Paused          State = "Paused"
)

// All lists every valid state, in declaration order.
func All() []State {
	return []State{
		Initializing, Loading, Ready, Exploring, ViewingDetail,
		MenuOpen, ExternalSession, Error, Paused,
	}
}

// Valid reports whether s is one of the nine named states.
func Valid(s State) bool {
	_, ok := transitionTable[s]
	return ok
}

// transitionTable maps each state to the set of states directly reachable
// from it. It never changes at runtime.
var transitionTable = map[State]map[State]struct{}{
	Initializing:    set(Loading, Error),
	Loading:         set(Ready, Error),
	Ready:           set(Exploring, Error),
	Exploring:       set(ViewingDetail, MenuOpen, ExternalSession, Paused, Error),
	ViewingDetail:   set(Exploring, MenuOpen, Paused, Error),
	MenuOpen:        set(Exploring, ViewingDetail, Paused, Error),
	ExternalSession: set(Exploring, Error),
	Error:           set(Loading, Ready, Exploring),
	Paused:          set(Exploring, ViewingDetail, MenuOpen),
}

func set(states ...State) map[State]struct{} {
	m := make(map[State]struct{}, len(states))
	for _, s := range states {
		m[s] = struct{}{}
	}
	return m
}

// CanTransition reports whether the table permits moving from one state to
// another.
func CanTransition(from, to State) bool {
	targets, ok := transitionTable[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// ReachableFrom returns the set of states directly reachable from s, in
// declaration order.
func ReachableFrom(s State) []State {
	targets, ok := transitionTable[s]
	if !ok {
		return nil
	}
	out := make([]State, 0, len(targets))
	for _, candidate := range All() {
		if _, ok := targets[candidate]; ok {
			out = append(out, candidate)
		}
	}
	return out
}
