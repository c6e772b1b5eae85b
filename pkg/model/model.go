/*
Package model installs the standard Set/Update/Reset reducer shape most
plain state behaviors need, so a caller does not hand-roll the same three
reducers against store.AddState every time: replace the whole value, apply
an arbitrary function to it (UpdateDeep builds one that patches one field
through a lens), or put it back to its original initial value.
*/
package model

import (
	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/optlens"
	"github.com/cuemby/signalcore/pkg/store"
)

// Ids is the identifier bundle Install returns.
type Ids[T any] struct {
	State id.ID[T]

	// Set replaces the state outright with the dispatched value.
	Set id.ID[T]

	// Update applies the dispatched function to the current state.
	Update id.ID[func(T) T]

	// Reset puts the state back to its original initial value, discarding
	// every Set/Update/UpdateDeep since.
	Reset id.ID[struct{}]
}

// Install registers a state behavior under name with the standard
// Set/Update/Reset reducers wired in, returning the identifier bundle.
func Install[T any](s *store.Store, name string, initial T) Ids[T] {
	ids := Ids[T]{
		Set:    id.EventID[T](name + ".set"),
		Update: id.EventID[func(T) T](name + ".update"),
		Reset:  id.EventID[struct{}](name + ".reset"),
	}
	ids.State = store.AddState(s, name, initial)
	_ = store.AddReducer(s, ids.State, ids.Set, func(_, v T) T { return v })
	_ = store.AddReducer(s, ids.State, ids.Update, func(old T, fn func(T) T) T { return fn(old) })
	_ = store.AddReducer(s, ids.State, ids.Reset, func(T, struct{}) T { return initial })
	return ids
}

// UpdateDeep builds an Update payload (a func(T) T for Ids.Update) that
// patches one field of the state, focused through lens, leaving the rest of
// the value untouched — the deep variant of Update, which otherwise requires
// the caller to reconstruct the entire value by hand.
func UpdateDeep[T, A any](lens optlens.Lens[T, A], value A) func(T) T {
	return func(old T) T {
		return lens.Set(old, value)
	}
}

// UpdateDeepWith is UpdateDeep's functional-update counterpart: it applies
// fn to the lens-focused field's current value instead of replacing it
// outright.
func UpdateDeepWith[T, A any](lens optlens.Lens[T, A], fn func(A) A) func(T) T {
	return func(old T) T {
		return optlens.Over(lens, old, fn)
	}
}
