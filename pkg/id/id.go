/*
Package id implements the opaque identifier namespace that the store kernel and
the factory algebra key everything off of.

Identifiers are process-unique values carrying a phantom payload type and a kind
tag. Two identifiers are equal only if they are, in fact, the same identifier —
there is no structural or ordering comparison, by design: callers must obtain an
ID from one of the constructors below and thread it through, never reconstruct
one from a name or a number.
*/
package id

import (
	"fmt"
	"sync/atomic"
)

// Kind discriminates the four flavours of identifier the store understands.
type Kind int

const (
	KindRootState Kind = iota
	KindDerivedState
	KindEvent
	KindEffect
)

func (k Kind) String() string {
	switch k {
	case KindRootState:
		return "state"
	case KindDerivedState:
		return "derived"
	case KindEvent:
		return "event"
	case KindEffect:
		return "effect"
	default:
		return "unknown"
	}
}

// token is the private identity carrier. Two IDs are the same identifier iff
// they share a token pointer.
type token struct {
	kind Kind
	name string
	seq  uint64
}

// RawID is the type-erased, comparable handle the store uses as a map key
// regardless of an identifier's payload type.
type RawID = *token

// Kind reports the erased identifier's kind, usable directly on a RawID since
// RawID is a plain alias for *token.
func (t *token) Kind() Kind { return t.kind }

// Name reports the erased identifier's debug name, if any.
func (t *token) Name() string { return t.name }

var globalSeq uint64

func nextSeq() uint64 {
	return atomic.AddUint64(&globalSeq, 1)
}

func optName(name []string) string {
	if len(name) > 0 {
		return name[0]
	}
	return ""
}

// Identifier is the erased view of any ID[T] or EffectID[I,R], usable in
// kind-predicate functions and debug logging without knowing the payload type.
type Identifier interface {
	Kind() Kind
	Raw() RawID
	String() string
}

// ID is a strongly typed behavior/event identifier. T is never stored; it only
// constrains what store.GetBehavior / store.GetEventStream will hand back.
type ID[T any] struct {
	tok *token
}

func (id ID[T]) Kind() Kind  { return id.tok.kind }
func (id ID[T]) Raw() RawID  { return id.tok }
func (id ID[T]) Valid() bool { return id.tok != nil }

func (id ID[T]) String() string {
	if id.tok == nil {
		return "<nil-id>"
	}
	if id.tok.name != "" {
		return fmt.Sprintf("%s(%s#%d)", id.tok.kind, id.tok.name, id.tok.seq)
	}
	return fmt.Sprintf("%s(#%d)", id.tok.kind, id.tok.seq)
}

// EffectID is a strongly typed effect identifier keyed by both the effect's
// input and result payload types.
type EffectID[I, R any] struct {
	tok *token
}

func (id EffectID[I, R]) Kind() Kind  { return id.tok.kind }
func (id EffectID[I, R]) Raw() RawID  { return id.tok }
func (id EffectID[I, R]) Valid() bool { return id.tok != nil }

func (id EffectID[I, R]) String() string {
	if id.tok == nil {
		return "<nil-effect-id>"
	}
	if id.tok.name != "" {
		return fmt.Sprintf("effect(%s#%d)", id.tok.name, id.tok.seq)
	}
	return fmt.Sprintf("effect(#%d)", id.tok.seq)
}

// StateID mints a fresh root-state identifier. An optional debug name is
// carried only for logging; it plays no part in equality.
func StateID[T any](name ...string) ID[T] {
	return ID[T]{tok: &token{kind: KindRootState, name: optName(name), seq: nextSeq()}}
}

// DerivedID mints a fresh derived-state identifier.
func DerivedID[T any](name ...string) ID[T] {
	return ID[T]{tok: &token{kind: KindDerivedState, name: optName(name), seq: nextSeq()}}
}

// EventID mints a fresh event identifier.
func EventID[T any](name ...string) ID[T] {
	return ID[T]{tok: &token{kind: KindEvent, name: optName(name), seq: nextSeq()}}
}

// NewEffectID mints a fresh effect identifier. Named NewEffectID rather than
// EffectID to avoid colliding with the EffectID type itself.
func NewEffectID[I, R any](name ...string) EffectID[I, R] {
	return EffectID[I, R]{tok: &token{kind: KindEffect, name: optName(name), seq: nextSeq()}}
}

// IsStateID reports whether id names a root-state (reducer-backed) behavior.
func IsStateID(i Identifier) bool { return i != nil && i.Kind() == KindRootState }

// IsDerivedID reports whether id names a derived-state behavior.
func IsDerivedID(i Identifier) bool { return i != nil && i.Kind() == KindDerivedState }

// IsBehaviorID reports whether id names either flavour of behavior.
func IsBehaviorID(i Identifier) bool {
	return i != nil && (i.Kind() == KindRootState || i.Kind() == KindDerivedState)
}

// IsEventID reports whether id names an event.
func IsEventID(i Identifier) bool { return i != nil && i.Kind() == KindEvent }

// IsEffectID reports whether id names an effect.
func IsEffectID(i Identifier) bool { return i != nil && i.Kind() == KindEffect }
