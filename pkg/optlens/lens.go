/*
Package optlens implements small composable lenses: a Lens[S, A] knows how to
get an A out of an S and how to set an A into an S, returning a new S rather
than mutating the one it was given. Used by package model's UpdateDeep to
patch one nested field of a larger state value without hand-writing a copy
for every level of nesting at every call site.
*/
package optlens

// Lens focuses on one field A inside a larger value S. Get and Set must
// satisfy the usual lens laws (get(set(s,a)) == a, set(s,get(s)) == s,
// set(set(s,a),b) == set(s,b)); Lenses built with At below satisfy them by
// construction as long as the passed getter/setter pair does.
type Lens[S, A any] struct {
	Get func(S) A
	Set func(S, A) S
}

// At builds a Lens from a getter and a setter function — the usual way to
// hand-write one for a specific struct field:
//
//	nameLens := optlens.At(
//	    func(u User) string { return u.Name },
//	    func(u User, name string) User { u.Name = name; return u },
//	)
func At[S, A any](get func(S) A, set func(S, A) S) Lens[S, A] {
	return Lens[S, A]{Get: get, Set: set}
}

// Compose builds a Lens[S, B] that focuses through an intermediate A, e.g.
// address lens composed with a zip-code lens to reach from a User straight
// to its zip code.
func Compose[S, A, B any](outer Lens[S, A], inner Lens[A, B]) Lens[S, B] {
	return Lens[S, B]{
		Get: func(s S) B {
			return inner.Get(outer.Get(s))
		},
		Set: func(s S, b B) S {
			a := outer.Get(s)
			a = inner.Set(a, b)
			return outer.Set(s, a)
		},
	}
}

// Over applies fn to the focused field and sets the result back, the
// update-in-place idiom built from Get+Set.
func Over[S, A any](l Lens[S, A], s S, fn func(A) A) S {
	return l.Set(s, fn(l.Get(s)))
}
