package optlens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type address struct {
	Zip string
}

type user struct {
	Name    string
	Address address
}

func TestAtGetSet(t *testing.T) {
	nameLens := At(
		func(u user) string { return u.Name },
		func(u user, n string) user { u.Name = n; return u },
	)
	u := user{Name: "alice"}
	u2 := nameLens.Set(u, "bob")
	assert.Equal(t, "alice", u.Name, "Set must not mutate the original")
	assert.Equal(t, "bob", nameLens.Get(u2))
}

func TestComposeReachesNestedField(t *testing.T) {
	addressLens := At(
		func(u user) address { return u.Address },
		func(u user, a address) user { u.Address = a; return u },
	)
	zipLens := At(
		func(a address) string { return a.Zip },
		func(a address, z string) address { a.Zip = z; return a },
	)
	userZip := Compose(addressLens, zipLens)

	u := user{Name: "alice", Address: address{Zip: "00000"}}
	u2 := userZip.Set(u, "94107")
	assert.Equal(t, "94107", u2.Address.Zip)
	assert.Equal(t, "00000", u.Address.Zip, "Set must not mutate the original")
}

func TestOverAppliesFunctionThroughLens(t *testing.T) {
	nameLens := At(
		func(u user) string { return u.Name },
		func(u user, n string) user { u.Name = n; return u },
	)
	u := Over(nameLens, user{Name: "alice"}, func(n string) string { return n + "!" })
	assert.Equal(t, "alice!", u.Name)
}
