package structaccess

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type baseEntity struct {
	ID      string `bson:"_id"`
	Created string
}

type person struct {
	baseEntity
	Name    string `bson:"name"`
	Email   string `json:"email_address"`
	Address address
	hidden  string
}

type address struct {
	City string `bson:"city"`
}

type withNilEmbed struct {
	*baseEntity
	Name string
}

func TestLookup(t *testing.T) {
	pt := reflect.TypeOf(person{})

	tests := []struct {
		name  string
		field string
		found bool
	}{
		{name: "go field name", field: "Name", found: true},
		{name: "bson tag", field: "name", found: true},
		{name: "json tag", field: "email_address", found: true},
		{name: "lowercased field name", field: "address", found: true},
		{name: "promoted from embedded", field: "_id", found: true},
		{name: "promoted by name", field: "Created", found: true},
		{name: "unexported", field: "hidden", found: false},
		{name: "absent", field: "nope", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Lookup(pt, tt.field)
			assert.Equal(t, tt.found, ok)
		})
	}
}

func TestLookupIsMemoized(t *testing.T) {
	pt := reflect.TypeOf(person{})

	first, ok := Lookup(pt, "name")
	require.True(t, ok)
	second, ok := Lookup(pt, "name")
	require.True(t, ok)
	assert.Equal(t, first, second)

	// Misses are memoized too.
	_, ok = Lookup(pt, "definitely-not-here")
	assert.False(t, ok)
	_, ok = Lookup(pt, "definitely-not-here")
	assert.False(t, ok)
}

func TestField(t *testing.T) {
	p := person{Name: "alice"}
	p.ID = "p-1"
	v := reflect.ValueOf(&p).Elem()

	fv, ok := Field(v, "name")
	require.True(t, ok)
	assert.Equal(t, "alice", fv.String())
	require.True(t, fv.CanSet())
	fv.SetString("bob")
	assert.Equal(t, "bob", p.Name)

	fv, ok = Field(v, "_id")
	require.True(t, ok)
	assert.Equal(t, "p-1", fv.String())
}

func TestFieldThroughNilEmbeddedPointer(t *testing.T) {
	v := reflect.ValueOf(&withNilEmbed{Name: "x"}).Elem()

	_, ok := Field(v, "_id")
	assert.False(t, ok)

	fv, ok := Field(v, "Name")
	require.True(t, ok)
	assert.Equal(t, "x", fv.String())
}
