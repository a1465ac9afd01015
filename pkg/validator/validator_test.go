package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	v := New()
	assert.True(t, v.Valid())

	v.Check(true, "x", "must be valid")
	assert.True(t, v.Valid())

	v.Check(false, "x", "must be valid")
	assert.False(t, v.Valid())
	assert.Equal(t, "must be valid", v.Errors["x"])
}

func TestAddErrorKeepsFirstMessage(t *testing.T) {
	v := New()
	v.AddError("x", "first")
	v.AddError("x", "second")

	assert.Equal(t, "first", v.Errors["x"])
}

func TestPermittedValue(t *testing.T) {
	assert.True(t, PermittedValue("online", "online", "offline"))
	assert.False(t, PermittedValue("busy", "online", "offline"))
	assert.True(t, PermittedValue(2, 1, 2, 3))
}

func TestUnique(t *testing.T) {
	assert.True(t, Unique([]int64{1, 2, 3}))
	assert.False(t, Unique([]int64{1, 2, 2}))
}
