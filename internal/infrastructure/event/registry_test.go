package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	specific := &testHandler{}
	wildcard := &testHandler{}
	both := &testHandler{}

	r.Register(specific, "A", "B")
	r.Register(wildcard)
	r.Register(both, "A")
	r.Register(both)

	assert.Len(t, r.GetHandlers("A"), 4)
	assert.Len(t, r.GetHandlers("B"), 3)
	assert.Len(t, r.GetHandlers("C"), 2)
	assert.Equal(t, 3, r.Count())

	r.Unregister(both)
	assert.Len(t, r.GetHandlers("A"), 2)
	assert.Equal(t, 2, r.Count())

	r.Unregister(specific)
	assert.Len(t, r.GetHandlers("B"), 1)
}
