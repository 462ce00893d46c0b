package errors

import (
	stderr "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
}

func TestWrapKeepsSentinel(t *testing.T) {
	sentinel := New("sentinel")
	first := sentinel.Wrap(stderr.New("first"))
	second := sentinel.Wrapf("second %d", 2)

	assert.True(t, Is(first, sentinel))
	assert.True(t, Is(second, sentinel))
	assert.Nil(t, sentinel.Unwrap(), "wrapping must not mutate the sentinel")
	assert.Equal(t, "sentinel", sentinel.Error())
	assert.Equal(t, "sentinel: first", first.Error())
	assert.Equal(t, "sentinel: second 2", second.Error())

	var target *Error
	require.True(t, As(first, &target))
	assert.Equal(t, first, target)
	assert.False(t, Is(first, New("sentinel")))
}
