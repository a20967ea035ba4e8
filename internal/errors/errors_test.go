package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaultsComponent(t *testing.T) {
	t.Parallel()

	err := Newf("bad node %q", "n1").Category(CategoryGraph).Build()
	require.Error(t, err)
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.Equal(t, CategoryGraph, err.Category)
	assert.Contains(t, err.Error(), "n1")
}

func TestBuilderContextAndWrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := New(cause).
		Component("recorder").
		Category(CategoryRecorder).
		Context("path", "/tmp/out.wav").
		Build()

	require.Error(t, err)
	assert.Equal(t, "recorder", err.Component)
	assert.Equal(t, cause, err.Unwrap())
	assert.Equal(t, "/tmp/out.wav", err.GetContext()["path"])
	assert.True(t, errors.Is(err, cause))
}

func TestIsCategoryMatch(t *testing.T) {
	t.Parallel()

	a := New(nil).Category(CategoryFilter).Build()
	b := New(nil).Category(CategoryFilter).Build()
	c := New(nil).Category(CategoryGraph).Build()

	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
}
