package cqrs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	t.Parallel()

	ok := Ok(42)
	assert.True(t, ok.Succeeded())
	assert.False(t, ok.Failed())
	assert.Equal(t, 42, ok.Data())
	data, err := ok.Get()
	assert.Equal(t, 42, data)
	assert.NoError(t, err)

	errFailed := errors.New("failed")
	failed := Fail[int](errFailed)
	assert.True(t, failed.Failed())
	assert.Zero(t, failed.Data())
	assert.Same(t, errFailed, failed.Err())

	assert.ErrorIs(t, Fail[Void](nil).Err(), ErrUnknownFailure)
	assert.True(t, OkVoid().Succeeded())

	var env Envelope = failed
	assert.False(t, env.Succeeded())
}
