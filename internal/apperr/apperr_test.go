package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := Conflictf("event %q already exists", "Standup")

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, `event "Standup" already exists`, err.Error())
}

func TestIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("copy: %w", NotFoundf("calendar %q not found", "Work"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("parsing time")
	err := Wrap(cause, CodeValidation, "invalid start")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "invalid start: parsing time", err.Error())
}

func TestCloneDoesNotMutateBase(t *testing.T) {
	c := Clone(ErrState, "no calendar selected")

	assert.Equal(t, "no calendar selected", c.Message)
	assert.Equal(t, "invalid state", ErrState.Message)
	assert.Nil(t, Clone(nil, "x"))
}
