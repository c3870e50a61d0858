package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMatchesSentinelAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError(PollTimeout("prediction p not terminal after 60 attempts", cause), "photo 7 phase 2")

	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrUpstream)
	assert.Equal(t, CodePollTimeout, CodeOf(err))
	assert.Contains(t, err.Error(), "photo 7 phase 2: POLL_TIMEOUT")
}

func TestWrapErrorNil(t *testing.T) {
	assert.NoError(t, WrapError(nil, "ignored"))
	assert.Empty(t, CodeOf(errors.New("plain")))
}

func TestAlreadyRunningf(t *testing.T) {
	err := AlreadyRunningf("photo %d is already being processed", 3)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, "ALREADY_RUNNING: photo 3 is already being processed", err.Error())
}
