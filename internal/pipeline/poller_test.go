package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/photo-pipeline/constants"
	"github.com/joseph-ayodele/photo-pipeline/internal/common"
)

type recordingSleeper struct {
	calls []time.Duration
	err   error
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return s.err
}

func TestPoller_StopsAtFirstTerminalStatus(t *testing.T) {
	client := newFakeClient().script("abc", running("abc"), running("abc"), succeeded("abc", "https://x/out1.png"))
	sleeper := &recordingSleeper{}
	p := NewPoller(client, quietLogger(), WithSleeper(sleeper.sleep))

	pred, err := p.Wait(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, constants.PredictionSucceeded, pred.Status)
	assert.Equal(t, 3, client.fetchCount("abc"))
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, sleeper.calls)
}

func TestPoller_FailedAndCanceledAreTerminal(t *testing.T) {
	for _, status := range []constants.PredictionStatus{constants.PredictionFailed, constants.PredictionCanceled} {
		t.Run(string(status), func(t *testing.T) {
			res := running("j")
			res.pred.Status = status
			client := newFakeClient().script("j", res)
			p := NewPoller(client, quietLogger(), WithSleeper(noSleep))

			pred, err := p.Wait(context.Background(), "j")
			require.NoError(t, err)
			assert.Equal(t, status, pred.Status)
			assert.Equal(t, 1, client.fetchCount("j"))
		})
	}
}

func TestPoller_ExhaustsExactBudget(t *testing.T) {
	client := newFakeClient().script("slow", running("slow"))
	sleeper := &recordingSleeper{}
	p := NewPoller(client, quietLogger(), WithSleeper(sleeper.sleep))

	_, err := p.Wait(context.Background(), "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPollTimeout)
	assert.Equal(t, 60, client.fetchCount("slow"))
	assert.Len(t, sleeper.calls, 59)
}

func TestPoller_FetchErrorsConsumeAttempts(t *testing.T) {
	upstream := common.UpstreamError("GET predictions/flaky", errors.New("503"))
	client := newFakeClient().script("flaky",
		fetchResult{err: upstream},
		fetchResult{err: upstream},
		succeeded("flaky", "https://x/o.png"),
	)
	p := NewPoller(client, quietLogger(), WithSleeper(noSleep), WithMaxAttempts(3))

	pred, err := p.Wait(context.Background(), "flaky")
	require.NoError(t, err)
	assert.Equal(t, constants.PredictionSucceeded, pred.Status)
	assert.Equal(t, 3, client.fetchCount("flaky"))
}

func TestPoller_TimeoutWrapsLastFetchError(t *testing.T) {
	upstream := common.UpstreamError("GET predictions/down", errors.New("connection refused"))
	client := newFakeClient().script("down", fetchResult{err: upstream})
	p := NewPoller(client, quietLogger(), WithSleeper(noSleep), WithMaxAttempts(4))

	_, err := p.Wait(context.Background(), "down")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPollTimeout)
	assert.ErrorIs(t, err, common.ErrUpstream)
	assert.Equal(t, 4, client.fetchCount("down"))
}

func TestPoller_SleepInterruptionStopsPolling(t *testing.T) {
	client := newFakeClient().script("j", running("j"))
	sleeper := &recordingSleeper{err: context.Canceled}
	p := NewPoller(client, quietLogger(), WithSleeper(sleeper.sleep))

	_, err := p.Wait(context.Background(), "j")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, client.fetchCount("j"))
}

func TestContextSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, contextSleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, contextSleep(context.Background(), time.Millisecond))
}
