package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixed returns a provider that always answers out/err and counts calls.
func fixed(out string, err error, calls *int) Provider {
	return Func(func(context.Context, string, string) (string, error) {
		*calls++
		return out, err
	})
}

func TestNewChain_NoProviders(t *testing.T) {
	_, err := NewChain(nil)
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestChain_FirstSuccessWins(t *testing.T) {
	var a, b int
	c, err := NewChain([]Named{
		{Name: "a", Provider: fixed("<code>ok</code>", nil, &a)},
		{Name: "b", Provider: fixed("unused", nil, &b)},
	})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "m", "ctx")
	require.NoError(t, err)
	assert.Equal(t, "<code>ok</code>", out)
	assert.Equal(t, 1, a)
	assert.Equal(t, 0, b)
	assert.Equal(t, ChainStats{Calls: 1}, c.Stats())
}

func TestChain_FallsBackOnTransportError(t *testing.T) {
	var a, b int
	c, err := NewChain([]Named{
		{Name: "a", Provider: fixed("", errors.New("connection refused"), &a)},
		{Name: "b", Provider: fixed("answer", nil, &b)},
	})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "m", "")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, ChainStats{Calls: 2, Fallbacks: 1}, c.Stats())
}

func TestChain_FallsBackOnQuotaText(t *testing.T) {
	var a, b int
	c, err := NewChain([]Named{
		{Name: "a", Provider: fixed("Error 429: RESOURCE_EXHAUSTED", nil, &a)},
		{Name: "b", Provider: fixed("answer", nil, &b)},
	})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "m", "")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, 1, b)
}

func TestChain_FallsBackOnQuotaError(t *testing.T) {
	var a, b int
	c, err := NewChain([]Named{
		{Name: "a", Provider: fixed("", ErrQuota, &a)},
		{Name: "b", Provider: fixed("answer", nil, &b)},
	})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "m", "")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
}

func TestChain_ExhaustedReturnsFailedArtifact(t *testing.T) {
	var a, b int
	c, err := NewChain([]Named{
		{Name: "a", Provider: fixed("", errors.New("down"), &a)},
		{Name: "b", Provider: fixed("quota exceeded", nil, &b)},
	})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "m", "")
	require.NoError(t, err)
	assert.Equal(t, FailedArtifact, out)
	assert.Equal(t, ChainStats{Calls: 2, Fallbacks: 1, Exhausted: 1}, c.Stats())
}

func TestChain_DeadlineIsHard(t *testing.T) {
	var b int
	slow := Func(func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	c, err := NewChain([]Named{
		{Name: "slow", Provider: WithTimeout(slow, 10*time.Millisecond)},
		{Name: "b", Provider: fixed("never", nil, &b)},
	})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "m", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, b, "a deadline overrun must not fall back")
	assert.Equal(t, int64(0), c.Stats().Fallbacks)
}

func TestChain_CancelIsHard(t *testing.T) {
	var a, b int
	c, err := NewChain([]Named{
		{Name: "a", Provider: fixed("", context.Canceled, &a)},
		{Name: "b", Provider: fixed("never", nil, &b)},
	})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "m", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, b)
}

func TestChain_RateLimitHonoursContext(t *testing.T) {
	var a int
	c, err := NewChain([]Named{{Name: "a", Provider: fixed("ok", nil, &a)}}, WithRateLimit(0.001, 1))
	require.NoError(t, err)

	// The first call consumes the burst.
	_, err = c.Generate(context.Background(), "m", "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Generate(ctx, "m", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
	assert.Equal(t, 1, a)
}

func TestWithTimeout_PassThrough(t *testing.T) {
	var n int
	p := fixed("ok", nil, &n)
	_, wrapped := WithTimeout(p, 0).(*timeoutProvider)
	assert.False(t, wrapped, "zero timeout leaves the provider unwrapped")

	out, err := WithTimeout(p, time.Second).Generate(context.Background(), "m", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestWithTimeout_WrapsDeadline(t *testing.T) {
	slow := Func(func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, err := WithTimeout(slow, 5*time.Millisecond).Generate(context.Background(), "m", "")
	require.Error(t, err)
	assert.True(t, IsDeadline(err))
	assert.Contains(t, err.Error(), "exceeded 5ms")
}
