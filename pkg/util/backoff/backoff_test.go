package backoff

import (
	"context"
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_NextDelay(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		minBackoff     time.Duration
		maxBackoff     time.Duration
		expectedRanges [][]time.Duration
	}{
		"exponential backoff with jitter honoring min and max": {
			minBackoff: 100 * time.Millisecond,
			maxBackoff: 2 * time.Second,
			expectedRanges: [][]time.Duration{
				{100 * time.Millisecond, 200 * time.Millisecond},
				{200 * time.Millisecond, 400 * time.Millisecond},
				{400 * time.Millisecond, 800 * time.Millisecond},
				{800 * time.Millisecond, 1600 * time.Millisecond},
				{1600 * time.Millisecond, 2000 * time.Millisecond},
				{1600 * time.Millisecond, 2000 * time.Millisecond},
			},
		},
		"max just above the end of a range": {
			minBackoff: 100 * time.Millisecond,
			maxBackoff: 801 * time.Millisecond,
			expectedRanges: [][]time.Duration{
				{100 * time.Millisecond, 200 * time.Millisecond},
				{200 * time.Millisecond, 400 * time.Millisecond},
				{400 * time.Millisecond, 800 * time.Millisecond},
				{800 * time.Millisecond, 801 * time.Millisecond},
			},
		},
		"min backoff is equal to max": {
			minBackoff: 100 * time.Millisecond,
			maxBackoff: 100 * time.Millisecond,
			expectedRanges: [][]time.Duration{
				{100 * time.Millisecond, 100 * time.Millisecond},
				{100 * time.Millisecond, 100 * time.Millisecond},
			},
		},
		"min backoff is greater than max": {
			minBackoff: 200 * time.Millisecond,
			maxBackoff: 100 * time.Millisecond,
			expectedRanges: [][]time.Duration{
				{200 * time.Millisecond, 200 * time.Millisecond},
				{200 * time.Millisecond, 200 * time.Millisecond},
			},
		},
	}

	for testName, testData := range tests {
		testData := testData
		t.Run(testName, func(t *testing.T) {
			t.Parallel()

			b := New(context.Background(), Config{
				MinBackoff: testData.minBackoff,
				MaxBackoff: testData.maxBackoff,
				MaxRetries: len(testData.expectedRanges),
			})

			for _, expectedRange := range testData.expectedRanges {
				delay := b.NextDelay()
				assert.GreaterOrEqual(t, delay, expectedRange[0])
				assert.LessOrEqual(t, delay, expectedRange[1])
			}
		})
	}
}

func TestBackoff_MaxRetries(t *testing.T) {
	t.Parallel()

	b := New(context.Background(), Config{MinBackoff: time.Nanosecond, MaxBackoff: time.Nanosecond, MaxRetries: 2})
	require.True(t, b.Ongoing())

	b.Wait()
	assert.True(t, b.Ongoing())
	assert.NoError(t, b.Err())

	b.Wait()
	assert.False(t, b.Ongoing())
	assert.Equal(t, 2, b.NumRetries())
	assert.EqualError(t, b.Err(), "terminated after 2 retries")
}

func TestBackoff_UnlimitedRetries(t *testing.T) {
	t.Parallel()

	b := New(context.Background(), Config{MinBackoff: time.Nanosecond, MaxBackoff: time.Nanosecond})
	for i := 0; i < 10; i++ {
		b.Wait()
	}
	assert.True(t, b.Ongoing())
	assert.Equal(t, 10, b.NumRetries())
	assert.NoError(t, b.Err())
}

func TestBackoff_WaitReusesTimer(t *testing.T) {
	t.Parallel()

	b := New(context.Background(), Config{MinBackoff: time.Nanosecond, MaxBackoff: time.Nanosecond})

	b.Wait()
	require.NotNil(t, b.waitTimer)
	first := b.waitTimer

	b.Wait()
	assert.Same(t, first, b.waitTimer)
}

func TestBackoff_WaitReturnsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	b := New(ctx, Config{MinBackoff: time.Second, MaxBackoff: time.Second})

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	startedAt := time.Now()
	b.Wait()

	assert.Less(t, time.Since(startedAt), 900*time.Millisecond)
	assert.False(t, b.Ongoing())
	assert.Equal(t, context.Canceled, b.Err())
}

func TestConfig_RegisterFlagsWithPrefix(t *testing.T) {
	cfg := Config{}
	fs := flag.NewFlagSet("", flag.PanicOnError)
	cfg.RegisterFlagsWithPrefix("fragmenter.gss", fs, 100*time.Millisecond, 2*time.Second, 5)
	require.NoError(t, fs.Parse([]string{"-fragmenter.gss.max-retries=2"}))

	assert.Equal(t, Config{MinBackoff: 100 * time.Millisecond, MaxBackoff: 2 * time.Second, MaxRetries: 2}, cfg)
	assert.NoError(t, cfg.Validate())

	cfg.MaxRetries = -1
	assert.Error(t, cfg.Validate())
}
