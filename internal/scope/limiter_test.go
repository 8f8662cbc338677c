package scope

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	scaerr "github.com/tryterra/static-analysis/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestForEachFile_AllComplete(t *testing.T) {
	files := []string{"a", "b", "c", "d"}
	results := ForEachFile(context.Background(), files, 2, func(_ context.Context, path string) (string, error) {
		return path + "!", nil
	})
	require.Len(t, results, 4)
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, r.Path+"!", r.Value)
	}
}

func TestForEachFile_KeepsCompletedWhenOneFails(t *testing.T) {
	boom := errors.New("boom")
	results := ForEachFile(context.Background(), []string{"ok1", "bad", "ok2"}, 1, func(_ context.Context, path string) (int, error) {
		if path == "bad" {
			return 0, boom
		}
		return 1, nil
	})
	require.Len(t, results, 3)

	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
			assert.Equal(t, "bad", r.Path)
		}
	}
	assert.Equal(t, 1, failures)
}

func TestForEachFile_ConcurrencyBounded(t *testing.T) {
	var inFlight, peak int64
	files := make([]string, 16)
	for i := range files {
		files[i] = "f"
	}
	ForEachFile(context.Background(), files, 3, func(_ context.Context, _ string) (struct{}, error) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return struct{}{}, nil
	})
	assert.LessOrEqual(t, peak, int64(3))
}

func TestForEachFile_CancelledContextStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := ForEachFile(ctx, []string{"a", "b"}, 1, func(_ context.Context, _ string) (int, error) {
		return 1, nil
	})
	assert.Empty(t, results)
}

func TestWithTimeout_CompletesInBudget(t *testing.T) {
	v, err := WithTimeout(context.Background(), "fast-op", time.Second, func(_ context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestWithTimeout_DeadlineWins(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	_, err := WithTimeout(context.Background(), "slow-op", 20*time.Millisecond, func(ctx context.Context) (int, error) {
		select {
		case <-ctx.Done():
		case <-release:
		}
		return 7, nil
	})
	require.Error(t, err)
	assert.Equal(t, scaerr.ErrorTypeTimeout, scaerr.TypeOf(err))
}

func TestWithTimeout_PropagatesFnError(t *testing.T) {
	boom := errors.New("boom")
	_, err := WithTimeout(context.Background(), "op", time.Second, func(_ context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}
