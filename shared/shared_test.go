package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServiceErrorChain(t *testing.T) {
	cause := fmt.Errorf("%w: menu never appeared", ErrNavigationFailed)
	err := NewServiceError(ErrorCategoryNavigation, "MENU_MISSING", "could not open listing", "Navigator", "OpenListing", false, cause)

	require.ErrorIs(t, err, ErrNavigationFailed)
	require.Equal(t, ErrorCategoryNavigation, CategoryOf(fmt.Errorf("run: %w", err)))
	require.Equal(t, "[navigation:MENU_MISSING] could not open listing: "+cause.Error(), err.Error())
	require.False(t, IsRetryableError(err))
}

func TestWrapError(t *testing.T) {
	require.Nil(t, WrapError(nil, ErrorCategoryDatabase, "X", "svc", "op", false))

	wrapped := WrapError(errors.New("disk full"), ErrorCategoryDatabase, "WRITE_FAILED", "BidStore", "Upsert", false)
	require.Equal(t, ErrorCategoryDatabase, wrapped.Category)
	require.Equal(t, "disk full", wrapped.Message)

	inner := NewServiceError(ErrorCategoryExtraction, "EMPTY", "nothing", "DetailExtractor", "Extract", false, ErrEmptyDetail)
	rewrapped := WrapError(inner, ErrorCategoryDatabase, "OTHER", "BidCrawler", "RunOnce", true)
	require.Same(t, inner, rewrapped)
	require.Equal(t, ErrorCategoryExtraction, rewrapped.Category)
	require.Equal(t, "BidCrawler", rewrapped.ServiceName)
}

func TestIsRetryableHeuristics(t *testing.T) {
	cases := map[string]bool{
		"context deadline exceeded":            true,
		"dial tcp: connection refused":         true,
		"Element is not visible":               true,
		"click intercepted by another element": true,
		"node not attached to document":        true,
		"sql: no rows in result set":           false,
		"detail view yielded no fields":        false,
	}
	for msg, want := range cases {
		require.Equal(t, want, IsRetryableError(errors.New(msg)), msg)
	}
	require.False(t, IsRetryableError(nil))
	require.Empty(t, CategoryOf(errors.New("plain")))
}

func TestServiceMetrics(t *testing.T) {
	m := NewServiceMetrics("Actuator")
	require.Zero(t, m.GetSuccessRate())

	m.RecordRequest(true, 10*time.Millisecond)
	m.RecordRequest(true, 30*time.Millisecond)
	m.RecordRequest(false, 20*time.Millisecond)
	m.RecordRequest(true, 40*time.Millisecond)
	m.IncrementCounter("script_click")
	m.AddToCounter("popups_removed", 3)

	require.Equal(t, 75.0, m.GetSuccessRate())
	require.Equal(t, int64(3), m.Counter("popups_removed"))

	snap := m.GetSnapshot()
	require.Equal(t, int64(4), snap.TotalRequests)
	require.Equal(t, int64(1), snap.FailedRequests)
	require.Equal(t, 25*time.Millisecond, snap.AverageProcessingTime)
	require.Equal(t, 40*time.Millisecond, snap.MaxProcessingTime)
	require.Equal(t, 40*time.Millisecond, snap.P95ProcessingTime)

	snap.Counters["script_click"] = 99
	require.Equal(t, int64(1), m.Counter("script_click"))
}

func TestPerformanceWindowIsBounded(t *testing.T) {
	pm := NewPerformanceMetrics()
	for i := 1; i <= maxPerformanceSamples+10; i++ {
		pm.RecordProcessingTime(time.Duration(i) * time.Microsecond)
	}
	snap := pm.GetPerformanceSnapshot()
	require.Equal(t, time.Microsecond, snap.Min)
	require.Equal(t, time.Duration(maxPerformanceSamples+10)*time.Microsecond, snap.Max)
	require.Len(t, pm.samples, maxPerformanceSamples)
}

func TestRateLimiterSpacesActions(t *testing.T) {
	limiter := NewActionRateLimiter(20 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	require.Less(t, time.Since(start), 20*time.Millisecond, "first action is not delayed")

	require.NoError(t, limiter.Wait(ctx))
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	require.Equal(t, int64(2), limiter.ActionCount())
}

func TestRateLimiterHonoursCancel(t *testing.T) {
	limiter := NewActionRateLimiter(time.Hour)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, limiter.Wait(ctx), context.Canceled)
	require.Equal(t, int64(1), limiter.ActionCount())
}
