package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitsPerHost(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://apps.lrs.lt/sip/p2b.ad_seimo_kadencijos"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://e-seimas.lrs.lt/rs/legalact/TAK/a/format/OO3_ODT/"))
	require.Less(t, time.Since(start), 50*time.Millisecond, "another host has its own bucket")

	start = time.Now()
	require.NoError(t, l.Wait(ctx, "https://apps.lrs.lt/sip/p2b.ad_seimo_sesijos?kadencijos_id=9"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterUnlimitedByDefault(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	start := time.Now()
	for range 50 {
		require.NoError(t, l.Wait(context.Background(), "https://apps.lrs.lt/sip/"))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://apps.lrs.lt/"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://apps.lrs.lt/"))
}
