package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/2448334/seimas-scraper/internal/crawler"
)

func TestPublisherStoresReports(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), crawler.StageReport{RunID: "run", Stage: "parliaments", Tasks: 1})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), crawler.StageReport{RunID: "run", Stage: "sessions", Tasks: 3, Failed: 1})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	reports := pub.Reports()
	require.Len(t, reports, 2)
	require.Equal(t, "sessions", reports[1].Stage)

	reports[0].Stage = "modified"
	require.Equal(t, "parliaments", pub.Reports()[0].Stage, "Reports must return a copy")
}
