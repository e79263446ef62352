package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"bookshelf/internal/catalog"
	"bookshelf/internal/storage/memory"
)

// collectSums reads every int64 sum recorded under the catalog meter.
func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != "bookshelf/catalog" {
			continue
		}
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, m.Name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			sums[m.Name] = total
		}
	}
	return sums
}

func TestServiceRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		mp.Shutdown(context.Background())
	})

	store := memory.New()
	require.NoError(t, store.Commit(ctx, catalog.State{
		Books:  []catalog.Book{{ID: 1, Title: "seeded", Genre: catalog.Poetry}},
		NextID: 2,
	}, catalog.Event{Type: catalog.EventBookAdded}))
	svc := newService(t, store)

	for _, title := range []string{"a", "b", "c"} {
		_, err := svc.AddBook(ctx, title, catalog.Fiction)
		require.NoError(t, err)
	}
	_, err := svc.UpdateBook(ctx, 2, "A", catalog.Romance)
	require.NoError(t, err)
	_, err = svc.RemoveBook(ctx, 3)
	require.NoError(t, err)
	// Misses are not counted.
	_, err = svc.RemoveBook(ctx, 99)
	require.NoError(t, err)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(3), sums["catalog.books.added"])
	assert.Equal(t, int64(1), sums["catalog.books.updated"])
	assert.Equal(t, int64(1), sums["catalog.books.removed"])
	assert.Equal(t, int64(3), sums["catalog.books.live"])
}
