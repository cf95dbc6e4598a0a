package baseline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/pulsemon/internal/domain"
	"go.uber.org/zap"
)

func TestPercentileNearestRank(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	// p95: ceil(9.5)-1 = 9
	assert.Equal(t, 100.0, Percentile(sorted, 95))
	// p50: ceil(5)-1 = 4
	assert.Equal(t, 50.0, Percentile(sorted, 50))
	// p99: ceil(9.9)-1 = 9
	assert.Equal(t, 100.0, Percentile(sorted, 99))
}

func TestPercentileSmallSeries(t *testing.T) {
	assert.Equal(t, 0.0, Percentile(nil, 95))
	assert.Equal(t, 42.0, Percentile([]float64{42}, 50))
	assert.Equal(t, 42.0, Percentile([]float64{42}, 99))
}

func TestComputeRequiresMinimumSamples(t *testing.T) {
	nine := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Nil(t, Compute("ep-1", nine, time.Now()))

	ten := append(nine, 10)
	b := Compute("ep-1", ten, time.Now())
	require.NotNil(t, b)
	assert.Equal(t, 10, b.SampleCount)
	assert.InDelta(t, 5.5, b.AvgLatencyMS, 1e-9)
}

func TestComputePopulationStdDev(t *testing.T) {
	// 10 одинаковых значений: среднее 100, отклонение 0
	same := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100}
	b := Compute("ep-1", same, time.Now())
	require.NotNil(t, b)
	assert.Equal(t, 0.0, b.StdDevMS)

	// Половина 90, половина 110: популяционное отклонение ровно 10 (а не ~10.54 по Бесселю)
	split := []float64{90, 90, 90, 90, 90, 110, 110, 110, 110, 110}
	b = Compute("ep-1", split, time.Now())
	require.NotNil(t, b)
	assert.InDelta(t, 10.0, b.StdDevMS, 1e-9)
	assert.InDelta(t, 100.0, b.AvgLatencyMS, 1e-9)
}

func TestComputePercentileFields(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	b := Compute("ep-1", sorted, time.Now())
	require.NotNil(t, b)
	assert.Equal(t, 50.0, b.P50LatencyMS)
	assert.Equal(t, 100.0, b.P95LatencyMS)
	assert.Equal(t, 100.0, b.P99LatencyMS)
}

type fakeSamples struct {
	samples []float64
}

func (f *fakeSamples) LatencySamples(context.Context, string, time.Time) ([]float64, error) {
	return f.samples, nil
}

type fakeStore struct {
	upserts []*domain.Baseline
}

func (f *fakeStore) Upsert(_ context.Context, b *domain.Baseline) error {
	f.upserts = append(f.upserts, b)
	return nil
}

type fakeEndpoints struct {
	list []*domain.Endpoint
}

func (f *fakeEndpoints) ListActive(context.Context) ([]*domain.Endpoint, error) {
	return f.list, nil
}

func TestCalculateSkipsWarmupWithoutTouchingStore(t *testing.T) {
	store := &fakeStore{}
	calc := NewCalculator(&fakeSamples{samples: []float64{1, 2, 3}}, store, &fakeEndpoints{}, 168, zap.NewNop())

	b, err := calc.Calculate(context.Background(), "ep-1")
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.Empty(t, store.upserts, "прежняя базовая линия не должна перезаписываться при прогреве")
}

func TestCalculatePersistsBaseline(t *testing.T) {
	store := &fakeStore{}
	samples := &fakeSamples{samples: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}}
	calc := NewCalculator(samples, store, &fakeEndpoints{}, 168, zap.NewNop())

	b, err := calc.Calculate(context.Background(), "ep-1")
	require.NoError(t, err)
	require.NotNil(t, b)
	require.Len(t, store.upserts, 1)
	assert.Equal(t, "ep-1", store.upserts[0].EndpointID)
	assert.Equal(t, 10, store.upserts[0].SampleCount)
}
