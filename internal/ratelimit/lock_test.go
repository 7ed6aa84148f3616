package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	obsmetrics "github.com/smallbiznis/pixbot/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLockerValidation(t *testing.T) {
	ctx := context.Background()

	var nilLocker *Locker
	_, _, err := nilLocker.TryLock(ctx, "purchase:lock:1:2", time.Second)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.NoError(t, nilLocker.Release(ctx, "purchase:lock:1:2", "token"))
	assert.Nil(t, NewLocker(nil, nil))

	locker := NewLocker(unreachableClient(t), nil)
	_, _, err = locker.TryLock(ctx, " ", time.Second)
	assert.ErrorIs(t, err, ErrEmptyLockKey)
	_, _, err = locker.TryLock(ctx, "purchase:lock:1:2", 0)
	assert.ErrorIs(t, err, ErrInvalidLockTTL)
	assert.NoError(t, locker.Release(ctx, "purchase:lock:1:2", ""))
}

func TestLockerRecordsRedisFailure(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	reader := sdkmetric.NewManualReader()
	metrics, err := obsmetrics.New(obsmetrics.Config{ServiceName: "pixbot"}, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	ctx := context.Background()
	locker := NewLocker(unreachableClient(t), metrics)
	token, ok, err := locker.TryLock(ctx, "purchase:lock:9:12", time.Second)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Empty(t, token)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "ratelimit.lock.acquire", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("lock.scope", "purchase:lock"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	assert.Equal(t, int64(1), lockCount(rm, "acquire", "error"))
}

func TestLockScope(t *testing.T) {
	assert.Equal(t, "purchase:lock", lockScope("purchase:lock:9:12"))
	assert.Equal(t, "single", lockScope("single"))
}

func lockCount(rm metricdata.ResourceMetrics, operation, status string) int64 {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "pixbot_locks_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value("operation")
				st, _ := dp.Attributes.Value("status")
				if op.AsString() == operation && st.AsString() == status {
					return dp.Value
				}
			}
		}
	}
	return 0
}
