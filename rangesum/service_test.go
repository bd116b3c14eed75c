package rangesum

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wyfcoding/segtree/algorithm"
	"github.com/wyfcoding/segtree/logging"
	"github.com/wyfcoding/segtree/metrics"
	"github.com/wyfcoding/segtree/xerrors"
)

func newTestService(t *testing.T, nums []int64, opts ...Option) (*Service, *metrics.Metrics, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	m := metrics.NewMetrics("rangesum-test")
	l := logging.NewFromConfig(logging.Config{Service: "segtree", Module: "rangesum", Level: "info", Output: &buf})

	svc, err := New(nums, append([]Option{WithLogger(l), WithMetrics(m)}, opts...)...)
	require.NoError(t, err)
	return svc, m, &buf
}

func TestServiceScenarios(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestService(t, []int64{1, 3, 5, 7, 9})

	got, err := svc.Query(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(15), got)

	require.NoError(t, svc.Update(ctx, 1, 2))
	require.NoError(t, svc.Add(ctx, 4, 1))

	v, err := svc.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
	assert.Equal(t, int64(25), svc.Total(ctx))
	assert.Equal(t, []int64{1, 2, 5, 7, 10}, svc.Snapshot(ctx))
	assert.Equal(t, 5, svc.Len())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues(OpQuery, metrics.StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues(OpUpdate, metrics.StatusOK)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Elements))
}

func TestServiceRejectsInvalidArguments(t *testing.T) {
	ctx := context.Background()
	svc, m, buf := newTestService(t, []int64{1, 2, 3})

	err := svc.Update(ctx, 3, 1)
	assert.True(t, errors.Is(err, xerrors.ErrIndexOutOfRange))

	_, err = svc.Query(ctx, 2, 0)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidRange))

	_, err = svc.Query(ctx, 0, 3)
	assert.True(t, errors.Is(err, xerrors.ErrRangeOutOfBounds))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues(OpUpdate, metrics.StatusInvalid)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues(OpQuery, metrics.StatusInvalid)))
	assert.Equal(t, 3, strings.Count(buf.String(), "segment tree operation rejected"))

	// 被拒绝的操作不影响数据。
	assert.Equal(t, int64(6), svc.Total(ctx))
}

func TestServiceLenientQuery(t *testing.T) {
	svc, _, _ := newTestService(t, []int64{1, 3, 5}, WithTreeOptions(algorithm.WithLenientQuery()))

	got, err := svc.Query(context.Background(), -3, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got)

	// Reset 后仍沿用宽松模式。
	require.NoError(t, svc.Reset(context.Background(), []int64{4, 4}))
	got, err = svc.Query(context.Background(), 1, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)
}

func TestServiceReset(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := newTestService(t, []int64{1, 2, 3})

	err := svc.Reset(ctx, nil)
	assert.True(t, errors.Is(err, xerrors.ErrEmptyInput))
	assert.Equal(t, int64(6), svc.Total(ctx))

	require.NoError(t, svc.Reset(ctx, []int64{10, 20, 30, 40}))
	assert.Equal(t, 4, svc.Len())
	assert.Equal(t, int64(100), svc.Total(ctx))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Elements))
}

func TestServiceReconfigure(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, []int64{1, 3, 5})

	_, err := svc.Query(ctx, 0, 9)
	require.True(t, errors.Is(err, xerrors.ErrRangeOutOfBounds))

	// 切换为宽松模式，之后的 Reset 也保持宽松。
	require.NoError(t, svc.Reconfigure(ctx, []int64{1, 3, 5}, algorithm.WithLenientQuery()))
	got, err := svc.Query(ctx, 0, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got)

	require.NoError(t, svc.Reset(ctx, []int64{2, 2}))
	got, err = svc.Query(ctx, -1, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)

	// 构建失败时选项不变。
	require.Error(t, svc.Reconfigure(ctx, nil))
	got, err = svc.Query(ctx, -1, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)

	// 不带选项重新配置即回到严格模式。
	require.NoError(t, svc.Reconfigure(ctx, []int64{2, 2}))
	_, err = svc.Query(ctx, -1, 9)
	assert.True(t, errors.Is(err, xerrors.ErrRangeOutOfBounds))
}

func TestServiceEmptyInput(t *testing.T) {
	_, err := New(nil, WithLogger(logging.NewFromConfig(logging.Config{Output: &bytes.Buffer{}})))
	require.Error(t, err)
	assert.True(t, xerrors.IsInvalidArg(err))
}

func TestServiceSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	svc, _, _ := newTestService(t, []int64{1, 3, 5})
	_, err := svc.Query(context.Background(), 0, 2)
	require.NoError(t, err)
	_ = svc.Update(context.Background(), 9, 0)

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "segtree.query", ended[0].Name())
	assert.NotEqual(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "segtree.update", ended[1].Name())
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}

func TestServiceConcurrentUse(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, make([]int64, 32))

	var wg conc.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Go(func() {
			for i := 0; i < 200; i++ {
				_ = svc.Add(ctx, i%32, 1)
				_, _ = svc.Query(ctx, 0, 31)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int64(800), svc.Total(ctx))
}
