// Package rangesum 在线段树之上提供带日志、指标和链路追踪的区间求和服务。
// 内部始终使用加锁的 SyncSegmentTree，可被多个 goroutine 同时调用。
package rangesum

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wyfcoding/segtree/algorithm"
	"github.com/wyfcoding/segtree/logging"
	"github.com/wyfcoding/segtree/metrics"
	"github.com/wyfcoding/segtree/tracing"
	"github.com/wyfcoding/segtree/xerrors"
)

// 操作名，同时用作指标标签与 Span 名后缀。
const (
	OpUpdate   = "update"
	OpAdd      = "add"
	OpQuery    = "query"
	OpGet      = "get"
	OpTotal    = "total"
	OpSnapshot = "snapshot"
	OpReset    = "reset"
)

// Service 区间求和服务。
type Service struct {
	tree    atomic.Pointer[algorithm.SyncSegmentTree]
	logger  *logging.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex // 串行化重建，保护 treeOpts。
	treeOpts []algorithm.Option
}

// Option 定义 Service 的可选参数。
type Option func(*Service)

// WithLogger 指定日志记录器，默认使用 logging.Default()。
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics 指定指标采集器，为 nil 时不采集。
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTreeOptions 透传线段树构建选项，Reset 时同样生效。
func WithTreeOptions(opts ...algorithm.Option) Option {
	return func(s *Service) { s.treeOpts = append(s.treeOpts, opts...) }
}

// New 基于初始数组创建服务。
func New(nums []int64, opts ...Option) (*Service, error) {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}

	tree, err := algorithm.NewSyncSegmentTree(nums, s.treeOpts...)
	if err != nil {
		return nil, err
	}
	s.install(tree)
	return s, nil
}

func (s *Service) install(tree *algorithm.SyncSegmentTree) {
	s.tree.Store(tree)
	if s.metrics != nil {
		s.metrics.Elements.Set(float64(tree.Len()))
	}
}

// observe 统一收尾：记录 Span 错误、指标与日志。
func (s *Service) observe(ctx context.Context, op string, start time.Time, err error, attrs ...any) {
	elapsed := time.Since(start)

	status := metrics.StatusOK
	switch {
	case err == nil:
	case xerrors.IsInvalidArg(err):
		status = metrics.StatusInvalid
	default:
		status = metrics.StatusError
	}
	s.metrics.ObserveOperation(op, status, elapsed)

	attrs = append(attrs, "op", op, "duration", elapsed)
	if err != nil {
		tracing.SetError(ctx, err)
		s.logger.WarnContext(ctx, "segment tree operation rejected", append(attrs, "error", err)...)
		return
	}
	s.logger.DebugContext(ctx, "segment tree operation", attrs...)
}

// Len 返回当前树的元素个数。
func (s *Service) Len() int {
	return s.tree.Load().Len()
}

// Update 将 index 处的元素设置为 value。
func (s *Service) Update(ctx context.Context, index int, value int64) error {
	ctx, span := tracing.StartSpan(ctx, "segtree."+OpUpdate)
	defer span.End()
	tracing.AddTag(ctx, "index", index)

	start := time.Now()
	err := s.tree.Load().Update(index, value)
	s.observe(ctx, OpUpdate, start, err, "index", index, "value", value)
	return err
}

// Add 将 index 处的元素增加 delta。
func (s *Service) Add(ctx context.Context, index int, delta int64) error {
	ctx, span := tracing.StartSpan(ctx, "segtree."+OpAdd)
	defer span.End()
	tracing.AddTag(ctx, "index", index)

	start := time.Now()
	err := s.tree.Load().Add(index, delta)
	s.observe(ctx, OpAdd, start, err, "index", index, "delta", delta)
	return err
}

// Query 返回 [left, right] 的区间和。
func (s *Service) Query(ctx context.Context, left, right int) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "segtree."+OpQuery)
	defer span.End()
	tracing.AddTag(ctx, "left", left)
	tracing.AddTag(ctx, "right", right)

	start := time.Now()
	sum, err := s.tree.Load().Query(left, right)
	s.observe(ctx, OpQuery, start, err, "left", left, "right", right)
	if err == nil {
		tracing.AddTag(ctx, "sum", sum)
	}
	return sum, err
}

// Get 返回 index 处的当前值。
func (s *Service) Get(ctx context.Context, index int) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "segtree."+OpGet)
	defer span.End()
	tracing.AddTag(ctx, "index", index)

	start := time.Now()
	v, err := s.tree.Load().Get(index)
	s.observe(ctx, OpGet, start, err, "index", index)
	return v, err
}

// Total 返回全部元素之和。
func (s *Service) Total(ctx context.Context) int64 {
	ctx, span := tracing.StartSpan(ctx, "segtree."+OpTotal)
	defer span.End()

	start := time.Now()
	total := s.tree.Load().Total()
	s.observe(ctx, OpTotal, start, nil)
	return total
}

// Snapshot 返回当前所有元素的副本。
func (s *Service) Snapshot(ctx context.Context) []int64 {
	ctx, span := tracing.StartSpan(ctx, "segtree."+OpSnapshot)
	defer span.End()

	start := time.Now()
	values := s.tree.Load().Values()
	s.observe(ctx, OpSnapshot, start, nil, "len", len(values))
	return values
}

// Reset 用 nums 构建一棵新树并整体替换旧树，沿用当前的构建选项。
// 构建失败时旧树保持不变；替换前已开始的调用继续作用在旧树上。
func (s *Service) Reset(ctx context.Context, nums []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuild(ctx, nums, s.treeOpts)
}

// Reconfigure 与 Reset 相同，但改用 opts 作为新的构建选项，之后的 Reset 也沿用它们。
// 构建失败时旧树与旧选项都保持不变。
func (s *Service) Reconfigure(ctx context.Context, nums []int64, opts ...algorithm.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rebuild(ctx, nums, opts); err != nil {
		return err
	}
	s.treeOpts = opts
	return nil
}

func (s *Service) rebuild(ctx context.Context, nums []int64, opts []algorithm.Option) error {
	ctx, span := tracing.StartSpan(ctx, "segtree."+OpReset)
	defer span.End()
	tracing.AddTag(ctx, "len", len(nums))

	start := time.Now()
	tree, err := algorithm.NewSyncSegmentTree(nums, opts...)
	if err == nil {
		s.install(tree)
		s.logger.InfoContext(ctx, "segment tree rebuilt", "len", len(nums), "total", tree.Total())
	}
	s.observe(ctx, OpReset, start, err, "len", len(nums))
	return err
}
