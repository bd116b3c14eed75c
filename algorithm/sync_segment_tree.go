package algorithm

import "sync"

// SyncSegmentTree 在整棵 SegmentTree 外加一把读写锁。
// 写操作（Update、Add）持写锁，读操作持读锁，保证读者永远看不到更新到一半的路径。
type SyncSegmentTree struct {
	tree *SegmentTree
	mu   sync.RWMutex
}

// NewSyncSegmentTree 构建一棵带锁的线段树，参数含义同 NewSegmentTree。
func NewSyncSegmentTree(nums []int64, opts ...Option) (*SyncSegmentTree, error) {
	tree, err := NewSegmentTree(nums, opts...)
	if err != nil {
		return nil, err
	}
	return &SyncSegmentTree{tree: tree}, nil
}

// Len 返回原始数组的长度。树形不可变，无需加锁。
func (s *SyncSegmentTree) Len() int {
	return s.tree.Len()
}

// Update 单点更新。
func (s *SyncSegmentTree) Update(index int, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tree.Update(index, value)
}

// Add 单点增量更新，读取与写回在同一把写锁内完成。
func (s *SyncSegmentTree) Add(index int, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tree.Add(index, delta)
}

// Query 区间求和。
func (s *SyncSegmentTree) Query(left, right int) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tree.Query(left, right)
}

// Get 单点查询。
func (s *SyncSegmentTree) Get(index int) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tree.Get(index)
}

// Total 返回全部元素之和。
func (s *SyncSegmentTree) Total() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tree.Total()
}

// Values 返回当前元素快照。
func (s *SyncSegmentTree) Values() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tree.Values()
}
