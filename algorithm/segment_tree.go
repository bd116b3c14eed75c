package algorithm

import "math"

// noChild 叶子节点的子节点句柄。
const noChild = -1

// node 线段树节点，覆盖原始数组的闭区间 [start, end]。
// 叶子节点满足 start == end 且不持有子节点；内部节点恰好持有 left、right 两个子节点。
type node struct {
	start, end  int
	value       int64 // 区间内所有元素之和。
	left, right int   // 子节点在 nodes 中的句柄。
}

func (nd *node) isLeaf() bool {
	return nd.start == nd.end
}

// SegmentTree (线段树) 是一种树状数据结构，用于高效地处理数组的区间求和与单点更新。
// 每个节点代表数组的一个区间，根节点代表整个数组，叶子节点代表单个元素。
// 更新和查询操作的时间复杂度均为 O(log N)。
//
// 节点存放在连续数组中，通过整数句柄相互引用，根节点句柄固定为 0。
// 树形在构建后不再改变，只有节点的 value 会被更新。
//
// SegmentTree 不是并发安全的，并发场景请使用 SyncSegmentTree 或由调用方自行加锁。
type SegmentTree struct {
	nodes   []node
	n       int  // 原始数组的逻辑大小。
	lenient bool // 兼容模式：越界查询区间按不重叠处理，而不是报错。
}

// Option 定义 SegmentTree 的构建选项。
type Option func(*SegmentTree)

// WithLenientQuery 开启宽松查询模式。
// 该模式下超出 [0, n-1] 的查询区间不会报错，越界部分贡献 0；完全不重叠的区间返回 0。
// left > right 在任何模式下都会报错。
func WithLenientQuery() Option {
	return func(st *SegmentTree) {
		st.lenient = true
	}
}

// NewSegmentTree 基于输入序列构建线段树。
// nums 不能为空；构建完成后不持有 nums 的引用。
func NewSegmentTree(nums []int64, opts ...Option) (*SegmentTree, error) {
	if len(nums) == 0 {
		return nil, errEmptyInput()
	}

	st := &SegmentTree{
		nodes: make([]node, 0, 2*len(nums)-1), // n 个叶子的满二叉树恰有 2n-1 个节点。
		n:     len(nums),
	}
	for _, opt := range opts {
		opt(st)
	}

	st.build(nums, 0, st.n-1)
	return st, nil
}

// build 递归构建 [start, end] 对应的子树，返回子树根的句柄。
func (st *SegmentTree) build(nums []int64, start, end int) int {
	idx := len(st.nodes)
	st.nodes = append(st.nodes, node{start: start, end: end, left: noChild, right: noChild})

	if start == end {
		st.nodes[idx].value = nums[start]
		return idx
	}

	mid := (start + end) / 2
	left := st.build(nums, start, mid)
	right := st.build(nums, mid+1, end)

	// append 可能触发扩容，回写时重新按句柄寻址。
	st.nodes[idx].left = left
	st.nodes[idx].right = right
	st.nodes[idx].value = st.nodes[left].value + st.nodes[right].value
	return idx
}

// Len 返回原始数组的长度。
func (st *SegmentTree) Len() int {
	return st.n
}

// Total 返回根节点的聚合值，即全部元素之和。
func (st *SegmentTree) Total() int64 {
	return st.nodes[0].value
}

// Update 将 index 处的元素设置为 value，并沿路径恢复祖先节点的求和不变式。
// index 必须位于 [0, n-1]，否则返回参数错误且不修改任何节点。
func (st *SegmentTree) Update(index int, value int64) error {
	if index < 0 || index >= st.n {
		return errIndexOutOfRange(index, st.n)
	}
	st.update(0, index, value)
	return nil
}

// Add 将 index 处的元素增加 delta。
// 相加结果超出 int64 时返回 ErrValueOverflow，树保持不变；区间和本身仍按 int64 回绕计算。
func (st *SegmentTree) Add(index int, delta int64) error {
	if index < 0 || index >= st.n {
		return errIndexOutOfRange(index, st.n)
	}
	current := st.query(0, index, index)
	if (delta > 0 && current > math.MaxInt64-delta) || (delta < 0 && current < math.MinInt64-delta) {
		return errValueOverflow(index, current, delta)
	}
	st.update(0, index, current+delta)
	return nil
}

func (st *SegmentTree) update(idx, index int, value int64) {
	nd := &st.nodes[idx]
	if nd.isLeaf() {
		nd.value = value
		return
	}

	if index <= st.nodes[nd.left].end {
		st.update(nd.left, index, value)
	} else {
		st.update(nd.right, index, value)
	}
	nd.value = st.nodes[nd.left].value + st.nodes[nd.right].value
}

// Query 返回闭区间 [left, right] 内所有元素之和。
// left > right 时返回参数错误；严格模式下区间必须位于 [0, n-1]。
func (st *SegmentTree) Query(left, right int) (int64, error) {
	if left > right {
		return 0, errInvalidRange(left, right)
	}
	if !st.lenient && (left < 0 || right >= st.n) {
		return 0, errRangeOutOfBounds(left, right, st.n)
	}
	return st.query(0, left, right), nil
}

// Get 返回 index 处的当前值，等价于 Query(index, index)。
func (st *SegmentTree) Get(index int) (int64, error) {
	if index < 0 || index >= st.n {
		return 0, errIndexOutOfRange(index, st.n)
	}
	return st.query(0, index, index), nil
}

func (st *SegmentTree) query(idx, left, right int) int64 {
	nd := &st.nodes[idx]

	// 情况1: 与目标区间完全不重叠。
	if nd.end < left || nd.start > right {
		return 0
	}

	// 情况2: 当前节点区间被目标区间完全包含，直接返回聚合值，不再下探。
	if left <= nd.start && nd.end <= right {
		return nd.value
	}

	// 情况3: 部分重叠。叶子节点不可能部分重叠，因此这里一定是内部节点。
	return st.query(nd.left, left, right) + st.query(nd.right, left, right)
}

// Values 按下标顺序返回当前所有元素的快照。
func (st *SegmentTree) Values() []int64 {
	out := make([]int64, st.n)
	for i := range st.nodes {
		if st.nodes[i].isLeaf() {
			out[st.nodes[i].start] = st.nodes[i].value
		}
	}
	return out
}
