package xerrors

var (
	// ErrEmptyInput 构建线段树的输入序列为空。
	ErrEmptyInput = New(ErrInvalidArg, 400001, "empty input", "input sequence must contain at least one element", nil)
	// ErrIndexOutOfRange 单点更新的下标越界。
	ErrIndexOutOfRange = New(ErrInvalidArg, 400002, "index out of range", "index must lie within [0, n-1]", nil)
	// ErrInvalidRange 区间左端点大于右端点。
	ErrInvalidRange = New(ErrInvalidArg, 400003, "invalid range", "left must not exceed right", nil)
	// ErrRangeOutOfBounds 严格模式下查询区间超出 [0, n-1]。
	ErrRangeOutOfBounds = New(ErrInvalidArg, 400004, "range out of bounds", "query range must lie within [0, n-1]", nil)
	// ErrValueOverflow 增量更新后元素值超出 int64 范围。
	ErrValueOverflow = New(ErrInvalidArg, 400005, "value overflow", "element value must stay within int64", nil)
)
