package algorithm

import "github.com/wyfcoding/segtree/xerrors"

func errEmptyInput() error {
	return xerrors.ErrEmptyInput.Clone()
}

func errIndexOutOfRange(index, size int) error {
	return xerrors.ErrIndexOutOfRange.Clone().
		WithContext("index", index).
		WithContext("size", size).
		WithDetail("index %d outside [0, %d]", index, size-1)
}

func errInvalidRange(left, right int) error {
	return xerrors.ErrInvalidRange.Clone().
		WithContext("left", left).
		WithContext("right", right).
		WithDetail("left %d greater than right %d", left, right)
}

func errRangeOutOfBounds(left, right, size int) error {
	return xerrors.ErrRangeOutOfBounds.Clone().
		WithContext("left", left).
		WithContext("right", right).
		WithContext("size", size).
		WithDetail("range [%d, %d] outside [0, %d]", left, right, size-1)
}

func errValueOverflow(index int, current, delta int64) error {
	return xerrors.ErrValueOverflow.Clone().
		WithContext("index", index).
		WithContext("delta", delta).
		WithDetail("%d + %d overflows int64", current, delta)
}
