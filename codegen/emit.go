package codegen

import (
	"context"

	"sixjit/hal"
	"sixjit/ir"
	"sixjit/sixerr"
)

// buildinEmit is the generator's fallback emission for an IR
// instruction, consulted only when the customizer (if any) has no
// emitter registered for this Kind (spec.md §4.I).
func buildinEmit(inst ir.Instruction, index int, labels map[string]int) (Op, error) {
	next := index + 1
	switch inst.Kind {
	case ir.KindCopy:
		src, dst := inst.Src, inst.Dst
		return func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (int, error) {
			writeValue(dst, readValue(src, h, scratch), h, scratch)
			return next, nil
		}, nil

	case ir.KindBinary:
		op, left, right, dst := inst.BinOp, inst.Left, inst.Right, inst.Dst
		return func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (int, error) {
			l := readValue(left, h, scratch)
			r := readValue(right, h, scratch)
			writeValue(dst, applyBinary(op, l, r), h, scratch)
			return next, nil
		}, nil

	case ir.KindUnary:
		op, src, dst := inst.UnaryOp, inst.Src, inst.Dst
		return func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (int, error) {
			v := readValue(src, h, scratch)
			writeValue(dst, applyUnary(op, v), h, scratch)
			return next, nil
		}, nil

	case ir.KindConvertVariableToByte:
		idx := inst.Variable
		return func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (int, error) {
			scratch[idx] = int64(uint8(scratch[idx]))
			return next, nil
		}, nil

	case ir.KindJump:
		target, ok := labels[inst.Label]
		if !ok {
			return nil, sixerr.UnresolvedBranch{Label: inst.Label}
		}
		return func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (int, error) {
			return target, nil
		}, nil

	case ir.KindJumpIfZero:
		target, ok := labels[inst.Label]
		if !ok {
			return nil, sixerr.UnresolvedBranch{Label: inst.Label}
		}
		cond := inst.Cond
		return func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (int, error) {
			if readValue(cond, h, scratch) == 0 {
				return target, nil
			}
			return next, nil
		}, nil

	case ir.KindJumpIfNotZero:
		target, ok := labels[inst.Label]
		if !ok {
			return nil, sixerr.UnresolvedBranch{Label: inst.Label}
		}
		cond := inst.Cond
		return func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (int, error) {
			if readValue(cond, h, scratch) != 0 {
				return target, nil
			}
			return next, nil
		}, nil

	case ir.KindLabel:
		return func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (int, error) {
			return next, nil
		}, nil

	case ir.KindPushStackValue:
		src := inst.Src
		return func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (int, error) {
			if err := h.Push(uint8(readValue(src, h, scratch))); err != nil {
				return 0, err
			}
			return next, nil
		}, nil

	case ir.KindPopStackValue:
		dst := inst.Dst
		return func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (int, error) {
			v, err := h.Pop()
			if err != nil {
				return 0, err
			}
			writeValue(dst, int64(v), h, scratch)
			return next, nil
		}, nil

	case ir.KindCallFunction:
		call := inst.Call
		return func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (int, error) {
			addr := call.Address
			if call.IsIndirect {
				addr = h.Bus.Read16(call.Address)
			}
			if err := d.RunMethod(ctx, addr, call.IsIndirect, h); err != nil {
				return 0, err
			}
			return next, nil
		}, nil

	case ir.KindInvokeSoftwareInterrupt:
		return func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (int, error) {
			if err := h.TriggerSoftwareInterrupt(); err != nil {
				return 0, err
			}
			return next, nil
		}, nil

	case ir.KindReturn:
		return func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (int, error) {
			return -1, nil
		}, nil

	case ir.KindStoreDebugString:
		text := inst.Text
		return func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (int, error) {
			h.DebugHook(text)
			return next, nil
		}, nil
	}
	return nil, sixerr.UnsupportedInstruction{Mnemonic: "<ir>", Mode: "unknown ir kind"}
}

func applyBinary(op ir.BinOp, l, r int64) int64 {
	switch op {
	case ir.OpAdd:
		return l + r
	case ir.OpSub:
		return l - r
	case ir.OpAnd:
		return l & r
	case ir.OpOr:
		return l | r
	case ir.OpXor:
		return l ^ r
	case ir.OpShiftLeft:
		return l << uint(r)
	case ir.OpShiftRight:
		return l >> uint(r)
	case ir.OpEquals:
		return boolToInt(l == r)
	case ir.OpNotEquals:
		return boolToInt(l != r)
	case ir.OpLessThan:
		return boolToInt(l < r)
	case ir.OpLessThanOrEqualTo:
		return boolToInt(l <= r)
	case ir.OpGreaterThan:
		return boolToInt(l > r)
	case ir.OpGreaterThanOrEqualTo:
		return boolToInt(l >= r)
	}
	return 0
}

func applyUnary(op ir.UnaryOp, v int64) int64 {
	switch op {
	case ir.OpBitwiseNot:
		return ^v
	}
	return 0
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
