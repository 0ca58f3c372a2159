package jit

import (
	"context"

	"sixjit/bus"
	"sixjit/codegen"
	"sixjit/hal"
	"sixjit/lower"
	"sixjit/partition"
	"sixjit/sixerr"
)

// Dispatcher is the entry point that finds or builds the artifact for
// an address and invokes it (spec.md §4.H). Compiled code holds no
// reference to the Dispatcher except the one passed into its Run call,
// per spec.md §9's "avoid mutual ownership" design note.
type Dispatcher struct {
	Bus        *bus.Bus
	Functions  *partition.FunctionSet
	Cache      *Cache
	Customizer codegen.Customizer

	frames     []uint16  // stack of entry addresses currently executing, innermost last.
	pendingHAL *hal.State // HAL passed to the most recent RunMethod call; read by onWrite.
}

// NewDispatcher builds a Dispatcher over fs with a cache of the given
// capacity (DefaultCapacity if <= 0) and installs its write observer on
// b so self-modifying writes invalidate the cache (spec.md §4.J).
func NewDispatcher(b *bus.Bus, fs *partition.FunctionSet, capacity int, customizer codegen.Customizer) *Dispatcher {
	d := &Dispatcher{
		Bus:        b,
		Functions:  fs,
		Cache:      NewCache(capacity),
		Customizer: customizer,
	}
	b.SetObserver(d.onWrite)
	return d
}

// onWrite is the memory-write observer (spec.md §4.J): it relays the
// write to the cache for invalidation, and if the write lands inside the
// currently executing frame's own footprint, marks that frame's HAL as
// pending recompilation (spec.md §4.H/§9 — self-modification mid-call
// does not abort the call, it only makes the *next* dispatch recompile).
func (d *Dispatcher) onWrite(addr uint16) {
	d.Cache.MemoryChanged(addr)
	if len(d.frames) == 0 {
		return
	}
	top := d.frames[len(d.frames)-1]
	// Covers (byte-range aware) rather than Addresses (instruction-start
	// set): a write into the middle of a multi-byte operand must still be
	// seen as self-modification of the executing frame.
	if fn, ok := d.Functions.Functions[top]; ok && fn.Covers(addr) {
		d.pendingHAL.MarkRecompilePending()
	}
}

// RunMethod executes the 6502 subroutine at address: a cache hit reuses
// the compiled artifact, a miss compiles (and caches) it first. indirect
// is carried through for diagnostic purposes only; addr is always
// already resolved by the caller for indirect calls (spec.md §4.G).
func (d *Dispatcher) RunMethod(ctx context.Context, addr uint16, indirect bool, h *hal.State) error {
	d.pendingHAL = h

	entry, ok := d.Cache.Get(addr)
	if !ok {
		fn, ok := d.Functions.Functions[addr]
		if !ok {
			return sixerr.UnknownFunction{Address: addr}
		}
		converted, err := compileFunction(fn, d.Functions)
		if err != nil {
			return err
		}
		method, err := codegen.GenerateWithCustomizer(converted, d.Customizer)
		if err != nil {
			return err
		}
		entry = CompiledMethodEntry{Method: method, Func: fn, Excluded: map[uint16]bool{}}
		d.Cache.Insert(addr, entry)
	}

	d.frames = append(d.frames, addr)
	err := entry.Method.Run(ctx, d, h)
	d.frames = d.frames[:len(d.frames)-1]

	if h.PollForRecompilation() {
		d.Cache.Evict(addr)
	}
	return err
}

// SetExcluded records addresses that should never trigger invalidation
// for the entry currently cached at entryAddr (e.g. a known-benign
// self-updating jump table), per spec.md §3's Compiled Method Entry
// excluded-address set. No-op if entryAddr is not presently cached;
// call again after any recompilation.
func (d *Dispatcher) SetExcluded(entryAddr uint16, excluded map[uint16]bool) {
	if entry, ok := d.Cache.Get(entryAddr); ok {
		entry.Excluded = excluded
		d.Cache.Insert(entryAddr, entry)
	}
}

func compileFunction(fn *partition.Function, fs *partition.FunctionSet) ([]lower.Converted, error) {
	labelOf := func(addr uint16) (string, bool) {
		name, ok := fs.Labels[addr]
		return name, ok
	}
	out := make([]lower.Converted, 0, len(fn.Instructions))
	for _, inst := range fn.Instructions {
		label := fs.Labels[inst.Addr]
		conv, err := lower.Instruction(inst, label, labelOf)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}
