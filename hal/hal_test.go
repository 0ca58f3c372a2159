package hal

import (
	"testing"

	"sixjit/bus"
	"sixjit/sixerr"
)

func newTestState() *State {
	b := bus.New()
	b.Attach(bus.NewRAM(0x200), 0, 0x200, false)
	s := New(b, VariantNMOS)
	s.SP = 0xFF
	return s
}

func TestPushPopRoundTrip(t *testing.T) {
	s := newTestState()
	if err := s.Push(0x42); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if got, want := s.SP, uint8(0xFE); got != want {
		t.Errorf("SP after Push = %#x, want %#x", got, want)
	}
	v, err := s.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if v != 0x42 {
		t.Errorf("Pop() = %#x, want 0x42", v)
	}
	if got, want := s.SP, uint8(0xFF); got != want {
		t.Errorf("SP after Pop = %#x, want %#x", got, want)
	}
}

func TestPushOverflow(t *testing.T) {
	s := newTestState()
	s.SP = 0x00
	if err := s.Push(0x01); err == nil {
		t.Fatal("Push at SP=0x00 should overflow")
	} else if _, ok := err.(sixerr.StackOverflow); !ok {
		t.Errorf("got %T, want sixerr.StackOverflow", err)
	}
}

func TestPopUnderflow(t *testing.T) {
	s := newTestState()
	s.SP = 0xFF
	if _, err := s.Pop(); err == nil {
		t.Fatal("Pop at SP=0xFF should underflow")
	} else if _, ok := err.(sixerr.StackUnderflow); !ok {
		t.Errorf("got %T, want sixerr.StackUnderflow", err)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	s := newTestState()
	s.Carry, s.Zero, s.InterruptDisable = true, true, true
	s.Decimal, s.Overflow, s.Negative, s.BFlag = false, true, true, false

	b := s.Status()
	if b&0x20 == 0 {
		t.Error("unused bit must always read 1")
	}

	other := newTestState()
	other.SetStatus(b)
	if other.Carry != s.Carry || other.Zero != s.Zero || other.InterruptDisable != s.InterruptDisable ||
		other.Decimal != s.Decimal || other.Overflow != s.Overflow || other.Negative != s.Negative ||
		other.BFlag != s.BFlag {
		t.Error("SetStatus(Status()) did not reproduce the flag set")
	}
}

func TestSetZN(t *testing.T) {
	s := newTestState()
	s.SetZN(0)
	if !s.Zero || s.Negative {
		t.Error("SetZN(0): want Zero=true, Negative=false")
	}
	s.SetZN(0x80)
	if s.Zero || !s.Negative {
		t.Error("SetZN(0x80): want Zero=false, Negative=true")
	}
	s.SetZN(0x01)
	if s.Zero || s.Negative {
		t.Error("SetZN(0x01): want both flags false")
	}
}

type fixedSender bool

func (f fixedSender) Raised() bool { return bool(f) }
func (f fixedSender) Clear()       {}

func TestPollForInterruptNMITakesPriority(t *testing.T) {
	s := newTestState()
	s.NMI = fixedSender(true)
	s.IRQ = fixedSender(true)
	addr, ok := s.PollForInterrupt()
	if !ok || addr != NMIVector {
		t.Errorf("PollForInterrupt() = (%#x, %v), want (%#x, true)", addr, ok, NMIVector)
	}
}

func TestPollForInterruptIRQMaskedByDisableFlag(t *testing.T) {
	s := newTestState()
	s.IRQ = fixedSender(true)
	s.InterruptDisable = true
	if _, ok := s.PollForInterrupt(); ok {
		t.Error("masked IRQ should not be reported")
	}
	s.InterruptDisable = false
	addr, ok := s.PollForInterrupt()
	if !ok || addr != IRQVector {
		t.Errorf("PollForInterrupt() = (%#x, %v), want (%#x, true)", addr, ok, IRQVector)
	}
}

func TestPollForRecompilationClearsFlag(t *testing.T) {
	s := newTestState()
	if s.PollForRecompilation() {
		t.Error("fresh state should not report a pending recompile")
	}
	s.MarkRecompilePending()
	if !s.PollForRecompilation() {
		t.Error("expected pending recompile after MarkRecompilePending")
	}
	if s.PollForRecompilation() {
		t.Error("PollForRecompilation should clear the flag after reporting it")
	}
}
