// Package debug formats HAL state for diagnostics, the way the corpus
// reaches for davecgh/go-spew rather than hand-rolled %+v dumps in test
// failure and trace output.
package debug

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"

	"sixjit/hal"
)

var dumpConfig = &spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Dump renders h's full register/flag state for logs and trace output.
func Dump(h *hal.State) string {
	return dumpConfig.Sdump(h)
}

// Trace renders a single compact line suitable for an instruction-level
// execution trace: PC, registers, and packed status byte.
func Trace(h *hal.State) string {
	return fmt.Sprintf("PC=%04X A=%02X X=%02X Y=%02X SP=%02X P=%02X",
		h.PC, h.A, h.X, h.Y, h.SP, h.Status())
}
