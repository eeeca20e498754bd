// Package builtin holds the bundled "core" module every world can
// pre-map into slot 0 of a new task's module map (spec.md §8 scenario
// 2), the way original_source/src/test.c embeds small literal test
// programs directly in source rather than loading them from a file.
package builtin

import (
	"github.com/hazna-vm/hazna/module"
	"github.com/hazna-vm/hazna/regview"
)

const (
	regChar    = 0  // width-8 scratch register holding the next character
	regCounter = 8  // width-8 loop counter, starts at 10
	regDecr    = 16 // width-8 constant 1, subtracted each iteration
)

// message is the exact byte sequence the hello loop writes.
var message = []byte{'h', 'e', 'l', 'l', 'o', '!', '\n'}

// Build assembles the core module. Proc 0 is a reserved do-nothing
// entry, so the module's first real procedure starts at index 1: a
// host that pre-maps core at module-map slot 0 enters the hello loop
// as enter(0, 1, 0). Proc 1 is the exported "hello_loop": it writes
// message via debug-out, decrements a counter seeded at 10, and
// branches back until the counter reaches zero, leaving
// len(message)*10 debug-out entries in the log.
func Build() (*module.Module, error) {
	b := module.NewBuilder()
	b.SetName("core")

	b.NewProc("").Return()

	p := b.NewProc("hello_loop")

	p.InitInline(regview.Width8, regCounter, 10)
	p.InitInline(regview.Width8, regDecr, 1)

	loopStart := p.NextInsnIndex()
	for _, c := range message {
		p.InitInline(regview.Width8, regChar, uint16(c))
		p.DebugOut(regview.Width8, regChar)
	}
	p.Sub(regview.Width8, regCounter, regCounter, regDecr)

	doneIdx := p.NextInsnIndex() + 1 // the Halt right after the branch below
	pairIdx := p.AddTargetPair(doneIdx, loopStart)
	p.BranchZeroNonzero(regview.Width8, regCounter, pairIdx)
	p.Halt()

	return b.Build()
}
