package module

import (
	"fmt"

	"github.com/hazna-vm/hazna/status"
)

// Error reports a module decode/verify failure with enough context to
// locate it: which proc and instruction, when applicable. Kind is
// always one of status.ModuleTruncated, status.ModuleMagic or
// status.ModuleCorrupt (spec.md §7's module-shaped recoverable kinds).
type Error struct {
	Kind    status.Kind
	Message string
	Proc    int // -1 if not instruction-scoped
	Insn    int // -1 if not instruction-scoped
}

func (e *Error) Error() string {
	if e.Proc >= 0 {
		return fmt.Sprintf("%s: proc %d insn %d: %s", e.Kind, e.Proc, e.Insn, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Status converts a module.Error into the Core API's status.Status.
func (e *Error) Status() *status.Status { return status.New(e.Kind, e.Error()) }

func newErr(kind status.Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Proc: -1, Insn: -1}
}

func newInsnErr(kind status.Kind, proc, insn int, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Proc: proc, Insn: insn}
}

// Exported aliases so callers can compare module.Error.Kind without a
// separate import of the status package for the common three kinds.
const (
	ErrModuleTruncated = status.ModuleTruncated
	ErrModuleMagic     = status.ModuleMagic
	ErrModuleCorrupt   = status.ModuleCorrupt
)
