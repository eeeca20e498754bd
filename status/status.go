// Package status implements the error-handling taxonomy of spec.md §7:
// every Core API operation yields a Kind, partitioned into Ok,
// recoverable kinds the caller may act on, and fatal kinds after which
// the world is not guaranteed usable.
package status

// Kind is one status value from spec.md §7.
type Kind int

const (
	Ok Kind = iota

	// Recoverable: the operation failed but the world remains usable.
	Alloc
	State
	StackLimit
	RegLimit
	ProcIndex
	ModuleTruncated
	ModuleMagic
	ModuleCorrupt
	CondCreate
	WorldAlloc
	LogMutexInit

	// Fatal: an internal invariant broke; the caller should finalize
	// the world rather than keep driving it.
	Bug
	NoCode
	MutexLock
	MutexUnlock
	CondDestroy
	WorldFree
	Free
	AllocFatal
	UnsupportedOpcode
)

var names = map[Kind]string{
	Ok:                "Ok",
	Alloc:             "Alloc",
	State:             "State",
	StackLimit:        "StackLimit",
	RegLimit:          "RegLimit",
	ProcIndex:         "ProcIndex",
	ModuleTruncated:   "ModuleTruncated",
	ModuleMagic:       "ModuleMagic",
	ModuleCorrupt:     "ModuleCorrupt",
	CondCreate:        "CondCreate",
	WorldAlloc:        "WorldAlloc",
	LogMutexInit:      "LogMutexInit",
	Bug:               "Bug",
	NoCode:            "NoCode",
	MutexLock:         "MutexLock",
	MutexUnlock:       "MutexUnlock",
	CondDestroy:       "CondDestroy",
	WorldFree:         "WorldFree",
	Free:              "Free",
	AllocFatal:        "AllocFatal",
	UnsupportedOpcode: "UnsupportedOpcode",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "Unknown"
}

// fatalKinds partitions Kind into the fatal subset of spec.md §7.
var fatalKinds = map[Kind]bool{
	Bug: true, NoCode: true, MutexLock: true, MutexUnlock: true,
	CondDestroy: true, WorldFree: true, Free: true, AllocFatal: true,
	UnsupportedOpcode: true,
}

// Fatal reports whether k is one of the fatal kinds after which the
// world is not guaranteed usable.
func (k Kind) Fatal() bool { return fatalKinds[k] }

// Status is the (Kind, message) pair every Core API operation returns.
// It implements error so it composes with Go's error-handling idioms,
// while still exposing Kind for callers that branch on the taxonomy.
type Status struct {
	Kind    Kind
	Message string
}

func (s *Status) Error() string {
	if s.Message == "" {
		return s.Kind.String()
	}
	return s.Kind.String() + ": " + s.Message
}

// New builds a non-Ok status.
func New(k Kind, msg string) *Status { return &Status{Kind: k, Message: msg} }

// From extracts the Kind of an error produced by this package, for
// error-kind dispatch. A nil error reports Ok; an error not produced
// here reports Bug.
func From(err error) Kind {
	if err == nil {
		return Ok
	}
	if s, ok := err.(*Status); ok {
		return s.Kind
	}
	return Bug
}
