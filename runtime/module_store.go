package runtime

import (
	"github.com/hazna-vm/hazna/module"
	"github.com/hazna-vm/hazna/status"
)

// ModuleLoad is the Core API's module_load: decode and verify raw
// module bytes, assign it the next id in this world, and register it
// (unbound, with a refcount of one for the world's own reference)
// under the module mutex (spec.md §4.6).
func (w *World) ModuleLoad(data []byte) (*module.Module, *status.Status) {
	m, err := module.Decode(data)
	if err != nil {
		return nil, wrapModuleErr(err)
	}
	if err := module.Verify(m); err != nil {
		return nil, wrapModuleErr(err)
	}

	w.worldMu.Lock()
	w.alloc.ModulesLoaded++
	w.worldMu.Unlock()

	w.moduleMu.Lock()
	defer w.moduleMu.Unlock()
	w.nextModuleID++
	m.Id = w.nextModuleID
	w.modules[m.Id] = &moduleRecord{mod: m, refcount: 1}
	return m, nil
}

// ModuleBindName is module_bind_name: associate a name with a loaded
// module in the world's ordered name index, replacing any prior
// binding for that exact name.
func (w *World) ModuleBindName(name []byte, m *module.Module) *status.Status {
	w.moduleMu.Lock()
	defer w.moduleMu.Unlock()
	if _, ok := w.modules[m.Id]; !ok {
		return status.New(status.Bug, "module not registered with this world")
	}
	w.names.Bind(name, m)
	return nil
}

// ModuleFind is module_find: resolve a bound name to its module.
func (w *World) ModuleFind(name []byte) (*module.Module, bool) {
	w.moduleMu.Lock()
	defer w.moduleMu.Unlock()
	return w.names.Find(name)
}

// ExportIndex is the Core API's export_index: resolve a procedure
// name within a single module, with no world state involved (a plain
// function rather than a World method, since it only reads the
// module's own export table).
func ExportIndex(m *module.Module, name []byte) (int, bool) {
	return m.FindExport(name)
}

// moduleRef bumps a module's refcount, called when a task imports it.
func (w *World) moduleRef(m *module.Module) {
	w.moduleMu.Lock()
	if rec, ok := w.modules[m.Id]; ok {
		rec.refcount++
	}
	w.moduleMu.Unlock()
}

// moduleDeref drops a module's refcount, dropping it from the world's
// module table (and its name bindings) once it reaches zero.
func (w *World) moduleDeref(m *module.Module) {
	w.moduleMu.Lock()
	rec, ok := w.modules[m.Id]
	dropped := false
	if ok {
		rec.refcount--
		if rec.refcount <= 0 {
			delete(w.modules, m.Id)
			for i := len(w.names.entries) - 1; i >= 0; i-- {
				if w.names.entries[i].mod == m {
					w.names.entries = append(w.names.entries[:i], w.names.entries[i+1:]...)
				}
			}
			dropped = true
		}
	}
	w.moduleMu.Unlock()

	if dropped {
		w.worldMu.Lock()
		w.alloc.ModulesDropped++
		w.worldMu.Unlock()
	}
}

// wrapModuleErr adapts module.Decode/Verify's *module.Error into the
// Core API's Status taxonomy; module.Error already carries the right
// status.Kind, so this just unwraps it.
func wrapModuleErr(err error) *status.Status {
	if merr, ok := err.(*module.Error); ok {
		return merr.Status()
	}
	return status.New(status.ModuleCorrupt, err.Error())
}
