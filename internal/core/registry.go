package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// catalog holds every module compiled into the binary. Modules add
// themselves from init functions, so it is only written before main runs.
type catalog struct {
	mu   sync.RWMutex
	byID map[ModuleID]ModuleInfo
}

var modules = &catalog{byID: make(map[ModuleID]ModuleInfo)}

// RegisterModule adds a module to the catalog. It panics on an invalid or
// duplicate ID, which can only be a programming error.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if err := info.ID.Check(); err != nil {
		panic(err)
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}

	modules.mu.Lock()
	defer modules.mu.Unlock()
	if _, exists := modules.byID[info.ID]; exists {
		panic(fmt.Sprintf("module already registered: %s", info.ID))
	}
	modules.byID[info.ID] = info
}

// GetModule returns the ModuleInfo for the given ID.
func GetModule(id string) (ModuleInfo, bool) {
	modules.mu.RLock()
	defer modules.mu.RUnlock()
	info, ok := modules.byID[ModuleID(id)]
	return info, ok
}

// GetModules returns all registered modules sorted by ID.
func GetModules() []ModuleInfo {
	modules.mu.RLock()
	out := make([]ModuleInfo, 0, len(modules.byID))
	for _, info := range modules.byID {
		out = append(out, info)
	}
	modules.mu.RUnlock()

	slices.SortFunc(out, func(a, b ModuleInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// GetModulesByNamespace returns the registered modules of one kind, for
// example every "provider" module.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return slices.DeleteFunc(GetModules(), func(info ModuleInfo) bool {
		return info.ID.Namespace() != namespace || info.ID.Name() == ""
	})
}

// resetRegistry clears the catalog. Only for testing.
func resetRegistry() {
	modules.mu.Lock()
	defer modules.mu.Unlock()
	clear(modules.byID)
}
