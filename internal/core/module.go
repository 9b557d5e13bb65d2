package core

import (
	"errors"
	"fmt"
	"strings"
)

// ModuleID identifies a module. IDs are namespaced with dots, the first
// segment naming the kind of module ("provider.openai", "memory.sqlite").
type ModuleID string

// Namespace returns the segment before the first dot, or the whole ID when
// it has none.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the part after the namespace, or "" for single-segment IDs.
func (id ModuleID) Name() string {
	_, name, _ := strings.Cut(string(id), ".")
	return name
}

// Check reports whether id is usable as a configuration key: one or more
// non-empty segments of lowercase letters, digits and underscores.
func (id ModuleID) Check() error {
	if id == "" {
		return fmt.Errorf("module ID must not be empty")
	}
	for seg := range strings.SplitSeq(string(id), ".") {
		if seg == "" {
			return fmt.Errorf("module ID %q has an empty segment", id)
		}
		for _, r := range seg {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
				return fmt.Errorf("module ID %q: invalid character %q", id, r)
			}
		}
	}
	return nil
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is implemented by everything the App can load.
type Module interface {
	ModuleInfo() ModuleInfo
}

// Stage names a step of module loading.
type Stage string

// Loading stages, in the order they run.
const (
	StageLookup    Stage = "lookup"
	StageConfigure Stage = "configure"
	StageProvision Stage = "provision"
	StageValidate  Stage = "validate"
	StageStart     Stage = "start"
	StageStop      Stage = "stop"
)

// ErrUnknownModule is wrapped by the lookup stage when no module is
// registered under the requested ID.
var ErrUnknownModule = errors.New("unknown module")

// ModuleError reports which module failed and at which stage.
type ModuleError struct {
	ID    ModuleID
	Stage Stage
	Err   error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %s: %s: %v", e.ID, e.Stage, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }
