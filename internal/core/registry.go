package core

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	modules   = make(map[string]ModuleInfo)
	modulesMu sync.RWMutex
)

// providerNamespaces load before everything else: their services are looked
// up by other modules during Provision.
var providerNamespaces = map[string]int{
	"store":  0,
	"lookup": 1,
}

// Namespace returns the role part of the ID ("channel" for "channel.telegram").
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the part of the ID after the namespace.
func (id ModuleID) Name() string {
	_, name, _ := strings.Cut(string(id), ".")
	return name
}

func (id ModuleID) valid() bool {
	ns, name, ok := strings.Cut(string(id), ".")
	return ok && ns != "" && name != ""
}

// LoadRank orders module IDs for loading. Lower ranks load first; IDs with
// the same rank load in lexical order.
func LoadRank(id string) int {
	if r, ok := providerNamespaces[ModuleID(id).Namespace()]; ok {
		return r
	}
	return len(providerNamespaces)
}

// CompareLoadOrder is a slices.SortFunc comparator over LoadRank.
func CompareLoadOrder(a, b string) int {
	if c := cmp.Compare(LoadRank(a), LoadRank(b)); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}

// RegisterModule records a module's ModuleInfo. It panics unless the ID has
// the form "namespace.name", on a nil constructor, or on a duplicate ID.
// Call it from init().
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if !info.ID.valid() {
		panic(fmt.Sprintf("module ID %q must have the form namespace.name", info.ID))
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}

	modulesMu.Lock()
	defer modulesMu.Unlock()

	id := string(info.ID)
	if _, exists := modules[id]; exists {
		panic(fmt.Sprintf("module already registered: %s", id))
	}
	modules[id] = info
}

// GetModule returns the ModuleInfo for the given ID, or false if not found.
func GetModule(id string) (ModuleInfo, bool) {
	modulesMu.RLock()
	defer modulesMu.RUnlock()
	info, ok := modules[id]
	return info, ok
}

// GetModules returns all registered modules in load order.
func GetModules() []ModuleInfo {
	modulesMu.RLock()
	defer modulesMu.RUnlock()

	result := make([]ModuleInfo, 0, len(modules))
	for _, info := range modules {
		result = append(result, info)
	}
	slices.SortFunc(result, func(a, b ModuleInfo) int {
		return CompareLoadOrder(string(a.ID), string(b.ID))
	})
	return result
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	modulesMu.Lock()
	defer modulesMu.Unlock()
	modules = make(map[string]ModuleInfo)
}
