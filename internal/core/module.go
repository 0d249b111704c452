package core

// ModuleID identifies a module, namespaced by its role (e.g. "channel.telegram").
type ModuleID string

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is the minimal interface every module implements.
type Module interface {
	ModuleInfo() ModuleInfo
}
