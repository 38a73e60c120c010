// Package processing defines the calculation module contract and the registry
// that maps task-file class names to module constructors, plus the built-in
// calculation modules.
package processing

import (
	"sync"

	"github.com/garrichello/climatecore/pkg/core/access"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
)

const moduleName = "processing"

// Module is one calculation step. A module reads its inputs and writes its
// results exclusively through the data-access facade it was built with.
type Module interface {
	Run() error
}

// Factory builds a module bound to one step's data-access facade.
type Factory func(da *access.DataAccess) Module

var (
	moduleRegistry = make(map[string]Factory)
	moduleMutex    sync.RWMutex
)

// Register registers a module factory under its task-file class name.
func Register(class string, factory Factory) {
	moduleMutex.Lock()
	defer moduleMutex.Unlock()
	if _, exists := moduleRegistry[class]; exists {
		logger.Warnf("Processing module '%s' already registered. Overwriting.", class)
	}
	moduleRegistry[class] = factory
}

// New builds the module registered under the given class name. A class with
// no registered factory is fatal: the task references a processing module
// that does not exist.
func New(class string, da *access.DataAccess) (Module, error) {
	moduleMutex.RLock()
	factory, ok := moduleRegistry[class]
	moduleMutex.RUnlock()
	if !ok {
		return nil, exception.NewCoreError(moduleName,
			"processing module '"+class+"' does not exist", exception.ErrUnregistered)
	}
	return factory(da), nil
}
