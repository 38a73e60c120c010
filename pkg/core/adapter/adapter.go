// Package adapter defines the uniform data-access contract implemented by all
// data source and destination variants (gridded archives, station databases,
// in-memory arrays, task parameters, raw files and images), plus the registry
// that maps resolved data-type names to adapter factories.
package adapter

import (
	"sync"
	"time"

	"github.com/garrichello/climatecore/pkg/core/grid"
	"github.com/garrichello/climatecore/pkg/core/mddb"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
	"github.com/garrichello/climatecore/pkg/core/task"
)

const moduleName = "adapter"

// SegmentData is the values read for one time segment of one level.
type SegmentData struct {
	Values   *grid.MaskedArray
	TimeGrid []time.Time
}

// LevelData groups segment results of one vertical level by segment name.
type LevelData struct {
	BySegment map[string]*SegmentData
}

// StationMeta is the station side-channel returned alongside station values:
// element i describes the station at column i of the data arrays.
type StationMeta struct {
	Names      []string
	WMOCodes   []string
	Elevations []float64
}

// ReadResult is the typed result of one adapter read.
type ReadResult struct {
	// ByLevel holds the data arrays keyed by level name, then segment name.
	ByLevel map[string]*LevelData
	// Longitudes / Latitudes are the horizontal axes shared by all levels.
	// For station data Longitudes[i]/Latitudes[i] position station i.
	Longitudes []float64
	Latitudes  []float64
	GridType   grid.GridType
	FillValue  float64
	// Description is the human-readable metadata of the data source.
	Description mddb.Description
	// Meta is set for station reads only.
	Meta *StationMeta
	// Parameters is set by the parameter adapter only: values cast to
	// string, int64 or float64 keyed by parameter UID.
	Parameters map[string]interface{}
}

// ReadOptions selects what an adapter read must return.
type ReadOptions struct {
	Segments []task.TimeSegment
	Levels   []string
}

// WriteOptions carries the addressing and metadata of one adapter write.
type WriteOptions struct {
	Level       string
	Segment     task.TimeSegment
	Times       []time.Time
	Longitudes  []float64
	Latitudes   []float64
	Description mddb.Description
	Meta        *StationMeta
}

// DataAdapter is the uniform contract of every data source and destination.
// Variants that cannot serve one of the directions return an error wrapping
// exception.ErrNotImplemented from it.
type DataAdapter interface {
	Read(opts ReadOptions) (*ReadResult, error)
	Write(values *grid.MaskedArray, opts WriteOptions) error
}

// Env carries the shared per-run state handed to adapter factories: the
// metadata-store connection for adapters that read through it, the base
// directory all relative file paths are resolved against, and the in-memory
// array store shared by the processing steps of one task.
type Env struct {
	MetaDB  task.MetaDB
	BaseDir string
	Arrays  *ArrayStore
}

// Factory builds one adapter from resolved argument info.
type Factory func(info *mddb.ArgumentInfo, env *Env) (DataAdapter, error)

var (
	factoryRegistry = make(map[string]Factory)
	factoryMutex    sync.RWMutex
)

// Register registers an adapter factory under a data-type name. Dataset types
// use the metadata store's file-type name; other declarations use their type
// tag from the task document.
func Register(dataType string, factory Factory) {
	factoryMutex.Lock()
	defer factoryMutex.Unlock()
	if _, exists := factoryRegistry[dataType]; exists {
		logger.Warnf("Adapter factory for data type '%s' already registered. Overwriting.", dataType)
	}
	factoryRegistry[dataType] = factory
}

// New builds the adapter for the given resolved argument. An unregistered
// data type is fatal: it means the task references a data-access module that
// does not exist.
func New(info *mddb.ArgumentInfo, env *Env) (DataAdapter, error) {
	factoryMutex.RLock()
	factory, ok := factoryRegistry[info.DataType]
	factoryMutex.RUnlock()
	if !ok {
		return nil, exception.NewCoreError(moduleName,
			"data-access module for type '"+info.DataType+"' does not exist",
			exception.ErrUnregistered)
	}
	return factory(info, env)
}
