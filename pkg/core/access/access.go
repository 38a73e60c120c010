// Package access implements the uniform data-access facade handed to
// calculation modules. A facade is built fresh for every processing step from
// the step's resolved argument bindings; every adapter is constructed at
// build time and lives for the lifetime of the step only.
package access

import (
	"github.com/garrichello/climatecore/pkg/core/adapter"
	"github.com/garrichello/climatecore/pkg/core/grid"
	"github.com/garrichello/climatecore/pkg/core/mddb"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
	"github.com/garrichello/climatecore/pkg/core/task"
)

const moduleName = "access"

// Argument is one resolved step argument: the local UID the module addresses
// it by, plus the resolved metadata.
type Argument struct {
	LocalUID string
	Info     *mddb.ArgumentInfo
}

// DataAccess is the only interface calculation modules see. Local UIDs come
// from the step's input/output bindings, in document order.
type DataAccess struct {
	inputs   []Argument
	outputs  []Argument
	adapters map[string]adapter.DataAdapter
}

// New builds a facade over the given resolved arguments. Adapters for every
// binding are constructed here, up front: an argument bound to an
// unregistered data type fails the whole step before any data I/O happens,
// so a broken binding can never leave partial results behind.
func New(inputs, outputs []Argument, env *adapter.Env) (*DataAccess, error) {
	d := &DataAccess{
		inputs:   inputs,
		outputs:  outputs,
		adapters: make(map[string]adapter.DataAdapter, len(inputs)+len(outputs)),
	}
	for _, args := range [][]Argument{inputs, outputs} {
		for i := range args {
			arg := &args[i]
			a, err := adapter.New(arg.Info, env)
			if err != nil {
				return nil, exception.NewCoreError(moduleName,
					"cannot bind argument '"+arg.LocalUID+"'", err)
			}
			d.adapters[arg.LocalUID] = a
		}
	}
	return d, nil
}

// InputUIDs returns the local UIDs of the step's inputs in document order.
// A step that declares no inputs gets nil, never an empty list.
func (d *DataAccess) InputUIDs() []string {
	return localUIDs(d.inputs)
}

// OutputUIDs returns the local UIDs of the step's outputs in document order.
func (d *DataAccess) OutputUIDs() []string {
	return localUIDs(d.outputs)
}

func localUIDs(args []Argument) []string {
	if len(args) == 0 {
		return nil
	}
	uids := make([]string, len(args))
	for i, a := range args {
		uids[i] = a.LocalUID
	}
	return uids
}

func (d *DataAccess) find(uid string) (*Argument, error) {
	for i := range d.inputs {
		if d.inputs[i].LocalUID == uid {
			return &d.inputs[i], nil
		}
	}
	for i := range d.outputs {
		if d.outputs[i].LocalUID == uid {
			return &d.outputs[i], nil
		}
	}
	return nil, exception.NewCoreErrorf(moduleName, "unknown argument UID '%s'", uid)
}

func (d *DataAccess) adapterFor(arg *Argument) (adapter.DataAdapter, error) {
	a, ok := d.adapters[arg.LocalUID]
	if !ok {
		return nil, exception.NewCoreErrorf(moduleName,
			"no adapter bound for argument UID '%s'", arg.LocalUID)
	}
	return a, nil
}

// Get reads everything the argument's declaration selects: all declared time
// segments on all declared levels.
func (d *DataAccess) Get(uid string) (*adapter.ReadResult, error) {
	return d.GetSelection(uid, d.GetSegments(uid), d.GetLevels(uid))
}

// GetSelection reads an explicit segment/level selection of one argument.
func (d *DataAccess) GetSelection(uid string, segments []task.TimeSegment, levels []string) (*adapter.ReadResult, error) {
	arg, err := d.find(uid)
	if err != nil {
		return nil, err
	}
	a, err := d.adapterFor(arg)
	if err != nil {
		return nil, err
	}
	logger.Debugf("Reading '%s' (%d segments, %d levels)", uid, len(segments), len(levels))
	return a.Read(adapter.ReadOptions{Segments: segments, Levels: levels})
}

// Put writes one level/segment result through the argument's adapter. A zero
// fill value on the array is replaced with the documented default so masked
// points always round-trip.
func (d *DataAccess) Put(uid string, values *grid.MaskedArray, opts adapter.WriteOptions) error {
	arg, err := d.find(uid)
	if err != nil {
		return err
	}
	a, err := d.adapterFor(arg)
	if err != nil {
		return err
	}
	if values != nil && values.FillValue == 0 {
		values.FillValue = grid.DefaultFillValue
	}
	logger.Debugf("Writing '%s' (level '%s', segment '%s')", uid, opts.Level, opts.Segment.Name)
	return a.Write(values, opts)
}

// GetDataInfo returns the resolved metadata of one argument.
func (d *DataAccess) GetDataInfo(uid string) (*mddb.ArgumentInfo, error) {
	arg, err := d.find(uid)
	if err != nil {
		return nil, err
	}
	return arg.Info, nil
}

// GetSegments returns the time segments declared for one argument, or nil.
func (d *DataAccess) GetSegments(uid string) []task.TimeSegment {
	arg, err := d.find(uid)
	if err != nil {
		return nil
	}
	if arg.Info.Data != nil && arg.Info.Data.Time != nil {
		return arg.Info.Data.Time.Segments
	}
	return nil
}

// GetLevels returns the level names declared for one argument, or nil.
func (d *DataAccess) GetLevels(uid string) []string {
	arg, err := d.find(uid)
	if err != nil {
		return nil
	}
	if arg.Info.Data != nil {
		return arg.Info.Data.Levels.Names()
	}
	if arg.Info.Destination != nil {
		return arg.Info.Destination.Levels.Names()
	}
	return nil
}

// IsStations reports whether one argument serves station data. An unknown UID
// is reported, not fatal: the caller gets false.
func (d *DataAccess) IsStations(uid string) bool {
	arg, err := d.find(uid)
	if err != nil {
		logger.Warnf("IsStations called for unknown argument UID '%s'", uid)
		return false
	}
	return arg.Info.DataType == task.TypeDB
}
