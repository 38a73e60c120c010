package adapter

import (
	"sync"
	"time"

	"github.com/garrichello/climatecore/pkg/core/grid"
	"github.com/garrichello/climatecore/pkg/core/mddb"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
)

// storedArray is the accumulated state of one in-memory array declaration.
type storedArray struct {
	byLevel     map[string]*LevelData
	longitudes  []float64
	latitudes   []float64
	gridType    grid.GridType
	fillValue   float64
	hasFill     bool
	description mddb.Description
	meta        *StationMeta
}

// ArrayStore holds the in-memory arrays exchanged between the processing
// steps of one task run, keyed by declaration UID. One store exists per run,
// so concurrent tasks never observe each other's intermediates.
type ArrayStore struct {
	mu     sync.Mutex
	arrays map[string]*storedArray
}

// NewArrayStore allocates an empty store.
func NewArrayStore() *ArrayStore {
	return &ArrayStore{arrays: make(map[string]*storedArray)}
}

func (s *ArrayStore) get(uid string) (*storedArray, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.arrays[uid]
	return a, ok
}

func (s *ArrayStore) getOrCreate(uid string) *storedArray {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.arrays[uid]
	if !ok {
		a = &storedArray{byLevel: make(map[string]*LevelData)}
		s.arrays[uid] = a
	}
	return a
}

// arrayAdapter exchanges masked arrays between processing steps through the
// shared per-run store. Writes accumulate per level and segment; reads return
// the accumulated state with masks and fill values intact.
type arrayAdapter struct {
	uid   string
	store *ArrayStore
}

var _ DataAdapter = (*arrayAdapter)(nil)

func init() {
	Register("array", func(info *mddb.ArgumentInfo, env *Env) (DataAdapter, error) {
		uid := ""
		switch {
		case info.Data != nil:
			uid = info.Data.UID
		case info.Destination != nil:
			uid = info.Destination.UID
		}
		if uid == "" {
			return nil, exception.NewCoreErrorf(moduleName, "array declaration without a UID")
		}
		if env.Arrays == nil {
			return nil, exception.NewCoreErrorf(moduleName, "array store is not initialized")
		}
		return &arrayAdapter{uid: uid, store: env.Arrays}, nil
	})
}

// Read returns everything accumulated for this array so far. Requested
// segment and level selections are ignored: an intermediate array carries
// exactly what the producing step wrote.
func (a *arrayAdapter) Read(opts ReadOptions) (*ReadResult, error) {
	stored, ok := a.store.get(a.uid)
	if !ok {
		return nil, exception.NewCoreErrorf(moduleName,
			"array '%s' was read before any step wrote it", a.uid)
	}

	result := &ReadResult{
		ByLevel:     make(map[string]*LevelData, len(stored.byLevel)),
		Longitudes:  stored.longitudes,
		Latitudes:   stored.latitudes,
		GridType:    stored.gridType,
		FillValue:   stored.fillValue,
		Description: stored.description,
		Meta:        stored.meta,
	}
	if !stored.hasFill {
		result.FillValue = grid.DefaultFillValue
	}
	for level, data := range stored.byLevel {
		copied := &LevelData{BySegment: make(map[string]*SegmentData, len(data.BySegment))}
		for segment, sd := range data.BySegment {
			copied.BySegment[segment] = &SegmentData{
				Values:   sd.Values.Copy(),
				TimeGrid: append([]time.Time(nil), sd.TimeGrid...),
			}
		}
		result.ByLevel[level] = copied
	}
	return result, nil
}

// Write stores one level/segment slab. The first write fixes the grid axes
// and fill value of the whole array.
func (a *arrayAdapter) Write(values *grid.MaskedArray, opts WriteOptions) error {
	if values == nil {
		return exception.NewCoreErrorf(moduleName, "nil values written to array '%s'", a.uid)
	}
	stored := a.store.getOrCreate(a.uid)

	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	if !stored.hasFill {
		stored.fillValue = values.FillValue
		stored.hasFill = true
		stored.longitudes = append([]float64(nil), opts.Longitudes...)
		stored.latitudes = append([]float64(nil), opts.Latitudes...)
		stored.gridType = grid.GridTypeRegular
		if opts.Meta != nil {
			stored.gridType = grid.GridTypeStation
		}
		stored.description = opts.Description
		stored.meta = opts.Meta
	}

	level := opts.Level
	data, ok := stored.byLevel[level]
	if !ok {
		data = &LevelData{BySegment: make(map[string]*SegmentData)}
		stored.byLevel[level] = data
	}
	segment := opts.Segment.Name
	data.BySegment[segment] = &SegmentData{
		Values:   values.Copy(),
		TimeGrid: append([]time.Time(nil), opts.Times...),
	}

	logger.Debugf("Stored array '%s' level '%s' segment '%s' (%s)", a.uid, level, segment, values)
	return nil
}
