package processing

import (
	"strings"
	"time"

	"github.com/garrichello/climatecore/pkg/core/access"
	"github.com/garrichello/climatecore/pkg/core/adapter"
	"github.com/garrichello/climatecore/pkg/core/grid"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
	"github.com/garrichello/climatecore/pkg/core/task"
)

// unifyGrids implements cvcCalcUnifyGrids: it brings two data inputs onto a
// common time and spatial grid and writes both harmonized sides to the
// matching outputs.
//
// Temporal rule: the finer series is aggregated onto the coarser time grid,
// summed for accumulated parameters and averaged otherwise. Spatial rule: the
// denser mesh is interpolated bilinearly onto the sparser one; when one side
// is station data the gridded side is always interpolated onto the station
// coordinates; two station sides cannot be unified.
type unifyGrids struct {
	da *access.DataAccess
}

func init() {
	Register("cvcCalcUnifyGrids", func(da *access.DataAccess) Module {
		return &unifyGrids{da: da}
	})
}

// side is the fully read state of one input being unified.
type side struct {
	uid    string
	result *adapter.ReadResult
	mode   grid.HarmonizeMode
}

func (m *unifyGrids) Run() error {
	logger.Infof("Started cvcCalcUnifyGrids")

	inputs, err := dataInputUIDs(m.da)
	if err != nil {
		return err
	}
	outputs := m.da.OutputUIDs()
	if len(inputs) != 2 || len(outputs) != 2 {
		return exception.NewCoreErrorf(moduleName,
			"cvcCalcUnifyGrids needs exactly 2 data inputs and 2 outputs, got %d and %d",
			len(inputs), len(outputs))
	}

	sides := make([]*side, 2)
	for i, uid := range inputs {
		result, err := m.da.Get(uid)
		if err != nil {
			return err
		}
		info, err := m.da.GetDataInfo(uid)
		if err != nil {
			return err
		}
		mode := grid.HarmonizeMean
		if strings.EqualFold(info.Description.AccMode, "sum") {
			mode = grid.HarmonizeSum
		}
		sides[i] = &side{uid: uid, result: result, mode: mode}
	}

	if sides[0].result.GridType == grid.GridTypeStation &&
		sides[1].result.GridType == grid.GridTypeStation {
		return exception.NewCoreError(moduleName,
			"unifying two station datasets", exception.ErrNotImplemented)
	}

	for _, s := range sides {
		if err := normalizeOrientation(s); err != nil {
			return err
		}
	}

	// Levels and segments pair by position across the two inputs.
	levels := [2][]string{m.da.GetLevels(inputs[0]), m.da.GetLevels(inputs[1])}
	segments := [2][]task.TimeSegment{m.da.GetSegments(inputs[0]), m.da.GetSegments(inputs[1])}
	if len(levels[0]) != len(levels[1]) || len(segments[0]) != len(segments[1]) {
		return exception.NewCoreErrorf(moduleName,
			"cvcCalcUnifyGrids: inputs declare different numbers of levels or segments")
	}

	for li := range levels[0] {
		for si := range segments[0] {
			pair := [2]*segmentSlab{}
			for k, s := range sides {
				sd, err := segmentOf(s.result, levels[k][li], segments[k][si].Name, s.uid)
				if err != nil {
					return err
				}
				pair[k] = &segmentSlab{side: s, data: sd}
			}

			unifiedTimes, err := unifyTime(pair)
			if err != nil {
				return err
			}
			unified, lons, lats, meta, err := unifySpace(pair)
			if err != nil {
				return err
			}

			for k := range unified {
				opts := adapter.WriteOptions{
					Level:       levels[k][li],
					Segment:     segments[k][si],
					Times:       unifiedTimes,
					Longitudes:  lons,
					Latitudes:   lats,
					Description: sides[k].result.Description,
					Meta:        meta,
				}
				if err := m.da.Put(outputs[k], unified[k], opts); err != nil {
					return err
				}
			}
		}
	}

	logger.Infof("Finished cvcCalcUnifyGrids")
	return nil
}

// normalizeOrientation flips a gridded side whose latitude or longitude axis
// is stored in descending order (data written north to south, typically).
// Interpolation binary-searches the source axes, so both must be ascending.
// Station sides keep their arbitrary coordinate order.
func normalizeOrientation(s *side) error {
	if s.result.GridType != grid.GridTypeStation {
		if err := normalizeAxis(s, &s.result.Latitudes, 1); err != nil {
			return err
		}
		if err := normalizeAxis(s, &s.result.Longitudes, 2); err != nil {
			return err
		}
	}
	return nil
}

// normalizeAxis reverses one coordinate axis and the matching data axis of
// every [time, lat, lon] slab when the axis is descending.
func normalizeAxis(s *side, axis *[]float64, dataAxis int) error {
	reversed, err := grid.EnsureAscending(*axis)
	if err != nil {
		return err
	}
	if !reversed {
		return nil
	}
	logger.Debugf("Input '%s' stores a descending coordinate axis; flipping it", s.uid)
	*axis = grid.Reversed(*axis)
	for _, lvl := range s.result.ByLevel {
		for _, sd := range lvl.BySegment {
			if err := sd.Values.ReverseAxis(dataAxis); err != nil {
				return err
			}
		}
	}
	return nil
}

// segmentSlab is one side's data for the level/segment pair being unified.
type segmentSlab struct {
	side *side
	data *adapter.SegmentData
}

func segmentOf(result *adapter.ReadResult, level, segment, uid string) (*adapter.SegmentData, error) {
	levelData, ok := result.ByLevel[level]
	if !ok {
		return nil, exception.NewCoreErrorf(moduleName,
			"input '%s' has no data for level '%s'", uid, level)
	}
	sd, ok := levelData.BySegment[segment]
	if !ok {
		return nil, exception.NewCoreErrorf(moduleName,
			"input '%s' has no data for segment '%s'", uid, segment)
	}
	return sd, nil
}

// unifyTime aggregates the finer side onto the coarser time grid, in place,
// and returns the common grid.
func unifyTime(pair [2]*segmentSlab) ([]time.Time, error) {
	coarse, fine := 0, 1
	if len(pair[1].data.TimeGrid) < len(pair[0].data.TimeGrid) {
		coarse, fine = 1, 0
	}
	coarseGrid := pair[coarse].data.TimeGrid

	if len(pair[fine].data.TimeGrid) != len(coarseGrid) {
		aggregated, err := harmonizeArray(pair[fine].data.Values,
			pair[fine].data.TimeGrid, coarseGrid, pair[fine].side.mode)
		if err != nil {
			return nil, err
		}
		pair[fine].data = &adapter.SegmentData{Values: aggregated, TimeGrid: coarseGrid}
	}
	return coarseGrid, nil
}

// harmonizeArray applies the per-cell time harmonization to a [time, ...spatial] array.
func harmonizeArray(values *grid.MaskedArray, fine, coarse []time.Time,
	mode grid.HarmonizeMode) (*grid.MaskedArray, error) {

	spatial := 1
	for _, n := range values.Shape[1:] {
		spatial *= n
	}
	nt := values.Shape[0]
	out := grid.NewMaskedArray(append([]int{len(coarse)}, values.Shape[1:]...), values.FillValue)

	series := make([]float64, nt)
	seriesMask := make([]bool, nt)
	for c := 0; c < spatial; c++ {
		for t := 0; t < nt; t++ {
			series[t] = values.Values[t*spatial+c]
			seriesMask[t] = values.Mask[t*spatial+c]
		}
		v, m, err := grid.HarmonizeTimeGrid(series, seriesMask, fine, coarse, mode)
		if err != nil {
			return nil, err
		}
		for t := range coarse {
			i := t*spatial + c
			out.Values[i] = v[t]
			out.Mask[i] = m[t]
			if m[t] {
				out.Values[i] = out.FillValue
			}
		}
	}
	return out, nil
}

// unifySpace interpolates the denser side onto the sparser grid (or onto the
// station coordinates) per time step and returns both unified arrays plus the
// common axes.
func unifySpace(pair [2]*segmentSlab) ([2]*grid.MaskedArray, []float64, []float64, *adapter.StationMeta, error) {
	var none [2]*grid.MaskedArray

	target, source := 0, 1
	switch {
	case pair[0].side.result.GridType == grid.GridTypeStation:
		target, source = 0, 1
	case pair[1].side.result.GridType == grid.GridTypeStation:
		target, source = 1, 0
	default:
		p0 := len(pair[0].side.result.Longitudes) * len(pair[0].side.result.Latitudes)
		p1 := len(pair[1].side.result.Longitudes) * len(pair[1].side.result.Latitudes)
		if !grid.Coarser(p0, p1) {
			target, source = 1, 0
		}
	}

	tgt := pair[target].side.result
	src := pair[source].side.result
	toStations := tgt.GridType == grid.GridTypeStation

	srcData := pair[source].data.Values
	nt := srcData.Shape[0]

	var outShape []int
	if toStations {
		outShape = []int{nt, len(tgt.Longitudes)}
	} else {
		outShape = []int{nt, len(tgt.Latitudes), len(tgt.Longitudes)}
	}
	interpolated := grid.NewMaskedArray(outShape, srcData.FillValue)

	spatial := 1
	for _, n := range srcData.Shape[1:] {
		spatial *= n
	}
	for t := 0; t < nt; t++ {
		field := &grid.MaskedArray{
			Values:    srcData.Values[t*spatial : (t+1)*spatial],
			Mask:      srcData.Mask[t*spatial : (t+1)*spatial],
			Shape:     srcData.Shape[1:],
			FillValue: srcData.FillValue,
		}
		var slab *grid.MaskedArray
		var err error
		if toStations {
			slab, err = grid.BilinearToStations(field, src.Longitudes, src.Latitudes,
				tgt.Longitudes, tgt.Latitudes)
		} else {
			slab, err = grid.BilinearToGrid(field, src.Longitudes, src.Latitudes,
				tgt.Longitudes, tgt.Latitudes)
		}
		if err != nil {
			return none, nil, nil, nil, err
		}
		copySlab(interpolated, slab, t)
	}

	var out [2]*grid.MaskedArray
	out[target] = pair[target].data.Values
	out[source] = interpolated
	return out, tgt.Longitudes, tgt.Latitudes, tgt.Meta, nil
}
