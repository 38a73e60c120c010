package processing

import (
	"fmt"
	"sort"
	"time"

	"github.com/garrichello/climatecore/pkg/core/access"
	"github.com/garrichello/climatecore/pkg/core/adapter"
	"github.com/garrichello/climatecore/pkg/core/grid"
	"github.com/garrichello/climatecore/pkg/core/support/util/configbinder"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/task"
)

// GlobalSegmentName labels the synthetic segment spanning all declared segments.
const GlobalSegmentName = "GlobalSeg"

// MakeGlobalSegment builds one segment covering the union of the given
// segments. Bounds compare lexicographically thanks to the fixed-width
// YYYYMMDDHH encoding.
func MakeGlobalSegment(segments []task.TimeSegment) (task.TimeSegment, error) {
	if len(segments) == 0 {
		return task.TimeSegment{}, exception.NewCoreErrorf(moduleName,
			"cannot build a global segment from an empty segment list")
	}
	global := task.TimeSegment{
		Name:      GlobalSegmentName,
		Beginning: segments[0].Beginning,
		Ending:    segments[0].Ending,
	}
	for _, s := range segments[1:] {
		if s.Beginning < global.Beginning {
			global.Beginning = s.Beginning
		}
		if s.Ending > global.Ending {
			global.Ending = s.Ending
		}
	}
	return global, nil
}

// meanOverSteps averages a [time, ...spatial] array over the selected leading
// indices. The result keeps the spatial shape under a singleton time axis;
// cells masked at every selected step stay masked.
func meanOverSteps(values *grid.MaskedArray, steps []int) *grid.MaskedArray {
	spatial := 1
	for _, n := range values.Shape[1:] {
		spatial *= n
	}
	outShape := append([]int{1}, values.Shape[1:]...)
	out := grid.NewMaskedArray(outShape, values.FillValue)
	for c := 0; c < spatial; c++ {
		sum := 0.0
		count := 0
		for _, t := range steps {
			i := t*spatial + c
			if values.Mask[i] {
				continue
			}
			sum += values.Values[i]
			count++
		}
		if count == 0 {
			out.Mask[c] = true
			out.Values[c] = values.FillValue
		} else {
			out.Values[c] = sum / float64(count)
		}
	}
	return out
}

// parameterValues collects the typed parameters of every parameter-type input
// of a step into one map. Later inputs never override earlier ones.
func parameterValues(da *access.DataAccess) (map[string]interface{}, error) {
	params := make(map[string]interface{})
	for _, uid := range da.InputUIDs() {
		info, err := da.GetDataInfo(uid)
		if err != nil {
			return nil, err
		}
		if info.DataType != task.TypeParameter {
			continue
		}
		result, err := da.Get(uid)
		if err != nil {
			return nil, err
		}
		for k, v := range result.Parameters {
			if _, seen := params[k]; !seen {
				params[k] = v
			}
		}
	}
	return params, nil
}

// bindParameters binds the step's parameter inputs onto a typed options
// struct, converting values weakly (strings to numbers and so on).
func bindParameters(da *access.DataAccess, target interface{}) error {
	params, err := parameterValues(da)
	if err != nil {
		return err
	}
	props := make(map[string]string, len(params))
	for k, v := range params {
		props[k] = fmt.Sprintf("%v", v)
	}
	if err := configbinder.BindProperties(props, target); err != nil {
		return exception.NewCoreError(moduleName, "failed to bind step parameters", err)
	}
	return nil
}

// dataInputUIDs returns the step's input UIDs that are not parameters.
func dataInputUIDs(da *access.DataAccess) ([]string, error) {
	var uids []string
	for _, uid := range da.InputUIDs() {
		info, err := da.GetDataInfo(uid)
		if err != nil {
			return nil, err
		}
		if info.DataType != task.TypeParameter {
			uids = append(uids, uid)
		}
	}
	return uids, nil
}

// allSteps enumerates 0..n-1.
func allSteps(n int) []int {
	steps := make([]int, n)
	for i := range steps {
		steps[i] = i
	}
	return steps
}

// groupByDay buckets time-grid indices by calendar day (UTC), preserving
// chronological day order.
func groupByDay(times []time.Time) ([]time.Time, [][]int) {
	buckets := make(map[time.Time][]int)
	for i, t := range times {
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		buckets[day] = append(buckets[day], i)
	}
	days := make([]time.Time, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	groups := make([][]int, len(days))
	for i, day := range days {
		groups[i] = buckets[day]
	}
	return days, groups
}

// newLike allocates an array of the given shape inheriting the fill value.
func newLike(template *grid.MaskedArray, shape []int) *grid.MaskedArray {
	return grid.NewMaskedArray(shape, template.FillValue)
}

// copySlab copies a singleton-time-axis slab into position t of a larger array.
func copySlab(dst, slab *grid.MaskedArray, t int) {
	n := len(slab.Values)
	copy(dst.Values[t*n:(t+1)*n], slab.Values)
	copy(dst.Mask[t*n:(t+1)*n], slab.Mask)
}

// accumulate sums unmasked values per spatial cell over every time step of
// every segment of one level. The returned template is any segment array,
// used for shape and fill value.
func accumulate(levelData *adapter.LevelData) (sums []float64, counts []int, template *grid.MaskedArray) {
	for _, sd := range levelData.BySegment {
		if template == nil {
			template = sd.Values
			spatial := 1
			for _, n := range template.Shape[1:] {
				spatial *= n
			}
			sums = make([]float64, spatial)
			counts = make([]int, spatial)
		}
		spatial := len(sums)
		nt := sd.Values.Shape[0]
		for t := 0; t < nt; t++ {
			for c := 0; c < spatial; c++ {
				i := t*spatial + c
				if sd.Values.Mask[i] {
					continue
				}
				sums[c] += sd.Values.Values[i]
				counts[c]++
			}
		}
	}
	return sums, counts, template
}

// writeOptionsFor assembles the write addressing shared by module outputs.
func writeOptionsFor(result *adapter.ReadResult, level string, segment task.TimeSegment,
	times []time.Time) adapter.WriteOptions {
	return adapter.WriteOptions{
		Level:       level,
		Segment:     segment,
		Times:       times,
		Longitudes:  result.Longitudes,
		Latitudes:   result.Latitudes,
		Description: result.Description,
		Meta:        result.Meta,
	}
}
