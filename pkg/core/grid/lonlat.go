package grid

import (
	"math"

	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
)

// NormalizeLongitudes converts a longitude grid from the [0, 360) convention
// to (-180, 180] when needed. A grid already within (-180, 180] is returned
// unchanged (a fresh slice is always allocated).
func NormalizeLongitudes(lons []float64) []float64 {
	out := make([]float64, len(lons))
	max := math.Inf(-1)
	for _, lon := range lons {
		if lon > max {
			max = lon
		}
	}
	for i, lon := range lons {
		if max > 180 {
			out[i] = math.Mod(lon+180.0, 360.0) - 180.0
		} else {
			out[i] = lon
		}
	}
	return out
}

// EnsureAscending checks the monotonic direction of a coordinate axis.
// It returns reversed=true when the axis is descending (the caller must then
// reverse both the axis and the matching data axis). A constant axis is a
// fatal configuration error since downstream interpolation requires strict order.
func EnsureAscending(axis []float64) (reversed bool, err error) {
	if len(axis) < 2 {
		return false, nil
	}
	ascending, descending := false, false
	for i := 1; i < len(axis); i++ {
		switch {
		case axis[i] > axis[i-1]:
			ascending = true
		case axis[i] < axis[i-1]:
			descending = true
		}
	}
	if ascending && descending {
		return false, exception.NewCoreErrorf(moduleName, "coordinate axis is not monotonic")
	}
	if !ascending && !descending {
		return false, exception.NewCoreErrorf(moduleName, "coordinate axis is constant")
	}
	return descending, nil
}

// Reversed returns a reversed copy of the given axis.
func Reversed(axis []float64) []float64 {
	out := make([]float64, len(axis))
	for i, v := range axis {
		out[len(axis)-1-i] = v
	}
	return out
}

// LongitudeWindow returns the indices of longitudes falling inside
// [minLon, maxLon], in stored order. The window may be discontiguous when the
// data is stored in a 0/360 convention and the request crosses the seam.
func LongitudeWindow(lons []float64, minLon, maxLon float64) []int {
	var idx []int
	for i, lon := range lons {
		if lon >= minLon && lon <= maxLon {
			idx = append(idx, i)
		}
	}
	return idx
}

// ReassembleSeam reorders a longitude index window split across the 0/360 seam
// into one seam-free block. Normally all index steps equal 1; a single step
// longer than 1 marks the seam, and the part after the gap (western
// hemisphere in a normalized grid) is moved in front of the part before it.
// More than one gap is a defensive-error case.
//
// Returns the reordered indices and the matching seam-free longitude grid.
func ReassembleSeam(lons []float64, indices []int) ([]int, []float64, error) {
	if len(indices) == 0 {
		return nil, nil, exception.NewCoreErrorf(moduleName, "empty longitude window")
	}
	gap := -1
	for i := 1; i < len(indices); i++ {
		if indices[i]-indices[i-1] > 1 {
			if gap != -1 {
				return nil, nil, exception.NewCoreErrorf(moduleName,
					"longitude window has more than one discontinuity (gaps at %d and %d)", gap, i-1)
			}
			gap = i - 1
		}
	}
	ordered := indices
	if gap != -1 {
		// The slab after the gap goes in front, mirroring the 0-360 to
		// -180..180 shift.
		ordered = append(append([]int(nil), indices[gap+1:]...), indices[:gap+1]...)
	}
	grid := make([]float64, len(ordered))
	for i, j := range ordered {
		grid[i] = lons[j]
	}
	return ordered, grid, nil
}
