package grid

import (
	"sort"

	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
)

// Coarser compares two spatial grids by point count and returns true when the
// first one is the coarser of the pair.
func Coarser(points1, points2 int) bool {
	return points1 <= points2
}

// BilinearToGrid interpolates a 2D field (lat-major [lat][lon]) given on a
// regular ascending lon/lat mesh onto another regular mesh. Target points
// outside the source mesh, and cells with any masked corner, are masked.
func BilinearToGrid(field *MaskedArray, srcLons, srcLats, dstLons, dstLats []float64) (*MaskedArray, error) {
	if field.NDim() != 2 || field.Shape[0] != len(srcLats) || field.Shape[1] != len(srcLons) {
		return nil, exception.NewCoreErrorf(moduleName,
			"field shape %v does not match source grid %dx%d", field.Shape, len(srcLats), len(srcLons))
	}
	out := NewMaskedArray([]int{len(dstLats), len(dstLons)}, field.FillValue)
	for i, lat := range dstLats {
		for j, lon := range dstLons {
			v, masked := bilinearAt(field, srcLons, srcLats, lon, lat)
			if masked {
				out.SetMasked(i, j)
			} else {
				out.Set(v, i, j)
			}
		}
	}
	return out, nil
}

// BilinearToStations interpolates a 2D field given on a regular ascending
// lon/lat mesh onto a list of station coordinates. By design asymmetry,
// gridded data is always the side interpolated onto station coordinates.
func BilinearToStations(field *MaskedArray, srcLons, srcLats, stLons, stLats []float64) (*MaskedArray, error) {
	if field.NDim() != 2 || field.Shape[0] != len(srcLats) || field.Shape[1] != len(srcLons) {
		return nil, exception.NewCoreErrorf(moduleName,
			"field shape %v does not match source grid %dx%d", field.Shape, len(srcLats), len(srcLons))
	}
	if len(stLons) != len(stLats) {
		return nil, exception.NewCoreErrorf(moduleName,
			"station longitude and latitude lists differ in length: %d vs %d", len(stLons), len(stLats))
	}
	out := NewMaskedArray([]int{len(stLons)}, field.FillValue)
	for s := range stLons {
		v, masked := bilinearAt(field, srcLons, srcLats, stLons[s], stLats[s])
		if masked {
			out.SetMasked(s)
		} else {
			out.Set(v, s)
		}
	}
	return out, nil
}

// bilinearAt evaluates the field at (lon, lat) with bilinear weights.
func bilinearAt(field *MaskedArray, srcLons, srcLats []float64, lon, lat float64) (float64, bool) {
	j := sort.SearchFloat64s(srcLons, lon)
	i := sort.SearchFloat64s(srcLats, lat)
	if j == 0 || j >= len(srcLons) {
		if j < len(srcLons) && srcLons[j] == lon {
			j++ // exact hit on the first node
		} else {
			return 0, true
		}
	}
	if i == 0 || i >= len(srcLats) {
		if i < len(srcLats) && srcLats[i] == lat {
			i++
		} else {
			return 0, true
		}
	}
	j0, j1 := j-1, j
	i0, i1 := i-1, i
	if j1 >= len(srcLons) {
		j1 = j0
	}
	if i1 >= len(srcLats) {
		i1 = i0
	}

	if field.MaskedAt(i0, j0) || field.MaskedAt(i0, j1) ||
		field.MaskedAt(i1, j0) || field.MaskedAt(i1, j1) {
		return 0, true
	}

	tx, ty := 0.0, 0.0
	if j1 != j0 {
		tx = (lon - srcLons[j0]) / (srcLons[j1] - srcLons[j0])
	}
	if i1 != i0 {
		ty = (lat - srcLats[i0]) / (srcLats[i1] - srcLats[i0])
	}
	v00 := field.At(i0, j0)
	v01 := field.At(i0, j1)
	v10 := field.At(i1, j0)
	v11 := field.At(i1, j1)
	top := v00*(1-tx) + v01*tx
	bottom := v10*(1-tx) + v11*tx
	return top*(1-ty) + bottom*ty, false
}
