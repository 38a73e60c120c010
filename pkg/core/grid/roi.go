package grid

import (
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
)

// GridType tags the spatial layout of a data source.
type GridType string

const (
	// GridTypeRegular marks a regular lon/lat mesh.
	GridTypeRegular GridType = "regular"
	// GridTypeIrregular marks an irregular (curvilinear) mesh.
	GridTypeIrregular GridType = "irregular"
	// GridTypeStation marks a station (point) coordinate list.
	GridTypeStation GridType = "station"
)

// Point is a lon/lat vertex of a region-of-interest polygon.
type Point struct {
	Lon float64
	Lat float64
}

// Polygon is an ordered list of lon/lat points forming a simple polygon.
type Polygon []Point

// Bounds returns the bounding box of the polygon.
func (p Polygon) Bounds() (minLon, maxLon, minLat, maxLat float64) {
	if len(p) == 0 {
		return 0, 0, 0, 0
	}
	minLon, maxLon = p[0].Lon, p[0].Lon
	minLat, maxLat = p[0].Lat, p[0].Lat
	for _, pt := range p[1:] {
		if pt.Lon < minLon {
			minLon = pt.Lon
		}
		if pt.Lon > maxLon {
			maxLon = pt.Lon
		}
		if pt.Lat < minLat {
			minLat = pt.Lat
		}
		if pt.Lat > maxLat {
			maxLat = pt.Lat
		}
	}
	return minLon, maxLon, minLat, maxLat
}

// Contains reports whether the point (lon, lat) lies inside the polygon,
// using the even-odd (ray casting) rule. Points exactly on an edge may fall
// on either side; declarations are expected to enclose their grids with margin.
func (p Polygon) Contains(lon, lat float64) bool {
	inside := false
	n := len(p)
	if n < 3 {
		return false
	}
	j := n - 1
	for i := 0; i < n; i++ {
		yi, yj := p[i].Lat, p[j].Lat
		xi, xj := p[i].Lon, p[j].Lon
		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// MakeROIMask creates a lat-major 2D mask (flattened, len = len(lats)*len(lons))
// for the given region of interest. True marks points OUTSIDE the polygon;
// they are masked but remain present, so the array shape is preserved.
func MakeROIMask(lons, lats []float64, roi Polygon) ([]bool, error) {
	if len(roi) < 3 {
		return nil, exception.NewCoreErrorf(moduleName,
			"region of interest needs at least 3 points, got %d", len(roi))
	}
	mask := make([]bool, len(lats)*len(lons))
	for i, lat := range lats {
		for j, lon := range lons {
			mask[i*len(lons)+j] = !roi.Contains(lon, lat)
		}
	}
	return mask, nil
}

// TileMask repeats a spatial mask along a leading time dimension.
func TileMask(mask []bool, times int) []bool {
	if times <= 1 {
		return mask
	}
	out := make([]bool, 0, len(mask)*times)
	for t := 0; t < times; t++ {
		out = append(out, mask...)
	}
	return out
}
