package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garrichello/climatecore/pkg/core/grid"
)

func squareROI() grid.Polygon {
	return grid.Polygon{
		{Lon: 0, Lat: 0},
		{Lon: 10, Lat: 0},
		{Lon: 10, Lat: 10},
		{Lon: 0, Lat: 10},
	}
}

func TestPolygonContains(t *testing.T) {
	roi := squareROI()

	assert.True(t, roi.Contains(5, 5))
	assert.False(t, roi.Contains(15, 5))
	assert.False(t, roi.Contains(5, -1))

	// Degenerate polygons never contain anything.
	assert.False(t, grid.Polygon{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}}.Contains(0.5, 0.5))
}

func TestPolygonBounds(t *testing.T) {
	minLon, maxLon, minLat, maxLat := squareROI().Bounds()
	assert.Equal(t, 0.0, minLon)
	assert.Equal(t, 10.0, maxLon)
	assert.Equal(t, 0.0, minLat)
	assert.Equal(t, 10.0, maxLat)
}

func TestMakeROIMaskMarksOutsidePoints(t *testing.T) {
	lons := []float64{-5, 5, 15}
	lats := []float64{5, 20}

	mask, err := grid.MakeROIMask(lons, lats, squareROI())
	assert.NoError(t, err)
	// Shape is preserved: every grid point has a mask entry.
	assert.Len(t, mask, 6)

	// lat=5 row: only lon=5 is inside.
	assert.True(t, mask[0])
	assert.False(t, mask[1])
	assert.True(t, mask[2])
	// lat=20 row: everything outside.
	assert.True(t, mask[3])
	assert.True(t, mask[4])
	assert.True(t, mask[5])
}

func TestMakeROIMaskRejectsDegeneratePolygon(t *testing.T) {
	_, err := grid.MakeROIMask([]float64{0}, []float64{0}, grid.Polygon{{Lon: 0, Lat: 0}})
	assert.Error(t, err)
}

func TestTileMask(t *testing.T) {
	mask := []bool{true, false}
	tiled := grid.TileMask(mask, 3)
	assert.Equal(t, []bool{true, false, true, false, true, false}, tiled)

	same := grid.TileMask(mask, 1)
	assert.Equal(t, mask, same)
}
