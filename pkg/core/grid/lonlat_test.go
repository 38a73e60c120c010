package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garrichello/climatecore/pkg/core/grid"
)

func TestNormalizeLongitudes(t *testing.T) {
	// 0-360 convention converts to -180..180.
	out := grid.NormalizeLongitudes([]float64{0, 90, 180, 270})
	assert.Equal(t, []float64{-180, -90, 0, 90}, out)

	// Already-normalized grids pass through unchanged.
	in := []float64{-120, 0, 120}
	out = grid.NormalizeLongitudes(in)
	assert.Equal(t, in, out)
}

func TestEnsureAscending(t *testing.T) {
	reversed, err := grid.EnsureAscending([]float64{0, 1, 2})
	assert.NoError(t, err)
	assert.False(t, reversed)

	reversed, err = grid.EnsureAscending([]float64{90, 45, 0})
	assert.NoError(t, err)
	assert.True(t, reversed)

	_, err = grid.EnsureAscending([]float64{0, 2, 1})
	assert.Error(t, err)

	_, err = grid.EnsureAscending([]float64{5, 5, 5})
	assert.Error(t, err)
}

func TestReversed(t *testing.T) {
	assert.Equal(t, []float64{3, 2, 1}, grid.Reversed([]float64{1, 2, 3}))
}

func TestLongitudeWindow(t *testing.T) {
	lons := []float64{-180, -90, 0, 90, 180}
	idx := grid.LongitudeWindow(lons, -90, 90)
	assert.Equal(t, []int{1, 2, 3}, idx)
}

func TestReassembleSeamContiguous(t *testing.T) {
	lons := []float64{-180, -90, 0, 90}
	ordered, seamFree, err := grid.ReassembleSeam(lons, []int{1, 2, 3})
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ordered)
	assert.Equal(t, []float64{-90, 0, 90}, seamFree)
}

func TestReassembleSeamSingleGap(t *testing.T) {
	// A 0-360 grid normalized to -180..180 stays in storage order, so a window
	// crossing Greenwich splits: eastern indices first, western after the gap.
	lons := []float64{0, 30, 60, 90, -90, -60, -30}
	indices := []int{0, 1, 5, 6} // -60..30 request

	ordered, seamFree, err := grid.ReassembleSeam(lons, indices)
	assert.NoError(t, err)
	assert.Equal(t, []int{5, 6, 0, 1}, ordered)
	assert.Equal(t, []float64{-60, -30, 0, 30}, seamFree)
}

func TestReassembleSeamRejectsMultipleGaps(t *testing.T) {
	lons := make([]float64, 10)
	_, _, err := grid.ReassembleSeam(lons, []int{0, 2, 4})
	assert.Error(t, err)

	_, _, err = grid.ReassembleSeam(lons, nil)
	assert.Error(t, err)
}
