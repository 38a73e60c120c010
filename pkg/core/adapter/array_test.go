package adapter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrichello/climatecore/pkg/core/adapter"
	"github.com/garrichello/climatecore/pkg/core/grid"
	"github.com/garrichello/climatecore/pkg/core/mddb"
	"github.com/garrichello/climatecore/pkg/core/task"
)

func arrayEnv() *adapter.Env {
	return &adapter.Env{Arrays: adapter.NewArrayStore()}
}

func arrayInfo(uid string) *mddb.ArgumentInfo {
	return &mddb.ArgumentInfo{
		DataType: task.TypeArray,
		Data:     &task.DataDeclaration{UID: uid, Type: task.TypeArray},
	}
}

func TestArrayAdapterRoundTrip(t *testing.T) {
	env := arrayEnv()
	a, err := adapter.New(arrayInfo("Intermediate"), env)
	require.NoError(t, err)

	values := grid.NewMaskedArray([]int{1, 2, 2}, 42.0)
	values.Set(1.0, 0, 0, 0)
	values.Set(2.0, 0, 0, 1)
	values.SetMasked(0, 1, 0)
	values.Set(4.0, 0, 1, 1)

	times := []time.Time{time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}
	err = a.Write(values, adapter.WriteOptions{
		Level:      "2m",
		Segment:    task.TimeSegment{Name: "Seg1"},
		Times:      times,
		Longitudes: []float64{10, 20},
		Latitudes:  []float64{50, 60},
	})
	require.NoError(t, err)

	result, err := a.Read(adapter.ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, grid.GridTypeRegular, result.GridType)
	assert.Equal(t, 42.0, result.FillValue)
	assert.Equal(t, []float64{10, 20}, result.Longitudes)
	assert.Equal(t, []float64{50, 60}, result.Latitudes)

	sd := result.ByLevel["2m"].BySegment["Seg1"]
	require.NotNil(t, sd)
	assert.Equal(t, times, sd.TimeGrid)
	assert.Equal(t, 1.0, sd.Values.At(0, 0, 0))
	// The mask travels with the values.
	assert.True(t, sd.Values.MaskedAt(0, 1, 0))
}

func TestArrayAdapterReadBeforeWrite(t *testing.T) {
	env := arrayEnv()
	a, err := adapter.New(arrayInfo("Unwritten"), env)
	require.NoError(t, err)

	_, err = a.Read(adapter.ReadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was read before any step wrote it")
}

func TestArrayAdapterReadReturnsCopies(t *testing.T) {
	env := arrayEnv()
	a, err := adapter.New(arrayInfo("Shared"), env)
	require.NoError(t, err)

	values := grid.NewMaskedArray([]int{2}, 1e20)
	values.Set(7.0, 0)
	require.NoError(t, a.Write(values, adapter.WriteOptions{
		Level:   "2m",
		Segment: task.TimeSegment{Name: "Seg1"},
	}))

	first, err := a.Read(adapter.ReadOptions{})
	require.NoError(t, err)
	first.ByLevel["2m"].BySegment["Seg1"].Values.Set(-1.0, 0)

	second, err := a.Read(adapter.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 7.0, second.ByLevel["2m"].BySegment["Seg1"].Values.At(0))
}

func TestArrayAdapterStationWrite(t *testing.T) {
	env := arrayEnv()
	a, err := adapter.New(arrayInfo("Stations"), env)
	require.NoError(t, err)

	values := grid.NewMaskedArray([]int{1, 2}, 1e20)
	meta := &adapter.StationMeta{
		Names:      []string{"ALPHA", "BETA"},
		WMOCodes:   []string{"12345", "67890"},
		Elevations: []float64{120, 37},
	}
	require.NoError(t, a.Write(values, adapter.WriteOptions{
		Level:      "2m",
		Segment:    task.TimeSegment{Name: "Seg1"},
		Longitudes: []float64{30, 40},
		Latitudes:  []float64{55, 56},
		Meta:       meta,
	}))

	result, err := a.Read(adapter.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, grid.GridTypeStation, result.GridType)
	require.NotNil(t, result.Meta)
	assert.Equal(t, []string{"ALPHA", "BETA"}, result.Meta.Names)
}

func TestNewRejectsUnknownDataType(t *testing.T) {
	_, err := adapter.New(&mddb.ArgumentInfo{DataType: "netcdf4"}, arrayEnv())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data-access module for type 'netcdf4' does not exist")
}
