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

func rasterInfo(template string, region *task.Region) *mddb.ArgumentInfo {
	return &mddb.ArgumentInfo{
		DataType: "parquet",
		Data: &task.DataDeclaration{
			UID:    "GriddedData",
			Type:   task.TypeDataset,
			Region: region,
			Levels: &task.Levels{Values: "2m"},
		},
		Levels: map[string]*mddb.LevelInfo{
			"2m": {
				Scale:             1.0,
				Offset:            0.0,
				FileNameTemplate:  template,
				LevelVariableName: "height",
			},
		},
		Description: mddb.Description{Title: "Test archive", Name: "Air temperature", Units: "K"},
	}
}

func writeRasterSlab(t *testing.T, env *adapter.Env, info *mddb.ArgumentInfo,
	values *grid.MaskedArray, times []time.Time, lons, lats []float64) {
	t.Helper()
	a, err := adapter.New(info, env)
	require.NoError(t, err)
	require.NoError(t, a.Write(values, adapter.WriteOptions{
		Level:       "2m",
		Segment:     task.TimeSegment{Name: "Seg1", Beginning: "2000010100", Ending: "2000010118"},
		Times:       times,
		Longitudes:  lons,
		Latitudes:   lats,
		Description: info.Description,
	}))
}

func TestRasterWriteReadRoundTrip(t *testing.T) {
	env := &adapter.Env{BaseDir: t.TempDir()}
	info := rasterInfo("air_%level%_%segment%.parquet", nil)

	lons := []float64{10, 20, 30}
	lats := []float64{50, 60}
	times := []time.Time{
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 6, 0, 0, 0, time.UTC),
	}
	values := grid.NewMaskedArray([]int{2, 2, 3}, -999.0)
	for ti := range times {
		for i := range lats {
			for j := range lons {
				values.Set(float64(100*ti+10*i+j), ti, i, j)
			}
		}
	}
	values.SetMasked(1, 0, 2)

	writeRasterSlab(t, env, info, values, times, lons, lats)

	a, err := adapter.New(info, env)
	require.NoError(t, err)
	result, err := a.Read(adapter.ReadOptions{
		Segments: []task.TimeSegment{{Name: "Seg1", Beginning: "2000010100", Ending: "2000010118"}},
		Levels:   []string{"2m"},
	})
	require.NoError(t, err)

	assert.Equal(t, grid.GridTypeRegular, result.GridType)
	assert.Equal(t, lons, result.Longitudes)
	assert.Equal(t, lats, result.Latitudes)
	// The fill value written into the footer drives the read-side mask.
	assert.Equal(t, -999.0, result.FillValue)

	sd := result.ByLevel["2m"].BySegment["Seg1"]
	require.NotNil(t, sd)
	assert.Equal(t, times, sd.TimeGrid)
	assert.Equal(t, []int{2, 2, 3}, sd.Values.Shape)
	assert.Equal(t, 0.0, sd.Values.At(0, 0, 0))
	assert.Equal(t, 112.0, sd.Values.At(1, 1, 2))
	assert.True(t, sd.Values.MaskedAt(1, 0, 2))
	assert.False(t, sd.Values.MaskedAt(1, 0, 1))
}

func TestRasterReadAppliesScaleOffsetAfterMasking(t *testing.T) {
	env := &adapter.Env{BaseDir: t.TempDir()}
	writeInfo := rasterInfo("packed_%level%_%segment%.parquet", nil)

	lons := []float64{0}
	lats := []float64{0}
	times := []time.Time{time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}
	values := grid.NewMaskedArray([]int{1, 1, 1}, 1e20)
	values.Set(10.0, 0, 0, 0)
	writeRasterSlab(t, env, writeInfo, values, times, lons, lats)

	readInfo := rasterInfo("packed_%level%_%segment%.parquet", nil)
	readInfo.Levels["2m"].Scale = 0.5
	readInfo.Levels["2m"].Offset = 3.0

	a, err := adapter.New(readInfo, env)
	require.NoError(t, err)
	result, err := a.Read(adapter.ReadOptions{
		Segments: []task.TimeSegment{{Name: "Seg1", Beginning: "2000010100", Ending: "2000010118"}},
		Levels:   []string{"2m"},
	})
	require.NoError(t, err)

	sd := result.ByLevel["2m"].BySegment["Seg1"]
	assert.Equal(t, 8.0, sd.Values.At(0, 0, 0))
}

func TestRasterReadAppliesRegionMask(t *testing.T) {
	env := &adapter.Env{BaseDir: t.TempDir()}
	region := &task.Region{Points: []task.RegionPoint{
		{Lon: 5, Lat: 45}, {Lon: 25, Lat: 45}, {Lon: 25, Lat: 55}, {Lon: 5, Lat: 55},
	}}
	writeInfo := rasterInfo("roi_%level%_%segment%.parquet", nil)

	lons := []float64{0, 10, 20, 30}
	lats := []float64{40, 50, 60}
	times := []time.Time{time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}
	values := grid.NewMaskedArray([]int{1, 3, 4}, 1e20)
	for i := range lats {
		for j := range lons {
			values.Set(float64(10*i+j), 0, i, j)
		}
	}
	writeRasterSlab(t, env, writeInfo, values, times, lons, lats)

	readInfo := rasterInfo("roi_%level%_%segment%.parquet", region)
	a, err := adapter.New(readInfo, env)
	require.NoError(t, err)
	result, err := a.Read(adapter.ReadOptions{
		Segments: []task.TimeSegment{{Name: "Seg1", Beginning: "2000010100", Ending: "2000010118"}},
		Levels:   []string{"2m"},
	})
	require.NoError(t, err)

	// The bounding box trims the axes to the region's extent.
	assert.Equal(t, []float64{10, 20}, result.Longitudes)
	assert.Equal(t, []float64{50}, result.Latitudes)

	sd := result.ByLevel["2m"].BySegment["Seg1"]
	assert.Equal(t, []int{1, 1, 2}, sd.Values.Shape)
	assert.Equal(t, 11.0, sd.Values.At(0, 0, 0))
	assert.Equal(t, 12.0, sd.Values.At(0, 0, 1))
	assert.False(t, sd.Values.MaskedAt(0, 0, 0))
}

func TestRasterWriteRejectsUnknownKeyword(t *testing.T) {
	env := &adapter.Env{BaseDir: t.TempDir()}
	info := rasterInfo("out_%year%.parquet", nil)
	a, err := adapter.New(info, env)
	require.NoError(t, err)

	values := grid.NewMaskedArray([]int{1, 1, 1}, 1e20)
	err = a.Write(values, adapter.WriteOptions{
		Level:      "2m",
		Segment:    task.TimeSegment{Name: "Seg1"},
		Times:      []time.Time{time.Now()},
		Longitudes: []float64{0},
		Latitudes:  []float64{0},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keyword")
}

func TestRasterReadFailsWhenNoFilesMatch(t *testing.T) {
	env := &adapter.Env{BaseDir: t.TempDir()}
	info := rasterInfo("missing_%level%.parquet", nil)
	a, err := adapter.New(info, env)
	require.NoError(t, err)

	_, err = a.Read(adapter.ReadOptions{
		Segments: []task.TimeSegment{{Name: "Seg1", Beginning: "2000010100", Ending: "2000010118"}},
		Levels:   []string{"2m"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data files match")
}
