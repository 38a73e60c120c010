package processing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrichello/climatecore/pkg/core/access"
	"github.com/garrichello/climatecore/pkg/core/adapter"
	"github.com/garrichello/climatecore/pkg/core/grid"
	"github.com/garrichello/climatecore/pkg/core/processing"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/task"
)

func unifySegment() task.TimeSegment {
	return task.TimeSegment{Name: "Seg1", Beginning: "2000010100", Ending: "2000010118"}
}

// seedGrid writes a time-constant plane f(lon, lat) = 2*lon + lat on the given
// mesh into the store.
func seedGrid(t *testing.T, env *adapter.Env, declUID string, lons, lats []float64, times []time.Time) {
	t.Helper()
	values := grid.NewMaskedArray([]int{len(times), len(lats), len(lons)}, 1e20)
	for ti := range times {
		for i, lat := range lats {
			for j, lon := range lons {
				values.Set(2*lon+lat, ti, i, j)
			}
		}
	}
	producer, err := access.New(nil, []access.Argument{arrayArg("w", declUID, "", nil)}, env)
	require.NoError(t, err)
	require.NoError(t, producer.Put("w", values, adapter.WriteOptions{
		Level:      "2m",
		Segment:    unifySegment(),
		Times:      times,
		Longitudes: lons,
		Latitudes:  lats,
	}))
}

func runUnifyGrids(t *testing.T, env *adapter.Env, accModes [2]string) error {
	t.Helper()
	inA := arrayArg("dataA", "SrcA", "2m", []task.TimeSegment{unifySegment()})
	inB := arrayArg("dataB", "SrcB", "2m", []task.TimeSegment{unifySegment()})
	inA.Info.Description.AccMode = accModes[0]
	inB.Info.Description.AccMode = accModes[1]

	da, err := access.New(
		[]access.Argument{inA, inB},
		[]access.Argument{
			arrayArg("resultA", "OutA", "2m", nil),
			arrayArg("resultB", "OutB", "2m", nil),
		},
		env,
	)
	require.NoError(t, err)
	module, err := processing.New("cvcCalcUnifyGrids", da)
	require.NoError(t, err)
	return module.Run()
}

func TestUnifyGridsTimeAndSpace(t *testing.T) {
	env := &adapter.Env{Arrays: adapter.NewArrayStore()}

	// Side A: finer in time (6-hourly) and space (3x3).
	fineTimes := []time.Time{
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 6, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 18, 0, 0, 0, time.UTC),
	}
	seedGrid(t, env, "SrcA", []float64{0, 5, 10}, []float64{0, 5, 10}, fineTimes)

	// Side B: coarser in time (12-hourly) and space (2x2).
	coarseTimes := []time.Time{fineTimes[0], fineTimes[2]}
	seedGrid(t, env, "SrcB", []float64{0, 10}, []float64{0, 10}, coarseTimes)

	require.NoError(t, runUnifyGrids(t, env, [2]string{"mean", "mean"}))

	outA := readBack(t, env, "OutA").ByLevel["2m"].BySegment["Seg1"]
	require.NotNil(t, outA)
	// A lands on B's time and space grid.
	assert.Equal(t, coarseTimes, outA.TimeGrid)
	assert.Equal(t, []int{2, 2, 2}, outA.Values.Shape)
	// The time-constant plane survives averaging and interpolation exactly.
	assert.InDelta(t, 0.0, outA.Values.At(0, 0, 0), 1e-9)
	assert.InDelta(t, 20.0, outA.Values.At(0, 0, 1), 1e-9)
	assert.InDelta(t, 10.0, outA.Values.At(0, 1, 0), 1e-9)
	assert.InDelta(t, 30.0, outA.Values.At(1, 1, 1), 1e-9)

	outB := readBack(t, env, "OutB").ByLevel["2m"].BySegment["Seg1"]
	require.NotNil(t, outB)
	// The coarser side passes through untouched.
	assert.Equal(t, []int{2, 2, 2}, outB.Values.Shape)
	assert.InDelta(t, 30.0, outB.Values.At(0, 1, 1), 1e-9)
}

func TestUnifyGridsSumsAccumulatedParameters(t *testing.T) {
	env := &adapter.Env{Arrays: adapter.NewArrayStore()}

	times := []time.Time{
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	// Side A: accumulated parameter, two steps of 3 and 5 at one point.
	values := grid.NewMaskedArray([]int{2, 1, 1}, 1e20)
	values.Set(3.0, 0, 0, 0)
	values.Set(5.0, 1, 0, 0)
	producer, err := access.New(nil, []access.Argument{arrayArg("w", "SrcA", "", nil)}, env)
	require.NoError(t, err)
	require.NoError(t, producer.Put("w", values, adapter.WriteOptions{
		Level:      "2m",
		Segment:    unifySegment(),
		Times:      times,
		Longitudes: []float64{0},
		Latitudes:  []float64{0},
	}))

	// Side B: one step on the same single-point mesh.
	seedGrid(t, env, "SrcB", []float64{0}, []float64{0}, times[:1])

	require.NoError(t, runUnifyGrids(t, env, [2]string{"sum", "mean"}))

	outA := readBack(t, env, "OutA").ByLevel["2m"].BySegment["Seg1"]
	require.NotNil(t, outA)
	require.Len(t, outA.TimeGrid, 1)
	// Accumulated parameters sum over the coarse interval.
	assert.Equal(t, 8.0, outA.Values.At(0, 0, 0))
}

func TestUnifyGridsFlipsDescendingLatitudes(t *testing.T) {
	env := &adapter.Env{Arrays: adapter.NewArrayStore()}
	times := []time.Time{time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}

	// Side A is stored north to south: row 0 carries lat 10.
	lats := []float64{10, 0}
	lons := []float64{0, 10}
	values := grid.NewMaskedArray([]int{1, 2, 2}, 1e20)
	for i, lat := range lats {
		for j, lon := range lons {
			values.Set(2*lon+lat, 0, i, j)
		}
	}
	producer, err := access.New(nil, []access.Argument{arrayArg("w", "SrcA", "", nil)}, env)
	require.NoError(t, err)
	require.NoError(t, producer.Put("w", values, adapter.WriteOptions{
		Level:      "2m",
		Segment:    unifySegment(),
		Times:      times,
		Longitudes: lons,
		Latitudes:  lats,
	}))

	// Side B is a sparser single point inside side A's mesh.
	seedGrid(t, env, "SrcB", []float64{5}, []float64{5}, times)

	require.NoError(t, runUnifyGrids(t, env, [2]string{"mean", "mean"}))

	outA := readBack(t, env, "OutA").ByLevel["2m"].BySegment["Seg1"]
	require.NotNil(t, outA)
	// Interpolating the plane f = 2*lon + lat at (5, 5) only works out when
	// the stored rows were flipped back into ascending latitude order.
	assert.Equal(t, []int{1, 1, 1}, outA.Values.Shape)
	assert.InDelta(t, 15.0, outA.Values.At(0, 0, 0), 1e-9)
}

func TestUnifyGridsRejectsTwoStationInputs(t *testing.T) {
	env := &adapter.Env{Arrays: adapter.NewArrayStore()}
	meta := &adapter.StationMeta{Names: []string{"ALPHA"}, WMOCodes: []string{"1"}, Elevations: []float64{0}}

	for _, uid := range []string{"SrcA", "SrcB"} {
		values := grid.NewMaskedArray([]int{1, 1}, 1e20)
		values.Set(1.0, 0, 0)
		producer, err := access.New(nil, []access.Argument{arrayArg("w", uid, "", nil)}, env)
		require.NoError(t, err)
		require.NoError(t, producer.Put("w", values, adapter.WriteOptions{
			Level:      "2m",
			Segment:    unifySegment(),
			Times:      []time.Time{time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
			Longitudes: []float64{30},
			Latitudes:  []float64{55},
			Meta:       meta,
		}))
	}

	err := runUnifyGrids(t, env, [2]string{"mean", "mean"})
	assert.ErrorIs(t, err, exception.ErrNotImplemented)
}

func TestUnifyGridsRequiresTwoInputsAndOutputs(t *testing.T) {
	env := &adapter.Env{Arrays: adapter.NewArrayStore()}
	da, err := access.New(
		[]access.Argument{arrayArg("dataA", "SrcA", "2m", []task.TimeSegment{unifySegment()})},
		[]access.Argument{arrayArg("resultA", "OutA", "2m", nil)},
		env,
	)
	require.NoError(t, err)
	module, err := processing.New("cvcCalcUnifyGrids", da)
	require.NoError(t, err)
	err = module.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly 2 data inputs and 2 outputs")
}

func TestUnifyGridsRejectsMismatchedLevelCounts(t *testing.T) {
	env := &adapter.Env{Arrays: adapter.NewArrayStore()}
	seedGrid(t, env, "SrcA", []float64{0}, []float64{0},
		[]time.Time{time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)})
	seedGrid(t, env, "SrcB", []float64{0}, []float64{0},
		[]time.Time{time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)})

	inA := arrayArg("dataA", "SrcA", "2m;10m", []task.TimeSegment{unifySegment()})
	inB := arrayArg("dataB", "SrcB", "2m", []task.TimeSegment{unifySegment()})
	da, err := access.New(
		[]access.Argument{inA, inB},
		[]access.Argument{
			arrayArg("resultA", "OutA", "2m", nil),
			arrayArg("resultB", "OutB", "2m", nil),
		},
		env,
	)
	require.NoError(t, err)
	module, err := processing.New("cvcCalcUnifyGrids", da)
	require.NoError(t, err)
	err = module.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different numbers of levels or segments")
}
