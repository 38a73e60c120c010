package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrichello/climatecore/pkg/core/access"
	"github.com/garrichello/climatecore/pkg/core/adapter"
	"github.com/garrichello/climatecore/pkg/core/grid"
	"github.com/garrichello/climatecore/pkg/core/mddb"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/task"
)

func arrayArgument(localUID, declUID string) access.Argument {
	return access.Argument{
		LocalUID: localUID,
		Info: &mddb.ArgumentInfo{
			DataType: task.TypeArray,
			Data:     &task.DataDeclaration{UID: declUID, Type: task.TypeArray},
		},
	}
}

func newFacade(t *testing.T, inputs, outputs []access.Argument) *access.DataAccess {
	t.Helper()
	da, err := access.New(inputs, outputs, &adapter.Env{Arrays: adapter.NewArrayStore()})
	require.NoError(t, err)
	return da
}

func TestInputOutputUIDs(t *testing.T) {
	da := newFacade(t,
		[]access.Argument{arrayArgument("input", "A"), arrayArgument("extra", "B")},
		[]access.Argument{arrayArgument("result", "C")},
	)

	assert.Equal(t, []string{"input", "extra"}, da.InputUIDs())
	assert.Equal(t, []string{"result"}, da.OutputUIDs())

	// No declared arguments means nil, never an empty list.
	empty := newFacade(t, nil, nil)
	assert.Nil(t, empty.InputUIDs())
	assert.Nil(t, empty.OutputUIDs())
}

func TestPutThenGetThroughSharedStore(t *testing.T) {
	env := &adapter.Env{Arrays: adapter.NewArrayStore()}
	producer, err := access.New(nil, []access.Argument{arrayArgument("result", "Shared")}, env)
	require.NoError(t, err)
	consumer, err := access.New([]access.Argument{arrayArgument("input", "Shared")}, nil, env)
	require.NoError(t, err)

	values := grid.NewMaskedArray([]int{1, 2}, 7.0)
	values.Set(1.0, 0, 0)
	values.SetMasked(0, 1)
	require.NoError(t, producer.Put("result", values, adapter.WriteOptions{
		Level:      "2m",
		Segment:    task.TimeSegment{Name: "Seg1"},
		Longitudes: []float64{10, 20},
		Latitudes:  []float64{50},
	}))

	result, err := consumer.Get("input")
	require.NoError(t, err)
	sd := result.ByLevel["2m"].BySegment["Seg1"]
	require.NotNil(t, sd)
	assert.Equal(t, 1.0, sd.Values.At(0, 0))
	assert.True(t, sd.Values.MaskedAt(0, 1))
}

func TestNewRejectsUnknownDataTypeBeforeAnyWrite(t *testing.T) {
	env := &adapter.Env{Arrays: adapter.NewArrayStore()}
	broken := access.Argument{
		LocalUID: "img",
		Info: &mddb.ArgumentInfo{
			DataType:    "pixmap",
			Destination: &task.DestinationDeclaration{UID: "Img", Type: "pixmap"},
		},
	}

	// The good output is listed first; the facade must still refuse to exist.
	_, err := access.New(nil, []access.Argument{arrayArgument("result", "Out"), broken}, env)
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrUnregistered)
	assert.Contains(t, err.Error(), "cannot bind argument 'img'")
	assert.Contains(t, err.Error(), "data-access module for type 'pixmap' does not exist")

	// Nothing was committed through the rejected facade.
	consumer, err := access.New([]access.Argument{arrayArgument("input", "Out")}, nil, env)
	require.NoError(t, err)
	_, err = consumer.Get("input")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was read before any step wrote it")
}

func TestPutReplacesZeroFillValue(t *testing.T) {
	da := newFacade(t, nil, []access.Argument{arrayArgument("result", "Out")})

	values := grid.NewMaskedArray([]int{1}, 0)
	require.NoError(t, da.Put("result", values, adapter.WriteOptions{
		Level:   "2m",
		Segment: task.TimeSegment{Name: "Seg1"},
	}))
	assert.Equal(t, grid.DefaultFillValue, values.FillValue)
}

func TestUnknownArgumentUID(t *testing.T) {
	da := newFacade(t, []access.Argument{arrayArgument("input", "A")}, nil)

	_, err := da.Get("nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown argument UID 'nonexistent'")

	err = da.Put("nonexistent", grid.NewMaskedArray([]int{1}, 1e20), adapter.WriteOptions{})
	assert.Error(t, err)
}

func TestGetSegmentsAndLevels(t *testing.T) {
	arg := access.Argument{
		LocalUID: "input",
		Info: &mddb.ArgumentInfo{
			DataType: task.TypeArray,
			Data: &task.DataDeclaration{
				UID:    "Src",
				Type:   task.TypeArray,
				Levels: &task.Levels{Values: "2m;10m"},
				Time: &task.TimeSpan{Segments: []task.TimeSegment{
					{Name: "Seg1", Beginning: "2000010100", Ending: "2000013118"},
				}},
			},
		},
	}
	da := newFacade(t, []access.Argument{arg}, nil)

	segments := da.GetSegments("input")
	require.Len(t, segments, 1)
	assert.Equal(t, "Seg1", segments[0].Name)
	assert.Equal(t, []string{"2m", "10m"}, da.GetLevels("input"))

	info, err := da.GetDataInfo("input")
	require.NoError(t, err)
	assert.Equal(t, task.TypeArray, info.DataType)
}

func TestIsStations(t *testing.T) {
	stationArg := access.Argument{
		LocalUID: "obs",
		Info: &mddb.ArgumentInfo{
			DataType: task.TypeDB,
			Data:     &task.DataDeclaration{UID: "Obs", Type: task.TypeDB},
		},
	}
	da := newFacade(t, []access.Argument{stationArg, arrayArgument("input", "A")}, nil)

	assert.True(t, da.IsStations("obs"))
	assert.False(t, da.IsStations("input"))
	// Unknown UIDs are reported, not fatal.
	assert.False(t, da.IsStations("bogus"))
}
