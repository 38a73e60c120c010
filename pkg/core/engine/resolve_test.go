package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrichello/climatecore/pkg/core/engine"
	"github.com/garrichello/climatecore/pkg/core/mddb"
	"github.com/garrichello/climatecore/pkg/core/task"
)

func TestResolveStepBindsArguments(t *testing.T) {
	doc := &task.Task{
		UID: "Task1",
		Data: []task.DataDeclaration{
			{UID: "Mean", Type: task.TypeArray},
			{UID: "Params", Type: task.TypeParameter,
				Params: []task.Parameter{{UID: "Mode", Type: "string", Value: "segment"}}},
		},
		Destinations: []task.DestinationDeclaration{
			{UID: "Img", Type: task.TypeImage,
				File:     &task.FileRef{Name: "mean.png"},
				Graphics: &task.Graphics{Format: "png"}},
		},
	}
	step := &task.ProcessingStep{
		UID:   "Step1",
		Class: "cvcCalcTiMean",
		Inputs: []task.Binding{
			{UID: "input", DataRef: "Mean"},
			{DataRef: "Params"},
		},
		Outputs: []task.Binding{{UID: "result", DataRef: "Img"}},
	}

	resolved, err := engine.ResolveStep(doc, step)
	require.NoError(t, err)

	require.Len(t, resolved.Inputs, 2)
	assert.Equal(t, "input", resolved.Inputs[0].LocalUID)
	assert.Equal(t, task.TypeArray, resolved.Inputs[0].Info.DataType)
	assert.Equal(t, "Mean", resolved.Inputs[0].Info.Data.UID)

	// A binding without a local UID is addressed by its declaration UID.
	assert.Equal(t, "Params", resolved.Inputs[1].LocalUID)
	assert.Equal(t, task.TypeParameter, resolved.Inputs[1].Info.DataType)

	require.Len(t, resolved.Outputs, 1)
	assert.Equal(t, "result", resolved.Outputs[0].LocalUID)
	assert.Equal(t, task.TypeImage, resolved.Outputs[0].Info.DataType)
	require.NotNil(t, resolved.Outputs[0].Info.Destination)
	assert.Equal(t, "Img", resolved.Outputs[0].Info.Destination.UID)
}

func TestResolveStepInheritsFromParentChain(t *testing.T) {
	doc := &task.Task{
		UID: "Task1",
		Data: []task.DataDeclaration{
			{
				UID:      "Base",
				Type:     task.TypeArray,
				Variable: &task.VariableRef{Name: "air"},
				Levels:   &task.Levels{Values: "2m;10m"},
				Time: &task.TimeSpan{Segments: []task.TimeSegment{
					{Name: "Seg1", Beginning: "2000010100", Ending: "2000013118"},
				}},
				Description: &task.Description{Name: "Air temperature", Units: "K"},
			},
			{
				UID:     "Derived",
				Parent:  "Base",
				Product: "mean",
				Time: &task.TimeSpan{Segments: []task.TimeSegment{
					{Name: "Whole", Beginning: "2000010100", Ending: "2001013118"},
				}},
			},
		},
	}
	step := &task.ProcessingStep{
		UID:    "Step1",
		Class:  "cvcCalcTiMean",
		Inputs: []task.Binding{{UID: "input", DataRef: "Derived"}},
	}

	resolved, err := engine.ResolveStep(doc, step)
	require.NoError(t, err)
	require.Len(t, resolved.Inputs, 1)

	effective := resolved.Inputs[0].Info.Data
	assert.Equal(t, task.TypeArray, effective.Type)
	assert.Equal(t, "2m;10m", effective.Levels.Values)
	// The child's own time span wins over the parent's.
	assert.Equal(t, "Whole", effective.Time.Segments[0].Name)
	// A product declaration derives its variable name from the parent's.
	assert.Equal(t, "air_mean", effective.Variable.Name)
	// The inherited description carries through to the resolved metadata.
	assert.Equal(t, "Air temperature", resolved.Inputs[0].Info.Description.Name)
	assert.Equal(t, "K", resolved.Inputs[0].Info.Description.Units)

	// Resolution works on copies: the task document itself stays untouched.
	assert.Nil(t, doc.FindData("Derived").Levels)
	assert.Equal(t, "air", doc.FindData("Base").Variable.Name)
}

func TestResolveStepCircularParentChain(t *testing.T) {
	doc := &task.Task{
		UID: "Task1",
		Data: []task.DataDeclaration{
			{UID: "A", Type: task.TypeArray, Parent: "B"},
			{UID: "B", Type: task.TypeArray, Parent: "A"},
		},
	}
	step := &task.ProcessingStep{
		UID:    "Step1",
		Inputs: []task.Binding{{UID: "input", DataRef: "A"}},
	}

	_, err := engine.ResolveStep(doc, step)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular parent chain")
}

func TestResolveStepUnknownParent(t *testing.T) {
	doc := &task.Task{
		UID: "Task1",
		Data: []task.DataDeclaration{
			{UID: "A", Type: task.TypeArray, Parent: "Ghost"},
		},
	}
	step := &task.ProcessingStep{
		UID:    "Step1",
		Inputs: []task.Binding{{UID: "input", DataRef: "A"}},
	}

	_, err := engine.ResolveStep(doc, step)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown parent 'Ghost'")
}

func TestResolveStepUnknownDeclaration(t *testing.T) {
	doc := &task.Task{UID: "Task1"}
	step := &task.ProcessingStep{
		UID:    "Step1",
		Inputs: []task.Binding{{UID: "input", DataRef: "Nope"}},
	}

	_, err := engine.ResolveStep(doc, step)
	require.Error(t, err)
	assert.Contains(t, err.Error(),
		"processing step 'Step1': argument 'input' references unknown declaration 'Nope'")
}

func TestResolveStepDestinationBorrowsDescription(t *testing.T) {
	doc := &task.Task{
		UID: "Task1",
		Data: []task.DataDeclaration{
			{
				UID:         "Mean",
				Type:        task.TypeArray,
				Description: &task.Description{Name: "Air temperature", Units: "K"},
			},
		},
		Destinations: []task.DestinationDeclaration{
			{
				UID:      "Img",
				Type:     task.TypeImage,
				File:     &task.FileRef{Name: "mean.png"},
				Graphics: &task.Graphics{Format: "png"},
				Desc:     &task.Description{Title: "Mean air temperature", Source: "Mean"},
			},
		},
	}
	step := &task.ProcessingStep{
		UID:     "Step1",
		Outputs: []task.Binding{{UID: "result", DataRef: "Img"}},
	}

	resolved, err := engine.ResolveStep(doc, step)
	require.NoError(t, err)
	require.Len(t, resolved.Outputs, 1)

	want := mddb.Description{Title: "Mean air temperature", Name: "Air temperature", Units: "K"}
	assert.Equal(t, want, resolved.Outputs[0].Info.Description)
}
