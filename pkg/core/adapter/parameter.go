package adapter

import (
	"strconv"
	"strings"

	"github.com/garrichello/climatecore/pkg/core/grid"
	"github.com/garrichello/climatecore/pkg/core/mddb"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/task"
)

// parameterAdapter exposes the typed parameters of a parameter declaration.
// Values are cast according to the declared parameter type; a failed cast is
// a fatal task-file error.
type parameterAdapter struct {
	decl *task.DataDeclaration
}

var _ DataAdapter = (*parameterAdapter)(nil)

func init() {
	Register(task.TypeParameter, func(info *mddb.ArgumentInfo, env *Env) (DataAdapter, error) {
		if info.Data == nil {
			return nil, exception.NewCoreErrorf(moduleName, "parameter adapter needs a data declaration")
		}
		return &parameterAdapter{decl: info.Data}, nil
	})
}

// CastParameter converts a raw parameter value to the declared type.
// Supported types: string, integer, float.
func CastParameter(p task.Parameter) (interface{}, error) {
	raw := strings.TrimSpace(p.Value)
	switch p.Type {
	case "string", "":
		return raw, nil
	case "integer":
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, exception.NewCoreError(moduleName,
				"parameter '"+p.UID+"' value '"+raw+"' is not an integer", err)
		}
		return v, nil
	case "float":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, exception.NewCoreError(moduleName,
				"parameter '"+p.UID+"' value '"+raw+"' is not a float", err)
		}
		return v, nil
	default:
		return nil, exception.NewCoreErrorf(moduleName,
			"parameter '%s' has unsupported type '%s'", p.UID, p.Type)
	}
}

func (a *parameterAdapter) Read(opts ReadOptions) (*ReadResult, error) {
	params := make(map[string]interface{}, len(a.decl.Params))
	for _, p := range a.decl.Params {
		v, err := CastParameter(p)
		if err != nil {
			return nil, err
		}
		params[p.UID] = v
	}
	return &ReadResult{
		FillValue:  grid.DefaultFillValue,
		Parameters: params,
	}, nil
}

func (a *parameterAdapter) Write(values *grid.MaskedArray, opts WriteOptions) error {
	return exception.NewCoreError(moduleName,
		"parameter declarations are read-only", exception.ErrNotImplemented)
}
