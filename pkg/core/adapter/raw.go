package adapter

import (
	"github.com/garrichello/climatecore/pkg/core/grid"
	"github.com/garrichello/climatecore/pkg/core/mddb"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/task"
)

// rawAdapter addresses an explicit output file named in the task document.
// The physical format is picked from the declared file type, and writing is
// delegated to the matching format adapter with identity scale/offset.
// Reading back arbitrary user files is not supported.
type rawAdapter struct {
	inner DataAdapter
}

var _ DataAdapter = (*rawAdapter)(nil)

func init() {
	Register(task.TypeRaw, func(info *mddb.ArgumentInfo, env *Env) (DataAdapter, error) {
		var file *task.FileRef
		switch {
		case info.Data != nil:
			file = info.Data.File
		case info.Destination != nil:
			file = info.Destination.File
		}
		if file == nil || file.Name == "" {
			return nil, exception.NewCoreErrorf(moduleName, "raw declaration names no file")
		}
		format := file.Type
		if format == "" {
			format = "parquet"
		}
		innerInfo := *info
		innerInfo.DataType = format
		if innerInfo.Levels == nil {
			// Destinations carry no resolved levels; synthesize identity
			// addressing so the format adapter can build output paths.
			innerInfo.Levels = rawLevels(info, file)
		}
		inner, err := New(&innerInfo, env)
		if err != nil {
			return nil, err
		}
		return &rawAdapter{inner: inner}, nil
	})
}

// rawLevels builds identity per-level addressing from a declaration's own
// level list (or a single unnamed level when none is declared).
func rawLevels(info *mddb.ArgumentInfo, file *task.FileRef) map[string]*mddb.LevelInfo {
	var names []string
	switch {
	case info.Data != nil:
		names = info.Data.Levels.Names()
	case info.Destination != nil:
		names = info.Destination.Levels.Names()
	}
	if len(names) == 0 {
		names = []string{""}
	}
	levels := make(map[string]*mddb.LevelInfo, len(names))
	for _, name := range names {
		levels[name] = &mddb.LevelInfo{
			Scale:             1.0,
			Offset:            0.0,
			FileNameTemplate:  file.Name,
			LevelVariableName: "level",
		}
	}
	return levels
}

func (a *rawAdapter) Read(opts ReadOptions) (*ReadResult, error) {
	return a.inner.Read(opts)
}

func (a *rawAdapter) Write(values *grid.MaskedArray, opts WriteOptions) error {
	return a.inner.Write(values, opts)
}
