package processing

import (
	"time"

	"github.com/garrichello/climatecore/pkg/core/access"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
)

// Time-averaging modes of cvcCalcTiMean.
const (
	TiMeanModeData    = "data"    // one mean over the union of all segments
	TiMeanModeSegment = "segment" // one mean per segment
	TiMeanModeDay     = "day"     // daily means within each segment
)

// tiMean implements cvcCalcTiMean: the arithmetic time mean of its first data
// input, computed per level. Masked points never contribute; a point masked
// at every averaged step stays masked, so masks and fill values survive the
// calculation unchanged.
type tiMean struct {
	da *access.DataAccess
}

func init() {
	Register("cvcCalcTiMean", func(da *access.DataAccess) Module {
		return &tiMean{da: da}
	})
}

func (m *tiMean) Run() error {
	logger.Infof("Started cvcCalcTiMean")

	inputs, err := dataInputUIDs(m.da)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return exception.NewCoreErrorf(moduleName, "cvcCalcTiMean needs one data input")
	}
	outputs := m.da.OutputUIDs()
	if len(outputs) == 0 {
		return exception.NewCoreErrorf(moduleName, "cvcCalcTiMean needs one output")
	}
	inputUID, outputUID := inputs[0], outputs[0]

	params := struct {
		Mode string `yaml:"Mode"`
	}{Mode: TiMeanModeData}
	if err := bindParameters(m.da, &params); err != nil {
		return err
	}
	mode := params.Mode
	switch mode {
	case TiMeanModeData, TiMeanModeSegment, TiMeanModeDay:
	default:
		return exception.NewCoreErrorf(moduleName, "cvcCalcTiMean: unknown mode '%s'", mode)
	}

	result, err := m.da.Get(inputUID)
	if err != nil {
		return err
	}
	segments := m.da.GetSegments(inputUID)

	for level, levelData := range result.ByLevel {
		switch mode {
		case TiMeanModeSegment:
			for _, segment := range segments {
				sd, ok := levelData.BySegment[segment.Name]
				if !ok {
					continue
				}
				all := allSteps(len(sd.TimeGrid))
				mean := meanOverSteps(sd.Values, all)
				opts := writeOptionsFor(result, level, segment, sd.TimeGrid[:1])
				if err := m.da.Put(outputUID, mean, opts); err != nil {
					return err
				}
			}

		case TiMeanModeDay:
			for _, segment := range segments {
				sd, ok := levelData.BySegment[segment.Name]
				if !ok {
					continue
				}
				days, groups := groupByDay(sd.TimeGrid)
				shape := append([]int{len(days)}, sd.Values.Shape[1:]...)
				daily := newLike(sd.Values, shape)
				for d, steps := range groups {
					mean := meanOverSteps(sd.Values, steps)
					copySlab(daily, mean, d)
				}
				opts := writeOptionsFor(result, level, segment, days)
				if err := m.da.Put(outputUID, daily, opts); err != nil {
					return err
				}
			}

		case TiMeanModeData:
			global, err := MakeGlobalSegment(segments)
			if err != nil {
				return err
			}
			// Means of per-segment means would weight segments unevenly;
			// accumulate over every time step of every segment instead.
			sums, counts, template := accumulate(levelData)
			if template == nil {
				return exception.NewCoreErrorf(moduleName,
					"cvcCalcTiMean: no data read for level '%s'", level)
			}
			mean := newLike(template, append([]int{1}, template.Shape[1:]...))
			for c := range sums {
				if counts[c] == 0 {
					mean.Mask[c] = true
					mean.Values[c] = mean.FillValue
				} else {
					mean.Values[c] = sums[c] / float64(counts[c])
				}
			}
			begin, err := global.Begin()
			if err != nil {
				return err
			}
			opts := writeOptionsFor(result, level, global, []time.Time{begin})
			if err := m.da.Put(outputUID, mean, opts); err != nil {
				return err
			}
		}
	}

	logger.Infof("Finished cvcCalcTiMean")
	return nil
}
