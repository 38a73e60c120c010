package grid

import (
	"time"

	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
)

// HarmonizeMode selects how fine-grid samples are combined into a coarse interval.
type HarmonizeMode string

const (
	// HarmonizeMean averages the fine samples falling within each coarse interval.
	HarmonizeMean HarmonizeMode = "mean"
	// HarmonizeSum sums the fine samples falling within each coarse interval.
	HarmonizeSum HarmonizeMode = "sum"
)

// HarmonizeTimeGrid produces a value series on the coarse time grid from a
// series on a finer grid over the same span. Samples of the fine grid falling
// within [coarse[i], coarse[i+1]) are combined per mode; the last coarse
// interval is closed on the right. Equal-length grids are treated as already
// aligned and the series is returned as-is. A "fine" grid shorter than the
// coarse one is a fatal precondition violation, raised before any
// transformation is applied.
func HarmonizeTimeGrid(values []float64, mask []bool, fine, coarse []time.Time, mode HarmonizeMode) ([]float64, []bool, error) {
	if len(values) != len(fine) || len(mask) != len(fine) {
		return nil, nil, exception.NewCoreErrorf(moduleName,
			"series length %d does not match fine time grid length %d", len(values), len(fine))
	}
	if len(fine) == len(coarse) {
		return append([]float64(nil), values...), append([]bool(nil), mask...), nil
	}
	if len(fine) < len(coarse) {
		return nil, nil, exception.NewCoreErrorf(moduleName,
			"fine time grid (%d points) is shorter than coarse time grid (%d points)", len(fine), len(coarse))
	}
	if mode != HarmonizeMean && mode != HarmonizeSum {
		return nil, nil, exception.NewCoreErrorf(moduleName, "unknown harmonization mode: %s", mode)
	}

	outValues := make([]float64, len(coarse))
	outMask := make([]bool, len(coarse))
	for i := range coarse {
		begin := coarse[i]
		var end time.Time
		last := i == len(coarse)-1
		if !last {
			end = coarse[i+1]
		}

		sum := 0.0
		count := 0
		for k, t := range fine {
			if t.Before(begin) {
				continue
			}
			if !last && !t.Before(end) {
				continue
			}
			if mask[k] {
				continue
			}
			sum += values[k]
			count++
		}
		if count == 0 {
			outMask[i] = true
			continue
		}
		if mode == HarmonizeMean {
			outValues[i] = sum / float64(count)
		} else {
			outValues[i] = sum
		}
	}
	return outValues, outMask, nil
}
