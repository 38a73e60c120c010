// Package grid provides the numeric primitives shared by all data adapters
// and calculation modules: masked arrays, region-of-interest masking,
// longitude/latitude normalization and time/spatial grid harmonization.
package grid

import (
	"fmt"

	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
)

const moduleName = "grid"

// DefaultFillValue is the documented constant fallback used when a fill value
// can be neither read nor guessed from a data source.
const DefaultFillValue = 1e20

// MaskedArray is a dense row-major numeric array paired with a boolean mask.
// Mask elements set to true mark values that must be excluded from every
// aggregation. The array shape is always preserved by masking operations.
type MaskedArray struct {
	Values    []float64
	Mask      []bool
	Shape     []int
	FillValue float64
}

// NewMaskedArray allocates a fully unmasked array of the given shape.
func NewMaskedArray(shape []int, fillValue float64) *MaskedArray {
	size := 1
	for _, n := range shape {
		size *= n
	}
	return &MaskedArray{
		Values:    make([]float64, size),
		Mask:      make([]bool, size),
		Shape:     append([]int(nil), shape...),
		FillValue: fillValue,
	}
}

// Size returns the total number of elements.
func (a *MaskedArray) Size() int {
	return len(a.Values)
}

// NDim returns the number of dimensions.
func (a *MaskedArray) NDim() int {
	return len(a.Shape)
}

// FlatIndex converts a multi-dimensional index into a flat row-major offset.
func (a *MaskedArray) FlatIndex(idx ...int) int {
	offset := 0
	for d, i := range idx {
		offset = offset*a.Shape[d] + i
	}
	return offset
}

// At returns the value at the given multi-dimensional index.
func (a *MaskedArray) At(idx ...int) float64 {
	return a.Values[a.FlatIndex(idx...)]
}

// MaskedAt reports whether the element at the given index is masked.
func (a *MaskedArray) MaskedAt(idx ...int) bool {
	return a.Mask[a.FlatIndex(idx...)]
}

// Set stores a value at the given multi-dimensional index and unmasks it.
func (a *MaskedArray) Set(v float64, idx ...int) {
	i := a.FlatIndex(idx...)
	a.Values[i] = v
	a.Mask[i] = false
}

// SetMasked masks the element at the given index, keeping the stored value.
func (a *MaskedArray) SetMasked(idx ...int) {
	a.Mask[a.FlatIndex(idx...)] = true
}

// Copy returns a deep copy of the array.
func (a *MaskedArray) Copy() *MaskedArray {
	return &MaskedArray{
		Values:    append([]float64(nil), a.Values...),
		Mask:      append([]bool(nil), a.Mask...),
		Shape:     append([]int(nil), a.Shape...),
		FillValue: a.FillValue,
	}
}

// Filled returns the values with masked positions replaced by the fill value.
func (a *MaskedArray) Filled() []float64 {
	out := make([]float64, len(a.Values))
	for i, v := range a.Values {
		if a.Mask[i] {
			out[i] = a.FillValue
		} else {
			out[i] = v
		}
	}
	return out
}

// ApplyScaleOffset multiplies every unmasked value by scale and adds offset.
// Masked values are left untouched so the fill value round-trips unchanged.
func (a *MaskedArray) ApplyScaleOffset(scale, offset float64) {
	if scale == 1.0 && offset == 0.0 {
		return
	}
	for i := range a.Values {
		if !a.Mask[i] {
			a.Values[i] = a.Values[i]*scale + offset
		}
	}
}

// OrMask combines the given mask with the array's mask using logical OR.
// The mask length must match the array size.
func (a *MaskedArray) OrMask(mask []bool) error {
	if len(mask) != len(a.Mask) {
		return exception.NewCoreErrorf(moduleName,
			"mask length %d does not match array size %d", len(mask), len(a.Mask))
	}
	for i, m := range mask {
		if m {
			a.Mask[i] = true
		}
	}
	return nil
}

// MaskFillValue masks every element equal to the array's fill value.
func (a *MaskedArray) MaskFillValue() {
	for i, v := range a.Values {
		if v == a.FillValue {
			a.Mask[i] = true
		}
	}
}

// Min returns the minimum over unmasked values; ok is false when everything is masked.
func (a *MaskedArray) Min() (min float64, ok bool) {
	for i, v := range a.Values {
		if a.Mask[i] {
			continue
		}
		if !ok || v < min {
			min = v
			ok = true
		}
	}
	return min, ok
}

// ReverseAxis reverses the array in place along the given axis.
// Used to flip data whose latitude axis is stored in descending order.
func (a *MaskedArray) ReverseAxis(axis int) error {
	if axis < 0 || axis >= len(a.Shape) {
		return exception.NewCoreErrorf(moduleName, "axis %d out of range for shape %v", axis, a.Shape)
	}
	n := a.Shape[axis]
	outer := 1
	for d := 0; d < axis; d++ {
		outer *= a.Shape[d]
	}
	inner := 1
	for d := axis + 1; d < len(a.Shape); d++ {
		inner *= a.Shape[d]
	}
	for o := 0; o < outer; o++ {
		for i := 0; i < n/2; i++ {
			j := n - 1 - i
			for k := 0; k < inner; k++ {
				p := (o*n+i)*inner + k
				q := (o*n+j)*inner + k
				a.Values[p], a.Values[q] = a.Values[q], a.Values[p]
				a.Mask[p], a.Mask[q] = a.Mask[q], a.Mask[p]
			}
		}
	}
	return nil
}

// String implements fmt.Stringer for diagnostics.
func (a *MaskedArray) String() string {
	return fmt.Sprintf("MaskedArray(shape=%v, fill=%g)", a.Shape, a.FillValue)
}
