package adapter

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/garrichello/climatecore/pkg/core/grid"
	"github.com/garrichello/climatecore/pkg/core/mddb"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
	"github.com/garrichello/climatecore/pkg/core/task"
)

// imageAdapter renders a 2-D field to a grayscale PNG destination. Unmasked
// values are linearly stretched over the full gray range; masked points are
// rendered transparent. A NaN among unmasked values is fatal before anything
// is written.
type imageAdapter struct {
	decl *task.DestinationDeclaration
	env  *Env
}

var _ DataAdapter = (*imageAdapter)(nil)

func init() {
	Register(task.TypeImage, func(info *mddb.ArgumentInfo, env *Env) (DataAdapter, error) {
		if info.Destination == nil {
			return nil, exception.NewCoreErrorf(moduleName, "image adapter needs a destination declaration")
		}
		if info.Destination.File == nil || info.Destination.File.Name == "" {
			return nil, exception.NewCoreErrorf(moduleName,
				"image destination '%s' names no file", info.Destination.UID)
		}
		return &imageAdapter{decl: info.Destination, env: env}, nil
	})
}

func (a *imageAdapter) Read(opts ReadOptions) (*ReadResult, error) {
	return nil, exception.NewCoreError(moduleName,
		"image destinations cannot be read", exception.ErrNotImplemented)
}

func (a *imageAdapter) Write(values *grid.MaskedArray, opts WriteOptions) error {
	if a.decl.Graphics != nil && a.decl.Graphics.Format != "" && a.decl.Graphics.Format != "png" {
		return exception.NewCoreError(moduleName,
			"image format '"+a.decl.Graphics.Format+"' is not supported", exception.ErrNotImplemented)
	}

	field := values
	// A singleton leading time axis is accepted and squeezed.
	if field.NDim() == 3 && field.Shape[0] == 1 {
		squeezed := &grid.MaskedArray{
			Values:    field.Values,
			Mask:      field.Mask,
			Shape:     []int{field.Shape[1], field.Shape[2]},
			FillValue: field.FillValue,
		}
		field = squeezed
	}
	if field.NDim() != 2 {
		return exception.NewCoreErrorf(moduleName,
			"image destinations need a 2-D [lat, lon] field, got shape %v", values.Shape)
	}

	min, max := math.Inf(1), math.Inf(-1)
	for i, v := range field.Values {
		if field.Mask[i] {
			continue
		}
		if math.IsNaN(v) {
			return exception.NewCoreErrorf(moduleName,
				"NaN among unmasked values; refusing to render '%s'", a.decl.UID)
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min > max {
		return exception.NewCoreErrorf(moduleName, "all values masked; nothing to render for '%s'", a.decl.UID)
	}
	span := max - min
	if span == 0 {
		span = 1
	}

	nlat, nlon := field.Shape[0], field.Shape[1]
	img := image.NewNRGBA(image.Rect(0, 0, nlon, nlat))
	for i := 0; i < nlat; i++ {
		// Latitude ascends south to north; image rows run top-down.
		y := nlat - 1 - i
		for j := 0; j < nlon; j++ {
			if field.MaskedAt(i, j) {
				img.SetNRGBA(j, y, color.NRGBA{})
				continue
			}
			g := uint8(math.Round((field.At(i, j) - min) / span * 255))
			img.SetNRGBA(j, y, color.NRGBA{R: g, G: g, B: g, A: 255})
		}
	}

	path := a.decl.File.Name
	if !filepath.IsAbs(path) && a.env != nil && a.env.BaseDir != "" {
		path = filepath.Join(a.env.BaseDir, path)
	}
	f, err := os.Create(path)
	if err != nil {
		return exception.NewCoreError(moduleName, "cannot create image file '"+path+"'", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return exception.NewCoreError(moduleName, "failed encoding image '"+path+"'", err)
	}
	logger.Infof("Rendered %dx%d image to %s", nlon, nlat, path)
	return nil
}
