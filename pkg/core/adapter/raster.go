package adapter

import (
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/garrichello/climatecore/pkg/core/grid"
	"github.com/garrichello/climatecore/pkg/core/mddb"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
	"github.com/garrichello/climatecore/pkg/core/task"
)

// Footer metadata keys of raster archive files.
const (
	metaFillValue    = "_FillValue"
	metaMissingValue = "missing_value"
	metaUnits        = "units"
	metaTitle        = "title"
	metaName         = "long_name"
)

// keywordPattern matches %keyword% placeholders in file-name templates.
var keywordPattern = regexp.MustCompile(`%[A-Za-z0-9_]+%`)

// rasterRow is the physical row layout of raster archive files: one value per
// (time, latitude, longitude) point. A null value marks a missing observation.
type rasterRow struct {
	Time  int64    `parquet:"name=time, type=INT64"`
	Lat   float64  `parquet:"name=lat, type=DOUBLE"`
	Lon   float64  `parquet:"name=lon, type=DOUBLE"`
	Value *float64 `parquet:"name=value, type=DOUBLE, repetitiontype=OPTIONAL"`
}

const parquetConcurrency = 4

// rasterAdapter reads gridded archives stored as Parquet point files and
// writes step results back in the same layout. File-name templates come from
// the metadata store; %keyword% placeholders become wildcards on read.
type rasterAdapter struct {
	info *mddb.ArgumentInfo
	env  *Env

	// glob memo: resolving the same template twice hits the filesystem once.
	lastPattern string
	lastFiles   []string
}

var _ DataAdapter = (*rasterAdapter)(nil)

func init() {
	Register("parquet", func(info *mddb.ArgumentInfo, env *Env) (DataAdapter, error) {
		return &rasterAdapter{info: info, env: env}, nil
	})
}

// wildcardTemplate turns a %keyword% template into a glob pattern.
func wildcardTemplate(template string) string {
	return keywordPattern.ReplaceAllString(template, "*")
}

// resolvePath resolves a (possibly relative) file path against the base dir.
func (a *rasterAdapter) resolvePath(name string) string {
	if filepath.IsAbs(name) || a.env == nil || a.env.BaseDir == "" {
		return name
	}
	return filepath.Join(a.env.BaseDir, name)
}

func (a *rasterAdapter) matchFiles(template string) ([]string, error) {
	pattern := a.resolvePath(wildcardTemplate(template))
	if pattern == a.lastPattern {
		return a.lastFiles, nil
	}
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, exception.NewCoreError(moduleName, "bad file pattern '"+pattern+"'", err)
	}
	if len(files) == 0 {
		return nil, exception.NewCoreErrorf(moduleName, "no data files match pattern '%s'", pattern)
	}
	sort.Strings(files)
	a.lastPattern = pattern
	a.lastFiles = files
	return files, nil
}

// readFileRows reads every row of one archive file along with its footer
// metadata, keyed lower-priority keys included.
func readFileRows(path string) ([]rasterRow, map[string]string, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, nil, exception.NewCoreError(moduleName, "cannot open data file '"+path+"'", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(rasterRow), parquetConcurrency)
	if err != nil {
		return nil, nil, exception.NewCoreError(moduleName, "cannot read data file '"+path+"'", err)
	}
	defer pr.ReadStop()

	meta := make(map[string]string)
	for _, kv := range pr.Footer.GetKeyValueMetadata() {
		if kv != nil && kv.Value != nil {
			meta[kv.GetKey()] = kv.GetValue()
		}
	}

	rows := make([]rasterRow, pr.GetNumRows())
	if err := pr.Read(&rows); err != nil {
		return nil, nil, exception.NewCoreError(moduleName, "failed reading rows from '"+path+"'", err)
	}
	return rows, meta, nil
}

// resolveFillValue determines the fill value of a raster read. Resolution
// order: the _FillValue footer attribute, then missing_value, then a guess
// from the data minimum, then the documented constant default. Each tier is
// logged so operators can tell how the value was obtained.
func resolveFillValue(meta map[string]string, minValue float64, haveMin bool) float64 {
	if s, ok := meta[metaFillValue]; ok {
		if v, err := parseFloatAttr(s); err == nil {
			logger.Debugf("Using fill value %g from the %s attribute", v, metaFillValue)
			return v
		}
	}
	if s, ok := meta[metaMissingValue]; ok {
		if v, err := parseFloatAttr(s); err == nil {
			logger.Debugf("Using fill value %g from the %s attribute", v, metaMissingValue)
			return v
		}
	}
	// Physically impossible minima (far below absolute zero in any supported
	// unit) betray an undeclared fill value.
	if haveMin && minValue <= -1e5 {
		logger.Warnf("No fill value attribute found; guessing %g from the data minimum", minValue)
		return minValue
	}
	logger.Warnf("No fill value could be determined; using the default %g", grid.DefaultFillValue)
	return grid.DefaultFillValue
}

// seamOrder reorders a longitude index window so the resulting grid is
// monotonically ascending in the -180..180 convention: a window split across
// the 0/360 seam is reassembled, and a full-span window of a 0-360 grid is
// rotated at its wrap point.
func seamOrder(normLons []float64, indices []int) ([]int, []float64, error) {
	ordered, lonGrid, err := grid.ReassembleSeam(normLons, indices)
	if err != nil {
		return nil, nil, err
	}
	wrap := -1
	for i := 1; i < len(lonGrid); i++ {
		if lonGrid[i] < lonGrid[i-1] {
			if wrap != -1 {
				return nil, nil, exception.NewCoreErrorf(moduleName,
					"longitude grid wraps more than once")
			}
			wrap = i
		}
	}
	if wrap != -1 {
		ordered = append(append([]int(nil), ordered[wrap:]...), ordered[:wrap]...)
		lonGrid = append(append([]float64(nil), lonGrid[wrap:]...), lonGrid[:wrap]...)
	}
	return ordered, lonGrid, nil
}

// Read loads the declared levels and segments from the archive. For every
// level/segment pair it assembles a [time, lat, lon] masked array: missing
// points and fill values are masked, the region of interest (when declared)
// is applied as a shape-preserving mask after spatial windowing, and the
// per-level scale/offset transform runs last, on unmasked values only.
func (a *rasterAdapter) Read(opts ReadOptions) (*ReadResult, error) {
	decl := a.info.Data
	if decl == nil {
		return nil, exception.NewCoreError(moduleName,
			"raster archives cannot be read as destinations", exception.ErrNotImplemented)
	}

	result := &ReadResult{
		ByLevel:     make(map[string]*LevelData, len(opts.Levels)),
		GridType:    grid.GridTypeRegular,
		Description: a.info.Description,
	}

	var roi grid.Polygon
	if decl.Region != nil {
		for _, p := range decl.Region.Points {
			roi = append(roi, grid.Point{Lon: p.Lon, Lat: p.Lat})
		}
	}

	for _, levelName := range opts.Levels {
		lvl, ok := a.info.Levels[levelName]
		if !ok {
			return nil, exception.NewCoreErrorf(moduleName,
				"level '%s' was not resolved for data '%s'", levelName, decl.UID)
		}
		files, err := a.matchFiles(lvl.FileNameTemplate)
		if err != nil {
			return nil, err
		}

		levelData := &LevelData{BySegment: make(map[string]*SegmentData, len(opts.Segments))}
		for _, segment := range opts.Segments {
			sd, lons, lats, fill, err := a.readSegment(files, lvl, segment, roi)
			if err != nil {
				return nil, err
			}
			levelData.BySegment[segment.Name] = sd
			result.Longitudes = lons
			result.Latitudes = lats
			result.FillValue = fill
		}
		result.ByLevel[levelName] = levelData
	}
	return result, nil
}

func (a *rasterAdapter) readSegment(files []string, lvl *mddb.LevelInfo,
	segment task.TimeSegment, roi grid.Polygon) (*SegmentData, []float64, []float64, float64, error) {

	begin, err := segment.Begin()
	if err != nil {
		return nil, nil, nil, 0, err
	}
	end, err := segment.End()
	if err != nil {
		return nil, nil, nil, 0, err
	}

	var rows []rasterRow
	meta := make(map[string]string)
	for _, path := range files {
		fileRows, fileMeta, err := readFileRows(path)
		if err != nil {
			return nil, nil, nil, 0, err
		}
		for k, v := range fileMeta {
			if _, seen := meta[k]; !seen {
				meta[k] = v
			}
		}
		for _, row := range fileRows {
			t := time.Unix(row.Time, 0).UTC()
			if !t.Before(begin) && !t.After(end) {
				rows = append(rows, row)
			}
		}
	}
	if len(rows) == 0 {
		return nil, nil, nil, 0, exception.NewCoreErrorf(moduleName,
			"no data found for segment %s (%s - %s)", segment.Name, segment.Beginning, segment.Ending)
	}

	times, lats, rawLons := collectAxes(rows)

	// Fill value resolution needs the raw data minimum for the guess tier.
	minValue := math.Inf(1)
	haveMin := false
	for _, row := range rows {
		if row.Value != nil && *row.Value < minValue {
			minValue = *row.Value
			haveMin = true
		}
	}
	fill := resolveFillValue(meta, minValue, haveMin)

	full := grid.NewMaskedArray([]int{len(times), len(lats), len(rawLons)}, fill)
	for i := range full.Mask {
		full.Mask[i] = true
	}
	timeIdx := indexOfTimes(times)
	latIdx := indexOfFloats(lats)
	lonIdx := indexOfFloats(rawLons)
	for _, row := range rows {
		if row.Value == nil {
			continue
		}
		t := timeIdx[row.Time]
		full.Set(*row.Value, t, latIdx[row.Lat], lonIdx[row.Lon])
	}
	full.MaskFillValue()

	// Spatial windowing in the -180..180 convention, seam-free.
	normLons := grid.NormalizeLongitudes(rawLons)
	lonWindow, latWindow := windowIndices(normLons, lats, roi)
	if len(lonWindow) == 0 || len(latWindow) == 0 {
		return nil, nil, nil, 0, exception.NewCoreErrorf(moduleName,
			"region of interest selects no grid points in segment %s", segment.Name)
	}
	lonOrder, lonGrid, err := seamOrder(normLons, lonWindow)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	latGrid := make([]float64, len(latWindow))
	for i, j := range latWindow {
		latGrid[i] = lats[j]
	}

	values := grid.NewMaskedArray([]int{len(times), len(latGrid), len(lonGrid)}, fill)
	for t := range times {
		for i, li := range latWindow {
			for j, lj := range lonOrder {
				if full.MaskedAt(t, li, lj) {
					values.SetMasked(t, i, j)
					values.Values[values.FlatIndex(t, i, j)] = full.At(t, li, lj)
				} else {
					values.Set(full.At(t, li, lj), t, i, j)
				}
			}
		}
	}

	if len(roi) >= 3 {
		roiMask, err := grid.MakeROIMask(lonGrid, latGrid, roi)
		if err != nil {
			return nil, nil, nil, 0, err
		}
		if err := values.OrMask(grid.TileMask(roiMask, len(times))); err != nil {
			return nil, nil, nil, 0, err
		}
	}

	// Unpack transform runs after masking so fill values stay untouched.
	values.ApplyScaleOffset(lvl.Scale, lvl.Offset)

	return &SegmentData{Values: values, TimeGrid: times}, lonGrid, latGrid, fill, nil
}

// windowIndices returns the longitude and latitude indices selected by the
// region of interest's bounding box, or the full axes when no region is set.
func windowIndices(normLons, lats []float64, roi grid.Polygon) ([]int, []int) {
	minLon, maxLon := -180.0, 180.0
	minLat, maxLat := -90.0, 90.0
	if len(roi) >= 3 {
		minLon, maxLon, minLat, maxLat = roi.Bounds()
	}
	lonWindow := grid.LongitudeWindow(normLons, minLon, maxLon)
	var latWindow []int
	for i, lat := range lats {
		if lat >= minLat && lat <= maxLat {
			latWindow = append(latWindow, i)
		}
	}
	return lonWindow, latWindow
}

func collectAxes(rows []rasterRow) (times []time.Time, lats, lons []float64) {
	timeSet := make(map[int64]bool)
	latSet := make(map[float64]bool)
	lonSet := make(map[float64]bool)
	for _, row := range rows {
		timeSet[row.Time] = true
		latSet[row.Lat] = true
		lonSet[row.Lon] = true
	}
	stamps := make([]int64, 0, len(timeSet))
	for t := range timeSet {
		stamps = append(stamps, t)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })
	times = make([]time.Time, len(stamps))
	for i, s := range stamps {
		times[i] = time.Unix(s, 0).UTC()
	}
	lats = sortedKeys(latSet)
	lons = sortedKeys(lonSet)
	return times, lats, lons
}

func sortedKeys(set map[float64]bool) []float64 {
	out := make([]float64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

func indexOfTimes(times []time.Time) map[int64]int {
	idx := make(map[int64]int, len(times))
	for i, t := range times {
		idx[t.Unix()] = i
	}
	return idx
}

func indexOfFloats(axis []float64) map[float64]int {
	idx := make(map[float64]int, len(axis))
	for i, v := range axis {
		idx[v] = i
	}
	return idx
}

// Write stores one level/segment slab as a Parquet point file. The target
// file name comes from the level's template with %level% and %segment%
// substituted; leftover placeholders are a fatal configuration error.
func (a *rasterAdapter) Write(values *grid.MaskedArray, opts WriteOptions) error {
	lvl, ok := a.info.Levels[opts.Level]
	if !ok {
		return exception.NewCoreErrorf(moduleName, "level '%s' was not resolved for writing", opts.Level)
	}
	if values.NDim() != 3 {
		return exception.NewCoreErrorf(moduleName,
			"raster writes need a [time, lat, lon] array, got shape %v", values.Shape)
	}
	nt, nlat, nlon := values.Shape[0], values.Shape[1], values.Shape[2]
	if nt != len(opts.Times) || nlat != len(opts.Latitudes) || nlon != len(opts.Longitudes) {
		return exception.NewCoreErrorf(moduleName,
			"axis lengths (%d, %d, %d) do not match array shape %v",
			len(opts.Times), len(opts.Latitudes), len(opts.Longitudes), values.Shape)
	}

	path, err := substituteKeywords(lvl.FileNameTemplate, map[string]string{
		"level":   opts.Level,
		"segment": opts.Segment.Name,
	})
	if err != nil {
		return err
	}
	path = a.resolvePath(path)

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return exception.NewCoreError(moduleName, "cannot create data file '"+path+"'", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(rasterRow), parquetConcurrency)
	if err != nil {
		return exception.NewCoreError(moduleName, "cannot initialize writer for '"+path+"'", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for t := 0; t < nt; t++ {
		stamp := opts.Times[t].Unix()
		for i := 0; i < nlat; i++ {
			for j := 0; j < nlon; j++ {
				row := rasterRow{Time: stamp, Lat: opts.Latitudes[i], Lon: opts.Longitudes[j]}
				if !values.MaskedAt(t, i, j) {
					v := values.At(t, i, j)
					row.Value = &v
				}
				if err := pw.Write(row); err != nil {
					return exception.NewCoreError(moduleName, "failed writing row to '"+path+"'", err)
				}
			}
		}
	}

	appendFooterMeta(pw, metaFillValue, formatFloatAttr(values.FillValue))
	appendFooterMeta(pw, metaUnits, opts.Description.Units)
	appendFooterMeta(pw, metaTitle, opts.Description.Title)
	appendFooterMeta(pw, metaName, opts.Description.Name)

	if err := pw.WriteStop(); err != nil {
		return exception.NewCoreError(moduleName, "failed finalizing data file '"+path+"'", err)
	}
	logger.Infof("Wrote %d points to %s", nt*nlat*nlon, path)
	return nil
}

// substituteKeywords replaces %keyword% placeholders in a template; an
// unknown keyword is an error because a wildcard cannot address an output.
func substituteKeywords(template string, values map[string]string) (string, error) {
	var bad string
	out := keywordPattern.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := values[key]; ok {
			return v
		}
		bad = key
		return m
	})
	if bad != "" {
		return "", exception.NewCoreErrorf(moduleName,
			"unknown keyword '%%%s%%' in output file template '%s'", bad, template)
	}
	return out, nil
}

func parseFloatAttr(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func formatFloatAttr(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func appendFooterMeta(pw *writer.ParquetWriter, key, value string) {
	if value == "" {
		return
	}
	v := value
	pw.Footer.KeyValueMetadata = append(pw.Footer.KeyValueMetadata,
		&parquet.KeyValue{Key: key, Value: &v})
}
