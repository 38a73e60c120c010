package adapter

import (
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/garrichello/climatecore/pkg/core/grid"
	"github.com/garrichello/climatecore/pkg/core/mddb"
	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
	"github.com/garrichello/climatecore/pkg/core/task"
)

// stationAdapter reads per-station observation series from the relational
// store. Stations inside the declared region of interest are pre-filtered by
// bounding box in SQL and refined with the exact polygon in memory. Results
// are [time, station] arrays plus the station side-channel (names, WMO codes
// and elevations). Station data is read-only.
type stationAdapter struct {
	info *mddb.ArgumentInfo
	env  *Env
}

var _ DataAdapter = (*stationAdapter)(nil)

func init() {
	Register(task.TypeDB, func(info *mddb.ArgumentInfo, env *Env) (DataAdapter, error) {
		if info.Data == nil {
			return nil, exception.NewCoreErrorf(moduleName, "station adapter needs a data declaration")
		}
		return &stationAdapter{info: info, env: env}, nil
	})
}

func (a *stationAdapter) Read(opts ReadOptions) (*ReadResult, error) {
	decl := a.info.Data
	if decl.Variable == nil {
		return nil, exception.NewCoreErrorf(moduleName,
			"station declaration '%s' names no variable", decl.UID)
	}

	db, err := mddb.Open(a.env.MetaDB)
	if err != nil {
		return nil, err
	}
	defer closeStationDB(db)

	var variable mddb.Variable
	if err := db.Where("name = ?", decl.Variable.Name).First(&variable).Error; err != nil {
		return nil, exception.NewCoreError(moduleName,
			"unknown station variable '"+decl.Variable.Name+"'", err)
	}

	stations, err := a.selectStations(db, decl)
	if err != nil {
		return nil, err
	}
	if len(stations) == 0 {
		return nil, exception.NewCoreErrorf(moduleName,
			"no stations found inside the region of interest of '%s'", decl.UID)
	}

	meta := &StationMeta{
		Names:      make([]string, len(stations)),
		WMOCodes:   make([]string, len(stations)),
		Elevations: make([]float64, len(stations)),
	}
	lons := make([]float64, len(stations))
	lats := make([]float64, len(stations))
	stationIdx := make(map[uint]int, len(stations))
	stationIDs := make([]uint, len(stations))
	for i, st := range stations {
		meta.Names[i] = st.Name
		meta.WMOCodes[i] = st.WMOCode
		meta.Elevations[i] = st.Elevation
		lons[i] = st.Longitude
		lats[i] = st.Latitude
		stationIdx[st.ID] = i
		stationIDs[i] = st.ID
	}

	result := &ReadResult{
		ByLevel:     make(map[string]*LevelData, len(opts.Levels)),
		Longitudes:  lons,
		Latitudes:   lats,
		GridType:    grid.GridTypeStation,
		FillValue:   grid.DefaultFillValue,
		Description: a.info.Description,
		Meta:        meta,
	}

	// Station series carry no vertical axis: every requested level gets the
	// same surface observations.
	for _, levelName := range opts.Levels {
		levelData := &LevelData{BySegment: make(map[string]*SegmentData, len(opts.Segments))}
		for _, segment := range opts.Segments {
			sd, err := a.readSegment(db, variable.ID, stationIDs, stationIdx, segment)
			if err != nil {
				return nil, err
			}
			levelData.BySegment[segment.Name] = sd
		}
		result.ByLevel[levelName] = levelData
	}
	return result, nil
}

func (a *stationAdapter) selectStations(db *gorm.DB, decl *task.DataDeclaration) ([]mddb.Station, error) {
	query := db.Order("id")
	var roi grid.Polygon
	if decl.Region != nil && len(decl.Region.Points) >= 3 {
		for _, p := range decl.Region.Points {
			roi = append(roi, grid.Point{Lon: p.Lon, Lat: p.Lat})
		}
		minLon, maxLon, minLat, maxLat := roi.Bounds()
		query = query.Where("longitude BETWEEN ? AND ? AND latitude BETWEEN ? AND ?",
			minLon, maxLon, minLat, maxLat)
	}
	var candidates []mddb.Station
	if err := query.Find(&candidates).Error; err != nil {
		return nil, exception.NewCoreError(moduleName, "station lookup failed", err)
	}
	if roi == nil {
		return candidates, nil
	}
	stations := candidates[:0]
	for _, st := range candidates {
		if roi.Contains(st.Longitude, st.Latitude) {
			stations = append(stations, st)
		}
	}
	logger.Debugf("Region of interest keeps %d of %d candidate stations", len(stations), len(candidates))
	return stations, nil
}

func (a *stationAdapter) readSegment(db *gorm.DB, variableID uint, stationIDs []uint,
	stationIdx map[uint]int, segment task.TimeSegment) (*SegmentData, error) {

	begin, err := segment.Begin()
	if err != nil {
		return nil, err
	}
	end, err := segment.End()
	if err != nil {
		return nil, err
	}

	var observations []mddb.StationObservation
	err = db.Where("variable_id = ? AND station_id IN ? AND observed_at BETWEEN ? AND ?",
		variableID, stationIDs, begin, end).
		Order("observed_at").
		Find(&observations).Error
	if err != nil {
		return nil, exception.NewCoreError(moduleName, "station observation query failed", err)
	}
	if len(observations) == 0 {
		return nil, exception.NewCoreErrorf(moduleName,
			"no station observations for segment %s (%s - %s)",
			segment.Name, segment.Beginning, segment.Ending)
	}

	timeSet := make(map[time.Time]bool)
	for _, obs := range observations {
		timeSet[obs.ObservedAt.UTC()] = true
	}
	times := make([]time.Time, 0, len(timeSet))
	for t := range timeSet {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	timeIdx := make(map[time.Time]int, len(times))
	for i, t := range times {
		timeIdx[t] = i
	}

	values := grid.NewMaskedArray([]int{len(times), len(stationIDs)}, grid.DefaultFillValue)
	for i := range values.Mask {
		values.Mask[i] = true
	}
	for _, obs := range observations {
		if obs.Value == nil {
			continue
		}
		values.Set(*obs.Value, timeIdx[obs.ObservedAt.UTC()], stationIdx[obs.StationID])
	}

	return &SegmentData{Values: values, TimeGrid: times}, nil
}

func (a *stationAdapter) Write(values *grid.MaskedArray, opts WriteOptions) error {
	return exception.NewCoreError(moduleName,
		"station databases are read-only", exception.ErrNotImplemented)
}

func closeStationDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Warnf("Failed to obtain station-store handle for closing: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warnf("Failed to close station-store connection: %v", err)
	}
}
