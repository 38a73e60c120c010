// Package mddb resolves logical dataset references (collection, scenario,
// resolution, time step, variable, levels) against the relational metadata
// store into physical addressing info: file-name templates, scale/offset and
// level-variable names. It is stateless per call; connections are opened
// fresh per resolution and callers do their own caching.
package mddb

import "time"

const moduleName = "mddb"

// GORM models mirroring the metadata-store schema. Table names are singular,
// matching the SQL migrations in migrations/.

// Collection is a dataset collection (e.g., a reanalysis archive).
type Collection struct {
	ID    uint   `gorm:"primaryKey"`
	Label string `gorm:"uniqueIndex;size:64"`
}

func (Collection) TableName() string { return "collection" }

// CollectionI18n holds localized collection names.
type CollectionI18n struct {
	ID           uint `gorm:"primaryKey"`
	CollectionID uint
	LanguageCode string `gorm:"size:8"`
	Name         string `gorm:"size:255"`
}

func (CollectionI18n) TableName() string { return "collection_i18n" }

// Scenario is a dataset scenario (e.g., historical, rcp85).
type Scenario struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"size:64"`
	Subpath0 string `gorm:"size:255"`
}

func (Scenario) TableName() string { return "scenario" }

// Resolution is a spatial resolution entry.
type Resolution struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"size:64"`
	Subpath1 string `gorm:"size:255"`
}

func (Resolution) TableName() string { return "resolution" }

// TimeStep is a temporal resolution entry.
type TimeStep struct {
	ID       uint   `gorm:"primaryKey"`
	Label    string `gorm:"size:64"`
	Subpath2 string `gorm:"size:255"`
}

func (TimeStep) TableName() string { return "time_step" }

// Dataset ties a collection to a scenario and resolution.
type Dataset struct {
	ID           uint `gorm:"primaryKey"`
	CollectionID uint
	ScenarioID   uint
	ResolutionID uint
}

func (Dataset) TableName() string { return "dataset" }

// FileType names the physical storage format (e.g., parquet, netcdf).
type FileType struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:32"`
}

func (FileType) TableName() string { return "file_type" }

// TimeSpan labels the temporal coverage of one physical file (e.g., year, month).
type TimeSpan struct {
	ID    uint   `gorm:"primaryKey"`
	Label string `gorm:"size:32"`
}

func (TimeSpan) TableName() string { return "time_span" }

// File is a physical file-name template with its format and validity span.
type File struct {
	ID          uint   `gorm:"primaryKey"`
	NamePattern string `gorm:"size:255"`
	FileTypeID  uint
	TimeSpanID  uint
	TimeStart   string `gorm:"size:10"`
	TimeEnd     string `gorm:"size:10"`
}

func (File) TableName() string { return "file" }

// Variable names a stored variable, also used for level variables.
type Variable struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:64"`
}

func (Variable) TableName() string { return "variable" }

// Units is a measurement units entry; names are localized in UnitsI18n.
type Units struct {
	ID uint `gorm:"primaryKey"`
}

func (Units) TableName() string { return "units" }

// UnitsI18n holds localized unit names.
type UnitsI18n struct {
	ID           uint `gorm:"primaryKey"`
	UnitsID      uint
	LanguageCode string `gorm:"size:8"`
	Name         string `gorm:"size:64"`
}

func (UnitsI18n) TableName() string { return "units_i18n" }

// Parameter is a physical parameter with its accumulation mode.
type Parameter struct {
	ID               uint   `gorm:"primaryKey"`
	AccumulationMode string `gorm:"size:16"`
}

func (Parameter) TableName() string { return "parameter" }

// ParameterI18n holds localized parameter names.
type ParameterI18n struct {
	ID           uint `gorm:"primaryKey"`
	ParameterID  uint
	LanguageCode string `gorm:"size:8"`
	Name         string `gorm:"size:255"`
}

func (ParameterI18n) TableName() string { return "parameter_i18n" }

// LevelsGroup groups the vertical levels a specific parameter is defined on.
type LevelsGroup struct {
	ID uint `gorm:"primaryKey"`
}

func (LevelsGroup) TableName() string { return "levels_group" }

// Level is one vertical level. Its label embeds a ":<name>:" token used for
// pattern matching against the level names declared in task files.
type Level struct {
	ID    uint   `gorm:"primaryKey"`
	Label string `gorm:"size:64"`
}

func (Level) TableName() string { return "level" }

// LevelsGroupHasLevel links levels to their groups.
type LevelsGroupHasLevel struct {
	LevelsGroupID uint `gorm:"primaryKey"`
	LevelID       uint `gorm:"primaryKey"`
}

func (LevelsGroupHasLevel) TableName() string { return "levels_group_has_level" }

// SpecificParameter binds a parameter to a levels group and a time step.
type SpecificParameter struct {
	ID            uint `gorm:"primaryKey"`
	ParameterID   uint
	LevelsGroupID uint
	TimeStepID    uint
}

func (SpecificParameter) TableName() string { return "specific_parameter" }

// RootDir is the archive root path of a collection.
type RootDir struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:255"`
}

func (RootDir) TableName() string { return "root_dir" }

// Data is the central fact row: one stored variable of one dataset at one
// levels group, with its per-level scale/offset and file template.
type Data struct {
	ID                  uint `gorm:"primaryKey"`
	DatasetID           uint
	VariableID          uint
	UnitsID             uint
	SpecificParameterID uint
	FileID              uint
	LevelsVariableID    *uint
	RootDirID           uint
	Scale               float64
	Offset              float64
}

func (Data) TableName() string { return "data" }

// Station is a weather station with its position and elevation.
type Station struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:128"`
	WMOCode   string `gorm:"column:wmo_code;size:16"`
	Longitude float64
	Latitude  float64
	Elevation float64
}

func (Station) TableName() string { return "station" }

// StationObservation is one observed value of one variable at one station.
// A NULL value marks a missing observation.
type StationObservation struct {
	ID         uint64 `gorm:"primaryKey"`
	StationID  uint
	VariableID uint
	ObservedAt time.Time `gorm:"column:observed_at"`
	Value      *float64
}

func (StationObservation) TableName() string { return "station_observation" }

// AllModels lists every metadata model, in dependency order, for test-side
// schema provisioning with gorm.AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&Collection{}, &CollectionI18n{}, &Scenario{}, &Resolution{}, &TimeStep{},
		&Dataset{}, &FileType{}, &TimeSpan{}, &File{}, &Variable{}, &Units{},
		&UnitsI18n{}, &Parameter{}, &ParameterI18n{}, &LevelsGroup{}, &Level{},
		&LevelsGroupHasLevel{}, &SpecificParameter{}, &RootDir{}, &Data{},
		&Station{}, &StationObservation{},
	}
}
