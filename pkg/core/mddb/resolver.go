package mddb

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
	"github.com/garrichello/climatecore/pkg/core/task"
)

// EnglishLangCode filters localized names in the metadata store.
const EnglishLangCode = "409"

// Description carries the human-readable metadata of a dataset.
type Description struct {
	// Title is the general title of the data (e.g., collection name).
	Title string
	// Name is the parameter name (e.g., Air temperature).
	Name string
	// Units is the unit name (e.g., K).
	Units string
	// AccMode is the parameter accumulation mode (e.g., mean, sum).
	AccMode string
}

// LevelInfo is the per-vertical-level physical addressing info.
type LevelInfo struct {
	// Scale and Offset are applied to raw stored values after masking.
	Scale  float64
	Offset float64
	// FileNameTemplate is the full template (root path + subpaths + name
	// pattern) with %keyword% placeholders for wildcarded components.
	FileNameTemplate string
	// LevelVariableName is the physical name of the level variable inside files.
	LevelVariableName string
	// TimeStart / TimeEnd bound the file validity span (YYYYMMDDHH).
	TimeStart string
	TimeEnd   string
}

// ArgumentInfo is the resolved metadata for one processing-step argument.
// Exactly one of Data / Destination is set.
type ArgumentInfo struct {
	// DataType selects the data adapter variant: the file type name for
	// datasets (e.g., parquet), the declaration type tag otherwise.
	DataType    string
	Data        *task.DataDeclaration
	Destination *task.DestinationDeclaration
	Levels      map[string]*LevelInfo
	Description Description
	// FileSpan labels the temporal coverage of one physical file (e.g., year).
	FileSpan string
}

// metadataRow receives the columns of the resolution join.
type metadataRow struct {
	FileTypeName      string  `gorm:"column:file_type_name"`
	CollectionName    string  `gorm:"column:collection_name"`
	ParameterName     string  `gorm:"column:parameter_name"`
	UnitsName         string  `gorm:"column:units_name"`
	AccMode           string  `gorm:"column:acc_mode"`
	Scale             float64 `gorm:"column:scale"`
	Offset            float64 `gorm:"column:data_offset"`
	RootDir           string  `gorm:"column:root_dir"`
	Subpath0          string  `gorm:"column:subpath0"`
	Subpath1          string  `gorm:"column:subpath1"`
	Subpath2          string  `gorm:"column:subpath2"`
	FileNameTemplate  string  `gorm:"column:file_name_template"`
	FileSpan          string  `gorm:"column:file_span"`
	TimeStart         string  `gorm:"column:time_start"`
	TimeEnd           string  `gorm:"column:time_end"`
	LevelVariableName *string `gorm:"column:level_variable_name"`
}

// resolveQuery is the single join that turns a logical dataset reference into
// physical addressing info. Level labels embed a ":<name>:" token matched
// against the declared level names. The %s placeholder receives the offset
// column quoted for the connected dialect: OFFSET is a reserved word and
// mysql/sqlite and postgres quote identifiers differently.
const resolveQuery = `
SELECT file_type.name AS file_type_name,
       collection_i18n.name AS collection_name,
       parameter_i18n.name AS parameter_name,
       units_i18n.name AS units_name,
       parameter.accumulation_mode AS acc_mode,
       data.scale AS scale,
       data.%s AS data_offset,
       root_dir.name AS root_dir,
       scenario.subpath0 AS subpath0,
       resolution.subpath1 AS subpath1,
       time_step.subpath2 AS subpath2,
       file.name_pattern AS file_name_template,
       time_span.label AS file_span,
       file.time_start AS time_start,
       file.time_end AS time_end,
       levels_variable.name AS level_variable_name
  FROM data
  JOIN dataset ON data.dataset_id = dataset.id
  JOIN collection ON dataset.collection_id = collection.id
  JOIN scenario ON dataset.scenario_id = scenario.id
  JOIN resolution ON dataset.resolution_id = resolution.id
  JOIN specific_parameter ON data.specific_parameter_id = specific_parameter.id
  JOIN parameter ON specific_parameter.parameter_id = parameter.id
  JOIN time_step ON specific_parameter.time_step_id = time_step.id
  JOIN levels_group ON specific_parameter.levels_group_id = levels_group.id
  JOIN levels_group_has_level ON levels_group_has_level.levels_group_id = levels_group.id
  JOIN level ON levels_group_has_level.level_id = level.id
  JOIN variable ON data.variable_id = variable.id
  LEFT JOIN variable AS levels_variable ON data.levels_variable_id = levels_variable.id
  JOIN units ON data.units_id = units.id
  JOIN file ON data.file_id = file.id
  JOIN file_type ON file.file_type_id = file_type.id
  JOIN time_span ON file.time_span_id = time_span.id
  JOIN root_dir ON data.root_dir_id = root_dir.id
  JOIN collection_i18n ON collection_i18n.collection_id = collection.id
  JOIN parameter_i18n ON parameter_i18n.parameter_id = parameter.id
  JOIN units_i18n ON units_i18n.units_id = units.id
 WHERE collection_i18n.language_code = ?
   AND parameter_i18n.language_code = ?
   AND units_i18n.language_code = ?
   AND collection.label = ?
   AND scenario.name = ?
   AND resolution.name = ?
   AND time_step.label = ?
   AND variable.name = ?
   AND (level.label = ? OR level.label LIKE ?)
`

// NoLevelVariableName marks datasets without a vertical level axis inside files.
const NoLevelVariableName = "none"

// Resolve resolves one data declaration against the metadata store.
// Non-dataset declarations pass through untouched: only the type
// discriminator and the raw declaration are returned (raw files additionally
// get identity per-level addressing so format adapters can treat them
// uniformly). Dataset declarations open a fresh connection per call.
func Resolve(conn task.MetaDB, decl *task.DataDeclaration) (*ArgumentInfo, error) {
	if decl.Type != task.TypeDataset {
		return resolvePassthrough(decl), nil
	}

	db, err := Open(conn)
	if err != nil {
		return nil, err
	}
	defer closeDB(db)

	return resolveDataset(db, decl)
}

// ResolveWithDB resolves a dataset declaration using an existing connection.
// Exposed for callers that manage connections themselves (and for tests).
func ResolveWithDB(db *gorm.DB, decl *task.DataDeclaration) (*ArgumentInfo, error) {
	if decl.Type != task.TypeDataset {
		return resolvePassthrough(decl), nil
	}
	return resolveDataset(db, decl)
}

// ResolveDestination wraps a destination declaration: destinations carry
// their physical type tag directly and need no metadata-store lookup.
func ResolveDestination(decl *task.DestinationDeclaration) *ArgumentInfo {
	return &ArgumentInfo{
		DataType:    decl.Type,
		Destination: decl,
	}
}

func resolvePassthrough(decl *task.DataDeclaration) *ArgumentInfo {
	info := &ArgumentInfo{
		DataType: decl.Type,
		Data:     decl,
	}
	// Raw files get identity scale/offset and the declared file name as a
	// template, so the inner format adapter addresses them like datasets.
	if decl.Type == task.TypeRaw && decl.Levels != nil && decl.File != nil {
		info.Levels = make(map[string]*LevelInfo)
		for _, name := range decl.Levels.Names() {
			info.Levels[name] = &LevelInfo{
				Scale:             1.0,
				Offset:            0.0,
				FileNameTemplate:  decl.File.Name,
				LevelVariableName: "level",
			}
		}
	}
	return info
}

func resolveDataset(db *gorm.DB, decl *task.DataDeclaration) (*ArgumentInfo, error) {
	if decl.Dataset == nil || decl.Variable == nil || decl.Levels == nil {
		return nil, exception.NewCoreErrorf(moduleName,
			"dataset declaration %s is missing dataset/variable/levels elements", decl.UID)
	}

	collection := decl.Dataset.Name
	scenario := decl.Dataset.Scenario
	resolution := decl.Dataset.Resolution
	timeStep := decl.Dataset.TimeStep
	variable := decl.Variable.Name

	info := &ArgumentInfo{
		Data:   decl,
		Levels: make(map[string]*LevelInfo),
	}

	// Each vertical level is resolved separately because corresponding
	// arrays can be stored in different files.
	query := fmt.Sprintf(resolveQuery, quoteIdent(db.Dialector, "offset"))
	var last metadataRow
	for _, levelName := range decl.Levels.Names() {
		var rows []metadataRow
		err := db.Raw(query,
			EnglishLangCode, EnglishLangCode, EnglishLangCode,
			collection, scenario, resolution, timeStep, variable,
			levelName, "%:"+levelName+":%",
		).Scan(&rows).Error
		if err != nil {
			return nil, exception.NewCoreError(moduleName, "metadata-store query failed", err)
		}
		if len(rows) == 0 {
			return nil, exception.NewCoreError(moduleName,
				"no records found in metadata store for collection: "+collection+
					", scenario: "+scenario+", resolution: "+resolution+
					", time step: "+timeStep+", variable: "+variable+
					", level: "+levelName,
				exception.ErrNotFound)
		}
		if len(rows) > 1 {
			return nil, exception.NewCoreErrorf(moduleName,
				"ambiguous level '%s' for variable '%s': %d metadata records match",
				levelName, variable, len(rows))
		}
		row := rows[0]
		levelVariableName := NoLevelVariableName
		if row.LevelVariableName != nil {
			levelVariableName = *row.LevelVariableName
		}
		// Physical template: root path + three hierarchical subpaths + the
		// per-level file-name fragment. Missing components yield an invalid
		// template that later surfaces as file-not-found in adapters.
		info.Levels[levelName] = &LevelInfo{
			Scale:             row.Scale,
			Offset:            row.Offset,
			FileNameTemplate:  row.RootDir + row.Subpath0 + row.Subpath1 + row.Subpath2 + row.FileNameTemplate,
			LevelVariableName: levelVariableName,
			TimeStart:         row.TimeStart,
			TimeEnd:           row.TimeEnd,
		}
		last = row
	}

	info.DataType = last.FileTypeName
	info.FileSpan = last.FileSpan
	info.Description = Description{
		Title:   last.CollectionName,
		Name:    last.ParameterName,
		Units:   last.UnitsName,
		AccMode: last.AccMode,
	}

	logger.Debugf("Resolved dataset %s (%s/%s/%s/%s, variable %s) to data type '%s'",
		decl.UID, collection, scenario, resolution, timeStep, variable, info.DataType)

	return info, nil
}

// quoteIdent quotes an identifier the way the connected dialect expects.
func quoteIdent(dialector gorm.Dialector, name string) string {
	var sb strings.Builder
	dialector.QuoteTo(&sb, name)
	return sb.String()
}

// closeDB releases the underlying sql.DB of a per-call connection.
func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Warnf("Failed to obtain metadata-store handle for closing: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warnf("Failed to close metadata-store connection: %v", err)
	}
}
