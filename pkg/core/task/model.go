// Package task defines the declarative task document consumed by the Core:
// the metadata-store connection descriptor, data and destination declarations
// and the ordered list of processing steps. A parsed Task is immutable; the
// engine never mutates declarations during argument resolution.
package task

import (
	"strings"
	"time"

	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
)

const moduleName = "task"

// TimeLayout is the string encoding of time segment bounds (YYYYMMDDHH).
const TimeLayout = "2006010215"

// Declaration type tags.
const (
	TypeDataset   = "dataset"
	TypeParameter = "parameter"
	TypeArray     = "array"
	TypeRaw       = "raw"
	TypeImage     = "image"
	TypeDB        = "db"
)

// Task is the root unit of work.
type Task struct {
	UID          string                   `xml:"uid,attr"`
	Metadb       MetaDB                   `xml:"metadb"`
	Data         []DataDeclaration        `xml:"data"`
	Destinations []DestinationDeclaration `xml:"destination"`
	Processing   []ProcessingStep         `xml:"processing"`
}

// MetaDB describes the metadata-store connection.
type MetaDB struct {
	Host     string `xml:"host,attr"`
	Name     string `xml:"name,attr"`
	User     string `xml:"user,attr"`
	Password string `xml:"password,attr"`
	// Driver selects the registered dialector; empty means "mysql".
	Driver string `xml:"driver,attr"`
	Port   int    `xml:"port,attr"`
}

// DataDeclaration describes one logical dataset, parameter, array or raw file.
type DataDeclaration struct {
	UID     string `xml:"uid,attr"`
	Type    string `xml:"type,attr"`
	Parent  string `xml:"parent,attr"`
	Product string `xml:"product,attr"`

	Dataset     *DatasetRef  `xml:"dataset"`
	Variable    *VariableRef `xml:"variable"`
	Region      *Region      `xml:"region"`
	Levels      *Levels      `xml:"levels"`
	Time        *TimeSpan    `xml:"time"`
	Description *Description `xml:"description"`
	Params      []Parameter  `xml:"param"`
	File        *FileRef     `xml:"file"`
}

// DestinationDeclaration describes one output sink (file, database table, image).
type DestinationDeclaration struct {
	UID  string `xml:"uid,attr"`
	Type string `xml:"type,attr"`

	File     *FileRef     `xml:"file"`
	Graphics *Graphics    `xml:"graphics"`
	Levels   *Levels      `xml:"levels"`
	Desc     *Description `xml:"description"`
}

// DatasetRef names the collection/scenario/resolution/time-step of a dataset.
type DatasetRef struct {
	Name       string `xml:"name,attr"`
	Scenario   string `xml:"scenario,attr"`
	Resolution string `xml:"resolution,attr"`
	TimeStep   string `xml:"time_step,attr"`
}

// VariableRef names the dataset variable to read.
type VariableRef struct {
	Name string `xml:"name,attr"`
}

// Region is the region-of-interest polygon.
type Region struct {
	Points []RegionPoint `xml:"point"`
}

// RegionPoint is one lon/lat vertex of the region of interest.
type RegionPoint struct {
	Lon float64 `xml:"lon,attr"`
	Lat float64 `xml:"lat,attr"`
}

// Levels carries the semicolon-separated vertical level name list.
type Levels struct {
	Values string `xml:"values,attr"`
}

// Names splits the level list into trimmed level names.
func (l *Levels) Names() []string {
	if l == nil || l.Values == "" {
		return nil
	}
	parts := strings.Split(l.Values, ";")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// TimeSpan groups the declared time segments.
type TimeSpan struct {
	Segments []TimeSegment `xml:"segment"`
}

// TimeSegment is a named closed date-time interval [Beginning, Ending].
type TimeSegment struct {
	Name      string `xml:"name,attr"`
	Beginning string `xml:"beginning,attr"`
	Ending    string `xml:"ending,attr"`
}

// Begin parses the segment beginning (YYYYMMDDHH).
func (s TimeSegment) Begin() (time.Time, error) {
	t, err := time.Parse(TimeLayout, s.Beginning)
	if err != nil {
		return time.Time{}, exception.NewCoreError(moduleName,
			"bad segment beginning '"+s.Beginning+"' in segment "+s.Name, err)
	}
	return t, nil
}

// End parses the segment ending (YYYYMMDDHH).
func (s TimeSegment) End() (time.Time, error) {
	t, err := time.Parse(TimeLayout, s.Ending)
	if err != nil {
		return time.Time{}, exception.NewCoreError(moduleName,
			"bad segment ending '"+s.Ending+"' in segment "+s.Name, err)
	}
	return t, nil
}

// Description carries the human-readable title/name/units of a dataset.
// Source, when set, borrows name and units from another declaration.
type Description struct {
	Title  string `xml:"title,attr"`
	Name   string `xml:"name,attr"`
	Units  string `xml:"units,attr"`
	Source string `xml:"source,attr"`
}

// Parameter is one typed task-file parameter (type: string/integer/float).
type Parameter struct {
	UID   string `xml:"uid,attr"`
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// FileRef names a physical file target and its format.
type FileRef struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

// Graphics carries image output options for destinations of type image.
type Graphics struct {
	Format string  `xml:"format,attr"`
	Width  int     `xml:"width,attr"`
	Height int     `xml:"height,attr"`
	Legend *Legend `xml:"legend"`
}

// Legend carries legend options for image destinations.
type Legend struct {
	Type   string `xml:"type,attr"`
	Kind   string `xml:"kind,attr"`
	NumCol int    `xml:"number_of_colors,attr"`
}

// ProcessingStep is one execution unit: the processing module class name plus
// ordered input and output argument bindings.
type ProcessingStep struct {
	UID     string    `xml:"uid,attr"`
	Class   string    `xml:"class,attr"`
	Inputs  []Binding `xml:"input"`
	Outputs []Binding `xml:"output"`
}

// Binding references a data/destination declaration by UID and carries the
// local UID the module uses to address it through the facade.
type Binding struct {
	UID     string `xml:"uid,attr"`
	DataRef string `xml:"data,attr"`
}

// FindData returns the data declaration with the given UID, or nil.
func (t *Task) FindData(uid string) *DataDeclaration {
	for i := range t.Data {
		if t.Data[i].UID == uid {
			return &t.Data[i]
		}
	}
	return nil
}

// FindDestination returns the destination declaration with the given UID, or nil.
func (t *Task) FindDestination(uid string) *DestinationDeclaration {
	for i := range t.Destinations {
		if t.Destinations[i].UID == uid {
			return &t.Destinations[i]
		}
	}
	return nil
}

// Validate checks task-level invariants: UIDs must be unique across the union
// of data and destination declarations, and every segment name must be unique
// within its declaration.
func (t *Task) Validate() error {
	seen := make(map[string]bool, len(t.Data)+len(t.Destinations))
	for _, d := range t.Data {
		if seen[d.UID] {
			return exception.NewCoreErrorf(moduleName, "duplicate declaration UID: %s", d.UID)
		}
		seen[d.UID] = true
		if d.Time != nil {
			names := make(map[string]bool, len(d.Time.Segments))
			for _, s := range d.Time.Segments {
				if names[s.Name] {
					return exception.NewCoreErrorf(moduleName,
						"duplicate time segment name '%s' in data %s", s.Name, d.UID)
				}
				names[s.Name] = true
			}
		}
	}
	for _, d := range t.Destinations {
		if seen[d.UID] {
			return exception.NewCoreErrorf(moduleName, "duplicate declaration UID: %s", d.UID)
		}
		seen[d.UID] = true
	}
	return nil
}
