package request

// Engine service identifiers, one per query kind.
const (
	ServiceRoute   = "viaroute"
	ServiceLocate  = "locate"
	ServiceNearest = "nearest"
	ServiceTable   = "table"
)

// Request is the engine's typed query structure. Builders return it fully
// populated; callers must treat it as immutable and hand it to at most one
// task.
type Request struct {
	Service     string
	Coordinates []Coordinate

	// Hints carries precomputed location hints parallel to Coordinates.
	// Entries may be empty; the slice is not required to match the
	// coordinate count.
	Hints []string

	AlternateRoute    bool
	ZoomLevel         int16
	PrintInstructions bool
	Checksum          uint32
	JSONPParameter    string

	// Fixed engine defaults, not settable through any builder.
	Geometry     bool
	Compression  bool
	OutputFormat string
	Language     string
}

// newRequest returns a Request carrying the engine defaults for the given
// service tag.
func newRequest(service string) *Request {
	return &Request{
		Service:        service,
		AlternateRoute: true,
		ZoomLevel:      18,
		Geometry:       true,
		Compression:    true,
		OutputFormat:   "json",
	}
}
