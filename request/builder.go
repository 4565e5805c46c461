package request

import "github.com/tidwall/gjson"

// ValidationError reports a malformed query document. The message names the
// first offending condition in document order.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

// Route builds a "viaroute" query from a loose JSON document. The document
// must be an object with a coordinates array of at least two [lat, lon]
// pairs; recognised option properties override the engine defaults.
func Route(doc []byte) (*Request, error) {
	obj, err := parseObject(doc)
	if err != nil {
		return nil, err
	}
	req := newRequest(ServiceRoute)

	coords := obj.Get("coordinates")
	if !coords.Exists() {
		return nil, invalid("must provide a coordinates property")
	}
	req.Coordinates, err = coordinateList(coords)
	if err != nil {
		return nil, err
	}

	if v := obj.Get("alternateRoute"); v.Exists() {
		req.AlternateRoute = v.Bool()
	}
	if v := obj.Get("checksum"); v.Exists() {
		req.Checksum = uint32(v.Uint())
	}
	if v := obj.Get("zoomLevel"); v.Exists() {
		req.ZoomLevel = int16(v.Int())
	}
	if v := obj.Get("printInstructions"); v.Exists() {
		req.PrintInstructions = v.Bool()
	}
	if v := obj.Get("jsonpParameter"); v.Exists() {
		req.JSONPParameter = v.String()
	}
	if v := obj.Get("hints"); v.Exists() {
		req.Hints, err = hintList(v)
		if err != nil {
			return nil, err
		}
	}
	return req, nil
}

// Table builds a "table" distance-matrix query from a loose JSON document.
// The document must be an object with a coordinates array of at least two
// [lat, lon] pairs. Table queries accept no option overrides.
func Table(doc []byte) (*Request, error) {
	obj, err := parseObject(doc)
	if err != nil {
		return nil, err
	}
	req := newRequest(ServiceTable)
	req.Coordinates, err = coordinateList(obj.Get("coordinates"))
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Locate builds a "locate" query. The document must be a single [lat, lon]
// array.
func Locate(doc []byte) (*Request, error) {
	return pointQuery(ServiceLocate, doc)
}

// Nearest builds a "nearest" query. The document must be a single [lat, lon]
// array.
func Nearest(doc []byte) (*Request, error) {
	return pointQuery(ServiceNearest, doc)
}

func pointQuery(service string, doc []byte) (*Request, error) {
	if !gjson.ValidBytes(doc) {
		return nil, invalid("first argument must be an array of lat, long")
	}
	v := gjson.ParseBytes(doc)
	if !v.IsArray() {
		return nil, invalid("first argument must be an array of lat, long")
	}
	elems := v.Array()
	if len(elems) != 2 || elems[0].Type != gjson.Number || elems[1].Type != gjson.Number {
		return nil, invalid("first argument must be an array of lat, long")
	}
	req := newRequest(service)
	req.Coordinates = []Coordinate{Coord(elems[0].Float(), elems[1].Float())}
	return req, nil
}

func parseObject(doc []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(doc) {
		return gjson.Result{}, invalid("first arg must be an object")
	}
	v := gjson.ParseBytes(doc)
	if !v.IsObject() {
		return gjson.Result{}, invalid("first arg must be an object")
	}
	return v, nil
}

func coordinateList(v gjson.Result) ([]Coordinate, error) {
	if !v.IsArray() {
		return nil, invalid("coordinates must be an array of (lat/long) pairs")
	}
	elems := v.Array()
	if len(elems) < 2 {
		return nil, invalid("at least two coordinates must be provided")
	}
	out := make([]Coordinate, 0, len(elems))
	for _, pair := range elems {
		c, err := coordinatePair(pair)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func coordinatePair(v gjson.Result) (Coordinate, error) {
	if !v.IsArray() {
		return Coordinate{}, invalid("coordinates must be an array of (lat/long) pairs")
	}
	elems := v.Array()
	if len(elems) != 2 || elems[0].Type != gjson.Number || elems[1].Type != gjson.Number {
		return Coordinate{}, invalid("coordinates must be an array of (lat/long) pairs")
	}
	return Coord(elems[0].Float(), elems[1].Float()), nil
}

func hintList(v gjson.Result) ([]string, error) {
	if !v.IsArray() {
		return nil, invalid("hints must be an array of strings/null")
	}
	elems := v.Array()
	hints := make([]string, 0, len(elems))
	for _, h := range elems {
		switch h.Type {
		case gjson.String:
			hints = append(hints, h.String())
		case gjson.Null:
			hints = append(hints, "")
		default:
			return nil, invalid("hint must be null or string")
		}
	}
	return hints, nil
}
