package request

// coordinatePrecision is the fixed-point scaling factor the engine uses for
// latitude and longitude values.
const coordinatePrecision = 1e6

// Coordinate is a latitude/longitude pair in the engine's fixed-precision
// integer encoding. Fractional precision below the scaling factor is
// discarded when encoding.
type Coordinate struct {
	Lat int32
	Lon int32
}

// Coord encodes floating point degrees into a Coordinate by scaling and
// truncating toward zero.
func Coord(lat, lon float64) Coordinate {
	return Coordinate{
		Lat: int32(lat * coordinatePrecision),
		Lon: int32(lon * coordinatePrecision),
	}
}

// Latitude returns the latitude in floating point degrees.
func (c Coordinate) Latitude() float64 {
	return float64(c.Lat) / coordinatePrecision
}

// Longitude returns the longitude in floating point degrees.
func (c Coordinate) Longitude() float64 {
	return float64(c.Lon) / coordinatePrecision
}
