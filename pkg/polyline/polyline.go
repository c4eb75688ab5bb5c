// Package polyline encodes and decodes route geometry in Google's polyline format,
// including the three-dimensional variant used by OpenRouteService when elevation
// is requested.
// The polyline algorithm is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"

	"github.com/routecast/routecast/pkg/geo"
)

const (
	// coordinatePrecision is the scale of latitude and longitude (5 decimal places).
	coordinatePrecision = 1e5

	// elevationPrecision is the scale of the elevation component (centimeters).
	elevationPrecision = 1e2
)

// ErrMalformed is returned when an encoded polyline is truncated or has the
// wrong number of components.
var ErrMalformed = errors.New("malformed polyline")

// Decode decodes a polyline into route coordinates.
// When withElevation is set, every vertex carries a third value (meters).
func Decode(encoded string, withElevation bool) ([]geo.Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}

	var coords []geo.Coordinate
	index := 0
	lat, lon, ele := 0, 0, 0

	for index < len(encoded) {
		latDelta, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		lat += latDelta

		lonDelta, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		lon += lonDelta

		coord := geo.NewCoordinate(float64(lon)/coordinatePrecision, float64(lat)/coordinatePrecision)

		if withElevation {
			eleDelta, afterEle, err := decodeValue(encoded, next)
			if err != nil {
				return nil, err
			}
			ele += eleDelta
			next = afterEle
			coord = geo.NewCoordinate3D(coord.Lon, coord.Lat, float64(ele)/elevationPrecision)
		}

		index = next
		coords = append(coords, coord)
	}

	return coords, nil
}

// decodeValue decodes a single value from the polyline at the given index.
// Returns the decoded delta value and the new index position.
func decodeValue(encoded string, index int) (int, int, error) {
	if index >= len(encoded) {
		return 0, index, ErrMalformed
	}

	shift := 0
	result := 0

	for {
		if index >= len(encoded) {
			return 0, index, ErrMalformed
		}
		b := int(encoded[index]) - 63
		index++
		if b < 0 {
			return 0, index, ErrMalformed
		}
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// Encode encodes coordinates as a polyline. Vertices without elevation are
// encoded at 0 m when withElevation is set.
func Encode(coords []geo.Coordinate, withElevation bool) string {
	if len(coords) == 0 {
		return ""
	}

	perVertex := 4
	if withElevation {
		perVertex = 6
	}
	encoded := make([]byte, 0, len(coords)*perVertex)
	prevLat, prevLon, prevEle := 0, 0, 0

	for _, coord := range coords {
		lat := int(math.Round(coord.Lat * coordinatePrecision))
		lon := int(math.Round(coord.Lon * coordinatePrecision))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lon-prevLon)
		prevLat, prevLon = lat, lon

		if withElevation {
			ele := 0
			if coord.Elevation != nil {
				ele = int(math.Round(*coord.Elevation * elevationPrecision))
			}
			encoded = encodeValue(encoded, ele-prevEle)
			prevEle = ele
		}
	}

	return string(encoded)
}

// encodeValue encodes a single integer value using the polyline algorithm.
func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	buf = append(buf, byte(value)+63)

	return buf
}
