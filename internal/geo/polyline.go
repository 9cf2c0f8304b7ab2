package geo

import (
	polyline "github.com/twpayne/go-polyline"
)

// Google encoded polyline, точность 5 знаков.
const polylineFactor = 1e5

// DecodePolyline decodes an encoded polyline string. Decoding stops at the first broken value:
// a trailing pair cut off mid-varint or a byte outside the alphabet ends the stream, and the
// points decoded so far are returned.
func DecodePolyline(encoded string) []Point {
	buf := []byte(encoded)
	points := make([]Point, 0, len(buf)/4)
	var lat, lng int
	for len(buf) > 0 {
		dLat, rest, err := polyline.DecodeInt(buf)
		if err != nil {
			break
		}
		dLng, rest, err := polyline.DecodeInt(rest)
		if err != nil {
			break
		}
		buf = rest
		lat += dLat
		lng += dLng
		points = append(points, Point{
			Lat: float64(lat) / polylineFactor,
			Lng: float64(lng) / polylineFactor,
		})
	}
	return points
}

// EncodePolyline is the inverse of DecodePolyline.
func EncodePolyline(points []Point) string {
	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, []float64{p.Lat, p.Lng})
	}
	return string(polyline.EncodeCoords(coords))
}
