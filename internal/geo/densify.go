package geo

import "math"

// StepMeters — сколько метров проезжает курьер за один интервал обновления.
func StepMeters(speedKmh float64, intervalMs int64) float64 {
	return speedKmh * 1000 / 3600 * float64(intervalMs) / 1000
}

// Densify converts a sparse route into positions spaced by time: one point per
// intervalMs at speedKmh. The exact last route point is always the final element.
// Routes with fewer than two points, zero length or non-positive speed/interval are
// returned unchanged.
func Densify(points []Point, speedKmh float64, intervalMs int64) []Point {
	if len(points) < 2 || speedKmh <= 0 || intervalMs <= 0 {
		return append([]Point(nil), points...)
	}
	step := StepMeters(speedKmh, intervalMs)
	cum := CumulativeDistances(points)
	total := cum[len(cum)-1]
	if total <= 0 || step <= 0 {
		return append([]Point(nil), points...)
	}

	n := int(math.Ceil(total / step))
	out := make([]Point, 0, n+1)
	seg := 0
	for i := 0; i < n; i++ {
		target := float64(i) * step
		// сегменты идут по возрастанию, поэтому скан продолжается с прошлого места
		for seg < len(points)-2 && cum[seg+1] < target {
			seg++
		}
		out = append(out, interpolate(points[seg], points[seg+1], cum[seg], cum[seg+1], target))
	}
	out = append(out, points[len(points)-1])
	return out
}

func interpolate(a, b Point, fromM, toM, target float64) Point {
	segLen := toM - fromM
	if segLen <= 0 {
		return a
	}
	t := (target - fromM) / segLen
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return Point{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lng: a.Lng + t*(b.Lng-a.Lng),
	}
}
