package geo

import "time"

// AssumedAvgSpeedKmh — средняя скорость для ETA. Мгновенную скорость курьера не используем:
// она скачет на светофорах.
const AssumedAvgSpeedKmh = 30.0

// ETASeconds — оставшееся время в секундах при движении со скоростью speedKmh.
func ETASeconds(lat, lng, destLat, destLng, speedKmh float64) float64 {
	if speedKmh <= 0 {
		speedKmh = AssumedAvgSpeedKmh
	}
	remainingKm := HaversineDistance(lat, lng, destLat, destLng) / 1000
	return remainingKm / speedKmh * 3600
}

func EstimateETA(lat, lng, destLat, destLng, speedKmh float64) time.Duration {
	return time.Duration(ETASeconds(lat, lng, destLat, destLng, speedKmh) * float64(time.Second))
}
