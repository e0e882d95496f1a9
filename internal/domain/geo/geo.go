// Package geo provides great-circle distance math shared by the risk
// scorer, the check-in geofence, and the candidate ranker.
package geo

import "math"

const earthRadiusM = 6371000

// Haversine returns the great-circle distance in meters between two
// WGS84 coordinates.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// DistanceM returns the haversine distance rounded to whole meters.
func DistanceM(lat1, lng1, lat2, lng2 float64) int {
	return int(math.Round(Haversine(lat1, lng1, lat2, lng2)))
}

// ValidLatLng reports whether the pair is a usable WGS84 coordinate.
func ValidLatLng(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
