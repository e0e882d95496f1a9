package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHaversineZeroDistance(t *testing.T) {
	require.Equal(t, 0, DistanceM(45.5017, -73.5673, 45.5017, -73.5673))
}

func TestHaversineKnownDistance(t *testing.T) {
	// Montreal to Quebec City, roughly 233 km.
	d := Haversine(45.5017, -73.5673, 46.8139, -71.2080)
	require.InDelta(t, 233000, d, 3000)
}

func TestHaversineShortDistance(t *testing.T) {
	// ~111 m per 0.001 degrees of latitude.
	d := DistanceM(45.5000, -73.5673, 45.5010, -73.5673)
	require.InDelta(t, 111, d, 2)
}

func TestValidLatLng(t *testing.T) {
	require.True(t, ValidLatLng(0, 0))
	require.True(t, ValidLatLng(-90, 180))
	require.False(t, ValidLatLng(90.1, 0))
	require.False(t, ValidLatLng(0, -180.5))
}
