package domain

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// MeanEarthRadiusKm is the sphere radius great-circle distances are measured on.
const MeanEarthRadiusKm = 6371.009

// GreatCircleDistance returns the haversine distance in kilometers between
// two positions given as latitude/longitude degrees.
func GreatCircleDistance(lat1, lon1, lat2, lon2 float64) float64 {
	// orb points are {lon, lat}; orb measures on its equatorial radius.
	d := geo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
	return d / orb.EarthRadius * MeanEarthRadiusKm
}
