package utils

import (
	"math"
)

const (
	EarthRadiusKm = 6371.0
	EarthRadiusM  = 6371000.0
	DegToRad      = math.Pi / 180.0
	RadToDeg      = 180.0 / math.Pi
)

// AverageResponderSpeedKmh is the straight-line speed used for arrival
// estimates. It is not a routing engine.
const AverageResponderSpeedKmh = 30.0

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type BoundingBox struct {
	NorthEast Coordinate `json:"northEast"`
	SouthWest Coordinate `json:"southWest"`
}

// Contains reports whether the point lies inside the box (edges included).
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.SouthWest.Latitude && lat <= b.NorthEast.Latitude &&
		lon >= b.SouthWest.Longitude && lon <= b.NorthEast.Longitude
}

// CalculateDistance calculates the distance between two coordinates using the Haversine formula
func CalculateDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * DegToRad
	lon1Rad := lon1 * DegToRad
	lat2Rad := lat2 * DegToRad
	lon2Rad := lon2 * DegToRad

	dlat := lat2Rad - lat1Rad
	dlon := lon2Rad - lon1Rad

	a := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// CalculateDistanceKm is CalculateDistance in kilometres.
func CalculateDistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	return CalculateDistance(lat1, lon1, lat2, lon2) / 1000
}

// EstimateArrivalMinutes returns a whole-minute travel estimate for a
// straight-line distance, never less than one minute.
func EstimateArrivalMinutes(distanceKm float64) int {
	if distanceKm <= 0 {
		return 1
	}
	minutes := int(math.Ceil(distanceKm / AverageResponderSpeedKmh * 60))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// CalculateBoundingBox calculates a bounding box around a center point with a given radius
func CalculateBoundingBox(centerLat, centerLon, radiusM float64) BoundingBox {
	// Convert radius from meters to degrees (approximately)
	latDelta := radiusM / 111000.0 // 1 degree latitude ≈ 111km
	lonDelta := radiusM / (111000.0 * math.Cos(centerLat*DegToRad))

	return BoundingBox{
		NorthEast: Coordinate{
			Latitude:  centerLat + latDelta,
			Longitude: centerLon + lonDelta,
		},
		SouthWest: Coordinate{
			Latitude:  centerLat - latDelta,
			Longitude: centerLon - lonDelta,
		},
	}
}

// IsValidCoordinate checks if latitude and longitude values are valid
func IsValidCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// IsWithinRadiusKm checks whether a point lies within radiusKm of a centre.
func IsWithinRadiusKm(lat, lon, centerLat, centerLon, radiusKm float64) bool {
	return CalculateDistanceKm(lat, lon, centerLat, centerLon) <= radiusKm
}
