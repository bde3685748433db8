package geo

import (
	"errors"
	"fmt"
	"math"

	"lunchly-backend/internal/models"
)

const earthRadiusKM = 6371.0

// ErrInvalidCoordinate is returned for NaN, infinite or out-of-range coordinates
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// DistanceKM returns the great-circle distance between a and b in kilometers
func DistanceKM(a, b models.Coordinate) float64 {
	toRad := func(v float64) float64 { return v * math.Pi / 180 }

	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h a hair above 1 for antipodal points
	h = math.Min(1, math.Max(0, h))
	return earthRadiusKM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// RoundKM rounds a distance to two decimals
func RoundKM(d float64) float64 {
	return math.Round(d*100) / 100
}

// ValidateCoordinate checks that c is a finite point on the globe
func ValidateCoordinate(c models.Coordinate) error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return fmt.Errorf("coordinate is not finite: %w", ErrInvalidCoordinate)
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("coordinate out of range: %w", ErrInvalidCoordinate)
	}
	return nil
}
