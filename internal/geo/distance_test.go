package geo

import (
	"errors"
	"math"
	"testing"

	"lunchly-backend/internal/models"
)

func TestDistanceKMIsSymmetricAndNonNegative(t *testing.T) {
	points := []models.Coordinate{
		{Lat: 51.1079, Lon: 17.0385},
		{Lat: 52.2297, Lon: 21.0122},
		{Lat: -33.8688, Lon: 151.2093},
		{Lat: 0, Lon: 0},
		{Lat: 89.9, Lon: -179.9},
	}

	for i, a := range points {
		if d := DistanceKM(a, a); d != 0 {
			t.Fatalf("distance to self: got %v want 0", d)
		}
		for j, b := range points {
			ab := DistanceKM(a, b)
			ba := DistanceKM(b, a)
			if ab < 0 {
				t.Fatalf("negative distance between %d and %d: %v", i, j, ab)
			}
			if math.Abs(ab-ba) > 1e-9 {
				t.Fatalf("asymmetric distance between %d and %d: %v vs %v", i, j, ab, ba)
			}
		}
	}
}

func TestDistanceKMKnownPair(t *testing.T) {
	wroclaw := models.Coordinate{Lat: 51.1079, Lon: 17.0385}
	warsaw := models.Coordinate{Lat: 52.2297, Lon: 21.0122}

	got := DistanceKM(wroclaw, warsaw)
	if got < 295 || got > 305 {
		t.Fatalf("unexpected wroclaw-warsaw distance: got %v want ~301", got)
	}
}

func TestRoundKM(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 1.234, want: 1.23},
		{in: 1.235001, want: 1.24},
		{in: 0, want: 0},
		{in: 12.999, want: 13},
	}

	for _, tt := range tests {
		if got := RoundKM(tt.in); got != tt.want {
			t.Fatalf("RoundKM(%v): got %v want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidateCoordinate(t *testing.T) {
	tests := []struct {
		name  string
		c     models.Coordinate
		valid bool
	}{
		{name: "wroclaw", c: models.Coordinate{Lat: 51.1, Lon: 17.0}, valid: true},
		{name: "lat too big", c: models.Coordinate{Lat: 91, Lon: 0}},
		{name: "lon too small", c: models.Coordinate{Lat: 0, Lon: -181}},
		{name: "nan", c: models.Coordinate{Lat: math.NaN(), Lon: 0}},
		{name: "inf", c: models.Coordinate{Lat: 0, Lon: math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinate(tt.c)
			if tt.valid && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidCoordinate) {
				t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
			}
		})
	}
}
