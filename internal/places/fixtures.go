package places

import "lunchly-backend/internal/models"

// FixtureRestaurants returns the fixed candidate set positioned around origin.
// Distances are preset, not computed from the offsets.
func FixtureRestaurants(origin models.Coordinate) []models.Restaurant {
	mk := func(id, name, address, category string, rating float64, count int, dLat, dLon, distance float64) models.Restaurant {
		rt := rating
		price := 2
		return models.Restaurant{
			PlaceID:          id,
			Name:             name,
			Address:          address,
			Rating:           &rt,
			PriceLevel:       &price,
			CuisineType:      category,
			Lat:              origin.Lat + dLat,
			Lon:              origin.Lon + dLon,
			UserRatingsTotal: count,
			Distance:         distance,
		}
	}

	list := []models.Restaurant{
		mk("mock_1", "Restauracja Polska", "ul. Przykładowa 1, Wrocław", "restaurant", 4.5, 150, 0.001, 0.001, 0.1),
		mk("mock_2", "Sushi Bar Tokio", "ul. Przykładowa 5, Wrocław", "restaurant", 4.7, 200, 0.002, -0.001, 0.2),
		mk("mock_3", "Pizza Express", "ul. Przykładowa 10, Wrocław", "restaurant", 4.3, 120, -0.001, 0.002, 0.3),
		mk("mock_4", "Kawiarnia Artystyczna", "ul. Przykładowa 15, Wrocław", "cafe", 4.6, 80, 0.003, 0.002, 0.4),
		mk("mock_5", "Irish Pub", "ul. Przykładowa 20, Wrocław", "bar", 4.4, 250, -0.002, -0.003, 0.5),
		mk("mock_6", "Burger House", "ul. Przykładowa 25, Wrocław", "restaurant", 4.2, 180, 0.004, -0.002, 0.6),
	}
	list[1].PriceLevel = intPtr(3)
	return list
}

func intPtr(v int) *int { return &v }
