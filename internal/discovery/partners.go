// Package discovery filters and orders candidate lunch partners and restaurants.
// Everything here is pure and synchronous; callers rerun it whenever the
// viewer's coordinate or filters change.
package discovery

import (
	"sort"
	"time"

	"lunchly-backend/internal/geo"
	"lunchly-backend/internal/models"
)

// Partner is a candidate lunch partner annotated with distance from the viewer
type Partner struct {
	models.User
	Distance float64 `json:"distance"`
}

// PartnerFilter bounds partner discovery; all bounds are inclusive
type PartnerFilter struct {
	MaxDistanceKM float64
	MinAge        int
	MaxAge        int
}

// AnnotatePartners computes each user's distance from origin.
// Users without a coordinate cannot be placed and are skipped.
func AnnotatePartners(origin models.Coordinate, users []*models.User) []Partner {
	out := make([]Partner, 0, len(users))
	for _, u := range users {
		if u == nil {
			continue
		}
		loc, ok := u.Location()
		if !ok {
			continue
		}
		out = append(out, Partner{
			User:     *u,
			Distance: geo.RoundKM(geo.DistanceKM(origin, loc)),
		})
	}
	return out
}

// FilterPartners keeps available partners within distance and age bounds,
// nearest first. Partners without a declared age never satisfy the age range.
func FilterPartners(candidates []Partner, f PartnerFilter) []Partner {
	out := make([]Partner, 0, len(candidates))
	for _, c := range candidates {
		if !c.IsAvailable {
			continue
		}
		if c.Distance < 0 || c.Distance > f.MaxDistanceKM {
			continue
		}
		if c.Age == nil || *c.Age < f.MinAge || *c.Age > f.MaxAge {
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})
	return out
}

// FixturePartners returns the fixed partner set used when no real candidates
// are wired in. Distances are preset rather than computed.
func FixturePartners(now time.Time) []Partner {
	lat, lon := 51.1079, 17.0385
	mk := func(id, name, bio string, interests []string, distance float64, age int) Partner {
		a := age
		la, lo := lat, lon
		return Partner{
			User: models.User{
				ID:          id,
				Name:        name,
				Bio:         bio,
				Interests:   interests,
				Lat:         &la,
				Lon:         &lo,
				IsAvailable: true,
				Age:         &a,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
			Distance: distance,
		}
	}

	return []Partner{
		mk("mock1", "Anna Kowalska", "UX Designer, miłośniczka dobrego jedzenia 🍕", []string{"Design", "Startup", "Food"}, 1.2, 28),
		mk("mock2", "Jan Nowak", "Developer & foodie. Zawsze chętny na lunch!", []string{"Tech", "AI", "Coffee"}, 2.5, 32),
		mk("mock3", "Maria Wiśniewska", "Product Manager, lubię poznawać nowych ludzi", []string{"Product", "Networking", "Travel"}, 3.8, 26),
		mk("mock4", "Piotr Zieliński", "Marketing specialist, kawosz i food blogger", []string{"Marketing", "Food", "Photography"}, 4.5, 35),
		mk("mock5", "Katarzyna Lewandowska", "HR Manager, social butterfly 🦋", []string{"People", "Culture", "Food"}, 2.1, 29),
	}
}
